package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/danmuck/cqi/internal/probe"
	"github.com/danmuck/cqi/internal/protocol/session"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

func newPingCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "ping [ADDR...]",
		Short: "Check one or more servers concurrently (login, ping, logout)",
		RunE: func(cmd *cobra.Command, args []string) error {
			targets := normalizeTargets(args)
			if len(targets) == 0 {
				targets = []string{opts.cfg.Address()}
			}
			p := probe.New(probeConfig(opts, targets))
			results := p.ProbeAll(cmd.Context())

			data := pterm.TableData{{"target", "status", "latency", "corpora", "error"}}
			down := 0
			for _, st := range results {
				status := "up"
				if !st.Up {
					status = "down"
					down++
				}
				data = append(data, []string{
					st.Target,
					status,
					strconv.FormatFloat(st.LatencyMS, 'f', 1, 64) + "ms",
					strconv.Itoa(len(st.Corpora)),
					st.Error,
				})
			}
			out, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			if down > 0 {
				return fmt.Errorf("%d of %d target(s) down", down, len(results))
			}
			return nil
		},
	}
}

func probeConfig(opts *options, targets []string) probe.Config {
	return probe.Config{
		Targets:  targets,
		Interval: opts.cfg.Probe.Interval,
		User:     opts.cfg.User,
		Password: opts.cfg.Password,
		Session:  opts.cfg.Session(),
	}
}

func normalizeTargets(in []string) []string {
	out := make([]string, 0, len(in))
	for _, t := range in {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, session.NormalizeAddress(t))
		}
	}
	return out
}

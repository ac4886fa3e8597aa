package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/danmuck/cqi/internal/probe"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"
	"github.com/spf13/cobra"
)

func newProbeCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "probe [ADDR...]",
		Short: "Continuously probe servers and export /metrics, /health and /targets",
		RunE: func(cmd *cobra.Command, args []string) error {
			pcfg := opts.cfg.Probe
			if l, _ := cmd.Flags().GetString("listen"); cmd.Flags().Changed("listen") {
				pcfg.Listen = l
			}
			if d, _ := cmd.Flags().GetDuration("interval"); cmd.Flags().Changed("interval") {
				pcfg.Interval = d
			}
			targets := normalizeTargets(pcfg.Targets)
			if len(args) > 0 {
				targets = normalizeTargets(args)
			}
			if len(targets) == 0 {
				targets = []string{opts.cfg.Address()}
			}
			if pcfg.Interval <= 0 {
				return fmt.Errorf("probe interval must be positive")
			}
			if debug, _ := cmd.Flags().GetBool("debug"); !debug {
				gin.SetMode(gin.ReleaseMode)
			}

			pc := probeConfig(opts, targets)
			pc.Interval = pcfg.Interval
			prober := probe.New(pc)
			server := probe.NewServer("cqictl-probe", pcfg.Listen, pcfg.CorsOrigins, prober)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			log.Info().Strs("targets", targets).Dur("interval", pcfg.Interval).Str("listen", pcfg.Listen).Msg("probe started")

			g := pool.New().WithContext(ctx).WithCancelOnError().WithFirstError()
			g.Go(func(ctx context.Context) error { return prober.Run(ctx) })
			g.Go(func(ctx context.Context) error { return server.Serve(ctx) })
			err := g.Wait()
			log.Info().Msg("probe stopped")
			return err
		},
	}
	cmd.Flags().String("listen", "", "HTTP listen address (default from config, :9477)")
	cmd.Flags().Duration("interval", 0, "probe interval per target")
	return cmd
}

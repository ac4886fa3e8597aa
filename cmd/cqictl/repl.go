package main

import (
	"os"
	"os/signal"

	"github.com/danmuck/cqi/internal/protocol/session"
	"github.com/danmuck/cqi/internal/repl"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func newReplCommand(opts *options) *cobra.Command {
	var plain bool
	cmd := &cobra.Command{
		Use:   "repl",
		Short: "Interactive shell sending raw CQi values",
		Long: `Logs in, then reads lines of space separated values:
command names (sent as opcode words), numbers with an optional
:byte, :word or :int suffix and 0x radix, and double-quoted strings.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			client, err := session.Connect(ctx, opts.cfg.Session())
			if err != nil {
				return err
			}
			defer client.Close()

			var lines repl.LineReader
			if !plain && term.IsTerminal(int(os.Stdin.Fd())) {
				lines = repl.NewInteractiveReader()
			} else {
				lines = repl.NewLineReader(cmd.InOrStdin(), cmd.OutOrStdout())
			}
			r := repl.New(client, lines, cmd.OutOrStdout(), repl.Options{
				User:      opts.cfg.User,
				Password:  opts.cfg.Password,
				AutoLogin: true,
				History:   repl.NewHistory(opts.cfg.HistoryFile, 0),
			})
			return r.Run(ctx)
		},
	}
	cmd.Flags().BoolVar(&plain, "plain", false, "read lines from stdin without the interactive prompt")
	return cmd
}

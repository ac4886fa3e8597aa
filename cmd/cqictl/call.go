package main

import (
	"fmt"

	"github.com/danmuck/cqi/internal/protocol/commands"
	"github.com/danmuck/cqi/internal/repl"
	"github.com/spf13/cobra"
)

func newCallCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "call COMMAND [ARG...]",
		Short: "Log in, run one catalogue command and print the response",
		Example: `  cqictl call CORPUS_LIST_CORPORA
  cqictl call CL_ID2STR DICKENS.word 0,1,2
  cqictl call CQP_QUERY DICKENS Last '[word="shop"]'`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, ok := commands.Lookup(args[0])
			if !ok {
				return fmt.Errorf("unknown command %q (see `%s commands`)", args[0], binName)
			}
			vals, err := repl.ParseArgs(c, args[1:])
			if err != nil {
				return err
			}

			client, err := login(cmd.Context(), opts)
			if err != nil {
				return err
			}
			res, callErr := client.Call(c, vals...)
			out := cmd.OutOrStdout()
			if callErr != nil {
				fmt.Fprint(out, repl.RenderError(callErr))
			} else {
				fmt.Fprint(out, repl.RenderResult(res))
			}
			if err := logout(client); err != nil && callErr == nil {
				return err
			}
			if callErr != nil {
				return callErr
			}
			return res.Err()
		},
	}
}

package main

import (
	"fmt"
	"strings"

	"github.com/danmuck/cqi/internal/protocol/commands"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

func newCommandsCommand() *cobra.Command {
	return &cobra.Command{
		Use:              "commands [FILTER]",
		Short:            "List the CQi command catalogue",
		Args:             cobra.MaximumNArgs(1),
		PersistentPreRun: func(cmd *cobra.Command, args []string) {},
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := ""
			if len(args) == 1 {
				filter = strings.ToUpper(args[0])
			}
			data := pterm.TableData{{"opcode", "signature"}}
			for _, c := range commands.All() {
				if filter != "" && !strings.Contains(c.Name, filter) {
					continue
				}
				data = append(data, []string{fmt.Sprintf("0x%04X", uint16(c.Opcode)), c.Signature()})
			}
			out, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
}

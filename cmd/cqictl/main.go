package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/danmuck/cqi/internal/config"
	"github.com/danmuck/cqi/internal/logging"
	"github.com/danmuck/cqi/internal/protocol/commands"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	version    = "0.1.0"
	binName    = filepath.Base(os.Args[0])
	versionMsg = fmt.Sprintf("%s version %q (CQi %d.%d)\n", binName, version, commands.MajorVersion, commands.MinorVersion)
)

// options carries the resolved configuration to every subcommand.
type options struct {
	cfg config.ClientConfig
}

func newRootCommand() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           binName,
		Short:         "CQi corpus query client",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logging.ConfigureRuntime()
			if debug, _ := cmd.Flags().GetBool("debug"); debug {
				logging.SetLevel(zerolog.DebugLevel)
				log.Debug().Msg(versionMsg)
			}
			cfg, err := resolveConfig(cmd)
			if err != nil {
				return err
			}
			opts.cfg = cfg
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringP("config", "c", "", "config file (TOML)")
	flags.String("host", "", "CQi server host")
	flags.IntP("port", "p", 0, "CQi server port")
	flags.StringP("user", "u", "", "login user")
	flags.String("password", "", "login password")
	flags.Duration("timeout", 0, "read/write timeout per exchange")
	flags.BoolP("debug", "d", false, "debug logging")

	root.AddCommand(
		newVersionCommand(),
		newReplCommand(opts),
		newCallCommand(opts),
		newPingCommand(opts),
		newProbeCommand(opts),
		newCommandsCommand(),
		newConfigCommand(),
	)
	return root
}

// resolveConfig layers defaults, the config file and explicit flags.
func resolveConfig(cmd *cobra.Command) (config.ClientConfig, error) {
	cfg := config.DefaultClientConfig()
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return config.ClientConfig{}, err
		}
		cfg = loaded
		log.Debug().Str("path", path).Msg("loaded cqictl config")
	}
	flags := cmd.Flags()
	if flags.Changed("host") {
		cfg.Host, _ = flags.GetString("host")
	}
	if flags.Changed("port") {
		cfg.Port, _ = flags.GetInt("port")
	}
	if flags.Changed("user") {
		cfg.User, _ = flags.GetString("user")
	}
	if flags.Changed("password") {
		cfg.Password, _ = flags.GetString("password")
	}
	if flags.Changed("timeout") {
		d, _ := flags.GetDuration("timeout")
		cfg.ReadTimeout, cfg.WriteTimeout = d, d
	}
	if err := config.Validate(cfg); err != nil {
		return config.ClientConfig{}, err
	}
	return cfg, nil
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: fmt.Sprintf("Prints the version of %s", binName),
		// do not execute any persistent actions
		PersistentPreRun: func(cmd *cobra.Command, args []string) {},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprint(cmd.OutOrStdout(), versionMsg)
		},
	}
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", binName, err)
		os.Exit(1)
	}
}

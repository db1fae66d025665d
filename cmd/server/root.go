package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"mintgate/internal/platform/config"
)

// app carries state shared by the subcommands of one invocation.
type app struct {
	v   *viper.Viper
	cfg config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}

	root := &cobra.Command{
		Use:           "mintgate",
		Short:         "Fixed-supply issuance controller",
		Long:          "mintgate runs a two-phase sale of a capped supply: an allowlisted early phase followed by an open phase.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.loadConfig(cmd)
		},
	}

	root.PersistentFlags().String("config", "", "config file (default ./mintgate.yaml when present)")
	root.PersistentFlags().String("allowlist", "", "allowlist file (.txt, .yaml or .toml)")
	_ = a.v.BindPFlag("sale.allowlist_file", root.PersistentFlags().Lookup("allowlist"))

	root.AddCommand(newServeCmd(a), newAllowlistCmd(a))
	return root
}

func (a *app) loadConfig(cmd *cobra.Command) error {
	if cfgFile, _ := cmd.Flags().GetString("config"); cfgFile != "" {
		a.v.SetConfigFile(cfgFile)
		if err := a.v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config: %w", err)
		}
	} else {
		a.v.SetConfigName("mintgate")
		a.v.AddConfigPath(".")
		// A missing default config file is fine; defaults and env apply.
		_ = a.v.ReadInConfig()
	}

	cfg, err := config.Load(a.v)
	if err != nil {
		return err
	}
	a.cfg = cfg
	return nil
}

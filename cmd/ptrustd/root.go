package main

import (
	"github.com/spf13/cobra"

	"github.com/pushchain/validator-trust/trustClient/config"
)

const flagHome = "home"

func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "ptrustd",
		Short:         "Push validator trust daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().String(flagHome, config.DefaultNodeHome(), "Node home directory")

	InitRootCmd(rootCmd)

	return rootCmd
}

func homeDir(cmd *cobra.Command) string {
	home, err := cmd.Flags().GetString(flagHome)
	if err != nil || home == "" {
		return config.DefaultNodeHome()
	}
	return home
}

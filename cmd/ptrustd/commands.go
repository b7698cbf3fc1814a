package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pushchain/validator-trust/trustClient/config"
	"github.com/pushchain/validator-trust/trustClient/constant"
	"github.com/pushchain/validator-trust/trustClient/core"
	"github.com/pushchain/validator-trust/trustClient/logger"
)

// Set via -ldflags at build time.
var (
	Version = "dev"
	Commit  = ""
)

func InitRootCmd(rootCmd *cobra.Command) {
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(startCmd())
	rootCmd.AddCommand(versionCmd())
	rootCmd.AddCommand(queryCmd())
	rootCmd.AddCommand(sourcesCmd())
}

func initCmd() *cobra.Command {
	var (
		overwrite bool
		sources   []string
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default config to the node home",
		RunE: func(cmd *cobra.Command, args []string) error {
			home := homeDir(cmd)
			path := filepath.Join(home, constant.ConfigSubdir, constant.ConfigFileName)
			if _, err := os.Stat(path); err == nil && !overwrite {
				return fmt.Errorf("config already exists at %s (use --overwrite)", path)
			}

			cfg, err := config.LoadDefaultConfig()
			if err != nil {
				return err
			}
			cfg.NodeHome = home
			if len(sources) > 0 {
				cfg.Sources = sources
			}

			if err := config.Save(cfg, home); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace an existing config file")
	cmd.Flags().StringArrayVar(&sources, "source", nil, "Validator list source to configure (repeatable)")
	return cmd
}

func startCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the validator trust daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(homeDir(cmd))
			if err != nil {
				return err
			}

			log := logger.Init(cfg)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			client, err := core.NewTrustClient(ctx, &cfg, log)
			if err != nil {
				return err
			}
			return client.Start()
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print ptrustd version info",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Name:       %s\n", "ptrustd")
			fmt.Fprintf(out, "Version:    %s\n", Version)
			fmt.Fprintf(out, "Commit:     %s\n", Commit)
			fmt.Fprintf(out, "Go:         %s\n", runtime.Version())
		},
	}
}

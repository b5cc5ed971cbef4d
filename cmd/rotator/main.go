package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"proxyrotation/internal/shared/config"
	"proxyrotation/internal/shared/logger"
	"proxyrotation/internal/shared/types"
	manager "proxyrotation/proxypool"
)

var (
	configPath string
	debugFlag  bool
	cfg        *types.Config
)

var rootCmd = &cobra.Command{
	Use:   "rotator",
	Short: "Validate a proxy list and rotate through the live proxies",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if debugFlag {
			cfg.Level = "debug"
		}
		if sourceFile, _ := cmd.Flags().GetString("source"); sourceFile != "" {
			cfg.File = sourceFile
		}
		return logger.Init(cfg.LogConf)
	},
	SilenceUsage: true,
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate every proxy, record the results and export the live ones",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := manager.NewManager(cfg)
		if err != nil {
			return err
		}
		defer m.Close()

		summary, loadErr := m.Run()
		if loadErr != nil && summary.Checked == 0 {
			return loadErr
		}
		if err := m.ExportValid(); err != nil {
			return err
		}

		for _, e := range m.Pool().ValidSnapshot() {
			fmt.Fprintln(cmd.OutOrStdout(), e)
		}
		logger.Info().
			Str("run_id", summary.RunID).
			Int("valid", m.Pool().ValidCount()).
			Int("invalid", m.Pool().InvalidCount()).
			Msg("Check finished.")
		return nil
	},
}

var fetchCmd = &cobra.Command{
	Use:     "fetch [url]",
	Short:   "Validate the proxies, then fetch a URL through them until one succeeds",
	Example: "rotator fetch https://example.com --source proxy-list.txt",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := manager.NewManager(cfg)
		if err != nil {
			return err
		}
		defer m.Close()

		if _, loadErr := m.Run(); loadErr != nil {
			logger.Warn().Err(loadErr).Msg("Continuing with the proxies that could be loaded.")
		}
		if m.Pool().ValidCount() == 0 {
			return fmt.Errorf("no valid proxies available")
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		resp, err := m.Fetcher().Fetch(ctx, args[0])
		if err != nil {
			return err
		}
		logger.Info().
			Str("proxy", resp.Proxy.String()).
			Int("status", resp.StatusCode).
			Int("attempts", resp.Attempts).
			Msg("Fetched through proxy.")
		_, err = cmd.OutOrStdout().Write(resp.Body)
		return err
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "configs/rotator.ini", "Path to the .ini config file")
	rootCmd.PersistentFlags().BoolVarP(&debugFlag, "debug", "d", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringP("source", "s", "", "Proxy list file (overrides source.file)")

	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(fetchCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal: %v\n", err)
		os.Exit(1)
	}
}

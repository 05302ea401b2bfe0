package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/agile-athletes/lrps/config"
	"github.com/agile-athletes/lrps/internal/runtime"
)

// app carries what every subcommand needs once the root has loaded it.
type app struct {
	cfgPath string
	cfg     *config.Config
	logger  *zap.Logger
}

func rootCMD() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "lrps",
		Short:         "Long range planning assistant: attention trees, prompts and workflows",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.cfgPath)
			if err != nil {
				return err
			}
			logger, err := runtime.NewLogger(cfg.General)
			if err != nil {
				return err
			}
			a.cfg, a.logger = cfg, logger
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}
	root.PersistentFlags().StringVarP(&a.cfgPath, "config", "c", "", "config file (default searches ./config and .)")

	root.AddCommand(serveCMD(a), renderCMD(a), suggestCMD(a), tokenCMD(a), listenCMD(a), workflowCMD(a))
	return root
}

func main() {
	if err := rootCMD().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

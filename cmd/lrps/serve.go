package main

import (
	"github.com/spf13/cobra"

	"github.com/agile-athletes/lrps/internal/runtime"
	srv "github.com/agile-athletes/lrps/internal/server"
)

func serveCMD(a *app) *cobra.Command {
	var addr string
	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				a.cfg.Server.Address = addr
			}
			ctx, cancel := runtime.SignalContext(cmd.Context(), "serve", a.logger)
			defer cancel()
			return srv.Run(ctx, a.cfg, a.logger)
		},
	}
	serve.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.address)")
	return serve
}

package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hupe1980/archmesh"
	"github.com/hupe1980/archmesh/metrics"
	"github.com/hupe1980/archmesh/server"
)

func newServeCmd(a *app) *cobra.Command {
	var port string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and WebSocket server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if port != "" {
				a.cfg.Port = port
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			mesh, err := archmesh.NewFromConfig(ctx, a.cfg, func(o *archmesh.Options) {
				o.Logger = a.logger
				o.Metrics = metrics.New()
			})
			if err != nil {
				return err
			}
			defer mesh.Close()

			srv := server.New(mesh, func(o *server.Options) {
				o.Logger = a.logger
				o.MaxRequestBodySize = a.cfg.MaxUploadBytes
			})
			return srv.ListenAndServe(ctx, ":"+a.cfg.Port)
		},
	}
	cmd.Flags().StringVar(&port, "port", "", "override PORT")
	return cmd
}

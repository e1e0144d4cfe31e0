// Package serve provides the "drsplit serve" command.
package serve

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/klytics/drsplit/cmd/cmdutil"
	"github.com/klytics/drsplit/cmd/version"
	"github.com/klytics/drsplit/internal/logger"
	"github.com/klytics/drsplit/internal/server"
)

// NewCommand returns the serve command.
func NewCommand() *cobra.Command {
	var (
		addr      string
		maxUpload int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve inspect and split over HTTP",
		Long: `Starts an HTTP server for uploading workbooks.

Endpoints:
  POST /api/inspect  multipart: file, sheet, column, normalize
  POST /api/split    multipart: file, sheet, column, mode, normalize
  GET  /healthz

Example:
  drsplit serve --addr :8080
  curl -F file=@ventes.xlsx -F column=zone_drvnew -OJ localhost:8080/api/split`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdutil.Config()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("addr") {
				addr = cfg.Server.Addr
			}
			if !cmd.Flags().Changed("max-upload-mb") {
				maxUpload = cfg.Server.MaxUploadMB
			}

			srv := server.New(server.Config{
				Addr:        addr,
				MaxUploadMB: maxUpload,
				Prefix:      cfg.Output.Prefix,
				Normalize:   cfg.Normalize.Enabled,
				FoldAccents: cfg.Normalize.FoldAccents,
				Fallbacks:   cmdutil.Fallbacks(cfg),
				Log:         logger.Get(),
				Audit:       cmdutil.AuditLogger(cfg),
				Version:     version.Version,
			})

			if !cmdutil.JSON(cmd) {
				fmt.Printf("Listening on %s (max upload %d MB). Press Ctrl+C to stop\n", srv.Addr(), maxUpload)
			}
			return srv.Run(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "Listen address")
	cmd.Flags().IntVar(&maxUpload, "max-upload-mb", server.DefaultMaxUploadMB, "Maximum upload size in megabytes")

	return cmd
}

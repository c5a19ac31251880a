package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"FinCast/internal/di"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the forecast API",
	Long:  "Start the HTTP API, websocket stream, training consumer and job queue",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		app, cleanup, err := di.InitializeApp(cfg)
		if err != nil {
			return fmt.Errorf("app initialization failed: %w", err)
		}
		defer cleanup()

		return app.Run(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

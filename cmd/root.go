package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "signaling",
	Short: "Consultation signaling server: call setup and chat relay",
	Long:  `HTTP + WebSocket relay for patient/doctor consultations. Commands: serve, token.`,
	RunE:  runServe, // default: same as "signaling serve"
	// Errors are returned to main, which logs them.
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(tokenCmd)
}

// Execute runs the root command and returns the error (for main to log.Fatal).
func Execute() error {
	return rootCmd.Execute()
}

// Package cmd holds the command line entry points of the gateway.
package cmd

import (
	"github.com/neekaru/whatsappgo-gateway/internal/config"
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "whatsapp-gateway",
	Short: "Multi-tenant WhatsApp session gateway",
	Long: `whatsapp-gateway hosts many independent WhatsApp Web sessions in one
process and exposes their lifecycle over an HTTP control API.`,
	SilenceUsage: true,
	RunE:         runServe,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default is ./gateway.yaml)")
	rootCmd.AddCommand(serveCmd, sessionsCmd)
}

func loadConfig() (*config.Config, error) {
	return config.Load(configPath)
}

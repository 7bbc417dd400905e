package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Build information (injected at compile time via ldflags)
var Version = "dev"

const localGatewayHTTP = "http://localhost:1994"

var (
	gatewayHTTPAddr string
	authToken       string
	jsonOutput      bool
)

var rootCmd = &cobra.Command{
	Use:   "recall",
	Short: "Query your personal data sources",
	Long: BrandStyle.Render("recall") + ` - ask questions across mail, calendar, and agent-scraped sources.

Talks to a running recall gateway. Synchronous answers come back
immediately; queries that need the browser agent return instructions
and are polled until complete.`,
	Version: Version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		SetJSONOutput(jsonOutput)
	},
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("  %s version %s\n", BrandStyle.Render("recall"), Version))

	rootCmd.PersistentFlags().StringVar(&gatewayHTTPAddr, "gateway", getEnv("RECALL_GATEWAY", localGatewayHTTP), "Gateway HTTP address")
	rootCmd.PersistentFlags().StringVar(&authToken, "token", getEnv("RECALL_TOKEN", ""), "Authentication token")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(serveCmd)
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// agentctl is a command line client for the agent service.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	serverURL string
	authToken string
	agentID   string
	threadID  string
	modelName string
)

func main() {
	root := &cobra.Command{
		Use:           "agentctl",
		Short:         "Command line client for the agent service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&serverURL, "server", envOr("AGENTSERVE_URL", "http://localhost:8080"), "server base URL")
	root.PersistentFlags().StringVar(&authToken, "token", os.Getenv("AUTH_SECRET"), "bearer token")
	root.PersistentFlags().StringVarP(&agentID, "agent", "a", "", "agent to talk to (server default when empty)")
	root.PersistentFlags().StringVarP(&threadID, "thread", "t", "", "thread to continue")
	root.PersistentFlags().StringVarP(&modelName, "model", "m", "", "model override")

	root.AddCommand(newAgentsCmd(), newInvokeCmd(), newStreamCmd(), newChatCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

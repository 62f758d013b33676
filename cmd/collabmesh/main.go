// Command collabmesh runs a simulated realtime collaboration session with
// autonomous agents, optionally exposed over HTTP/websocket and mirrored to
// Redis.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "0.1.0-dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "collabmesh",
		Short: "Simulated realtime collaboration with autonomous agents",
		Long: `collabmesh runs a shared block document and drawing board that a local
participant edits together with simulated agents over a lossy, delayed
event bus. Conflicts, presence and the activity feed are available over
HTTP and websocket when the gateway is enabled.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().String("config", "", "Path to a YAML config file")

	rootCmd.AddCommand(
		newVersionCmd(),
		newRunCmd(),
	)
	return rootCmd
}

func newVersionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]string{"version": version})
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "collabmesh version %s\n", version)
			return err
		},
	}
	cmd.Flags().Bool("json", false, "Output as JSON")
	return cmd
}

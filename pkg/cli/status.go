package cli

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/blinksock/blinksock/pkg/engine"
)

var (
	statusURL  string
	statusJSON bool
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the status of a running echo service",
	Example: `  # Check a local service
  blinksock status

  # Check a device on the network
  blinksock status --url http://192.168.4.1/status`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().StringVar(&statusURL, "url", "http://localhost/status", "Status endpoint URL")
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Output in JSON format")
}

func runStatus(cmd *cobra.Command, args []string) error {
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(statusURL)
	if err != nil {
		return fmt.Errorf("service unreachable: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status: HTTP %d", resp.StatusCode)
	}

	var status engine.StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return fmt.Errorf("failed to decode response: %v", err)
	}

	if statusJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(status)
	}

	fmt.Printf("Status:       %s\n", status.Status)
	fmt.Printf("Uptime:       %s\n", status.Uptime)
	if status.Addr != "" {
		fmt.Printf("Address:      %s\n", status.Addr)
	}
	fmt.Printf("Echo route:   %s\n", status.Path)
	fmt.Printf("GPIO state:   %v\n", status.GPIOState)
	fmt.Printf("Connections:  %d active\n", status.Stats.ActiveConnections)
	fmt.Printf("Messages:     %d received, %d sent\n",
		status.Stats.TotalMessagesReceived, status.Stats.TotalMessagesSent)

	if len(status.Connections) > 0 {
		fmt.Println("\nActive connections:")
		for _, c := range status.Connections {
			fmt.Printf("  %s  %s  recv=%d sent=%d\n",
				c.ID, c.RemoteAddr, c.MessagesReceived, c.MessagesSent)
		}
	}
	return nil
}

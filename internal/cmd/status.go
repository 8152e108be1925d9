package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"overlayctl/internal/script"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the status of a running session",
	Long: `Status queries the monitor of a running session (monitor.addr) and
prints its step, capability status and input collection state.`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().String("addr", "", "monitor address (default is monitor.addr)")
	statusCmd.Flags().Bool("json", false, "print the raw status JSON")
}

func runStatus(cmd *cobra.Command, args []string) error {
	addr, _ := cmd.Flags().GetString("addr")
	if addr == "" {
		addr = viper.GetString("monitor.addr")
	}
	if addr == "" {
		return errors.New("no monitor address: set monitor.addr or pass --addr")
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
	defer cancel()

	snap, err := fetchStatus(ctx, addr, viper.GetString("monitor.token"))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	}

	fmt.Fprintf(out, "Session:          %s\n", snap.SessionID)
	fmt.Fprintf(out, "Step:             %s\n", snap.Step)
	fmt.Fprintf(out, "Overlay status:   %s\n", snap.Status)
	fmt.Fprintf(out, "Input collection: %s\n", onOff(snap.InputCollection))
	fmt.Fprintf(out, "Elapsed:          %s\n", snap.Elapsed.Truncate(time.Millisecond))
	fmt.Fprintf(out, "Log path:         %s\n", snap.LogPath)
	return nil
}

func fetchStatus(ctx context.Context, addr, token string) (script.Snapshot, error) {
	var snap script.Snapshot

	url := addr
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		url = "http://" + url
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimSuffix(url, "/")+"/api/status", nil)
	if err != nil {
		return snap, fmt.Errorf("invalid monitor address %q: %w", addr, err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return snap, fmt.Errorf("no session reachable at %s: %w", addr, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return snap, fmt.Errorf("monitor returned %s", resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return snap, fmt.Errorf("failed to decode status: %w", err)
	}
	return snap, nil
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var controlURL string

var riskCmd = &cobra.Command{
	Use:   "risk",
	Short: "Inspect and control the risk governor of a running session",
}

var riskStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current risk state",
	RunE: func(cmd *cobra.Command, args []string) error {
		return controlGet("/api/v1/risk")
	},
}

var riskResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Operator reset out of HALT_SOFT/HALT_HARD",
	RunE: func(cmd *cobra.Command, args []string) error {
		return controlPost("/api/v1/risk/reset")
	},
}

var riskKillCmd = &cobra.Command{
	Use:   "kill",
	Short: "Force HALT_HARD unconditionally",
	RunE: func(cmd *cobra.Command, args []string) error {
		return controlPost("/api/v1/risk/kill")
	},
}

func init() {
	riskCmd.PersistentFlags().StringVar(&controlURL, "control-url", "http://127.0.0.1:8087", "Base URL of the running session's control server")
	riskCmd.AddCommand(riskStatusCmd, riskResetCmd, riskKillCmd)
	rootCmd.AddCommand(riskCmd)
}

func operatorName() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "operator"
}

func controlGet(path string) error {
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(controlURL + path)
	if err != nil {
		return fmt.Errorf("control server unreachable: %w", err)
	}
	defer resp.Body.Close()
	return printResponse(resp)
}

func controlPost(path string) error {
	payload, _ := json.Marshal(map[string]string{"operator": operatorName()})
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Post(controlURL+path, "application/json", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("control server unreachable: %w", err)
	}
	defer resp.Body.Close()
	return printResponse(resp)
}

func printResponse(resp *http.Response) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	var pretty bytes.Buffer
	if json.Indent(&pretty, body, "", "  ") == nil {
		fmt.Println(pretty.String())
	} else {
		fmt.Println(string(body))
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("control server returned %d", resp.StatusCode)
	}
	return nil
}

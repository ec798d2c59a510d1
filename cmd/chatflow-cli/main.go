// Package main provides a CLI for interacting with the chatflow server.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/chatflow-ai/chatflow/pkg/client"
	"github.com/chatflow-ai/chatflow/pkg/models"
)

var serverURL string

func main() {
	rootCmd := &cobra.Command{
		Use:   "chatflow-cli",
		Short: "ChatFlow CLI",
		Long:  "Command-line interface for interacting with the ChatFlow server",
	}

	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "Server URL")

	// Flow commands
	flowCmd := &cobra.Command{
		Use:   "flow",
		Short: "Flow management",
	}

	flowListCmd := &cobra.Command{
		Use:   "list",
		Short: "List flows",
		Run:   listFlows,
	}

	flowGetCmd := &cobra.Command{
		Use:   "get [id]",
		Short: "Get a flow",
		Args:  cobra.ExactArgs(1),
		Run:   getFlow,
	}

	flowCreateCmd := &cobra.Command{
		Use:   "create [name]",
		Short: "Create a new flow",
		Args:  cobra.ExactArgs(1),
		Run:   createFlow,
	}

	flowDeleteCmd := &cobra.Command{
		Use:   "delete [id]",
		Short: "Delete a flow",
		Args:  cobra.ExactArgs(1),
		Run:   deleteFlow,
	}

	flowActivateCmd := &cobra.Command{
		Use:   "activate [id]",
		Short: "Activate a flow (deactivates all others)",
		Args:  cobra.ExactArgs(1),
		Run:   activateFlow,
	}

	flowCmd.AddCommand(flowListCmd, flowGetCmd, flowCreateCmd, flowDeleteCmd, flowActivateCmd)

	// Broadcast command
	var broadcastTags []string
	broadcastCmd := &cobra.Command{
		Use:   "broadcast [message]",
		Short: "Broadcast a message to contacts",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			broadcast(args[0], broadcastTags)
		},
	}
	broadcastCmd.Flags().StringSliceVar(&broadcastTags, "tag", nil, "Only contacts with one of these tags")

	rootCmd.AddCommand(flowCmd, broadcastCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func flowClient() *client.FlowClient {
	return client.NewFlowClient(serverURL)
}

func cliContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}

func listFlows(cmd *cobra.Command, args []string) {
	ctx, cancel := cliContext()
	defer cancel()

	flows, err := flowClient().ListFlows(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if len(flows) == 0 {
		fmt.Println("No flows found")
		return
	}

	fmt.Printf("%-36s  %-30s  %s\n", "ID", "NAME", "ACTIVE")
	fmt.Println(strings.Repeat("-", 78))
	for _, f := range flows {
		fmt.Printf("%-36s  %-30s  %v\n", f.ID, f.Name, f.IsActive)
	}
}

func getFlow(cmd *cobra.Command, args []string) {
	ctx, cancel := cliContext()
	defer cancel()

	flow, err := flowClient().GetFlow(ctx, args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	printJSON(flow)
}

func createFlow(cmd *cobra.Command, args []string) {
	ctx, cancel := cliContext()
	defer cancel()

	flow, err := flowClient().CreateFlow(ctx, models.FlowCreate{Name: args[0]})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Created flow %s (%s)\n", flow.Name, flow.ID)
}

func deleteFlow(cmd *cobra.Command, args []string) {
	ctx, cancel := cliContext()
	defer cancel()

	if err := flowClient().DeleteFlow(ctx, args[0]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Deleted flow %s\n", args[0])
}

func activateFlow(cmd *cobra.Command, args []string) {
	ctx, cancel := cliContext()
	defer cancel()

	active := true
	flow, err := flowClient().UpdateFlow(ctx, args[0], models.FlowPatch{IsActive: &active})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Activated flow %s (%s)\n", flow.Name, flow.ID)
}

// broadcast posts directly; the broadcast endpoint has no client wrapper.
func broadcast(message string, tags []string) {
	payload, err := json.Marshal(map[string]interface{}{
		"message": message,
		"tags":    tags,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	resp, err := http.Post(serverURL+"/api/broadcast", "application/json", bytes.NewReader(payload))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var body struct {
			Detail string `json:"detail"`
		}
		json.NewDecoder(resp.Body).Decode(&body)
		if body.Detail == "" {
			body.Detail = resp.Status
		}
		fmt.Fprintf(os.Stderr, "Error: %s\n", body.Detail)
		os.Exit(1)
	}

	fmt.Println("Broadcast queued")
}

func printJSON(v interface{}) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(data))
}

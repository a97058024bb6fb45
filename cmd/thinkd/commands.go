package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/cloudsecmentor/think-extension-azure-chat/internal/config"
)

// --- ask ---

var askCmd = &cobra.Command{
	Use:   "ask <query>",
	Short: "Submit a query and wait for the reply",
	Long: `Submit a query to the think service and poll until the reply is ready.

Examples:
  thinkd ask "What is SITMD?"
  thinkd ask --thread demo "Tell me more"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := strings.Join(args, " ")
		threadID, _ := cmd.Flags().GetString("thread")
		interval, _ := cmd.Flags().GetDuration("interval")
		timeout, _ := cmd.Flags().GetDuration("timeout")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		ctx := cmd.Context()

		req := map[string]string{"user_query": query}
		if threadID != "" {
			req["thread_id"] = threadID
		}

		resp, err := client.post(ctx, "/think", req)
		if err != nil {
			return err
		}

		var submitted struct {
			ID string `json:"id"`
		}
		if err := decodeJSON(resp, &submitted); err != nil {
			return err
		}

		printStep("Submitted request %s", submitted.ID)

		deadline := time.Now().Add(timeout)
		for {
			if time.Now().After(deadline) {
				return fmt.Errorf("no reply after %s (request %s)", timeout, submitted.ID)
			}
			time.Sleep(interval)

			pollResp, err := client.post(ctx, "/think", map[string]string{"id": submitted.ID})
			if err != nil {
				return err
			}

			var polled struct {
				Reply string `json:"reply"`
			}
			if err := decodeJSON(pollResp, &polled); err != nil {
				return err
			}

			if polled.Reply != "not ready" {
				fmt.Println(polled.Reply)
				return nil
			}
		}
	},
}

func init() {
	askCmd.Flags().String("thread", "", "thread id to archive the exchange under")
	askCmd.Flags().Duration("interval", time.Second, "polling interval")
	askCmd.Flags().Duration("timeout", 5*time.Minute, "maximum time to wait for a reply")
}

// --- threads ---

var threadsCmd = &cobra.Command{
	Use:   "threads",
	Short: "List recently active threads",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), fmt.Sprintf("/threads?limit=%d", limit))
		if err != nil {
			return err
		}

		var threads []struct {
			ThreadID     string `json:"thread_id"`
			MessageCount int    `json:"message_count"`
			LastActivity string `json:"last_activity"`
		}
		if err := decodeJSON(resp, &threads); err != nil {
			return err
		}

		if len(threads) == 0 {
			fmt.Println("No threads found.")
			return nil
		}

		for _, t := range threads {
			fmt.Printf("%s  %3d messages  last %s\n",
				colorize(colorCyan, t.ThreadID),
				t.MessageCount,
				t.LastActivity,
			)
		}
		return nil
	},
}

// --- history ---

var historyCmd = &cobra.Command{
	Use:   "history <thread-id>",
	Short: "Show the archived messages of a thread",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		path := fmt.Sprintf("/threads/%s/messages?limit=%d", args[0], limit)
		resp, err := client.get(cmd.Context(), path)
		if err != nil {
			return err
		}

		var messages []struct {
			Role      string `json:"role"`
			Name      string `json:"name"`
			Content   string `json:"content"`
			CreatedAt string `json:"created_at"`
		}
		if err := decodeJSON(resp, &messages); err != nil {
			return err
		}

		if len(messages) == 0 {
			fmt.Println("No messages found.")
			return nil
		}

		for _, m := range messages {
			label := m.Role
			if m.Name != "" {
				label = m.Name
			}
			fmt.Printf("%s %s\n  %s\n", colorize(colorBold, label+":"), m.CreatedAt, m.Content)
		}
		return nil
	},
}

func init() {
	threadsCmd.Flags().Int("limit", 10, "maximum number of threads to list")
	historyCmd.Flags().Int("limit", 100, "maximum number of messages to show")
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		keys := config.ShowAll(cfg)
		for _, k := range keys {
			fmt.Printf("  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}

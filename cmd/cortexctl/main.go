// Command cortexctl is the Atlas Cortex admin CLI: it talks to a running
// cortexd over HTTP to authenticate, inspect configuration, and check
// provider/subsystem health, the way the teacher daemon's own CLI drives its
// HTTP surface rather than reimplementing its internals.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/zalando/go-keyring"

	"github.com/atlas-cortex/cortex/internal/auth"
	"github.com/atlas-cortex/cortex/internal/config"
)

const keyringService = "atlas-cortex"

var (
	serverURL string

	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	failStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	headStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("33")).Bold(true)
	faintStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

func main() {
	root := &cobra.Command{
		Use:   "cortexctl",
		Short: "Admin CLI for the Atlas Cortex daemon",
	}
	root.PersistentFlags().StringVar(&serverURL, "server", "http://127.0.0.1:8080", "cortexd base URL")

	root.AddCommand(loginCmd(), logoutCmd(), statusCmd(), configCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, failStyle.Render("error: "+err.Error()))
		os.Exit(1)
	}
}

func loginCmd() *cobra.Command {
	var username, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authenticate against cortexd and store the access token",
		RunE: func(cmd *cobra.Command, args []string) error {
			if username == "" {
				return fmt.Errorf("--username is required")
			}

			body, err := json.Marshal(auth.LoginRequest{Username: username, Password: password})
			if err != nil {
				return err
			}

			resp, err := httpPost(serverURL+"/api/auth/login", body)
			if err != nil {
				return fmt.Errorf("login request: %w", err)
			}

			var parsed auth.AuthResponse
			if err := json.Unmarshal(resp, &parsed); err != nil {
				return fmt.Errorf("parse login response: %w", err)
			}
			if parsed.Tokens == nil {
				return fmt.Errorf("login failed: no tokens in response")
			}

			if err := keyring.Set(keyringService, username, parsed.Tokens.AccessToken); err != nil {
				return fmt.Errorf("store access token: %w", err)
			}
			if err := keyring.Set(keyringService, username+":refresh", parsed.Tokens.RefreshToken); err != nil {
				return fmt.Errorf("store refresh token: %w", err)
			}

			fmt.Println(okStyle.Render("✓ logged in as " + username))
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "account username")
	cmd.Flags().StringVarP(&password, "password", "p", "", "account password")
	return cmd
}

func logoutCmd() *cobra.Command {
	var username string
	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Remove the stored access token for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			if username == "" {
				return fmt.Errorf("--username is required")
			}
			_ = keyring.Delete(keyringService, username)
			_ = keyring.Delete(keyringService, username+":refresh")
			fmt.Println(okStyle.Render("✓ cleared stored credentials for " + username))
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "account username")
	return cmd
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check whether cortexd is reachable",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := &http.Client{Timeout: 5 * time.Second}
			resp, err := client.Get(serverURL + "/.well-known/agent-card.json")
			if err != nil {
				fmt.Println(failStyle.Render("✗ unreachable: " + err.Error()))
				return nil
			}
			defer resp.Body.Close()

			fmt.Println(headStyle.Render("cortexd @ " + serverURL))
			if resp.StatusCode == http.StatusOK {
				fmt.Println(okStyle.Render("✓ agent card served, daemon is up"))
			} else {
				fmt.Println(failStyle.Render(fmt.Sprintf("✗ unexpected status %d", resp.StatusCode)))
			}
			return nil
		},
	}
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect local cortexd configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			fmt.Println(headStyle.Render("Atlas Cortex Configuration"))
			fmt.Println(faintStyle.Render("──────────────────────────"))
			fmt.Printf("Server:     %s:%d\n", cfg.Server.Host, cfg.Server.Port)
			fmt.Printf("Data dir:   %s\n", cfg.Server.DataDir)
			fmt.Printf("LLM:        %s (%s)\n", cfg.LLM.Provider, cfg.LLM.URL)
			fmt.Printf("Embedding:  %s (%s)\n", cfg.Embedding.Provider, cfg.Embedding.Model)
			fmt.Printf("Log level:  %s\n", cfg.Logging.Level)
			return nil
		},
	})

	return cmd
}

func httpPost(url string, body []byte) ([]byte, error) {
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(data))
	}
	return data, nil
}

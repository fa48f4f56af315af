// Package main implements brainctl, a CLI for the brain HTTP API.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/bparpette/MistralHackathon/pkg/auth"
)

// version information
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// options holds the persistent flags shared by every subcommand.
type options struct {
	serverURL string
	requester string
	pretty    bool
	timeout   time.Duration
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:   "brainctl",
		Short: "CLI for the collective brain HTTP API",
		Long: `brainctl talks to a running brain server. It can add, search, verify,
list and delete memories and report on a workspace.

Output is JSON unless --pretty is set.`,
		Version:      version,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&opts.serverURL, "server", envOr("BRAIN_SERVER", "http://localhost:9090"), "brain server URL")
	root.PersistentFlags().StringVar(&opts.requester, "requester", os.Getenv("BRAIN_REQUESTER"), "requester id sent as "+auth.HeaderRequesterID)
	root.PersistentFlags().BoolVar(&opts.pretty, "pretty", false, "human-readable output")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 30*time.Second, "request timeout")

	root.AddCommand(
		newAddCmd(opts),
		newSearchCmd(opts),
		newGetCmd(opts),
		newListCmd(opts),
		newVerifyCmd(opts),
		newDeleteCmd(opts),
		newInsightsCmd(opts),
		newHealthCmd(opts),
	)
	return root
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// apiError is a non-2xx answer from the server.
type apiError struct {
	Status  int
	Code    string
	Message string
}

func (e *apiError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("server returned status %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("%s (%d): %s", e.Code, e.Status, e.Message)
}

type client struct {
	base      string
	requester string
	http      *http.Client
}

func (o *options) client() *client {
	return &client{
		base:      strings.TrimRight(o.serverURL, "/"),
		requester: o.requester,
		http:      &http.Client{Timeout: o.timeout},
	}
}

// do sends body as JSON and decodes a JSON answer into out. out may be nil.
func (c *client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	target := c.base + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.requester != "" {
		req.Header.Set(auth.HeaderRequesterID, c.requester)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request to %s: %w", target, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(resp.StatusCode, raw)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func decodeError(status int, raw []byte) error {
	var body struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err == nil && body.Error.Message != "" {
		return &apiError{Status: status, Code: body.Error.Code, Message: body.Error.Message}
	}
	return &apiError{Status: status, Message: strings.TrimSpace(string(raw))}
}

package main

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	httpapi "github.com/bparpette/MistralHackathon/internal/http"
	"github.com/bparpette/MistralHackathon/internal/insights"
	"github.com/bparpette/MistralHackathon/internal/memory"
)

var errWorkspaceRequired = errors.New("--workspace is required")

// emit writes v as indented JSON, or through render when --pretty is set.
func (o *options) emit(cmd *cobra.Command, v any, render func(w io.Writer)) error {
	out := cmd.OutOrStdout()
	if o.pretty {
		render(out)
		return nil
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newAddCmd(opts *options) *cobra.Command {
	var (
		req        httpapi.AddMemoryRequest
		confidence float64
	)
	cmd := &cobra.Command{
		Use:   "add <content>",
		Short: "Store a memory in a workspace",
		Long: `Store a memory in a workspace. Similar memories are linked automatically.

Examples:
  brainctl add -w payments "API returns 429 when rate limited, fix: exponential backoff"
  brainctl add -w payments --category api --tags api,rate-limit --visibility public "..."`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if req.WorkspaceID == "" {
				return errWorkspaceRequired
			}
			req.Content = strings.Join(args, " ")
			if cmd.Flags().Changed("confidence") {
				req.ConfidenceHint = &confidence
			}

			var resp httpapi.AddMemoryResponse
			if err := opts.client().do(cmd.Context(), http.MethodPost, "/api/v1/memories", nil, req, &resp); err != nil {
				return err
			}
			return opts.emit(cmd, resp, func(w io.Writer) { renderAdded(w, resp) })
		},
	}
	cmd.Flags().StringVarP(&req.WorkspaceID, "workspace", "w", "", "workspace id")
	cmd.Flags().StringVarP(&req.Category, "category", "c", "", "category (default general)")
	cmd.Flags().StringSliceVarP(&req.Tags, "tags", "t", nil, "comma-separated tags")
	cmd.Flags().StringVar(&req.Visibility, "visibility", "", "private, team or public (default team)")
	cmd.Flags().Float64Var(&confidence, "confidence", 0.5, "initial confidence hint in [0,1]")
	return cmd
}

func newSearchCmd(opts *options) *cobra.Command {
	var (
		req   httpapi.SearchRequest
		limit int
	)
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search memories by similarity",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if req.WorkspaceID == "" {
				return errWorkspaceRequired
			}
			req.Query = strings.Join(args, " ")
			if cmd.Flags().Changed("limit") {
				req.Limit = &limit
			}

			var resp httpapi.SearchResponse
			if err := opts.client().do(cmd.Context(), http.MethodPost, "/api/v1/search", nil, req, &resp); err != nil {
				return err
			}
			return opts.emit(cmd, resp, func(w io.Writer) { renderSearch(w, resp) })
		},
	}
	cmd.Flags().StringVarP(&req.WorkspaceID, "workspace", "w", "", "workspace id")
	cmd.Flags().IntVarP(&limit, "limit", "n", httpapi.DefaultSearchLimit, "maximum number of results")
	cmd.Flags().StringVarP(&req.Category, "category", "c", "", "only this category")
	cmd.Flags().StringVar(&req.Visibility, "visibility", "", "only this visibility")
	return cmd
}

func newGetCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "get <memory-id>",
		Short: "Show one memory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var m memory.Memory
			if err := opts.client().do(cmd.Context(), http.MethodGet, "/api/v1/memories/"+url.PathEscape(args[0]), nil, nil, &m); err != nil {
				return err
			}
			return opts.emit(cmd, m, func(w io.Writer) { renderMemory(w, &m) })
		},
	}
}

func newListCmd(opts *options) *cobra.Command {
	var (
		workspaceID   string
		offset, limit int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List memories of a workspace, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if workspaceID == "" {
				return errWorkspaceRequired
			}
			query := url.Values{"workspace_id": {workspaceID}}
			if offset > 0 {
				query.Set("offset", strconv.Itoa(offset))
			}
			if limit > 0 {
				query.Set("limit", strconv.Itoa(limit))
			}

			var page memory.PageResult
			if err := opts.client().do(cmd.Context(), http.MethodGet, "/api/v1/memories", query, nil, &page); err != nil {
				return err
			}
			return opts.emit(cmd, page, func(w io.Writer) { renderPage(w, page) })
		},
	}
	cmd.Flags().StringVarP(&workspaceID, "workspace", "w", "", "workspace id")
	cmd.Flags().IntVar(&offset, "offset", 0, "number of memories to skip")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "page size (server default when 0)")
	return cmd
}

func newVerifyCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <memory-id>",
		Short: "Corroborate a memory, raising its confidence",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var m memory.Memory
			path := "/api/v1/memories/" + url.PathEscape(args[0]) + "/verify"
			if err := opts.client().do(cmd.Context(), http.MethodPost, path, nil, nil, &m); err != nil {
				return err
			}
			return opts.emit(cmd, m, func(w io.Writer) { renderVerified(w, &m) })
		},
	}
}

func newDeleteCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <memory-id>",
		Short: "Delete a memory you own, or any memory of a workspace you administer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp httpapi.DeleteResponse
			if err := opts.client().do(cmd.Context(), http.MethodDelete, "/api/v1/memories/"+url.PathEscape(args[0]), nil, nil, &resp); err != nil {
				return err
			}
			return opts.emit(cmd, resp, func(w io.Writer) { renderDeleted(w, resp) })
		},
	}
}

func newInsightsCmd(opts *options) *cobra.Command {
	var workspaceID, timeframe string
	cmd := &cobra.Command{
		Use:   "insights",
		Short: "Summarize what a workspace has been recording",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if workspaceID == "" {
				return errWorkspaceRequired
			}
			var query url.Values
			if timeframe != "" {
				query = url.Values{"timeframe": {timeframe}}
			}

			var report insights.Report
			path := "/api/v1/workspaces/" + url.PathEscape(workspaceID) + "/insights"
			if err := opts.client().do(cmd.Context(), http.MethodGet, path, query, nil, &report); err != nil {
				return err
			}
			return opts.emit(cmd, report, func(w io.Writer) { renderInsights(w, &report) })
		},
	}
	cmd.Flags().StringVarP(&workspaceID, "workspace", "w", "", "workspace id")
	cmd.Flags().StringVar(&timeframe, "timeframe", "", "day, week, month or all (default week)")
	return cmd
}

func newHealthCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check brain server health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var resp httpapi.HealthResponse
			if err := opts.client().do(cmd.Context(), http.MethodGet, "/health", nil, nil, &resp); err != nil {
				return err
			}
			return opts.emit(cmd, resp, func(w io.Writer) { renderHealth(w, opts.serverURL, resp) })
		},
	}
}

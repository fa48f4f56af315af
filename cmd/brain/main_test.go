package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bparpette/MistralHackathon/internal/config"
)

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func testConfig(t *testing.T) *config.Config {
	cfg := config.Default()
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = freePort(t)
	cfg.MCP.Enabled = false
	cfg.VectorStore.Path = ""
	cfg.VectorStore.VectorSize = 64
	cfg.Embeddings.Provider = "hash"
	cfg.Secrets.Scrub = false
	cfg.Logging.Level = "error"
	cfg.Workspaces.Members = map[string][]string{"ws1": {"alice"}}
	return cfg
}

func TestRun_ServesHTTPUntilCancelled(t *testing.T) {
	cfg := testConfig(t)
	base := fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := make(chan error, 1)
	go func() { errCh <- run(ctx, cfg) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get(base + "/health")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 25*time.Millisecond)

	req, err := http.NewRequest(http.MethodPost, base+"/api/v1/memories",
		strings.NewReader(`{"workspace_id":"ws1","content":"release branches are cut on tuesdays"}`))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Requester-ID", "alice")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Contains(t, body, "memory")

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down in time")
	}
}

func TestRun_InvalidLogging(t *testing.T) {
	cfg := testConfig(t)
	cfg.Logging.Format = "xml"
	err := run(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid logging config")
}

func TestRun_ServiceFailure(t *testing.T) {
	cfg := testConfig(t)
	cfg.Embeddings.Provider = "nope"
	err := run(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "initializing services")
}

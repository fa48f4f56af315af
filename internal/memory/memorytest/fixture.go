// Package memorytest builds in-memory memory stores for tests.
package memorytest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bparpette/MistralHackathon/internal/config"
	"github.com/bparpette/MistralHackathon/internal/embeddings"
	"github.com/bparpette/MistralHackathon/internal/memory"
	"github.com/bparpette/MistralHackathon/internal/vectorstore"
	"github.com/bparpette/MistralHackathon/internal/workspace"
)

// Dimension is the embedding size used by fixtures.
const Dimension = 64

// Start is the first creation timestamp handed out by the fixture clock.
var Start = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

// Fixture is a store over an in-memory chromem index with the hash
// embedder. Workspace ws1 has members alice and bob and admin carol;
// ws2 has member dave.
type Fixture struct {
	Index *vectorstore.ChromemIndex
	Store *memory.Store
	Guard *workspace.Guard
	Clock *Clock
}

// Option edits the memory configuration before the store is built.
type Option func(*config.MemoryConfig)

// New builds a Fixture.
func New(t testing.TB, opts ...Option) *Fixture {
	t.Helper()

	cfg := config.Default().Memory
	for _, o := range opts {
		o(&cfg)
	}
	options, err := memory.NewOptions(cfg)
	require.NoError(t, err)

	index, err := vectorstore.NewChromemIndex(vectorstore.ChromemConfig{VectorSize: Dimension}, zap.NewNop())
	require.NoError(t, err)
	embedder, err := embeddings.NewHashProvider(Dimension)
	require.NoError(t, err)

	dir := workspace.NewStaticDirectory(map[string]workspace.Membership{
		"ws1": {Members: []string{"alice", "bob"}, Admins: []string{"carol"}},
		"ws2": {Members: []string{"dave"}},
	})
	guard, err := workspace.NewGuard(dir, zap.NewNop())
	require.NoError(t, err)

	clock := &Clock{now: Start}
	store, err := memory.NewStore(index, embedder, guard, options, zap.NewNop(), memory.WithClock(clock.Tick))
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = store.Close()
		_ = index.Close()
	})
	return &Fixture{Index: index, Store: store, Guard: guard, Clock: clock}
}

// Create stores a memory, defaulting owner alice and workspace ws1.
func (f *Fixture) Create(t testing.TB, req memory.CreateRequest) *memory.Memory {
	t.Helper()
	if req.OwnerID == "" {
		req.OwnerID = "alice"
	}
	if req.WorkspaceID == "" {
		req.WorkspaceID = "ws1"
	}
	m, err := f.Store.Create(context.Background(), req)
	require.NoError(t, err)
	return m
}

// Clock advances one second on every Tick.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// Tick returns the current time and advances the clock.
func (c *Clock) Tick() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now = c.now.Add(time.Second)
	return t
}

// Now returns the current time without advancing.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set moves the clock to t.
func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// Hint returns a pointer to v for CreateRequest.ConfidenceHint.
func Hint(v float64) *float64 { return &v }

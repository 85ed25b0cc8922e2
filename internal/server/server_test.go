package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/argus-labs/epoch-keeper/internal/journal"
	"github.com/argus-labs/epoch-keeper/internal/keeper"
	"github.com/argus-labs/epoch-keeper/internal/protocol"
)

type stubSource struct {
	snap atomic.Pointer[keeper.Snapshot]
}

func (s *stubSource) Snapshot() keeper.Snapshot {
	if p := s.snap.Load(); p != nil {
		return *p
	}
	return keeper.Snapshot{}
}

func (s *stubSource) set(snap keeper.Snapshot) {
	s.snap.Store(&snap)
}

func newTestServer(t *testing.T) (*Server, *stubSource, *journal.MemoryStore) {
	t.Helper()
	source := &stubSource{}
	store := journal.NewMemoryStore(10)
	s, err := New(source, store, "4050", zerolog.Nop())
	require.NoError(t, err)
	return s, source, store
}

func get(t *testing.T, s *Server, path string, out any) int {
	t.Helper()
	res, err := s.app.Test(httptest.NewRequest(http.MethodGet, path, nil))
	require.NoError(t, err)
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	if out != nil {
		require.NoError(t, json.Unmarshal(body, out), string(body))
	}
	return res.StatusCode
}

func TestHealth(t *testing.T) {
	t.Parallel()
	s, source, _ := newTestServer(t)

	var res GetHealthResponse
	require.Equal(t, http.StatusOK, get(t, s, "/health", &res))
	assert.True(t, res.IsServerRunning)
	assert.False(t, res.IsWatcherRunning)
	assert.Nil(t, res.LastTickAt)

	at := time.Unix(1_700_000_000, 0).UTC()
	source.set(keeper.Snapshot{Running: true, LastTickAt: at, Ticks: 7, HasTask: true})
	require.Equal(t, http.StatusOK, get(t, s, "/health", &res))
	assert.True(t, res.IsWatcherRunning)
	require.NotNil(t, res.LastTickAt)
	assert.True(t, at.Equal(*res.LastTickAt))
	assert.Equal(t, uint64(7), res.Ticks)
}

func TestTask(t *testing.T) {
	t.Parallel()
	s, source, _ := newTestServer(t)

	var errRes ErrorResponse
	require.Equal(t, http.StatusServiceUnavailable, get(t, s, "/task", &errRes))
	assert.NotEmpty(t, errRes.Error.Message)
	assert.Equal(t, http.StatusServiceUnavailable, errRes.Error.Code)

	task := protocol.Task{
		ProgramID: solana.NewWallet().PublicKey(),
		Epoch:     9,
		EndAt:     1234,
		State:     protocol.StatePending,
		PoolCount: 3,
	}
	source.set(keeper.Snapshot{Task: task, HasTask: true, TickID: "abc"})

	var raw map[string]any
	require.Equal(t, http.StatusOK, get(t, s, "/task", &raw))
	assert.Equal(t, "abc", raw["tickId"])
	got := raw["task"].(map[string]any)
	assert.Equal(t, "pending", got["state"])
	assert.Equal(t, task.ProgramID.String(), got["programId"])
	assert.InDelta(t, 9, got["epoch"], 0)
}

func TestActions(t *testing.T) {
	t.Parallel()
	s, _, store := newTestServer(t)
	ctx := context.Background()
	for epoch := uint64(1); epoch <= 4; epoch++ {
		require.NoError(t, store.Record(ctx, journal.Entry{
			Epoch:   epoch,
			Action:  journal.ActionResolve,
			Outcome: journal.OutcomeConfirmed,
		}))
	}

	var res GetActionsResponse
	require.Equal(t, http.StatusOK, get(t, s, "/actions", &res))
	assert.Len(t, res.Actions, 4)
	assert.Equal(t, uint64(4), res.Actions[0].Epoch)

	require.Equal(t, http.StatusOK, get(t, s, "/actions?limit=2", &res))
	assert.Len(t, res.Actions, 2)

	var errRes ErrorResponse
	require.Equal(t, http.StatusBadRequest, get(t, s, "/actions?limit=0", &errRes))
	assert.Contains(t, errRes.Error.Message, "limit")
}

func TestNew_Validates(t *testing.T) {
	t.Parallel()
	store := journal.NewMemoryStore(1)
	_, err := New(nil, store, "4050", zerolog.Nop())
	require.Error(t, err)
	_, err = New(&stubSource{}, nil, "4050", zerolog.Nop())
	require.Error(t, err)
	_, err = New(&stubSource{}, store, "", zerolog.Nop())
	require.Error(t, err)
}

type failingStore struct{}

func (failingStore) Record(context.Context, journal.Entry) error {
	return errors.New("journal offline")
}

func (failingStore) Recent(context.Context, int) ([]journal.Entry, error) {
	return nil, errors.New("journal offline")
}

func TestActions_StoreError(t *testing.T) {
	t.Parallel()
	s, err := New(&stubSource{}, failingStore{}, "4050", zerolog.Nop())
	require.NoError(t, err)

	var errRes ErrorResponse
	require.Equal(t, http.StatusInternalServerError, get(t, s, "/actions", &errRes))
	assert.Equal(t, http.StatusInternalServerError, errRes.Error.Code)
	assert.Contains(t, errRes.Error.Message, "journal offline")
}

package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"spartan-crm/internal/domain"
	"spartan-crm/internal/offline"
	"spartan-crm/internal/twenty"
)

type fakeRemote struct {
	mu      sync.Mutex
	known   map[string]bool
	failFor map[string]error
	listed  []domain.Lead
	updates []string
	creates []string
	nextID  int
	block   chan struct{}
	calls   atomic.Int32
	// during runs inside every successful update or create
	during func(l domain.Lead)
}

func newFakeRemote(known ...string) *fakeRemote {
	r := &fakeRemote{known: map[string]bool{}, failFor: map[string]error{}}
	for _, id := range known {
		r.known[id] = true
	}
	return r
}

func (r *fakeRemote) ListLeads(context.Context, *twenty.LeadFilter) ([]domain.Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Lead(nil), r.listed...), nil
}

func (r *fakeRemote) UpdateLead(ctx context.Context, l domain.Lead) (*domain.Lead, error) {
	r.calls.Add(1)
	if r.block != nil {
		select {
		case <-r.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, l.ID)
	if err := r.failFor[l.ID]; err != nil {
		return nil, err
	}
	if !r.known[l.ID] {
		return nil, &twenty.Error{Operation: "UpdateLead", StatusCode: 404}
	}
	if r.during != nil {
		r.during(l)
	}
	return &l, nil
}

func (r *fakeRemote) CreateLead(_ context.Context, l domain.Lead) (*domain.Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.creates = append(r.creates, l.ID)
	r.nextID++
	created := l
	created.ID = fmt.Sprintf("remote-%d", r.nextID)
	r.known[created.ID] = true
	if r.during != nil {
		r.during(l)
	}
	return &created, nil
}

func newTestEngine(t *testing.T, remote Remote, online bool) (*Engine, *offline.MemoryStore, *StaticConnectivity) {
	t.Helper()
	store := offline.NewMemoryStore()
	conn := NewStaticConnectivity(online)
	e := NewEngine(store, remote, conn, Options{RemoteTimeout: time.Second, Logger: zap.NewNop()})
	return e, store, conn
}

func putLead(t *testing.T, s offline.Store, id string, status domain.SyncStatus) {
	t.Helper()
	require.NoError(t, s.Put(context.Background(), domain.Lead{
		ID: id, Name: "Lead " + id, Status: domain.StatusNew, SyncStatus: status,
		CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}))
}

func TestSyncLeads_SuccessMarksSynced(t *testing.T) {
	remote := newFakeRemote("a", "b")
	e, store, _ := newTestEngine(t, remote, true)
	putLead(t, store, "a", domain.SyncPending)
	putLead(t, store, "b", domain.SyncError)
	putLead(t, store, "c", domain.SyncSynced)

	start := time.Now()
	res := e.SyncLeads(context.Background())

	assert.True(t, res.Success)
	assert.Equal(t, 2, res.Synced)
	assert.Equal(t, 0, res.Failed)
	assert.Empty(t, res.Errors)
	assert.ElementsMatch(t, []string{"a", "b"}, remote.updates)

	for _, id := range []string{"a", "b"} {
		got, err := store.Get(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, domain.SyncSynced, got.SyncStatus)
		require.NotNil(t, got.LastSyncedAt)
		assert.False(t, got.LastSyncedAt.Before(start))
		assert.Empty(t, got.SyncError)
	}
}

func TestSyncLeads_OfflineShortCircuit(t *testing.T) {
	remote := newFakeRemote("a")
	e, store, _ := newTestEngine(t, remote, false)
	putLead(t, store, "a", domain.SyncPending)

	res := e.SyncLeads(context.Background())

	assert.Equal(t, Result{Success: false, Synced: 0, Failed: 0, Errors: []LeadError{}}, res)
	assert.Empty(t, remote.updates)
	got, err := store.Get(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, domain.SyncPending, got.SyncStatus)
	assert.Nil(t, got.LastSyncedAt)
}

func TestSyncLeads_PartialFailureIsIsolated(t *testing.T) {
	remote := newFakeRemote("a", "b", "c", "d")
	remote.failFor["c"] = errors.New("remote rejected lead")
	e, store, _ := newTestEngine(t, remote, true)
	for _, id := range []string{"a", "b", "c", "d"} {
		putLead(t, store, id, domain.SyncPending)
	}

	res := e.SyncLeads(context.Background())

	assert.False(t, res.Success)
	assert.Equal(t, 3, res.Synced)
	assert.Equal(t, 1, res.Failed)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "c", res.Errors[0].LeadID)
	assert.Contains(t, res.Errors[0].Error, "remote rejected lead")

	for _, id := range []string{"a", "b", "d"} {
		got, err := store.Get(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, domain.SyncSynced, got.SyncStatus, id)
	}
	failed, err := store.Get(context.Background(), "c")
	require.NoError(t, err)
	assert.Equal(t, domain.SyncError, failed.SyncStatus)
	assert.Equal(t, "remote rejected lead", failed.SyncError)
}

func TestSyncLeads_NotFoundFallsBackToCreate(t *testing.T) {
	remote := newFakeRemote()
	e, store, _ := newTestEngine(t, remote, true)
	putLead(t, store, "local-1", domain.SyncPending)

	res := e.SyncLeads(context.Background())

	require.True(t, res.Success)
	assert.Equal(t, 1, res.Synced)
	assert.Equal(t, []string{"local-1"}, remote.creates)

	_, err := store.Get(context.Background(), "local-1")
	assert.True(t, errors.Is(err, offline.ErrNotFound))
	got, err := store.Get(context.Background(), "remote-1")
	require.NoError(t, err)
	assert.Equal(t, domain.SyncSynced, got.SyncStatus)
	assert.Equal(t, "Lead local-1", got.Name)
}

func editDuringPush(t *testing.T, store offline.Store) func(domain.Lead) {
	return func(l domain.Lead) {
		name := "Edited in the field"
		edited := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
		_, err := store.Update(context.Background(), l.ID, domain.LeadPatch{Name: &name, UpdatedAt: &edited})
		assert.NoError(t, err)
	}
}

func TestSyncLeads_EditDuringPushStaysPending(t *testing.T) {
	remote := newFakeRemote("a", "b")
	e, store, _ := newTestEngine(t, remote, true)
	putLead(t, store, "a", domain.SyncPending)
	putLead(t, store, "b", domain.SyncPending)
	edit := editDuringPush(t, store)
	remote.during = func(l domain.Lead) {
		if l.ID == "b" {
			edit(l)
		}
	}

	res := e.SyncLeads(context.Background())

	assert.True(t, res.Success)
	assert.Equal(t, 1, res.Synced)
	assert.Equal(t, 1, res.Deferred)
	assert.Equal(t, 0, res.Failed)

	got, err := store.Get(context.Background(), "b")
	require.NoError(t, err)
	assert.Equal(t, domain.SyncPending, got.SyncStatus)
	assert.Equal(t, "Edited in the field", got.Name)
	assert.Nil(t, got.LastSyncedAt)

	// the next pass carries the edit
	remote.during = nil
	res = e.SyncLeads(context.Background())
	assert.Equal(t, 1, res.Synced)
	assert.Equal(t, 0, res.Deferred)
	got, err = store.Get(context.Background(), "b")
	require.NoError(t, err)
	assert.Equal(t, domain.SyncSynced, got.SyncStatus)
}

func TestSyncLeads_EditDuringCreateKeepsRemoteID(t *testing.T) {
	remote := newFakeRemote()
	e, store, _ := newTestEngine(t, remote, true)
	remote.during = editDuringPush(t, store)
	putLead(t, store, "local-1", domain.SyncPending)

	res := e.SyncLeads(context.Background())

	assert.Equal(t, 0, res.Synced)
	assert.Equal(t, 1, res.Deferred)
	_, err := store.Get(context.Background(), "local-1")
	assert.True(t, errors.Is(err, offline.ErrNotFound))
	got, err := store.Get(context.Background(), "remote-1")
	require.NoError(t, err)
	assert.Equal(t, domain.SyncPending, got.SyncStatus)
	assert.Equal(t, "Edited in the field", got.Name)

	// remote-1 is now known, so the retry updates instead of creating again
	remote.during = nil
	res = e.SyncLeads(context.Background())
	assert.Equal(t, 1, res.Synced)
	assert.Equal(t, []string{"local-1"}, remote.creates)
}

func TestSyncLeads_OverlappingCallsShareOnePass(t *testing.T) {
	remote := newFakeRemote("a")
	remote.block = make(chan struct{})
	e, store, _ := newTestEngine(t, remote, true)
	putLead(t, store, "a", domain.SyncPending)

	results := make(chan Result, 2)
	go func() { results <- e.SyncLeads(context.Background()) }()
	require.Eventually(t, func() bool { return remote.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	go func() { results <- e.SyncLeads(context.Background()) }()

	// give the second caller time to join the in-flight pass
	time.Sleep(20 * time.Millisecond)
	close(remote.block)

	first, second := <-results, <-results
	assert.Equal(t, first, second)
	assert.Equal(t, 1, first.Synced)
	assert.Equal(t, int32(1), remote.calls.Load())
}

func TestPullLeads_OverwritesLocalPending(t *testing.T) {
	remote := newFakeRemote()
	remote.listed = []domain.Lead{
		{ID: "a", Name: "Remote A", Status: domain.StatusWon},
		{ID: "b", Name: "Remote B", Status: domain.StatusNew},
	}
	e, store, _ := newTestEngine(t, remote, true)
	require.NoError(t, store.Put(context.Background(), domain.Lead{
		ID: "a", Name: "Local unsent edit", SyncStatus: domain.SyncPending,
	}))

	n, err := e.PullLeads(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	for _, want := range remote.listed {
		got, err := store.Get(context.Background(), want.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.SyncSynced, got.SyncStatus)
		assert.Equal(t, want.Name, got.Name)
		assert.NotNil(t, got.LastSyncedAt)
	}
}

func TestPullLeads_Offline(t *testing.T) {
	remote := newFakeRemote()
	remote.listed = []domain.Lead{{ID: "a", Name: "Remote A"}}
	e, store, _ := newTestEngine(t, remote, false)

	n, err := e.PullLeads(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	all, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestEngineStatus(t *testing.T) {
	e, store, conn := newTestEngine(t, newFakeRemote("a"), true)
	putLead(t, store, "a", domain.SyncPending)

	assert.Nil(t, e.Status().LastResult)
	e.SyncLeads(context.Background())

	st := e.Status()
	assert.True(t, st.Online)
	require.NotNil(t, st.LastResult)
	assert.Equal(t, 1, st.LastResult.Synced)

	conn.SetOnline(false)
	assert.False(t, e.Status().Online)
}

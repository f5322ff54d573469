package syncer

import (
	"context"
	"errors"
	"fmt"

	"github.com/looplab/fsm"

	"spartan-crm/internal/domain"
)

// Sync lifecycle events
const (
	// EventEdit is a local write; the lead must be pushed again
	EventEdit = "edit"
	// EventPushOK is a successful remote write
	EventPushOK = "push_ok"
	// EventPushFail is a failed remote write
	EventPushFail = "push_fail"
	// EventPull is the remote copy overwriting the local one
	EventPull = "pull"
)

var (
	anyState   = []string{string(domain.SyncSynced), string(domain.SyncPending), string(domain.SyncError)}
	dirtyState = []string{string(domain.SyncPending), string(domain.SyncError)}
)

func newMachine(from domain.SyncStatus) *fsm.FSM {
	return fsm.NewFSM(
		string(from),
		fsm.Events{
			{Name: EventEdit, Src: anyState, Dst: string(domain.SyncPending)},
			{Name: EventPushOK, Src: dirtyState, Dst: string(domain.SyncSynced)},
			{Name: EventPushFail, Src: dirtyState, Dst: string(domain.SyncError)},
			{Name: EventPull, Src: anyState, Dst: string(domain.SyncSynced)},
		},
		fsm.Callbacks{},
	)
}

// Transition returns the sync status a lead in from moves to on event.
// Events that leave the state unchanged are not errors.
func Transition(ctx context.Context, from domain.SyncStatus, event string) (domain.SyncStatus, error) {
	if !from.Valid() {
		return from, fmt.Errorf("syncer: unknown sync status %q", from)
	}
	m := newMachine(from)
	if err := m.Event(ctx, event); err != nil {
		var same fsm.NoTransitionError
		if !errors.As(err, &same) {
			return from, fmt.Errorf("syncer: %s from %s: %w", event, from, err)
		}
	}
	return domain.SyncStatus(m.Current()), nil
}

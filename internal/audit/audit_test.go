package audit

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"credchain/pkg/testutil"
)

func TestAppend_StampsTimestamp(t *testing.T) {
	store := NewInMemoryStore()

	require.NoError(t, store.Append(context.Background(), Event{Action: ActionRequestSubmitted}))

	events, err := store.List(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.False(t, events[0].Timestamp.IsZero())
}

func TestList_PreservesAppendOrder(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	actions := []string{ActionRequestSubmitted, ActionTokenOrphaned, ActionOrphanRecovered, ActionRequestApproved}
	for _, action := range actions {
		require.NoError(t, store.Emit(ctx, Event{Action: action}))
	}

	events, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, events, len(actions))
	for i, action := range actions {
		assert.Equal(t, action, events[i].Action)
	}
}

func TestAppend_Concurrent(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	result := testutil.RunConcurrent(32, func(idx int) error {
		return store.Append(ctx, Event{Action: ActionRequestSubmitted, Subject: fmt.Sprintf("req-%d", idx)})
	})
	assert.Equal(t, int32(32), result.Successes)

	events, err := store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, events, 32)
}

func TestList_ReturnsCopy(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Append(ctx, Event{Action: ActionRequestRejected, Reason: "original"}))

	events, err := store.List(ctx)
	require.NoError(t, err)
	events[0].Reason = "mutated"

	again, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, "original", again[0].Reason)
}

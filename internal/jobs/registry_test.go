package jobs

import (
	"testing"
	"time"

	"github.com/artemis/ai-modernizer/internal/agents"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryPersistIsAtomicSnapshot(t *testing.T) {
	r := NewRegistry(nil)
	state := &agents.MigrationState{ID: "job-1", Status: "initializing", CreatedAt: time.Now()}
	r.Register(state)

	got, ok := r.Get("job-1")
	require.True(t, ok)
	assert.Equal(t, "initializing", got.Status)

	got.Status = "mutated-by-caller"

	fresh, ok := r.Get("job-1")
	require.True(t, ok)
	assert.Equal(t, "initializing", fresh.Status, "mutating a returned snapshot must not affect the registry's stored copy")

	state.Status = "plan_created"
	r.Persist(state)

	updated, ok := r.Get("job-1")
	require.True(t, ok)
	assert.Equal(t, "plan_created", updated.Status)
}

func TestRegistryListOrdersNewestFirst(t *testing.T) {
	r := NewRegistry(nil)
	now := time.Now()
	r.Register(&agents.MigrationState{ID: "old", CreatedAt: now.Add(-time.Hour)})
	r.Register(&agents.MigrationState{ID: "new", CreatedAt: now})

	list := r.List(0, 0)
	require.Len(t, list, 2)
	assert.Equal(t, "new", list[0].ID)
	assert.Equal(t, "old", list[1].ID)
}

func TestRegistryListRespectsLimitAndOffset(t *testing.T) {
	r := NewRegistry(nil)
	now := time.Now()
	for i := 0; i < 5; i++ {
		r.Register(&agents.MigrationState{ID: string(rune('a' + i)), CreatedAt: now.Add(time.Duration(i) * time.Minute)})
	}

	page := r.List(2, 1)
	assert.Len(t, page, 2)
}

func TestRegistryRemoveDeletesState(t *testing.T) {
	r := NewRegistry(nil)
	r.Register(&agents.MigrationState{ID: "job-1"})
	r.Remove("job-1")

	_, ok := r.Get("job-1")
	assert.False(t, ok)
}

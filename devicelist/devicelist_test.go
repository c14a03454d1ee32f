package devicelist

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMarkDirtyIsDirtyMarkClean(t *testing.T) {
	s := NewMemoryStore()
	userID := "@alice:example.org"

	assert.False(t, s.IsDirty(userID))

	s.MarkDirty(userID)
	assert.True(t, s.IsDirty(userID))
	assert.Contains(t, s.DirtyUsers(), userID)

	s.MarkClean(userID)
	assert.False(t, s.IsDirty(userID))
	assert.NotContains(t, s.DirtyUsers(), userID)
}

func TestMarkDirtyIsIdempotent(t *testing.T) {
	s := NewMemoryStore()
	userID := "@bob:example.org"
	s.MarkDirty(userID)
	s.MarkDirty(userID)
	assert.Len(t, s.DirtyUsers(), 1)
}

func TestMultipleUsersTrackedIndependently(t *testing.T) {
	s := NewMemoryStore()
	s.MarkDirty("@alice:example.org")
	assert.False(t, s.IsDirty("@bob:example.org"))
	assert.True(t, s.IsDirty("@alice:example.org"))
}

package history

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tempStore(t *testing.T, limit int) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "history.jsonl")
	s, err := Open(path, limit, nil)
	require.NoError(t, err)
	return s, path
}

func TestAppendAssignsMonotonicIDs(t *testing.T) {
	s, _ := tempStore(t, 10)

	a := s.Append(Entry{Type: TypeSystem, Message: "one"})
	b := s.Append(Entry{Type: TypeSystem, Message: "two"})

	assert.Equal(t, int64(1), a.ID)
	assert.Equal(t, int64(2), b.ID)
	assert.False(t, a.Timestamp.IsZero())
}

func TestCapEvictsOldest(t *testing.T) {
	s, _ := tempStore(t, 3)

	for i := 0; i < 5; i++ {
		s.Append(Entry{Type: TypeSystem, Message: "m"})
	}

	assert.Equal(t, 3, s.Len())
	_, ok := s.Get(1)
	assert.False(t, ok, "evicted id must leave the index")
	_, ok = s.Get(2)
	assert.False(t, ok)
	for id := int64(3); id <= 5; id++ {
		_, ok := s.Get(id)
		assert.True(t, ok, "id %d should survive", id)
	}
}

func TestReloadRestoresIDCounter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.jsonl")

	s, err := Open(path, 100, nil)
	require.NoError(t, err)
	for i := 0; i < 4; i++ {
		s.Append(Entry{Type: TypePrivate, Sender: "alice", Target: "bob", Message: "hi"})
	}

	reloaded, err := Open(path, 100, nil)
	require.NoError(t, err)
	assert.Equal(t, 4, reloaded.Len())

	next := reloaded.Append(Entry{Type: TypeSystem, Message: "after restart"})
	assert.Equal(t, int64(5), next.ID, "ids never reset below the persisted maximum")
}

func TestLoadSkipsMalformedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.jsonl")
	good, err := json.Marshal(Entry{ID: 7, Type: TypeSystem, Message: "ok"})
	require.NoError(t, err)
	content := "not json at all\n" + string(good) + "\n{\"id\":\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	s, err := Open(path, 100, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Len())
	e, ok := s.Get(7)
	require.True(t, ok)
	assert.Equal(t, "ok", e.Message)
	assert.Equal(t, int64(8), s.Append(Entry{Type: TypeSystem}).ID)
}

func TestLoadTruncatesToCap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.jsonl")
	s, err := Open(path, 100, nil)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		s.Append(Entry{Type: TypeSystem, Message: "m"})
	}

	small, err := Open(path, 4, nil)
	require.NoError(t, err)
	assert.Equal(t, 4, small.Len())
	_, ok := small.Get(6)
	assert.False(t, ok)
	_, ok = small.Get(7)
	assert.True(t, ok)
}

func TestMarkDeleted(t *testing.T) {
	s, path := tempStore(t, 10)
	e := s.Append(Entry{
		Type: TypePrivate, Sender: "alice", Target: "bob", Message: "secret",
		Media: &Media{Mime: "image/png", Name: "x.png", Data: "aGk=", Size: 2},
	})

	assert.True(t, s.MarkDeleted(e.ID))
	assert.False(t, s.MarkDeleted(e.ID), "second delete is a no-op")
	assert.False(t, s.MarkDeleted(999))

	got, ok := s.Get(e.ID)
	require.True(t, ok)
	assert.True(t, got.Deleted)
	assert.Nil(t, got.Media, "media cleared on delete")

	// The rewrite must be visible to a fresh load.
	reloaded, err := Open(path, 10, nil)
	require.NoError(t, err)
	got, ok = reloaded.Get(e.ID)
	require.True(t, ok)
	assert.True(t, got.Deleted)
	assert.Nil(t, got.Media)
}

func TestRecentOrderAndPredicate(t *testing.T) {
	s, _ := tempStore(t, 100)
	for i := 0; i < 6; i++ {
		typ := TypeSystem
		if i%2 == 1 {
			typ = TypePrivate
		}
		s.Append(Entry{Type: typ, Message: "m"})
	}

	all := s.Recent(4, nil)
	require.Len(t, all, 4)
	assert.Equal(t, int64(3), all[0].ID, "chronological order, most recent last")
	assert.Equal(t, int64(6), all[3].ID)

	private := s.Recent(10, func(e *Entry) bool { return e.Type == TypePrivate })
	require.Len(t, private, 3)
	assert.Equal(t, int64(2), private[0].ID)
	assert.Equal(t, int64(6), private[2].ID)
}

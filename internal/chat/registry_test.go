package chat

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPipeSession(t *testing.T) *Session {
	t.Helper()
	client, server := net.Pipe()
	s := NewSession(server)
	t.Cleanup(func() {
		s.Close()
		_ = client.Close()
	})
	return s
}

func TestRegisterEnforcesUniqueness(t *testing.T) {
	reg := NewRegistry()
	a := newPipeSession(t)
	b := newPipeSession(t)

	require.True(t, reg.Register("alice", a))
	assert.False(t, reg.Register("alice", b), "duplicate nickname while holder is connected")

	// The nickname frees up the instant the holder is unregistered.
	reg.Unregister("alice")
	assert.True(t, reg.Register("alice", b))
}

func TestLookupAndNicknames(t *testing.T) {
	reg := NewRegistry()
	reg.Register("carol", newPipeSession(t))
	reg.Register("alice", newPipeSession(t))
	reg.Register("bob", newPipeSession(t))

	_, ok := reg.Lookup("bob")
	assert.True(t, ok)
	_, ok = reg.Lookup("dave")
	assert.False(t, ok)
	assert.Equal(t, []string{"alice", "bob", "carol"}, reg.Nicknames())
}

func TestGroupExistsIffNonEmpty(t *testing.T) {
	reg := NewRegistry()

	require.True(t, reg.CreateGroup("lab", "alice"))
	assert.False(t, reg.CreateGroup("lab", "bob"), "create fails on an existing name")
	assert.True(t, reg.JoinGroup("lab", "bob"))
	assert.True(t, reg.JoinGroup("lab", "bob"), "join is idempotent for members")
	assert.False(t, reg.JoinGroup("ghost", "bob"), "join fails on an absent group")

	members, ok := reg.GroupMembers("lab")
	require.True(t, ok)
	assert.Equal(t, []string{"alice", "bob"}, members)

	require.True(t, reg.LeaveGroup("lab", "bob"))
	_, ok = reg.GroupMembers("lab")
	assert.True(t, ok, "group survives while non-empty")

	assert.False(t, reg.LeaveGroup("lab", "bob"), "leave fails for non-members")

	require.True(t, reg.LeaveGroup("lab", "alice"))
	_, ok = reg.GroupMembers("lab")
	assert.False(t, ok, "group entry deleted the instant it empties")
}

func TestUnregisterPrunesGroups(t *testing.T) {
	reg := NewRegistry()
	reg.Register("alice", newPipeSession(t))
	reg.Register("bob", newPipeSession(t))
	reg.CreateGroup("lab", "alice")
	reg.JoinGroup("lab", "bob")
	reg.CreateGroup("solo", "bob")

	reg.Unregister("bob")

	members, ok := reg.GroupMembers("lab")
	require.True(t, ok)
	assert.Equal(t, []string{"alice"}, members)
	_, ok = reg.GroupMembers("solo")
	assert.False(t, ok, "emptied group removed on disconnect")
}

package chat

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"labchat/internal/history"
)

func TestLineFormats(t *testing.T) {
	assert.Equal(t, "[System] alice joined the chat.",
		SystemEvent{Text: "alice joined the chat."}.Line())

	pm := PrivateEvent{ID: 7, Sender: "alice", Target: "bob", Text: "hi"}
	assert.Equal(t, "[PM#7] alice: hi", pm.IncomingLine())
	assert.Equal(t, "[PM -> bob #7] hi", pm.EchoLine())

	gm := GroupEvent{ID: 9, Group: "lab", Sender: "alice", Text: "hello"}
	assert.Equal(t, "[Group:lab #9] alice: hello", gm.IncomingLine())
	assert.Equal(t, "[Group:lab #9] (you): hello", gm.EchoLine())
}

func TestPhotoEventFromEntry(t *testing.T) {
	ts := time.Unix(1700000000, 0)
	entry := history.Entry{
		ID:        3,
		Type:      history.TypePrivate,
		Timestamp: ts,
		Message:   "the lab bench",
		Sender:    "alice",
		Target:    "bob",
		Media:     &history.Media{Mime: "image/png", Name: "bench.png", Data: "aGVsbG8=", Size: 5},
	}

	line := photoEventFromEntry(&entry).Line()
	require.True(t, strings.HasPrefix(line, "PHOTO "))

	var got PhotoEvent
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "PHOTO ")), &got))
	assert.Equal(t, "photo", got.Kind)
	assert.Equal(t, "alice", got.Sender)
	assert.Equal(t, "bob", got.Target)
	assert.Equal(t, "image/png", got.Mime)
	assert.Equal(t, "bench.png", got.Name)
	assert.Equal(t, "aGVsbG8=", got.Data)
	assert.Equal(t, "the lab bench", got.Caption)
	assert.Equal(t, 5, got.Size)
	assert.Equal(t, ts.Unix(), got.Timestamp)
	assert.Equal(t, int64(3), got.ID)
	assert.False(t, got.Deleted)
}

func TestDeleteEventLine(t *testing.T) {
	line := DeleteEvent{ID: 4, Type: "group", Sender: "alice", Group: "lab", By: "alice"}.Line()
	require.True(t, strings.HasPrefix(line, "DELETE "))

	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "DELETE ")), &got))
	assert.Equal(t, float64(4), got["id"])
	assert.Equal(t, "group", got["type"])
	assert.Equal(t, "alice", got["by"])
	_, hasTarget := got["target"]
	assert.False(t, hasTarget, "empty optional fields stay off the wire")
}

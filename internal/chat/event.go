package chat

import (
	"encoding/json"
	"fmt"

	"labchat/internal/history"
)

// The server pushes two shapes of events: human-readable lines for text
// messages, and structured JSON payloads (prefixed with PHOTO / DELETE) for
// things a client renders rather than prints.

// SystemEvent is a broadcast notice such as joins and leaves.
type SystemEvent struct {
	Text string
}

func (e SystemEvent) Line() string {
	return "[System] " + e.Text
}

// PrivateEvent is a direct message between two nicknames.
type PrivateEvent struct {
	ID     int64
	Sender string
	Target string
	Text   string
}

// IncomingLine is what the target sees.
func (e PrivateEvent) IncomingLine() string {
	return fmt.Sprintf("[PM#%d] %s: %s", e.ID, e.Sender, e.Text)
}

// EchoLine is the sender's own confirmation.
func (e PrivateEvent) EchoLine() string {
	return fmt.Sprintf("[PM -> %s #%d] %s", e.Target, e.ID, e.Text)
}

// GroupEvent is a message to every member of a group.
type GroupEvent struct {
	ID     int64
	Group  string
	Sender string
	Text   string
}

func (e GroupEvent) IncomingLine() string {
	return fmt.Sprintf("[Group:%s #%d] %s: %s", e.Group, e.ID, e.Sender, e.Text)
}

func (e GroupEvent) EchoLine() string {
	return fmt.Sprintf("[Group:%s #%d] (you): %s", e.Group, e.ID, e.Text)
}

// PhotoEvent describes an image attachment. It is pushed as one line in the
// form "PHOTO <json>" so clients can render an inline image instead of
// parsing prose.
type PhotoEvent struct {
	Kind      string `json:"kind"`
	Sender    string `json:"sender"`
	Target    string `json:"target,omitempty"`
	Group     string `json:"group,omitempty"`
	Mime      string `json:"mime"`
	Name      string `json:"name"`
	Data      string `json:"data"`
	Caption   string `json:"caption,omitempty"`
	Size      int    `json:"size"`
	Timestamp int64  `json:"timestamp"`
	ID        int64  `json:"id"`
	Deleted   bool   `json:"deleted,omitempty"`
}

// photoEventFromEntry rebuilds the wire event from a stored entry carrying
// live media, as used both at send time and on history replay.
func photoEventFromEntry(e *history.Entry) PhotoEvent {
	ev := PhotoEvent{
		Kind:      "photo",
		Sender:    e.Sender,
		Target:    e.Target,
		Group:     e.Group,
		Caption:   e.Message,
		Timestamp: e.Timestamp.Unix(),
		ID:        e.ID,
		Deleted:   e.Deleted,
	}
	if e.Media != nil {
		ev.Mime = e.Media.Mime
		ev.Name = e.Media.Name
		ev.Data = e.Media.Data
		ev.Size = e.Media.Size
	}
	return ev
}

func (e PhotoEvent) Line() string {
	data, err := json.Marshal(e)
	if err != nil {
		return ""
	}
	return "PHOTO " + string(data)
}

// DeleteEvent tells clients a history entry was soft-deleted, pushed as
// "DELETE <json>".
type DeleteEvent struct {
	ID     int64  `json:"id"`
	Type   string `json:"type"`
	Sender string `json:"sender"`
	Target string `json:"target,omitempty"`
	Group  string `json:"group,omitempty"`
	By     string `json:"by"`
}

func (e DeleteEvent) Line() string {
	data, err := json.Marshal(e)
	if err != nil {
		return ""
	}
	return "DELETE " + string(data)
}

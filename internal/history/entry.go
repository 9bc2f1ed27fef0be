package history

import "time"

// EntryType classifies a history record.
type EntryType string

const (
	TypeSystem  EntryType = "system"
	TypePrivate EntryType = "private"
	TypeGroup   EntryType = "group"
)

// DeletedMarker replaces the message text of soft-deleted entries when they
// are rendered; the stored record keeps its text and only flips the flag.
const DeletedMarker = "[deleted]"

// Media carries an inline photo attachment. Data is the base64 payload as it
// arrived on the wire; Size is the decoded byte count.
type Media struct {
	Mime string `json:"mime"`
	Name string `json:"name"`
	Data string `json:"data"`
	Size int    `json:"size"`
}

// Entry is one persisted chat record. Entries are immutable after Append
// except for the Deleted flag (and the media clear that comes with it).
//
// Audience is the set of nicknames entitled to see the entry, snapshotted at
// send time. Records written before audience tracking existed have a nil
// Audience; visibility for those falls back to sender/target/membership.
type Entry struct {
	ID        int64     `json:"id"`
	Type      EntryType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
	Sender    string    `json:"sender,omitempty"`
	Target    string    `json:"target,omitempty"`
	Group     string    `json:"group,omitempty"`
	Audience  []string  `json:"audience,omitempty"`
	Deleted   bool      `json:"deleted,omitempty"`
	Media     *Media    `json:"media,omitempty"`
}

// InAudience reports whether nick is in the stored audience snapshot.
func (e *Entry) InAudience(nick string) bool {
	for _, n := range e.Audience {
		if n == nick {
			return true
		}
	}
	return false
}

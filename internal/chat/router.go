package chat

import (
	"encoding/base64"
	"errors"
	"log/slog"
	"regexp"
	"strings"

	"labchat/internal/history"
)

// MaxPhotoBytes caps the decoded payload of a photo attachment.
const MaxPhotoBytes = 3 << 20

const (
	// HistoryDefaultLimit applies when /history is issued without a count.
	HistoryDefaultLimit = 20
	// HistoryMaxLimit is the hard ceiling for one replay request.
	HistoryMaxLimit = 100
)

// Precondition failures reported to the requester only. The handler maps
// each to its reply string.
var (
	ErrTargetOffline  = errors.New("target is not online")
	ErrNotMember      = errors.New("not a group member")
	ErrEntryNotFound  = errors.New("no such message")
	ErrNotOwner       = errors.New("not the message owner")
	ErrAlreadyDeleted = errors.New("message already deleted")
	ErrSystemEntry    = errors.New("system messages cannot be deleted")

	ErrBadMime       = errors.New("mime type must start with image/")
	ErrBadFilename   = errors.New("invalid photo file name")
	ErrBadPayload    = errors.New("payload is not valid base64")
	ErrEmptyPayload  = errors.New("payload is empty")
	ErrPhotoTooLarge = errors.New("payload exceeds the size limit")
)

var filenameRe = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// Photo is a validated-on-entry attachment request.
type Photo struct {
	Mime    string
	Name    string
	Data    string // base64 as received
	Caption string
}

// Router computes the audience for each message, persists the record and
// pushes formatted lines to every audience member with a live socket.
type Router struct {
	reg   *Registry
	store *history.Store
	log   *slog.Logger
}

func NewRouter(reg *Registry, store *history.Store, log *slog.Logger) *Router {
	if log == nil {
		log = slog.Default()
	}
	return &Router{reg: reg, store: store, log: log}
}

// BroadcastSystem persists a system notice and pushes it to every active
// session.
func (rt *Router) BroadcastSystem(text string) {
	entry := rt.store.Append(history.Entry{Type: history.TypeSystem, Message: text})
	line := SystemEvent{Text: text}.Line()
	for _, s := range rt.reg.Sessions() {
		s.SendLine(line)
	}
	rt.log.Debug("system broadcast", "id", entry.ID, "text", text)
}

// SendPrivate routes a direct message. A message to an unregistered target
// creates no history entry; the caller reports the offline notice.
func (rt *Router) SendPrivate(sender, target, text string) error {
	targetSess, ok := rt.reg.Lookup(target)
	if !ok {
		return ErrTargetOffline
	}
	entry := rt.store.Append(history.Entry{
		Type:     history.TypePrivate,
		Sender:   sender,
		Target:   target,
		Message:  text,
		Audience: []string{sender, target},
	})
	ev := PrivateEvent{ID: entry.ID, Sender: sender, Target: target, Text: text}
	targetSess.SendLine(ev.IncomingLine())
	if senderSess, ok := rt.reg.Lookup(sender); ok {
		senderSess.SendLine(ev.EchoLine())
	}
	return nil
}

// SendGroup routes a message to every current member of the group. The
// audience is snapshotted at send time; later membership changes do not
// alter who could see this message.
func (rt *Router) SendGroup(sender, group, text string) error {
	if !rt.reg.IsMember(group, sender) {
		return ErrNotMember
	}
	members, _ := rt.reg.GroupMembers(group)
	entry := rt.store.Append(history.Entry{
		Type:     history.TypeGroup,
		Sender:   sender,
		Group:    group,
		Message:  text,
		Audience: members,
	})
	ev := GroupEvent{ID: entry.ID, Group: group, Sender: sender, Text: text}
	for _, nick := range members {
		sess, ok := rt.reg.Lookup(nick)
		if !ok {
			continue
		}
		if nick == sender {
			sess.SendLine(ev.EchoLine())
		} else {
			sess.SendLine(ev.IncomingLine())
		}
	}
	return nil
}

// SendPhotoPrivate validates and routes a photo to a single nickname. The
// structured event goes to the target and back to the sender.
func (rt *Router) SendPhotoPrivate(sender, target string, p Photo) error {
	size, err := validatePhoto(p)
	if err != nil {
		return err
	}
	targetSess, ok := rt.reg.Lookup(target)
	if !ok {
		return ErrTargetOffline
	}
	entry := rt.store.Append(history.Entry{
		Type:     history.TypePrivate,
		Sender:   sender,
		Target:   target,
		Message:  p.Caption,
		Audience: []string{sender, target},
		Media:    &history.Media{Mime: p.Mime, Name: p.Name, Data: p.Data, Size: size},
	})
	line := photoEventFromEntry(&entry).Line()
	targetSess.SendLine(line)
	if senderSess, ok := rt.reg.Lookup(sender); ok {
		senderSess.SendLine(line)
	}
	return nil
}

// SendPhotoGroup validates and routes a photo to every current member of the
// group, sender included.
func (rt *Router) SendPhotoGroup(sender, group string, p Photo) error {
	size, err := validatePhoto(p)
	if err != nil {
		return err
	}
	if !rt.reg.IsMember(group, sender) {
		return ErrNotMember
	}
	members, _ := rt.reg.GroupMembers(group)
	entry := rt.store.Append(history.Entry{
		Type:     history.TypeGroup,
		Sender:   sender,
		Group:    group,
		Message:  p.Caption,
		Audience: members,
		Media:    &history.Media{Mime: p.Mime, Name: p.Name, Data: p.Data, Size: size},
	})
	line := photoEventFromEntry(&entry).Line()
	for _, nick := range members {
		if sess, ok := rt.reg.Lookup(nick); ok {
			sess.SendLine(line)
		}
	}
	return nil
}

func validatePhoto(p Photo) (int, error) {
	if !strings.HasPrefix(p.Mime, "image/") {
		return 0, ErrBadMime
	}
	if !filenameRe.MatchString(p.Name) {
		return 0, ErrBadFilename
	}
	decoded, err := base64.StdEncoding.DecodeString(p.Data)
	if err != nil {
		return 0, ErrBadPayload
	}
	if len(decoded) == 0 {
		return 0, ErrEmptyPayload
	}
	if len(decoded) > MaxPhotoBytes {
		return 0, ErrPhotoTooLarge
	}
	return len(decoded), nil
}

// Delete soft-deletes one of the requester's own entries and broadcasts a
// DELETE event to the entry's audience. For group entries the audience is
// the stored snapshot union'd with current membership, so members who joined
// after the message was sent still see it removed.
func (rt *Router) Delete(requester string, id int64) error {
	entry, ok := rt.store.Get(id)
	if !ok {
		return ErrEntryNotFound
	}
	if entry.Type == history.TypeSystem {
		return ErrSystemEntry
	}
	if entry.Sender != requester {
		return ErrNotOwner
	}
	if entry.Deleted {
		return ErrAlreadyDeleted
	}
	if !rt.store.MarkDeleted(id) {
		return ErrAlreadyDeleted
	}

	audience := map[string]bool{}
	for _, nick := range entry.Audience {
		audience[nick] = true
	}
	if entry.Type == history.TypeGroup {
		if current, ok := rt.reg.GroupMembers(entry.Group); ok {
			for _, nick := range current {
				audience[nick] = true
			}
		}
	}
	line := DeleteEvent{
		ID:     entry.ID,
		Type:   string(entry.Type),
		Sender: entry.Sender,
		Target: entry.Target,
		Group:  entry.Group,
		By:     requester,
	}.Line()
	for nick := range audience {
		if sess, ok := rt.reg.Lookup(nick); ok {
			sess.SendLine(line)
		}
	}
	rt.log.Debug("entry deleted", "id", id, "by", requester)
	return nil
}

// History renders the most recent entries visible to the requester, most
// recent last. Entries with live media come back as photo events; deleted
// entries render with the deleted marker and no media.
func (rt *Router) History(requester string, limit int) []string {
	if limit <= 0 {
		limit = HistoryDefaultLimit
	}
	if limit > HistoryMaxLimit {
		limit = HistoryMaxLimit
	}
	entries := rt.store.Recent(limit, func(e *history.Entry) bool {
		return rt.visibleTo(e, requester)
	})
	lines := make([]string, 0, len(entries))
	for i := range entries {
		lines = append(lines, rt.renderEntry(&entries[i], requester))
	}
	return lines
}

// visibleTo applies the stored-audience policy; records persisted before
// audience tracking existed fall back to sender/target/current membership.
func (rt *Router) visibleTo(e *history.Entry, nick string) bool {
	if e.Type == history.TypeSystem {
		return true
	}
	if e.Audience != nil {
		return e.InAudience(nick)
	}
	if e.Sender == nick || e.Target == nick {
		return true
	}
	return e.Group != "" && rt.reg.IsMember(e.Group, nick)
}

func (rt *Router) renderEntry(e *history.Entry, requester string) string {
	if !e.Deleted && e.Media != nil {
		return photoEventFromEntry(e).Line()
	}
	text := e.Message
	if e.Deleted {
		text = history.DeletedMarker
	}
	switch e.Type {
	case history.TypePrivate:
		ev := PrivateEvent{ID: e.ID, Sender: e.Sender, Target: e.Target, Text: text}
		if e.Sender == requester {
			return ev.EchoLine()
		}
		return ev.IncomingLine()
	case history.TypeGroup:
		ev := GroupEvent{ID: e.ID, Group: e.Group, Sender: e.Sender, Text: text}
		if e.Sender == requester {
			return ev.EchoLine()
		}
		return ev.IncomingLine()
	default:
		return SystemEvent{Text: text}.Line()
	}
}

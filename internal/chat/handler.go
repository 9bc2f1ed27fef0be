package chat

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var nicknameRe = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

const helpText = `Commands:
  /help                             Show this help message
  /list users                       Show all connected clients
  /list groups                      Show all groups with members
  /msg <user> <message>             Send a private message
  /group create <name>              Create a new group (you join automatically)
  /group join <name>                Join an existing group
  /group leave <name>               Leave a group you're part of
  /group send <name> <message>      Send a message to a group you're in
  /photo <@user|#group> <mime> <name> <base64> [caption]
                                    Send a photo attachment
  /delete <id>                      Delete one of your own messages
  /history [count]                  Replay recent messages (default 20, max 100)
  /quit                             Disconnect from the server`

// Handler runs the per-connection protocol state machine:
// AwaitingNickname -> Active -> Closed. One Handler is shared by all
// connections; per-connection state lives on the stack of Handle.
type Handler struct {
	reg    *Registry
	router *Router
	log    *slog.Logger
}

func NewHandler(reg *Registry, router *Router, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{reg: reg, router: router, log: log}
}

// Handle owns conn for its whole lifetime and returns when the connection is
// closed, either by /quit or by a socket error.
func (h *Handler) Handle(conn net.Conn) {
	sess := NewSession(conn)
	defer sess.Close()

	h.log.Debug("connection opened", "conn", sess.ID, "remote", conn.RemoteAddr())

	reader := bufio.NewReader(conn)
	sess.SendLine("Welcome to the network lab chat server!")

	nick, ok := h.negotiate(sess, reader)
	if !ok {
		h.log.Debug("connection closed before negotiation", "conn", sess.ID)
		return
	}

	// Cleanup must run exactly once whether the client quits or the socket
	// dies mid-command; the session close above is idempotent as well.
	defer func() {
		h.reg.Unregister(nick)
		h.router.BroadcastSystem(fmt.Sprintf("%s left the chat.", nick))
		h.log.Debug("connection closed", "conn", sess.ID, "nick", nick)
	}()

	sess.SendLine(helpText)
	h.router.BroadcastSystem(fmt.Sprintf("%s joined the chat.", nick))

	for {
		line, err := readLine(reader)
		if err != nil {
			return
		}
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "/") {
			sess.SendLine("Unknown input. Use /help to see the list of supported commands.")
			continue
		}
		if h.command(sess, nick, line) {
			return
		}
	}
}

// negotiate runs the AwaitingNickname state. It returns ok=false when the
// client aborted or the socket died before a nickname was accepted.
func (h *Handler) negotiate(sess *Session, reader *bufio.Reader) (string, bool) {
	sess.SendLine("Enter a nickname (letters, numbers, underscores). Use /quit to abort.")
	for {
		candidate, err := readLine(reader)
		if err != nil {
			return "", false
		}
		if candidate == "" {
			continue
		}
		if strings.EqualFold(candidate, "/quit") {
			sess.SendLine("Goodbye!")
			return "", false
		}
		if !nicknameRe.MatchString(candidate) {
			sess.SendLine("Nickname must be alphanumeric (underscores allowed). Try again:")
			continue
		}
		sess.Nick = candidate
		if !h.reg.Register(candidate, sess) {
			sess.SendLine("Name already in use. Try another:")
			continue
		}
		sess.SendLine(fmt.Sprintf("Hello %s! Type /help to see commands.", candidate))
		return candidate, true
	}
}

// command dispatches one slash command and reports whether the connection
// should close.
func (h *Handler) command(sess *Session, nick, raw string) bool {
	tokens := strings.Fields(raw)
	cmd := strings.ToLower(tokens[0])
	switch cmd {
	case "/help":
		sess.SendLine(helpText)
	case "/list":
		h.list(sess, tokens)
	case "/msg":
		h.msg(sess, nick, tokens)
	case "/group":
		h.group(sess, nick, tokens)
	case "/photo":
		h.photo(sess, nick, tokens)
	case "/delete":
		h.delete(sess, nick, tokens)
	case "/history":
		h.history(sess, nick, tokens)
	case "/quit":
		sess.SendLine("Disconnecting. Bye!")
		return true
	default:
		sess.SendLine("Unknown command. Use /help to see all options.")
	}
	return false
}

func (h *Handler) list(sess *Session, tokens []string) {
	if len(tokens) < 2 {
		sess.SendLine("Usage: /list users|groups")
		return
	}
	switch strings.ToLower(tokens[1]) {
	case "users":
		names := h.reg.Nicknames()
		if len(names) == 0 {
			sess.SendLine("No connected users.")
			return
		}
		sess.SendLine(fmt.Sprintf("Online users (%d): %s", len(names), strings.Join(names, ", ")))
	case "groups":
		groups := h.reg.Groups()
		if len(groups) == 0 {
			sess.SendLine("No groups have been created.")
			return
		}
		names := make([]string, 0, len(groups))
		for name := range groups {
			names = append(names, name)
		}
		sort.Strings(names)
		lines := make([]string, 0, len(names))
		for _, name := range names {
			lines = append(lines, fmt.Sprintf("%s: %s", name, strings.Join(groups[name], ", ")))
		}
		sess.SendLine(strings.Join(lines, "\n"))
	default:
		sess.SendLine("Unknown list target. Use users or groups.")
	}
}

func (h *Handler) msg(sess *Session, nick string, tokens []string) {
	if len(tokens) < 3 {
		sess.SendLine("Usage: /msg <nickname> <message>")
		return
	}
	target := tokens[1]
	text := strings.Join(tokens[2:], " ")
	if err := h.router.SendPrivate(nick, target, text); err != nil {
		sess.SendLine(fmt.Sprintf("%s is not online.", target))
	}
}

func (h *Handler) group(sess *Session, nick string, tokens []string) {
	if len(tokens) < 3 {
		sess.SendLine("Usage: /group create|join|leave|send <group_name> [message]")
		return
	}
	action := strings.ToLower(tokens[1])
	name := tokens[2]
	switch action {
	case "create":
		if !h.reg.CreateGroup(name, nick) {
			sess.SendLine("Group already exists.")
			return
		}
		sess.SendLine(fmt.Sprintf("Created group %s and joined it.", name))
	case "join":
		if !h.reg.JoinGroup(name, nick) {
			sess.SendLine("Group does not exist.")
			return
		}
		sess.SendLine(fmt.Sprintf("Joined group %s.", name))
	case "leave":
		if !h.reg.LeaveGroup(name, nick) {
			sess.SendLine("You are not a member of that group.")
			return
		}
		sess.SendLine(fmt.Sprintf("Left group %s.", name))
	case "send":
		if len(tokens) < 4 {
			sess.SendLine("Usage: /group send <group_name> <message>")
			return
		}
		text := strings.Join(tokens[3:], " ")
		if err := h.router.SendGroup(nick, name, text); err != nil {
			sess.SendLine("You must join the group before sending messages.")
		}
	default:
		sess.SendLine("Unknown group action (create|join|leave|send).")
	}
}

func (h *Handler) photo(sess *Session, nick string, tokens []string) {
	if len(tokens) < 5 {
		sess.SendLine("Usage: /photo <@user|#group> <mime> <name> <base64> [caption]")
		return
	}
	dest := tokens[1]
	p := Photo{Mime: tokens[2], Name: tokens[3], Data: tokens[4]}
	if len(tokens) > 5 {
		p.Caption = strings.Join(tokens[5:], " ")
	}

	var err error
	switch {
	case strings.HasPrefix(dest, "@") && len(dest) > 1:
		err = h.router.SendPhotoPrivate(nick, dest[1:], p)
	case strings.HasPrefix(dest, "#") && len(dest) > 1:
		err = h.router.SendPhotoGroup(nick, dest[1:], p)
	default:
		sess.SendLine("Photo target must be @nickname or #group.")
		return
	}

	switch {
	case err == nil:
	case errors.Is(err, ErrBadMime):
		sess.SendLine("Unsupported photo mime type (must start with image/).")
	case errors.Is(err, ErrBadFilename):
		sess.SendLine("Invalid photo file name.")
	case errors.Is(err, ErrBadPayload):
		sess.SendLine("Photo payload is not valid base64.")
	case errors.Is(err, ErrEmptyPayload):
		sess.SendLine("Photo payload is empty.")
	case errors.Is(err, ErrPhotoTooLarge):
		sess.SendLine("Photo exceeds the 3 MiB limit.")
	case errors.Is(err, ErrTargetOffline):
		sess.SendLine(fmt.Sprintf("%s is not online.", dest[1:]))
	case errors.Is(err, ErrNotMember):
		sess.SendLine("You must join the group before sending photos.")
	default:
		sess.SendLine("Could not send photo.")
	}
}

func (h *Handler) delete(sess *Session, nick string, tokens []string) {
	if len(tokens) != 2 {
		sess.SendLine("Usage: /delete <message_id>")
		return
	}
	id, err := strconv.ParseInt(tokens[1], 10, 64)
	if err != nil {
		sess.SendLine("Message id must be a number.")
		return
	}
	switch err := h.router.Delete(nick, id); {
	case err == nil:
	case errors.Is(err, ErrEntryNotFound):
		sess.SendLine("No message with that id.")
	case errors.Is(err, ErrSystemEntry):
		sess.SendLine("System messages cannot be deleted.")
	case errors.Is(err, ErrNotOwner):
		sess.SendLine("You can only delete your own messages.")
	case errors.Is(err, ErrAlreadyDeleted):
		sess.SendLine("That message is already deleted.")
	}
}

func (h *Handler) history(sess *Session, nick string, tokens []string) {
	limit := HistoryDefaultLimit
	if len(tokens) > 2 {
		sess.SendLine("Usage: /history [count]")
		return
	}
	if len(tokens) == 2 {
		n, err := strconv.Atoi(tokens[1])
		if err != nil || n <= 0 {
			sess.SendLine("Usage: /history [count]")
			return
		}
		limit = n
	}
	lines := h.router.History(nick, limit)
	if len(lines) == 0 {
		sess.SendLine("No visible history.")
		return
	}
	for _, line := range lines {
		sess.SendLine(line)
	}
}

// readLine extracts one complete line: everything up to the newline with a
// trailing carriage return stripped, surrounding whitespace trimmed. Partial
// data at EOF is discarded.
func readLine(reader *bufio.Reader) (string, error) {
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// Package bridge exposes the TCP chat protocol to browsers: a websocket
// endpoint that relays frames and protocol lines unmodified in both
// directions, plus a minimal page to talk to it. The bridge never inspects
// the protocol beyond line framing.
package bridge

import (
	"bufio"
	"log/slog"
	"net"
	"strings"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type Bridge struct {
	app    *fiber.App
	target string
	log    *slog.Logger
}

// New builds the bridge app relaying to the chat server at target.
func New(target string, log *slog.Logger) *Bridge {
	if log == nil {
		log = slog.Default()
	}
	b := &Bridge{target: target, log: log}
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Get("/", func(c *fiber.Ctx) error {
		c.Type("html")
		return c.SendString(indexPage)
	})
	app.Get("/ws", websocket.New(b.relay))
	b.app = app
	return b
}

// Listen serves the bridge until the app is shut down.
func (b *Bridge) Listen(addr string) error {
	b.log.Info("bridge listening", "addr", addr, "target", b.target)
	return b.app.Listen(addr)
}

// Shutdown stops the fiber app gracefully.
func (b *Bridge) Shutdown() error {
	return b.app.Shutdown()
}

// relay pipes one websocket client to one TCP connection. Text frames become
// newline-terminated lines; protocol lines come back as text frames.
func (b *Bridge) relay(ws *websocket.Conn) {
	id := uuid.NewString()
	tcp, err := net.Dial("tcp", b.target)
	if err != nil {
		b.log.Warn("bridge dial failed", "conn", id, "err", err)
		_ = ws.Close()
		return
	}
	b.log.Debug("bridge client connected", "conn", id)

	done := make(chan struct{})
	go func() {
		defer close(done)
		scanner := bufio.NewScanner(tcp)
		scanner.Buffer(make([]byte, 64*1024), 16<<20)
		for scanner.Scan() {
			if err := ws.WriteMessage(websocket.TextMessage, scanner.Bytes()); err != nil {
				return
			}
		}
	}()

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			break
		}
		line := string(data)
		if !strings.HasSuffix(line, "\n") {
			line += "\n"
		}
		if _, err := tcp.Write([]byte(line)); err != nil {
			break
		}
	}

	_ = tcp.Close()
	<-done
	_ = ws.Close()
	b.log.Debug("bridge client disconnected", "conn", id)
}

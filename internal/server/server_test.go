package server

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"labchat/internal/chat"
	"labchat/internal/history"
)

func TestServeAcceptsAndShutsDown(t *testing.T) {
	store, err := history.Open("", 100, nil)
	require.NoError(t, err)
	reg := chat.NewRegistry()
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := chat.NewHandler(reg, chat.NewRouter(reg, store, quiet), quiet)

	srv := New("127.0.0.1:0", handler, quiet)
	require.NoError(t, srv.Listen())

	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() { served <- srv.Serve(ctx) }()

	conn, err := net.Dial("tcp", srv.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	line, err := bufio.NewReader(conn).ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "Welcome to the network lab chat server!", strings.TrimSuffix(line, "\n"))

	cancel()
	select {
	case err := <-served:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestListenFailureIsFatal(t *testing.T) {
	srv := New("127.0.0.1:0", nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, srv.Listen())
	t.Cleanup(func() { _ = srv.ln.Close() })

	clash := New(srv.Addr().String(), nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Error(t, clash.Listen())
}

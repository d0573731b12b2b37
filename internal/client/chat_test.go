package client

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/roomchat/internal/config"
	"github.com/vovakirdan/roomchat/internal/core"
	"github.com/vovakirdan/roomchat/internal/proto"
	"github.com/vovakirdan/roomchat/internal/store/memory"
	transporthttp "github.com/vovakirdan/roomchat/internal/transport/http"
)

func startChatServer(t *testing.T) (*httptest.Server, *core.Registry) {
	t.Helper()

	logger := zerolog.Nop()
	cfg := config.Default()
	registry := core.NewRegistry()
	clients := core.NewClients()
	gateway := core.NewGateway(registry, memory.New(), clients, core.DefaultGatewayOptions(), &logger)
	server := transporthttp.NewServer(gateway, clients, &cfg, &logger)

	ts := httptest.NewServer(server.Handler)
	t.Cleanup(func() {
		ts.Close()
		gateway.Close()
	})
	return ts, registry
}

func newTestClient(t *testing.T, serverURL, author string) *Client {
	t.Helper()

	c, err := New(Options{
		ServerURL: serverURL,
		Author:    author,
		Policy:    Policy{MaxAttempts: 3, Delay: 10 * time.Millisecond},
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, 10*time.Millisecond)
}

func TestNewValidatesOptions(t *testing.T) {
	_, err := New(Options{ServerURL: "ftp://host", Author: "ann"}, nil)
	assert.Error(t, err)

	_, err = New(Options{ServerURL: "http://host", Author: "  "}, nil)
	assert.Error(t, err)

	c, err := New(Options{ServerURL: "https://host:9000/base", Author: "ann"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "wss://host:9000/base/ws", c.wsURL())
	assert.Equal(t, DefaultPolicy(), c.opts.Policy)
}

func TestSendBeforeConnect(t *testing.T) {
	c, err := New(Options{ServerURL: "http://localhost:1", Author: "ann"}, nil)
	require.NoError(t, err)
	assert.ErrorIs(t, c.Send(context.Background(), "hi"), ErrNotConnected)
}

func TestClientRoundTrip(t *testing.T) {
	ts, registry := startChatServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ann := newTestClient(t, ts.URL, "ann")
	bob := newTestClient(t, ts.URL, "bob")
	for _, c := range []*Client{ann, bob} {
		require.NoError(t, c.Connect(ctx))
		require.NoError(t, c.Join(ctx, "general"))
		go func(c *Client) { _ = c.Run(ctx) }(c)
	}
	waitFor(t, func() bool { return len(registry.MembersOf("general")) == 2 })

	require.NoError(t, ann.Send(ctx, "hello"))

	for _, c := range []*Client{ann, bob} {
		select {
		case msg := <-c.Messages():
			assert.Equal(t, "ann", msg.Author)
			assert.Equal(t, "hello", msg.Content)
			assert.Equal(t, "general", msg.Room)
		case <-ctx.Done():
			t.Fatal("message not delivered")
		}
	}

	require.NoError(t, bob.Send(ctx, "  "))
	select {
	case e := <-bob.Errors():
		assert.Equal(t, core.ErrCodeInvalidArgument, e.Code)
	case <-ctx.Done():
		t.Fatal("error not delivered")
	}
}

func TestClientFetchHistoryChronological(t *testing.T) {
	ts, registry := startChatServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c := newTestClient(t, ts.URL, "ann")
	require.NoError(t, c.Connect(ctx))
	require.NoError(t, c.Join(ctx, "log"))
	go func() { _ = c.Run(ctx) }()
	waitFor(t, func() bool { return len(registry.MembersOf("log")) == 1 })

	for _, text := range []string{"one", "two", "three"} {
		require.NoError(t, c.Send(ctx, text))
		<-c.Messages()
	}

	history, err := c.FetchHistory(ctx, "log", 2)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "two", history[0].Content)
	assert.Equal(t, "three", history[1].Content)

	empty, err := c.FetchHistory(ctx, "nobody-here", 0)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestClientRejoinsAfterReconnect(t *testing.T) {
	var dials atomic.Int32
	rejoined := make(chan string, 1)

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		n := dials.Add(1)

		var in proto.Inbound
		if err := wsjson.Read(r.Context(), conn, &in); err != nil {
			return
		}
		if n == 1 {
			// drop the first session right after the join
			_ = conn.CloseNow()
			return
		}
		var data proto.JoinRoomData
		_ = json.Unmarshal(in.Data, &data)
		rejoined <- in.Type + ":" + data.Room
		_, _, _ = conn.Read(r.Context())
	}))
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c := newTestClient(t, ts.URL, "ann")
	require.NoError(t, c.Connect(ctx))
	require.NoError(t, c.Join(ctx, "general"))
	go func() { _ = c.Run(ctx) }()

	select {
	case got := <-rejoined:
		assert.Equal(t, proto.InboundTypeJoinRoom+":general", got)
	case <-ctx.Done():
		t.Fatal("client did not rejoin")
	}
	assert.Equal(t, int32(2), dials.Load())
	waitFor(t, func() bool { return c.State() == StateConnected })
}

func TestClientGivesUpAfterPolicy(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	addr := ts.URL
	ts.Close()

	c, err := New(Options{
		ServerURL: addr,
		Author:    "ann",
		Policy:    Policy{MaxAttempts: 2, Delay: time.Millisecond},
	}, nil)
	require.NoError(t, err)

	err = c.Run(context.Background())
	require.ErrorIs(t, err, ErrUnableToConnect)
	assert.Equal(t, StateFailed, c.State())
	assert.Equal(t, 2, c.reconnector.Attempts())

	_, open := <-c.Messages()
	assert.False(t, open)
}

func TestClientCloseStopsRun(t *testing.T) {
	ts, registry := startChatServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c := newTestClient(t, ts.URL, "ann")
	require.NoError(t, c.Connect(ctx))
	require.NoError(t, c.Join(ctx, "lobby"))

	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()
	waitFor(t, func() bool { return len(registry.MembersOf("lobby")) == 1 })

	require.NoError(t, c.Close())

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-ctx.Done():
		t.Fatal("Run kept going after Close")
	}
	waitFor(t, func() bool { return len(registry.MembersOf("lobby")) == 0 })

	// no reconnect happened behind our back
	time.Sleep(100 * time.Millisecond)
	assert.Empty(t, registry.MembersOf("lobby"))
	assert.ErrorIs(t, c.Send(ctx, "late"), ErrNotConnected)
	assert.ErrorIs(t, c.Connect(ctx), net.ErrClosed)
}

package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"messaging-service/internal/models"
)

// dialTestConn spins up a throwaway websocket server and returns both ends of
// one established connection.
func dialTestConn(t *testing.T) (serverSide, clientSide *websocket.Conn) {
	t.Helper()

	accepted := make(chan *websocket.Conn, 1)
	upgr := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgr.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		accepted <- conn
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	server := <-accepted
	t.Cleanup(func() { server.Close() })
	return server, client
}

func TestHubRegisterAndUnregister(t *testing.T) {
	hub := NewHub()
	server, _ := dialTestConn(t)

	hub.Register(1, server, ConnInfo{ConnID: "c1", ConnectedAt: time.Now()})
	require.True(t, hub.IsReachable(1))

	hub.Unregister(1, server)
	require.False(t, hub.IsReachable(1))
}

func TestHubPushDelivers(t *testing.T) {
	hub := NewHub()
	server, client := dialTestConn(t)

	hub.Register(7, server, ConnInfo{ConnID: "c1", ConnectedAt: time.Now()})

	delivered := hub.Push(7, models.EventMessageRead, models.MessageReadPayload{ConversationID: 3, ReadBy: 8})
	require.True(t, delivered)

	client.SetReadDeadline(time.Now().Add(time.Second))
	_, payload, err := client.ReadMessage()
	require.NoError(t, err)

	var event models.PushEvent
	require.NoError(t, json.Unmarshal(payload, &event))
	require.Equal(t, models.EventMessageRead, event.Type)
}

func TestHubPushToOfflineUserIsDropped(t *testing.T) {
	hub := NewHub()
	require.False(t, hub.Push(42, models.EventMessageReceived, nil))
	require.False(t, hub.IsReachable(42))
}

func TestHubLastWriterWins(t *testing.T) {
	hub := NewHub()
	first, _ := dialTestConn(t)
	second, client := dialTestConn(t)

	hub.Register(1, first, ConnInfo{ConnID: "c1", ConnectedAt: time.Now()})
	hub.Register(1, second, ConnInfo{ConnID: "c2", ConnectedAt: time.Now()})

	// The superseded connection's cleanup must not evict its successor.
	hub.Unregister(1, first)
	require.True(t, hub.IsReachable(1))

	require.True(t, hub.Push(1, models.EventMessageTyping, models.TypingPayload{ConversationID: 3, UserID: 2, IsTyping: true}))

	client.SetReadDeadline(time.Now().Add(time.Second))
	_, payload, err := client.ReadMessage()
	require.NoError(t, err)
	require.Contains(t, string(payload), models.EventMessageTyping)
}

func TestHubConcurrentAccess(t *testing.T) {
	hub := NewHub()

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(userID int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				hub.Register(userID, nil, ConnInfo{})
				hub.IsReachable(userID)
				hub.Unregister(userID, nil)
			}
		}(i % 8)
	}
	wg.Wait()

	for i := 0; i < 8; i++ {
		require.False(t, hub.IsReachable(i))
	}
}

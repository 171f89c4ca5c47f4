package realtime

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tenantdesk/server/domain"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

// dialHub returns the client side of a registered connection plus a
// channel yielding the server-side conn the hub tracks.
func dialHub(t *testing.T, hub *Hub) (*websocket.Conn, <-chan *websocket.Conn) {
	t.Helper()
	serverConns := make(chan *websocket.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		hub.Register(conn)
		serverConns <- conn
	}))
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn, serverConns
}

func TestHubBroadcastsEvents(t *testing.T) {
	hub := NewHub()
	conn, _ := dialHub(t, hub)

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	msg := domain.Message{ID: 7, Content: "flooding in 3B", Urgency: domain.UrgencyEmergency}
	hub.MessageCreated(msg)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var event Event
	require.NoError(t, conn.ReadJSON(&event))
	assert.Equal(t, EventMessageCreated, event.Kind)
	assert.Equal(t, 7, event.Message.ID)
	assert.Equal(t, domain.UrgencyEmergency, event.Message.Urgency)

	hub.MessageUpdated(msg)
	require.NoError(t, conn.ReadJSON(&event))
	assert.Equal(t, EventMessageUpdated, event.Kind)
}

func TestHubDropsClosedClients(t *testing.T) {
	hub := NewHub()
	conn, _ := dialHub(t, hub)

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)
	require.NoError(t, conn.Close())

	// The first write after the close may still land in OS buffers, so
	// broadcast until the hub notices the dead peer.
	require.Eventually(t, func() bool {
		hub.MessageCreated(domain.Message{ID: 1})
		return hub.ClientCount() == 0
	}, 2*time.Second, 50*time.Millisecond)
}

func TestHubUnregister(t *testing.T) {
	hub := NewHub()
	_, serverConns := dialHub(t, hub)

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)
	hub.Unregister(<-serverConns)
	assert.Equal(t, 0, hub.ClientCount())
}

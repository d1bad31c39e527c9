package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/JJ-Intelligence/SR-Sea-Battle/pkg/comms"
)

func startFeed(t *testing.T, format string) (*Feed, string) {
	t.Helper()
	codec, err := comms.NewCodec(format)
	require.NoError(t, err)
	feed := NewFeed(nil, codec, nil)
	srv := httptest.NewServer(feed)
	t.Cleanup(func() {
		feed.Close()
		srv.Close()
	})
	return feed, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitSubscribers(t *testing.T, feed *Feed, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return feed.Subscribers() == n }, time.Second, 10*time.Millisecond)
}

func TestFeedBroadcastsJSON(t *testing.T) {
	feed, url := startFeed(t, "json")
	conn := dial(t, url)
	waitSubscribers(t, feed, 1)

	feed.Broadcast(StatusBroadcast{Players: 2, MaxPlayers: 20, Online: 1})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	var message struct {
		Type     string          `json:"type"`
		Contents StatusBroadcast `json:"contents"`
	}
	require.NoError(t, conn.ReadJSON(&message))
	assert.Equal(t, "StatusBroadcast", message.Type)
	assert.Equal(t, 2, message.Contents.Players)
	assert.Equal(t, 1, message.Contents.Online)
}

func TestFeedBroadcastsMsgpack(t *testing.T) {
	feed, url := startFeed(t, "msgpack")
	conn := dial(t, url)
	waitSubscribers(t, feed, 1)

	feed.Broadcast(StatusBroadcast{Games: 3, Playing: 1})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	frame, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.BinaryMessage, frame)

	var message struct {
		Type     string          `msgpack:"type"`
		Contents StatusBroadcast `msgpack:"contents"`
	}
	require.NoError(t, msgpack.Unmarshal(data, &message))
	assert.Equal(t, "StatusBroadcast", message.Type)
	assert.Equal(t, 3, message.Contents.Games)
	assert.Equal(t, 1, message.Contents.Playing)
}

func TestFeedSendsLastStatusOnConnect(t *testing.T) {
	feed, url := startFeed(t, "json")
	feed.Broadcast(StatusBroadcast{Players: 7})

	conn := dial(t, url)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	var message struct {
		Contents StatusBroadcast `json:"contents"`
	}
	require.NoError(t, conn.ReadJSON(&message))
	assert.Equal(t, 7, message.Contents.Players)
}

func TestFeedIsReadOnly(t *testing.T) {
	feed, url := startFeed(t, "json")
	conn := dial(t, url)
	waitSubscribers(t, feed, 1)

	require.NoError(t, conn.WriteJSON(comms.Message{Type: "Fire"}))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	var message struct {
		Type     string              `json:"type"`
		Contents comms.ErrorResponse `json:"contents"`
	}
	require.NoError(t, conn.ReadJSON(&message))
	assert.Equal(t, "ErrorResponse", message.Type)
	assert.NotEmpty(t, message.Contents.Reason)
}

func TestFeedDisconnect(t *testing.T) {
	feed, url := startFeed(t, "json")
	conn := dial(t, url)
	waitSubscribers(t, feed, 1)

	require.NoError(t, conn.Close())
	waitSubscribers(t, feed, 0)

	// Broadcasting with nobody listening is fine.
	feed.Broadcast(StatusBroadcast{})
}

func TestLocalOrigin(t *testing.T) {
	cases := map[string]bool{
		"":                      true,
		"http://localhost:3000": true,
		"http://127.0.0.1":      true,
		"http://[::1]:8080":     true,
		"https://example.com":   false,
		"http://192.168.1.4:80": false,
		"://bad":                false,
	}
	for origin, want := range cases {
		r := httptest.NewRequest(http.MethodGet, "/status", nil)
		if origin != "" {
			r.Header.Set("Origin", origin)
		}
		assert.Equal(t, want, LocalOrigin(r), origin)
	}
}

func TestFeedAnswersMalformedFrames(t *testing.T) {
	feed, url := startFeed(t, "json")
	conn := dial(t, url)
	waitSubscribers(t, feed, 1)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	var message struct {
		Type     string              `json:"type"`
		Contents comms.ErrorResponse `json:"contents"`
	}
	require.NoError(t, conn.ReadJSON(&message))
	assert.Equal(t, "ErrorResponse", message.Type)
	assert.Contains(t, message.Contents.Reason, "malformed message")
	assert.Equal(t, 1, feed.Subscribers(), "a bad frame does not drop the subscriber")
}

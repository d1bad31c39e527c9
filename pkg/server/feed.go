package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sasha-s/go-deadlock"
	"go.uber.org/zap"

	"github.com/JJ-Intelligence/SR-Sea-Battle/pkg/comms"
)

// Feed pushes status broadcasts to websocket subscribers. Subscribers only
// listen; anything they send is answered with an ErrorResponse.
type Feed struct {
	log            *zap.Logger
	codec          comms.Codec
	socketUpgrader websocket.Upgrader

	mu    deadlock.Mutex
	conns map[*comms.ConnectionWrapper]bool
	last  *comms.Message
}

// NewFeed constructs a Feed. A nil checkOrigin accepts local origins only.
func NewFeed(log *zap.Logger, codec comms.Codec, checkOrigin func(r *http.Request) bool) *Feed {
	if log == nil {
		log = zap.NewNop()
	}
	if checkOrigin == nil {
		checkOrigin = LocalOrigin
	}
	return &Feed{
		log:            log,
		codec:          codec,
		socketUpgrader: websocket.Upgrader{CheckOrigin: checkOrigin},
		conns:          make(map[*comms.ConnectionWrapper]bool),
	}
}

// LocalOrigin accepts requests without an Origin header and those from
// localhost.
func LocalOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	host := u.Hostname()
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// ServeHTTP upgrades the request and keeps the subscriber until it
// disconnects.
func (f *Feed) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	socket, err := f.socketUpgrader.Upgrade(w, r, nil)
	if err != nil {
		f.log.Error("Error upgrading connection", zap.Error(err))
		return
	}
	conn := comms.NewConnectionWrapper(socket, f.codec)

	f.mu.Lock()
	f.conns[conn] = true
	if f.last != nil {
		conn.WriteChannel <- *f.last
	}
	f.mu.Unlock()
	f.log.Info("Status subscriber connected", zap.String("remote", r.RemoteAddr))

	go f.writeLoop(conn)
	defer f.disconnect(conn)

	for {
		message, err := conn.ReadMessage()
		switch {
		case errors.Is(err, comms.ErrMalformed):
			f.send(conn, comms.ToMessage(comms.ErrorResponse{Reason: err.Error()}))
		case err != nil:
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				f.log.Info("Status subscriber errored", zap.Error(err))
			}
			return
		default:
			f.log.Debug("Ignoring message from status subscriber", zap.String("type", message.Type))
			f.send(conn, comms.ToMessage(comms.ErrorResponse{Reason: "the status feed is read-only"}))
		}
	}
}

func (f *Feed) writeLoop(conn *comms.ConnectionWrapper) {
	for message := range conn.WriteChannel {
		if err := conn.WriteMessage(message); err != nil {
			f.log.Info("Error writing to status subscriber", zap.Error(err))
			f.disconnect(conn)
			// Drain until disconnect closes the channel.
			for range conn.WriteChannel {
			}
			return
		}
	}
}

// Broadcast sends contents to every subscriber. A subscriber whose buffer
// is full misses this message.
func (f *Feed) Broadcast(contents interface{}) {
	message := comms.ToMessage(contents)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.last = &message
	for conn := range f.conns {
		select {
		case conn.WriteChannel <- message:
		default:
			f.log.Debug("Status subscriber is behind, dropping message")
		}
	}
}

func (f *Feed) send(conn *comms.ConnectionWrapper, message comms.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.conns[conn] {
		return
	}
	select {
	case conn.WriteChannel <- message:
	default:
	}
}

func (f *Feed) disconnect(conn *comms.ConnectionWrapper) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.conns[conn] {
		return
	}
	delete(f.conns, conn)
	conn.Close()
	f.log.Info("Status subscriber disconnected")
}

// Subscribers returns the number of connected subscribers.
func (f *Feed) Subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.conns)
}

// Close disconnects every subscriber.
func (f *Feed) Close() {
	f.mu.Lock()
	conns := make([]*comms.ConnectionWrapper, 0, len(f.conns))
	for conn := range f.conns {
		conns = append(conns, conn)
	}
	f.mu.Unlock()

	for _, conn := range conns {
		f.disconnect(conn)
	}
}

// ServeFeed serves feed on addr at /status until ctx is cancelled.
func ServeFeed(ctx context.Context, addr string, feed *Feed) error {
	mux := http.NewServeMux()
	mux.Handle("/status", feed)
	srv := &http.Server{Addr: addr, Handler: mux}

	errs := make(chan error, 1)
	go func() {
		errs <- srv.ListenAndServe()
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}

	feed.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errs; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	logx "tgrelay/pkg/logx"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPingPeriod = 30 * time.Second
	wsPongWait   = wsPingPeriod + 10*time.Second
	wsBuffer     = 64
)

var wsUpgrader = websocket.Upgrader{
	// Auth is the bearer key; browsers are not the intended client.
	CheckOrigin: func(*http.Request) bool { return true },
}

// handleEvents streams bus events as JSON text frames until either side goes away.
// Slow clients lose events rather than stalling publishers.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.deps.Bus == nil {
		writeJSONError(w, "event stream unavailable", http.StatusServiceUnavailable)
		return
	}
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug("websocket upgrade failed", logx.Err(err))
		return
	}
	defer conn.Close()

	events, unsub := s.deps.Bus.Subscribe(wsBuffer)
	defer unsub()
	s.log.Debug("event stream opened", logx.String("remote", r.RemoteAddr))

	// Reader: only control frames are expected; any error means the peer left.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wsPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()
	for {
		select {
		case <-r.Context().Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
				time.Now().Add(wsWriteWait))
			return
		case <-gone:
			s.log.Debug("event stream closed", logx.String("remote", r.RemoteAddr))
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(e); err != nil {
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
		}
	}
}

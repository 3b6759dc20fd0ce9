package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"battleship/internal/digest"
	"battleship/internal/notify"
)

// handleWS pushes a notify.Event every time the game changes. It subscribes
// before reading the snapshot, so a move committed while the client connects
// is either in the snapshot or queued behind it.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	id := r.PathValue("id")
	events, cancel := s.svc.Hub().Subscribe(id)
	defer cancel()

	st, err := s.svc.State(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error
		s.log.Debug().Err(err).Str("game_id", id).Msg("ws upgrade")
		return
	}
	defer conn.Close()

	root, _ := digest.Root(st)
	if err := s.push(conn, notify.Event{GameID: id, Version: st.Version, Digest: root, Status: st.Status}); err != nil {
		return
	}
	sent := st.Version

	// the reader only exists to notice the peer going away
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(s.PingInterval)
	defer ping.Stop()
	for {
		select {
		case <-gone:
			return
		case <-r.Context().Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.Version <= sent {
				continue
			}
			sent = ev.Version
			if err := s.push(conn, ev); err != nil {
				s.log.Debug().Err(err).Str("game_id", id).Msg("ws write")
				return
			}
		case <-ping.C:
			deadline := time.Now().Add(s.WriteTimeout)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		}
	}
}

func (s *Server) push(conn *websocket.Conn, ev notify.Event) error {
	_ = conn.SetWriteDeadline(time.Now().Add(s.WriteTimeout))
	return conn.WriteJSON(ev)
}

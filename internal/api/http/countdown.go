package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang/glog"
	"github.com/gorilla/websocket"

	"github.com/mind-engage/mindengage-quiz/internal/attempt"
	auth "github.com/mind-engage/mindengage-quiz/internal/auth/middleware"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
)

func newUpgrader(allowedOrigins []string) websocket.Upgrader {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || allowed["*"] || allowed[origin]
		},
	}
}

type countdownMessage struct {
	Type     string           `json:"type"` // "snapshot" or "done"
	Snapshot attempt.Snapshot `json:"snapshot"`
}

// GET /attempts/{attemptID}/countdown: streams snapshots of a running
// attempt until it completes or the client goes away.
func CountdownHandler(svc *attempt.Service, allowedOrigins []string) http.HandlerFunc {
	upgrader := newUpgrader(allowedOrigins)
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "attemptID")
		p := auth.ProfileFromContext(r.Context())
		snaps, cancel, err := svc.Subscribe(p, id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		defer cancel()

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			glog.V(2).Infof("countdown %s: upgrade: %v", id, err)
			return
		}
		defer conn.Close()

		// reader: only pongs and the close frame matter
		gone := make(chan struct{})
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wsPongWait))
		})
		go func() {
			defer close(gone)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		ping := time.NewTicker(wsPingPeriod)
		defer ping.Stop()
		var last attempt.Snapshot
		for {
			select {
			case <-gone:
				return
			case <-ping.C:
				_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			case s, ok := <-snaps:
				_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
				if !ok {
					// the completing snapshot may have been dropped for a slow reader
					if final, err := svc.Status(r.Context(), p, id); err == nil {
						last = final
					}
					_ = conn.WriteJSON(countdownMessage{Type: "done", Snapshot: last})
					_ = conn.WriteMessage(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseNormalClosure, "attempt finished"))
					return
				}
				last = s
				if err := conn.WriteJSON(countdownMessage{Type: "snapshot", Snapshot: s}); err != nil {
					glog.V(2).Infof("countdown %s: write: %v", id, err)
					return
				}
			}
		}
	}
}

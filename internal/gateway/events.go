package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/coder/websocket"
)

// handleEvents returns the websocket handler for GET /ws/events. Each
// connection gets its own bus subscription; events are pushed as JSON
// text frames until the client disconnects.
func (g *Gateway) handleEvents() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if g.deps.Bus == nil {
			http.Error(w, "events unavailable", http.StatusNotImplemented)
			return
		}

		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			g.logger.Error("websocket accept failed", "error", err)
			return
		}
		defer func() {
			_ = conn.Close(websocket.StatusInternalError, "unexpected close")
		}()

		events, cancel := g.deps.Bus.Subscribe()
		defer cancel()

		ctx := r.Context()
		for {
			select {
			case <-ctx.Done():
				_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
				return
			case ev, ok := <-events:
				if !ok {
					_ = conn.Close(websocket.StatusGoingAway, "event stream closed")
					return
				}
				data, err := json.Marshal(ev)
				if err != nil {
					continue
				}
				if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
					g.logger.Debug("websocket write failed, dropping subscriber", "error", err)
					return
				}
			}
		}
	}
}

package echoapi

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/trezcool/tuitionbook/core/tuition"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

type liveMessage struct {
	Type   string          `json:"type"` // connected | change
	Change *tuition.Change `json:"change,omitempty"`
}

func (api tuitionApi) upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || origin == api.conf.FrontendBaseURL
		},
	}
}

// liveUpdates streams the changes of the context Tuition over a websocket until either side closes it,
// or the Tuition is deleted.
func (api tuitionApi) liveUpdates(ctx echo.Context) error {
	t, err := contextTuition(ctx)
	if err != nil {
		return err
	}

	upgrader := api.upgrader()
	conn, err := upgrader.Upgrade(ctx.Response(), ctx.Request(), nil)
	if err != nil {
		// the upgrader already replied
		api.logger.Debug("websocket upgrade failed", err)
		return nil
	}
	defer conn.Close()

	changes, unsubscribe := api.live.Subscribe(t.ID)
	defer unsubscribe()

	// reader: only there to process pongs & detect closing
	closed := make(chan struct{})
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					api.logger.Debug("websocket read failed", err, map[string]interface{}{"tuitionId": t.ID})
				}
				return
			}
		}
	}()

	write := func(msg liveMessage) bool {
		if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
			return false
		}
		return conn.WriteJSON(msg) == nil
	}

	if !write(liveMessage{Type: "connected"}) {
		return nil
	}

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			return nil
		case <-ctx.Request().Context().Done():
			return nil
		case chg, ok := <-changes:
			if !ok || !write(liveMessage{Type: "change", Change: &chg}) {
				return nil
			}
			if chg.Kind == tuition.ChangeDeleted {
				_ = conn.WriteControl(
					websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "tuition deleted"),
					time.Now().Add(writeWait),
				)
				return nil
			}
		case <-ticker.C:
			if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return nil
			}
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return nil
			}
		}
	}
}

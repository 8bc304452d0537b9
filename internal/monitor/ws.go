package monitor

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const writeWait = 5 * time.Second

type socketClient struct {
	hub  *hub
	conn *websocket.Conn
	send chan []byte
}

// reader only watches for the client going away.
func (sc *socketClient) reader() {
	defer func() {
		sc.conn.Close()
		select {
		case sc.hub.unregister <- sc:
		case <-sc.hub.done:
		}
	}()

	for {
		if _, _, err := sc.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				sc.hub.logger.Debug("live client closed", zap.Error(err))
			}
			return
		}
	}
}

func (sc *socketClient) writer() {
	defer sc.conn.Close()

	for message := range sc.send {
		sc.conn.SetWriteDeadline(time.Now().Add(writeWait))
		w, err := sc.conn.NextWriter(websocket.TextMessage)
		if err != nil {
			return
		}
		w.Write(message)
		if err := w.Close(); err != nil {
			return
		}
	}
	sc.conn.SetWriteDeadline(time.Now().Add(writeWait))
	sc.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "run finished"))
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func serveWs(h *hub, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &socketClient{
		hub:  h,
		conn: conn,
		send: make(chan []byte, 256),
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.reader()
	go client.writer()
}

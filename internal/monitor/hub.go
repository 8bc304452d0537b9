package monitor

import (
	"encoding/json"

	"go.uber.org/zap"

	"stageq/internal/runner"
)

// hub fans snapshots out to every connected /live client.
type hub struct {
	clients map[*socketClient]bool

	register   chan *socketClient
	unregister chan *socketClient

	send chan runner.StatsSnapshot
	done chan struct{}

	logger *zap.Logger
}

func newHub(logger *zap.Logger) *hub {
	return &hub{
		clients:    make(map[*socketClient]bool),
		register:   make(chan *socketClient),
		unregister: make(chan *socketClient),
		send:       make(chan runner.StatsSnapshot, 16),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

func (h *hub) run() {
	defer func() {
		for client := range h.clients {
			delete(h.clients, client)
			close(client.send)
		}
	}()

	for {
		select {
		case <-h.done:
			return
		case client := <-h.register:
			h.clients[client] = true
		case client := <-h.unregister:
			if h.clients[client] {
				delete(h.clients, client)
				close(client.send)
			}
		case snap := <-h.send:
			data, err := json.Marshal(snap)
			if err != nil {
				h.logger.Warn("encode snapshot", zap.Error(err))
				continue
			}
			for client := range h.clients {
				select {
				case client.send <- data:
				default:
					// slow reader, drop it rather than stall the feed
					delete(h.clients, client)
					close(client.send)
				}
			}
		}
	}
}

// broadcast never blocks the caller.
func (h *hub) broadcast(s runner.StatsSnapshot) {
	select {
	case h.send <- s:
	default:
	}
}

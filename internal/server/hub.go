package server

import (
	"context"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"taize-events/internal/state"
)

const (
	clientBuffer = 16
	writeTimeout = 5 * time.Second
)

// hub fans state changes out to websocket clients. A client that falls
// behind by more than clientBuffer changes is disconnected.
type hub struct {
	log *zap.Logger

	mu      sync.Mutex
	clients map[*wsClient]struct{}
}

type wsClient struct {
	ch   chan state.Change
	once sync.Once
}

func (c *wsClient) close() {
	c.once.Do(func() { close(c.ch) })
}

func newHub(log *zap.Logger) *hub {
	return &hub{log: log, clients: map[*wsClient]struct{}{}}
}

func (h *hub) add() *wsClient {
	c := &wsClient{ch: make(chan state.Change, clientBuffer)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	return c
}

func (h *hub) remove(c *wsClient) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	c.close()
}

func (h *hub) broadcast(ch state.Change) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.ch <- ch:
		default:
			delete(h.clients, c)
			c.close()
			h.log.Warn("websocket client too slow, dropped")
		}
	}
}

func (h *hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		c.close()
	}
}

// serve upgrades the request and streams changes until either side goes
// away. The first frame is a snapshot of the current collection size.
func (h *hub) serve(st *state.State) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
			InsecureSkipVerify: true,
		})
		if err != nil {
			h.log.Warn("websocket accept", zap.Error(err))
			return
		}
		defer conn.Close(websocket.StatusInternalError, "closing")

		client := h.add()
		defer h.remove(client)

		ctx := conn.CloseRead(c.Request.Context())
		hello := state.Change{Kind: "snapshot", Section: st.Section(), Count: st.Len(), At: time.Now()}
		if err := writeJSON(ctx, conn, hello); err != nil {
			return
		}

		for {
			select {
			case <-ctx.Done():
				return
			case ch, open := <-client.ch:
				if !open {
					conn.Close(websocket.StatusGoingAway, "server closing")
					return
				}
				if err := writeJSON(ctx, conn, ch); err != nil {
					h.log.Debug("websocket write", zap.Error(err))
					return
				}
			}
		}
	}
}

func writeJSON(ctx context.Context, conn *websocket.Conn, v any) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, v)
}

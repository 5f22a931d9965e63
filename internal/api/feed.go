package api

import (
	"net/http"
	"sync"

	"helpboard_miniapp/internal/model"
	"helpboard_miniapp/pkg/logger"
	"go.uber.org/zap"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type FeedEvent struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload,omitempty"`
}

// FeedHub pushes lifecycle events to connected mini-app clients. It is one of
// the notification sinks: broadcasting is best effort, a dead connection is
// dropped and nothing upstream waits on delivery.
type FeedHub struct {
	mu      sync.RWMutex
	clients map[*websocket.Conn]struct{}
	events  chan FeedEvent
}

func NewFeedHub() *FeedHub {
	h := &FeedHub{
		clients: make(map[*websocket.Conn]struct{}),
		events:  make(chan FeedEvent, 64),
	}
	go h.writeLoop()
	return h
}

// writeLoop is the single writer: websocket connections do not tolerate
// concurrent writes, so every broadcast is funneled through here.
func (h *FeedHub) writeLoop() {
	for event := range h.events {
		h.broadcast(event)
	}
}

func (h *FeedHub) publish(event FeedEvent) {
	select {
	case h.events <- event:
	default:
		// A full buffer means slow consumers; feed events are best
		// effort, so drop rather than block the lifecycle.
	}
}

func NewFeedRoutes(handler *gin.RouterGroup, hub *FeedHub) {
	handler.GET("/events", hub.handleWebSocket)
}

func (h *FeedHub) handleWebSocket(c *gin.Context) {
	log := logger.Logger()

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("websocket upgrade failed", zap.Error(err))
		return
	}

	h.mu.Lock()
	h.clients[conn] = struct{}{}
	h.mu.Unlock()

	go h.readLoop(conn)
}

func (h *FeedHub) readLoop(conn *websocket.Conn) {
	defer h.drop(conn)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Logger().Info("websocket unexpected close", zap.Error(err))
			}
			return
		}
	}
}

func (h *FeedHub) drop(conn *websocket.Conn) {
	conn.Close()
	h.mu.Lock()
	delete(h.clients, conn)
	h.mu.Unlock()
}

func (h *FeedHub) broadcast(event FeedEvent) {
	out, err := json.Marshal(event)
	if err != nil {
		logger.Logger().Error("failed to marshal feed event", zap.Error(err))
		return
	}

	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for conn := range h.clients {
		conns = append(conns, conn)
	}
	h.mu.RUnlock()

	for _, conn := range conns {
		if err := conn.WriteMessage(websocket.TextMessage, out); err != nil {
			h.drop(conn)
		}
	}
}

func (h *FeedHub) RequestAccepted(req *model.HelpRequest) {
	h.publish(FeedEvent{
		Type: "request_accepted",
		Payload: map[string]any{
			"request_id": req.ID.String(),
			"category":   req.Category,
			"urgency":    string(req.Urgency),
		},
	})
}

func (h *FeedHub) RequestCompleted(req *model.HelpRequest, pointsAwarded int) {
	h.publish(FeedEvent{
		Type: "request_completed",
		Payload: map[string]any{
			"request_id":     req.ID.String(),
			"category":       req.Category,
			"points_awarded": pointsAwarded,
		},
	})
}

func (h *FeedHub) BadgeAwarded(userID int64, badge model.Badge) {
	h.publish(FeedEvent{
		Type: "badge_awarded",
		Payload: map[string]any{
			"telegram_id": userID,
			"badge_id":    badge.ID,
			"badge_name":  badge.Name,
		},
	})
}

package handlers

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// ProgressHub 扫描进度WebSocket广播器
// 实现 worker.ProgressNotifier 接口
type ProgressHub struct {
	logger      *logrus.Logger
	upgrader    websocket.Upgrader
	clients     map[*websocket.Conn]string // conn -> 订阅的scan_id（"all"表示全部）
	clientMutex sync.RWMutex
	broadcast   chan ScanProgressMessage
}

// ScanProgressMessage 扫描进度消息
type ScanProgressMessage struct {
	ScanID    string `json:"scan_id"`
	Status    string `json:"status"`
	Detail    string `json:"detail,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// NewProgressHub 创建进度广播器
func NewProgressHub(logger *logrus.Logger) *ProgressHub {
	return &ProgressHub{
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // 允许所有来源（生产环境需要限制）
			},
		},
		clients:   make(map[*websocket.Conn]string),
		broadcast: make(chan ScanProgressMessage, 100),
	}
}

// Start 启动广播服务
func (h *ProgressHub) Start() {
	go h.runBroadcaster()
}

// runBroadcaster 运行广播器
func (h *ProgressHub) runBroadcaster() {
	for msg := range h.broadcast {
		var stale []*websocket.Conn

		h.clientMutex.RLock()
		for client, scanID := range h.clients {
			if scanID != "all" && scanID != msg.ScanID {
				continue
			}
			if err := client.WriteJSON(msg); err != nil {
				h.logger.WithError(err).Warn("Failed to write to WebSocket client")
				stale = append(stale, client)
			}
		}
		h.clientMutex.RUnlock()

		if len(stale) > 0 {
			h.clientMutex.Lock()
			for _, client := range stale {
				client.Close()
				delete(h.clients, client)
			}
			h.clientMutex.Unlock()
		}
	}
}

// HandleWebSocket 处理WebSocket订阅连接
// GET /ws/scans/:scan_id （scan_id 为 "all" 时订阅全部任务）
func (h *ProgressHub) HandleWebSocket(c *gin.Context) {
	scanID := c.Param("scan_id")
	if scanID == "" {
		scanID = "all"
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.WithError(err).Error("Failed to upgrade to WebSocket")
		return
	}
	defer conn.Close()

	h.clientMutex.Lock()
	h.clients[conn] = scanID
	h.clientMutex.Unlock()

	h.logger.WithField("scan_id", scanID).Info("WebSocket client connected")

	// 保持连接, 客户端消息仅用于探活
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.WithError(err).Warn("WebSocket error")
			}
			break
		}
	}

	h.clientMutex.Lock()
	delete(h.clients, conn)
	h.clientMutex.Unlock()

	h.logger.WithField("scan_id", scanID).Info("WebSocket client disconnected")
}

// PublishProgress 广播任务进度（供worker内部调用）
func (h *ProgressHub) PublishProgress(scanID, status, detail string) {
	msg := ScanProgressMessage{
		ScanID:    scanID,
		Status:    status,
		Detail:    detail,
		Timestamp: time.Now().Unix(),
	}

	select {
	case h.broadcast <- msg:
	default:
		h.logger.Warn("Broadcast channel is full, dropping message")
	}
}

// ClientCount 当前连接的客户端数
func (h *ProgressHub) ClientCount() int {
	h.clientMutex.RLock()
	defer h.clientMutex.RUnlock()
	return len(h.clients)
}

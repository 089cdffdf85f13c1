package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"pictionary/internal/service"
)

// WebSocketHandler 處理 WebSocket 連接
type WebSocketHandler struct {
	wsManager *service.WebSocketManager
	handler   service.InboundHandler
	upgrader  websocket.Upgrader
	logger    *zap.Logger
}

// NewWebSocketHandler 創建一個新的 WebSocketHandler 實例
// allowedOrigins 包含 "*" 時接受任何來源
func NewWebSocketHandler(wsManager *service.WebSocketManager, handler service.InboundHandler, allowedOrigins []string, logger *zap.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		wsManager: wsManager,
		handler:   handler,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		logger: logger,
	}
}

// HandleWebSocket 升級連線後阻塞到連線結束
func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade 已經寫出錯誤回應
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	h.wsManager.HandleConnection(c.Request.Context(), conn, h.handler)
}

func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			// 非瀏覽器客戶端
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

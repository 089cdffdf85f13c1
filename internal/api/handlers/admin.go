package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"pictionary/internal/models"
	"pictionary/internal/service"
	"pictionary/internal/utils"
)

// AdminHandler 管理員端點：取得 token、列出房間、關閉房間、清空所有房間
type AdminHandler struct {
	admin       *service.AdminGate
	roomService *service.RoomService
	gameService *service.GameService
	secret      []byte
	tokenTTL    time.Duration
}

func NewAdminHandler(admin *service.AdminGate, roomService *service.RoomService, gameService *service.GameService, secret []byte, tokenTTL time.Duration) *AdminHandler {
	return &AdminHandler{
		admin:       admin,
		roomService: roomService,
		gameService: gameService,
		secret:      secret,
		tokenTTL:    tokenTTL,
	}
}

// TokenInput 定義取得 token 請求的結構
type TokenInput struct {
	RoomID   string `json:"roomId" binding:"required"`
	Username string `json:"username" binding:"required"`
}

// Token 憑證正確時回傳管理員 JWT
func (h *AdminHandler) Token(c *gin.Context) {
	var input TokenInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if !h.admin.Allows(input.RoomID, input.Username) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid operator credentials"})
		return
	}

	token, err := utils.GenerateToken(h.secret, input.RoomID, h.tokenTTL)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token, "expires_in": int(h.tokenTTL.Seconds())})
}

// ListRooms 列出所有房間
func (h *AdminHandler) ListRooms(c *gin.Context) {
	rooms, err := h.roomService.ListRooms(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list rooms"})
		return
	}

	views := make([]RoomView, 0, len(rooms))
	for _, room := range rooms {
		views = append(views, NewRoomView(room))
	}
	c.JSON(http.StatusOK, gin.H{"rooms": views})
}

// CloseRoom 強制刪除單一房間
func (h *AdminHandler) CloseRoom(c *gin.Context) {
	if err := h.gameService.CloseRoom(c.Request.Context(), c.Param("id")); err != nil {
		if errors.Is(err, models.ErrRoomNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
			return
		}
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to close room"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "room closed"})
}

// Reset 刪除所有房間並停止所有計時器
func (h *AdminHandler) Reset(c *gin.Context) {
	if err := h.gameService.Reset(c.Request.Context()); err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to reset rooms"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "all rooms deleted"})
}

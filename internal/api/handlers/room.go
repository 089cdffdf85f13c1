package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"pictionary/internal/models"
	"pictionary/internal/service"
)

// RoomHandler 處理房間查詢
type RoomHandler struct {
	roomService *service.RoomService
}

// NewRoomHandler 創建一個新的 RoomHandler 實例
func NewRoomHandler(roomService *service.RoomService) *RoomHandler {
	return &RoomHandler{roomService: roomService}
}

// RoomView 房間的公開資訊，不包含目前的單字
type RoomView struct {
	RoomID   string           `json:"roomId"`
	Phase    models.RoomPhase `json:"phase"`
	Users    []models.Member  `json:"users"`
	ArtistID *string          `json:"artistId"`
}

func NewRoomView(room *models.Room) RoomView {
	view := RoomView{
		RoomID: room.ID,
		Phase:  room.Phase,
		Users:  room.Members,
	}
	if view.Users == nil {
		view.Users = []models.Member{}
	}
	if room.Turn != nil {
		artist := room.Turn.ArtistID
		view.ArtistID = &artist
	}
	return view
}

// GetRoom 處理獲取房間訊息的請求
func (h *RoomHandler) GetRoom(c *gin.Context) {
	room, err := h.roomService.GetRoom(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, models.ErrRoomNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
			return
		}
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load room"})
		return
	}

	c.JSON(http.StatusOK, NewRoomView(room))
}

package service

import (
	"time"

	"go.uber.org/zap"

	"pictionary/internal/repository"
)

// Options 遊戲相關設定
type Options struct {
	TurnDuration   time.Duration
	TurnPause      time.Duration
	ScoreIncrement int
	Words          WordProvider // 為 nil 時使用 DefaultWords
	Admin          *AdminGate   // 為 nil 時停用管理員重置
}

type Services struct {
	RoomService      *RoomService
	GameService      *GameService
	Scheduler        *TurnScheduler
	WebSocketManager *WebSocketManager
	Admin            *AdminGate
}

func NewServices(repos *repository.Repositories, opts Options, logger *zap.Logger) *Services {
	words := opts.Words
	if words == nil {
		words = NewRandomWordProvider()
	}
	admin := opts.Admin
	if admin == nil {
		admin = NewAdminGate("", "")
	}

	wsManager := NewWebSocketManager(logger.Named("websocket"))
	scheduler := NewTurnScheduler(repos.Room, words, wsManager, opts.TurnDuration, opts.TurnPause, logger.Named("scheduler"))
	roomService := NewRoomService(repos.Room, scheduler, opts.ScoreIncrement, logger.Named("room"))
	gameService := NewGameService(roomService, scheduler, wsManager, admin, logger.Named("game"))

	return &Services{
		RoomService:      roomService,
		GameService:      gameService,
		Scheduler:        scheduler,
		WebSocketManager: wsManager,
		Admin:            admin,
	}
}

// Shutdown 停止所有計時器並關閉所有連線
func (s *Services) Shutdown() {
	s.Scheduler.CancelAll()
	s.WebSocketManager.CloseAll()
}

package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"pictionary/internal/models"
	"pictionary/internal/repository"
)

// TimerCanceler 在房間被刪除時停止該房間的回合計時器
type TimerCanceler interface {
	Cancel(roomID string) bool
	CancelAll()
}

// GuessResult 猜測結果
type GuessResult struct {
	Correct bool
	Score   int
}

// RoomService 負責房間狀態轉換：OPEN -> IN_PROGRESS，成員歸零時刪除
type RoomService struct {
	roomRepo       repository.RoomRepository
	timers         TimerCanceler
	scoreIncrement int
	logger         *zap.Logger
}

func NewRoomService(roomRepo repository.RoomRepository, timers TimerCanceler, scoreIncrement int, logger *zap.Logger) *RoomService {
	if scoreIncrement <= 0 {
		scoreIncrement = 1
	}
	return &RoomService{
		roomRepo:       roomRepo,
		timers:         timers,
		scoreIncrement: scoreIncrement,
		logger:         logger,
	}
}

// Create 建立空房間，建立者需要另外送出加入請求
func (s *RoomService) Create(ctx context.Context, roomID, creatorName string) (*models.Room, error) {
	room, err := s.roomRepo.Create(ctx, roomID)
	if err != nil {
		return nil, err
	}
	s.logger.Info("room created", zap.String("room_id", roomID), zap.String("creator", creatorName))
	return room, nil
}

// Exists 查詢房間，不存在時回傳 models.ErrRoomNotFound
func (s *RoomService) Exists(ctx context.Context, roomID string) (*models.Room, error) {
	return s.roomRepo.FindByID(ctx, roomID)
}

func (s *RoomService) GetRoom(ctx context.Context, roomID string) (*models.Room, error) {
	return s.roomRepo.FindByID(ctx, roomID)
}

func (s *RoomService) ListRooms(ctx context.Context) ([]*models.Room, error) {
	return s.roomRepo.FindAll(ctx)
}

// Join 將連線加入房間並回傳最新的玩家列表
func (s *RoomService) Join(ctx context.Context, roomID, memberID, displayName string) ([]models.Member, error) {
	room, err := s.roomRepo.AddMember(ctx, roomID, models.Member{ID: memberID, Username: displayName})
	if err != nil {
		return nil, err
	}
	return room.Members, nil
}

// Leave 移除玩家；房間因此變空時刪除房間並停止計時器
// 回傳的 room 在房間被刪除時為 nil
func (s *RoomService) Leave(ctx context.Context, roomID, memberID string) (room *models.Room, deleted bool, err error) {
	room, removed, err := s.roomRepo.RemoveMember(ctx, roomID, memberID)
	if err != nil {
		return nil, false, err
	}
	if !removed || !room.IsEmpty() {
		return room, false, nil
	}

	// 先停止計時器再刪除，刪除後同一 ID 重新建立的房間不會被誤停
	s.timers.Cancel(roomID)
	deleted, err = s.roomRepo.DeleteIfEmpty(ctx, roomID)
	if errors.Is(err, models.ErrRoomNotFound) {
		deleted, err = true, nil
	}
	if err != nil {
		return nil, false, err
	}
	if !deleted {
		// 刪除前有人加入
		room, err = s.roomRepo.FindByID(ctx, roomID)
		if err != nil {
			return nil, false, err
		}
		return room, false, nil
	}

	s.logger.Info("room deleted", zap.String("room_id", roomID))
	return nil, true, nil
}

// Delete 強制刪除房間，不論是否還有玩家
func (s *RoomService) Delete(ctx context.Context, roomID string) error {
	s.timers.Cancel(roomID)
	if err := s.roomRepo.Delete(ctx, roomID); err != nil {
		return err
	}
	s.logger.Warn("room closed by operator", zap.String("room_id", roomID))
	return nil
}

// Start 將房間設為 IN_PROGRESS，changed 表示此次呼叫是否真的改變狀態
func (s *RoomService) Start(ctx context.Context, roomID string) (room *models.Room, changed bool, err error) {
	room, changed, err = s.roomRepo.MarkStarted(ctx, roomID)
	if err != nil {
		return nil, false, err
	}
	if changed {
		s.logger.Info("game started", zap.String("room_id", roomID), zap.Int("members", len(room.Members)))
	}
	return room, changed, nil
}

// RecordGuess 不分大小寫比對目前單字，猜中時加分但不結束回合
func (s *RoomService) RecordGuess(ctx context.Context, roomID, memberID, text string) (GuessResult, error) {
	member, matched, err := s.roomRepo.ScoreGuess(ctx, roomID, memberID, text, s.scoreIncrement)
	if err != nil {
		return GuessResult{Score: member.Score}, err
	}
	return GuessResult{Correct: matched, Score: member.Score}, nil
}

// Reset 刪除所有房間並停止所有計時器
func (s *RoomService) Reset(ctx context.Context) error {
	if err := s.roomRepo.DeleteAll(ctx); err != nil {
		return err
	}
	s.timers.CancelAll()
	s.logger.Warn("all rooms purged")
	return nil
}

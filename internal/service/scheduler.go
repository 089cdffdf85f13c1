package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"pictionary/internal/models"
	"pictionary/internal/repository"
)

// TurnScheduler 為每個進行中的房間維護一個回合計時器
type TurnScheduler struct {
	roomRepo     repository.RoomRepository
	words        WordProvider
	publisher    Publisher
	turnDuration time.Duration
	interval     time.Duration
	logger       *zap.Logger

	mu     sync.Mutex
	timers map[string]*turnTimer
}

type turnTimer struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// NewTurnScheduler 每隔 turnDuration + turnPause 推進一次回合
func NewTurnScheduler(roomRepo repository.RoomRepository, words WordProvider, publisher Publisher, turnDuration, turnPause time.Duration, logger *zap.Logger) *TurnScheduler {
	return &TurnScheduler{
		roomRepo:     roomRepo,
		words:        words,
		publisher:    publisher,
		turnDuration: turnDuration,
		interval:     turnDuration + turnPause,
		logger:       logger,
		timers:       make(map[string]*turnTimer),
	}
}

// Arm 啟動房間的計時器並立即執行第一次推進；已啟動時不做任何事
func (s *TurnScheduler) Arm(roomID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.timers[roomID]; ok {
		return false
	}
	ctx, cancel := context.WithCancel(context.Background())
	t := &turnTimer{cancel: cancel, done: make(chan struct{})}
	s.timers[roomID] = t
	go s.run(ctx, roomID, t)

	s.logger.Debug("turn timer armed", zap.String("room_id", roomID))
	return true
}

// Cancel 停止房間的計時器並等待其結束，回傳後不會再有該房間的 TURN 廣播
// 同一個計時器只有第一次呼叫會回傳 true
func (s *TurnScheduler) Cancel(roomID string) bool {
	s.mu.Lock()
	t, ok := s.timers[roomID]
	if ok {
		delete(s.timers, roomID)
	}
	s.mu.Unlock()

	if !ok {
		return false
	}
	t.cancel()
	<-t.done
	s.logger.Debug("turn timer cancelled", zap.String("room_id", roomID))
	return true
}

// CancelAll 停止所有計時器
func (s *TurnScheduler) CancelAll() {
	s.mu.Lock()
	timers := s.timers
	s.timers = make(map[string]*turnTimer)
	s.mu.Unlock()

	for _, t := range timers {
		t.cancel()
	}
	for _, t := range timers {
		<-t.done
	}
}

// Armed 房間目前是否有計時器
func (s *TurnScheduler) Armed(roomID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.timers[roomID]
	return ok
}

// Len 目前計時器數量
func (s *TurnScheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

func (s *TurnScheduler) run(ctx context.Context, roomID string, t *turnTimer) {
	defer close(t.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if !s.tick(ctx, roomID) {
			s.release(roomID, t)
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// release 計時器自行結束時移除登記，只移除仍指向自己的項目
func (s *TurnScheduler) release(roomID string, t *turnTimer) {
	s.mu.Lock()
	if s.timers[roomID] == t {
		delete(s.timers, roomID)
	}
	s.mu.Unlock()
	t.cancel()
}

// tick 推進一個回合，回傳 false 表示計時器應該停止
func (s *TurnScheduler) tick(ctx context.Context, roomID string) bool {
	log := s.logger.With(zap.String("room_id", roomID))

	room, err := s.roomRepo.FindByID(ctx, roomID)
	if err != nil {
		return s.keepRunning(ctx, log, err)
	}

	// 畫家在選出後離開時，以最新狀態重選一次
	for attempt := 0; attempt < 2; attempt++ {
		artist, ok := room.NextArtist()
		if !ok {
			s.dropEmpty(ctx, log, roomID)
			return false
		}

		turn := models.Turn{ArtistID: artist.ID, Word: s.words.Word(), StartedAt: time.Now()}
		updated, err := s.roomRepo.BeginTurn(ctx, roomID, turn)
		if errors.Is(err, models.ErrMemberNotFound) {
			if room, err = s.roomRepo.FindByID(ctx, roomID); err != nil {
				return s.keepRunning(ctx, log, err)
			}
			continue
		}
		if err != nil {
			return s.keepRunning(ctx, log, err)
		}
		if ctx.Err() != nil {
			return false
		}

		s.publisher.Broadcast(roomID, models.NewClearBoardEvent())
		s.publisher.Broadcast(roomID, models.TurnEvent{
			Word:         updated.Turn.Word,
			ArtistID:     updated.Turn.ArtistID,
			TurnInterval: turnSeconds(s.turnDuration),
		})
		log.Debug("turn started", zap.String("artist_id", turn.ArtistID))
		return true
	}

	log.Warn("artist left twice while starting turn, retrying next tick")
	return true
}

// keepRunning 決定錯誤後計時器是否繼續：房間消失或計時器被取消則停止，其他錯誤只記錄
func (s *TurnScheduler) keepRunning(ctx context.Context, log *zap.Logger, err error) bool {
	if errors.Is(err, models.ErrRoomNotFound) || ctx.Err() != nil {
		return false
	}
	log.Error("turn tick failed", zap.Error(err))
	return true
}

func (s *TurnScheduler) dropEmpty(ctx context.Context, log *zap.Logger, roomID string) {
	deleted, err := s.roomRepo.DeleteIfEmpty(ctx, roomID)
	if err != nil && !errors.Is(err, models.ErrRoomNotFound) {
		log.Error("failed to delete empty room", zap.Error(err))
		return
	}
	if deleted {
		log.Info("empty room deleted by turn timer")
	}
}

// turnSeconds 以四捨五入換算為秒
func turnSeconds(d time.Duration) int {
	return int(d.Round(time.Second) / time.Second)
}

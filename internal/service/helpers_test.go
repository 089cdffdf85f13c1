package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"pictionary/internal/models"
	"pictionary/internal/repository"
)

// recordingPublisher 記錄所有送出的事件，廣播會投遞到已訂閱的連線
type recordingPublisher struct {
	mu         sync.Mutex
	subs       map[string]map[string]bool // roomID -> connID
	inbox      map[string][]models.OutboundEvent
	broadcasts map[string][]models.OutboundEvent
}

func newRecordingPublisher() *recordingPublisher {
	return &recordingPublisher{
		subs:       make(map[string]map[string]bool),
		inbox:      make(map[string][]models.OutboundEvent),
		broadcasts: make(map[string][]models.OutboundEvent),
	}
}

func (p *recordingPublisher) Subscribe(connID, roomID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.subs[roomID] == nil {
		p.subs[roomID] = make(map[string]bool)
	}
	p.subs[roomID][connID] = true
}

func (p *recordingPublisher) Unsubscribe(connID, roomID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.subs[roomID], connID)
}

func (p *recordingPublisher) DropRoom(roomID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.subs, roomID)
}

func (p *recordingPublisher) DropAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subs = make(map[string]map[string]bool)
}

func (p *recordingPublisher) Send(connID string, evt models.OutboundEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.inbox[connID] = append(p.inbox[connID], evt)
}

func (p *recordingPublisher) Broadcast(roomID string, evt models.OutboundEvent) {
	p.BroadcastExcept(roomID, "", evt)
}

func (p *recordingPublisher) BroadcastExcept(roomID, exceptConnID string, evt models.OutboundEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.broadcasts[roomID] = append(p.broadcasts[roomID], evt)
	for connID := range p.subs[roomID] {
		if connID != exceptConnID {
			p.inbox[connID] = append(p.inbox[connID], evt)
		}
	}
}

func (p *recordingPublisher) events(connID string) []models.OutboundEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]models.OutboundEvent(nil), p.inbox[connID]...)
}

// last 回傳連線收到的最後一個事件
func (p *recordingPublisher) last(t *testing.T, connID string) models.OutboundEvent {
	t.Helper()
	evts := p.events(connID)
	require.NotEmpty(t, evts, "no events for %s", connID)
	return evts[len(evts)-1]
}

func (p *recordingPublisher) turns(roomID string) []models.TurnEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []models.TurnEvent
	for _, evt := range p.broadcasts[roomID] {
		if turn, ok := evt.(models.TurnEvent); ok {
			out = append(out, turn)
		}
	}
	return out
}

func (p *recordingPublisher) subscribers(roomID string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.subs[roomID])
}

// fixedWords 永遠回傳同一個單字
type fixedWords string

func (w fixedWords) Word() string { return string(w) }

// failingRepo 對指定房間的查詢回傳錯誤
type failingRepo struct {
	repository.RoomRepository
	roomID string
	err    error
}

func (r *failingRepo) FindByID(ctx context.Context, roomID string) (*models.Room, error) {
	if roomID == r.roomID {
		return nil, r.err
	}
	return r.RoomRepository.FindByID(ctx, roomID)
}

type testEnv struct {
	repo      repository.RoomRepository
	pub       *recordingPublisher
	scheduler *TurnScheduler
	rooms     *RoomService
	game      *GameService
}

const (
	testTurnDuration = 20 * time.Millisecond
	testTurnPause    = 5 * time.Millisecond
)

func newTestEnv(t *testing.T, opts ...func(*testEnv)) *testEnv {
	t.Helper()
	env := &testEnv{
		repo: repository.NewMemoryRoomRepository(),
		pub:  newRecordingPublisher(),
	}
	for _, opt := range opts {
		opt(env)
	}
	logger := zap.NewNop()
	env.scheduler = NewTurnScheduler(env.repo, fixedWords("apple"), env.pub, testTurnDuration, testTurnPause, logger)
	env.rooms = NewRoomService(env.repo, env.scheduler, 1, logger)
	env.game = NewGameService(env.rooms, env.scheduler, env.pub, NewAdminGate("", ""), logger)
	t.Cleanup(env.scheduler.CancelAll)
	return env
}

// status 取出 StatusEvent 的名稱、狀態與內容
func status(t *testing.T, evt models.OutboundEvent) models.StatusEvent {
	t.Helper()
	se, ok := evt.(models.StatusEvent)
	require.True(t, ok, "expected StatusEvent, got %T", evt)
	return se
}

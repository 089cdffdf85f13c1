package repository

import (
	"context"
	"sort"
	"sync"

	"pictionary/internal/models"
)

// memoryEntry 單一房間的鎖與資料，deleted 之後的操作一律視為房間不存在
type memoryEntry struct {
	mu      sync.Mutex
	room    *models.Room
	deleted bool
}

// memoryRoomRepository 以 sync.Map 存放房間，每個房間各自加鎖
type memoryRoomRepository struct {
	rooms sync.Map // roomID -> *memoryEntry
}

// NewMemoryRoomRepository 創建記憶體房間存儲，資料在程序重啟後消失
func NewMemoryRoomRepository() RoomRepository {
	return &memoryRoomRepository{}
}

func (r *memoryRoomRepository) Create(ctx context.Context, roomID string) (*models.Room, error) {
	entry := &memoryEntry{room: models.NewRoom(roomID)}
	for {
		actual, loaded := r.rooms.LoadOrStore(roomID, entry)
		if !loaded {
			return entry.room.Clone(), nil
		}
		existing := actual.(*memoryEntry)
		existing.mu.Lock()
		deleted := existing.deleted
		existing.mu.Unlock()
		if !deleted {
			return nil, models.ErrRoomExists
		}
		// 舊項目正在刪除中，清掉後重試
		r.rooms.CompareAndDelete(roomID, existing)
	}
}

func (r *memoryRoomRepository) FindByID(ctx context.Context, roomID string) (*models.Room, error) {
	var out *models.Room
	err := r.withRoom(roomID, func(e *memoryEntry) error {
		out = e.room.Clone()
		return nil
	})
	return out, err
}

func (r *memoryRoomRepository) FindAll(ctx context.Context) ([]*models.Room, error) {
	var rooms []*models.Room
	r.rooms.Range(func(_, value any) bool {
		e := value.(*memoryEntry)
		e.mu.Lock()
		if !e.deleted {
			rooms = append(rooms, e.room.Clone())
		}
		e.mu.Unlock()
		return true
	})
	sort.Slice(rooms, func(i, j int) bool { return rooms[i].ID < rooms[j].ID })
	return rooms, nil
}

func (r *memoryRoomRepository) AddMember(ctx context.Context, roomID string, member models.Member) (*models.Room, error) {
	var out *models.Room
	err := r.withRoom(roomID, func(e *memoryEntry) error {
		if _, err := applyAddMember(e.room, member); err != nil {
			return err
		}
		out = e.room.Clone()
		return nil
	})
	return out, err
}

func (r *memoryRoomRepository) RemoveMember(ctx context.Context, roomID, memberID string) (*models.Room, bool, error) {
	var out *models.Room
	var removed bool
	err := r.withRoom(roomID, func(e *memoryEntry) error {
		removed = applyRemoveMember(e.room, memberID)
		out = e.room.Clone()
		return nil
	})
	return out, removed, err
}

func (r *memoryRoomRepository) MarkStarted(ctx context.Context, roomID string) (*models.Room, bool, error) {
	var out *models.Room
	var changed bool
	err := r.withRoom(roomID, func(e *memoryEntry) error {
		changed = !e.room.HasStarted()
		e.room.Phase = models.RoomPhaseInProgress
		out = e.room.Clone()
		return nil
	})
	return out, changed, err
}

func (r *memoryRoomRepository) BeginTurn(ctx context.Context, roomID string, turn models.Turn) (*models.Room, error) {
	var out *models.Room
	err := r.withRoom(roomID, func(e *memoryEntry) error {
		if err := applyBeginTurn(e.room, turn); err != nil {
			return err
		}
		out = e.room.Clone()
		return nil
	})
	return out, err
}

func (r *memoryRoomRepository) ScoreGuess(ctx context.Context, roomID, memberID, guess string, inc int) (models.Member, bool, error) {
	var member models.Member
	var matched bool
	err := r.withRoom(roomID, func(e *memoryEntry) error {
		var err error
		member, matched, err = applyGuess(e.room, memberID, guess, inc)
		return err
	})
	return member, matched, err
}

func (r *memoryRoomRepository) DeleteIfEmpty(ctx context.Context, roomID string) (bool, error) {
	var deleted bool
	err := r.withRoom(roomID, func(e *memoryEntry) error {
		if !e.room.IsEmpty() {
			return nil
		}
		e.deleted = true
		r.rooms.CompareAndDelete(roomID, e)
		deleted = true
		return nil
	})
	return deleted, err
}

func (r *memoryRoomRepository) Delete(ctx context.Context, roomID string) error {
	return r.withRoom(roomID, func(e *memoryEntry) error {
		e.deleted = true
		r.rooms.CompareAndDelete(roomID, e)
		return nil
	})
}

func (r *memoryRoomRepository) DeleteAll(ctx context.Context) error {
	r.rooms.Range(func(key, value any) bool {
		e := value.(*memoryEntry)
		e.mu.Lock()
		e.deleted = true
		r.rooms.CompareAndDelete(key, e)
		e.mu.Unlock()
		return true
	})
	return nil
}

// withRoom 鎖定單一房間並執行 fn
func (r *memoryRoomRepository) withRoom(roomID string, fn func(e *memoryEntry) error) error {
	value, ok := r.rooms.Load(roomID)
	if !ok {
		return models.ErrRoomNotFound
	}
	e := value.(*memoryEntry)
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.deleted {
		return models.ErrRoomNotFound
	}
	return fn(e)
}

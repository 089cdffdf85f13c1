package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/go-redis/redis/v8"

	"pictionary/internal/models"
)

// 樂觀交易衝突時的最大重試次數
const redisMaxRetries = 128

// roomDocument 是房間在 Redis 中的 JSON 文件
type roomDocument struct {
	RoomID        string          `json:"roomID"`
	Users         []models.Member `json:"users"`
	Word          *string         `json:"word"`
	ArtistID      *string         `json:"artistId"`
	TurnStartedAt *time.Time      `json:"turnStartedAt,omitempty"`
	HasStarted    bool            `json:"hasStarted"`
}

func newRoomDocument(room *models.Room) roomDocument {
	doc := roomDocument{
		RoomID:     room.ID,
		Users:      room.Members,
		HasStarted: room.HasStarted(),
	}
	if doc.Users == nil {
		doc.Users = []models.Member{}
	}
	if room.Turn != nil {
		word, artist, started := room.Turn.Word, room.Turn.ArtistID, room.Turn.StartedAt
		doc.Word = &word
		doc.ArtistID = &artist
		doc.TurnStartedAt = &started
	}
	return doc
}

func (d roomDocument) toDomain() *models.Room {
	room := models.NewRoom(d.RoomID)
	if d.HasStarted {
		room.Phase = models.RoomPhaseInProgress
	}
	room.Members = append(room.Members, d.Users...)
	if d.Word != nil && d.ArtistID != nil {
		room.Turn = &models.Turn{ArtistID: *d.ArtistID, Word: *d.Word}
		if d.TurnStartedAt != nil {
			room.Turn.StartedAt = *d.TurnStartedAt
		}
	}
	return room
}

// redisRoomRepository 每個房間存成一個 key，變更以 WATCH/MULTI 樂觀交易完成
type redisRoomRepository struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisRoomRepository 創建 Redis 房間存儲，prefix 用來隔離不同環境的 key
func NewRedisRoomRepository(client redis.UniversalClient, prefix string) RoomRepository {
	return &redisRoomRepository{client: client, prefix: prefix}
}

func (r *redisRoomRepository) key(roomID string) string {
	return r.prefix + "room:" + roomID
}

func (r *redisRoomRepository) Create(ctx context.Context, roomID string) (*models.Room, error) {
	room := models.NewRoom(roomID)
	data, err := json.Marshal(newRoomDocument(room))
	if err != nil {
		return nil, fmt.Errorf("encode room %s: %w", roomID, err)
	}
	ok, err := r.client.SetNX(ctx, r.key(roomID), data, 0).Result()
	if err != nil {
		return nil, fmt.Errorf("create room %s: %w", roomID, err)
	}
	if !ok {
		return nil, models.ErrRoomExists
	}
	return room, nil
}

func (r *redisRoomRepository) FindByID(ctx context.Context, roomID string) (*models.Room, error) {
	data, err := r.client.Get(ctx, r.key(roomID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, models.ErrRoomNotFound
		}
		return nil, fmt.Errorf("find room %s: %w", roomID, err)
	}
	return decodeRoom(roomID, data)
}

func (r *redisRoomRepository) FindAll(ctx context.Context) ([]*models.Room, error) {
	keys, err := r.scanKeys(ctx)
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return []*models.Room{}, nil
	}
	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("load rooms: %w", err)
	}
	rooms := make([]*models.Room, 0, len(values))
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			// 在 SCAN 與 MGET 之間被刪除
			continue
		}
		room, err := decodeRoom(keys[i], []byte(s))
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}
	sort.Slice(rooms, func(i, j int) bool { return rooms[i].ID < rooms[j].ID })
	return rooms, nil
}

func (r *redisRoomRepository) AddMember(ctx context.Context, roomID string, member models.Member) (*models.Room, error) {
	return r.mutate(ctx, roomID, func(room *models.Room) (bool, error) {
		return applyAddMember(room, member)
	})
}

func (r *redisRoomRepository) RemoveMember(ctx context.Context, roomID, memberID string) (*models.Room, bool, error) {
	var removed bool
	room, err := r.mutate(ctx, roomID, func(room *models.Room) (bool, error) {
		removed = applyRemoveMember(room, memberID)
		return removed, nil
	})
	return room, removed, err
}

func (r *redisRoomRepository) MarkStarted(ctx context.Context, roomID string) (*models.Room, bool, error) {
	var changed bool
	room, err := r.mutate(ctx, roomID, func(room *models.Room) (bool, error) {
		changed = !room.HasStarted()
		room.Phase = models.RoomPhaseInProgress
		return changed, nil
	})
	return room, changed, err
}

func (r *redisRoomRepository) BeginTurn(ctx context.Context, roomID string, turn models.Turn) (*models.Room, error) {
	return r.mutate(ctx, roomID, func(room *models.Room) (bool, error) {
		return true, applyBeginTurn(room, turn)
	})
}

func (r *redisRoomRepository) ScoreGuess(ctx context.Context, roomID, memberID, guess string, inc int) (models.Member, bool, error) {
	var member models.Member
	var matched bool
	_, err := r.mutate(ctx, roomID, func(room *models.Room) (bool, error) {
		var err error
		member, matched, err = applyGuess(room, memberID, guess, inc)
		return matched, err
	})
	return member, matched, err
}

func (r *redisRoomRepository) DeleteIfEmpty(ctx context.Context, roomID string) (bool, error) {
	key := r.key(roomID)
	var deleted bool
	err := r.watch(ctx, key, func(tx *redis.Tx) error {
		deleted = false
		room, err := r.load(ctx, tx, roomID)
		if err != nil {
			return err
		}
		if !room.IsEmpty() {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			return nil
		})
		if err == nil {
			deleted = true
		}
		return err
	})
	return deleted, err
}

func (r *redisRoomRepository) Delete(ctx context.Context, roomID string) error {
	n, err := r.client.Del(ctx, r.key(roomID)).Result()
	if err != nil {
		return fmt.Errorf("delete room %s: %w", roomID, err)
	}
	if n == 0 {
		return models.ErrRoomNotFound
	}
	return nil
}

func (r *redisRoomRepository) DeleteAll(ctx context.Context) error {
	keys, err := r.scanKeys(ctx)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("delete all rooms: %w", err)
	}
	return nil
}

// mutate 以樂觀交易讀取、修改並寫回房間；fn 回傳 false 代表不需寫回
func (r *redisRoomRepository) mutate(ctx context.Context, roomID string, fn func(room *models.Room) (bool, error)) (*models.Room, error) {
	key := r.key(roomID)
	var out *models.Room
	err := r.watch(ctx, key, func(tx *redis.Tx) error {
		room, err := r.load(ctx, tx, roomID)
		if err != nil {
			return err
		}
		dirty, err := fn(room)
		if err != nil {
			return err
		}
		if dirty {
			data, err := json.Marshal(newRoomDocument(room))
			if err != nil {
				return fmt.Errorf("encode room %s: %w", roomID, err)
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, data, 0)
				return nil
			})
			if err != nil {
				return err
			}
		}
		out = room
		return nil
	})
	return out, err
}

// watch 在 key 被其他客戶端修改時重試
func (r *redisRoomRepository) watch(ctx context.Context, key string, fn func(tx *redis.Tx) error) error {
	for i := 0; i < redisMaxRetries; i++ {
		err := r.client.Watch(ctx, fn, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("update %s: too many concurrent writers: %w", key, redis.TxFailedErr)
}

func (r *redisRoomRepository) load(ctx context.Context, tx *redis.Tx, roomID string) (*models.Room, error) {
	data, err := tx.Get(ctx, r.key(roomID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, models.ErrRoomNotFound
		}
		return nil, fmt.Errorf("load room %s: %w", roomID, err)
	}
	return decodeRoom(roomID, data)
}

func (r *redisRoomRepository) scanKeys(ctx context.Context) ([]string, error) {
	var keys []string
	iter := r.client.Scan(ctx, 0, r.prefix+"room:*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan rooms: %w", err)
	}
	return keys, nil
}

func decodeRoom(key string, data []byte) (*models.Room, error) {
	var doc roomDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode room %s: %w", key, err)
	}
	return doc.toDomain(), nil
}

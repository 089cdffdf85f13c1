package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"pictionary/internal/models"
	dbmodels "pictionary/internal/repository/models"
	"pictionary/internal/storage"
)

// RoomRepository 房間存儲的抽象。
// 每個方法對單一房間文件都是原子操作，實作不得跨房間加鎖。
type RoomRepository interface {
	// Create 建立空的 OPEN 房間，已存在時回傳 models.ErrRoomExists
	Create(ctx context.Context, roomID string) (*models.Room, error)
	FindByID(ctx context.Context, roomID string) (*models.Room, error)
	FindAll(ctx context.Context) ([]*models.Room, error)

	// AddMember 只在房間為 OPEN 時加入玩家；同一連線重複加入不會新增
	AddMember(ctx context.Context, roomID string, member models.Member) (*models.Room, error)
	// RemoveMember 移除玩家並回傳是否真的移除；玩家不存在時不視為錯誤
	RemoveMember(ctx context.Context, roomID, memberID string) (*models.Room, bool, error)
	// MarkStarted 將房間設為 IN_PROGRESS，回傳此次呼叫是否真的改變了狀態
	MarkStarted(ctx context.Context, roomID string) (*models.Room, bool, error)
	// BeginTurn 設定目前回合並將畫家的回合數加一；畫家已離開時回傳 models.ErrMemberNotFound
	BeginTurn(ctx context.Context, roomID string, turn models.Turn) (*models.Room, error)
	// ScoreGuess 與目前單字比對，猜中時分數加 inc，回傳玩家最新狀態
	ScoreGuess(ctx context.Context, roomID, memberID, guess string, inc int) (models.Member, bool, error)

	// DeleteIfEmpty 僅在房間沒有玩家時刪除
	DeleteIfEmpty(ctx context.Context, roomID string) (bool, error)
	Delete(ctx context.Context, roomID string) error
	DeleteAll(ctx context.Context) error
}

// roomRepository 以 PostgreSQL 實作，每次變更都在交易內以 SELECT ... FOR UPDATE 鎖住房間列
type roomRepository struct {
	db *storage.PostgresDB
}

func NewRoomRepository(db *storage.PostgresDB) RoomRepository {
	return &roomRepository{db: db}
}

func (r *roomRepository) Create(ctx context.Context, roomID string) (*models.Room, error) {
	rec := dbmodels.Room{RoomID: roomID}
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&rec)
	if res.Error != nil {
		return nil, fmt.Errorf("create room %s: %w", roomID, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, models.ErrRoomExists
	}
	return models.NewRoom(roomID), nil
}

func (r *roomRepository) FindByID(ctx context.Context, roomID string) (*models.Room, error) {
	var rec dbmodels.Room
	err := r.db.WithContext(ctx).Preload("Members", orderMembers).First(&rec, "room_id = ?", roomID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrRoomNotFound
		}
		return nil, fmt.Errorf("find room %s: %w", roomID, err)
	}
	return toDomainRoom(&rec), nil
}

// FindAll 查詢所有房間
func (r *roomRepository) FindAll(ctx context.Context) ([]*models.Room, error) {
	var recs []dbmodels.Room
	if err := r.db.WithContext(ctx).Preload("Members", orderMembers).Order("room_id ASC").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("find rooms: %w", err)
	}
	rooms := make([]*models.Room, 0, len(recs))
	for i := range recs {
		rooms = append(rooms, toDomainRoom(&recs[i]))
	}
	return rooms, nil
}

func (r *roomRepository) AddMember(ctx context.Context, roomID string, member models.Member) (*models.Room, error) {
	return r.mutate(ctx, roomID, func(tx *gorm.DB, room *models.Room) error {
		added, err := applyAddMember(room, member)
		if err != nil || !added {
			return err
		}
		return tx.Create(&dbmodels.Member{
			RoomID:   roomID,
			MemberID: member.ID,
			Username: member.Username,
		}).Error
	})
}

func (r *roomRepository) RemoveMember(ctx context.Context, roomID, memberID string) (*models.Room, bool, error) {
	var removed bool
	room, err := r.mutate(ctx, roomID, func(tx *gorm.DB, room *models.Room) error {
		if removed = applyRemoveMember(room, memberID); !removed {
			return nil
		}
		return tx.Where("room_id = ? AND member_id = ?", roomID, memberID).Delete(&dbmodels.Member{}).Error
	})
	return room, removed, err
}

func (r *roomRepository) MarkStarted(ctx context.Context, roomID string) (*models.Room, bool, error) {
	var changed bool
	room, err := r.mutate(ctx, roomID, func(tx *gorm.DB, room *models.Room) error {
		if room.HasStarted() {
			return nil
		}
		changed = true
		room.Phase = models.RoomPhaseInProgress
		return tx.Model(&dbmodels.Room{}).Where("room_id = ?", roomID).Update("has_started", true).Error
	})
	return room, changed, err
}

func (r *roomRepository) BeginTurn(ctx context.Context, roomID string, turn models.Turn) (*models.Room, error) {
	return r.mutate(ctx, roomID, func(tx *gorm.DB, room *models.Room) error {
		if err := applyBeginTurn(room, turn); err != nil {
			return err
		}
		err := tx.Model(&dbmodels.Room{}).Where("room_id = ?", roomID).Updates(map[string]any{
			"word":            room.Turn.Word,
			"artist_id":       room.Turn.ArtistID,
			"turn_started_at": room.Turn.StartedAt,
		}).Error
		if err != nil {
			return err
		}
		return tx.Model(&dbmodels.Member{}).
			Where("room_id = ? AND member_id = ?", roomID, turn.ArtistID).
			UpdateColumn("turns", gorm.Expr("turns + ?", 1)).Error
	})
}

func (r *roomRepository) ScoreGuess(ctx context.Context, roomID, memberID, guess string, inc int) (models.Member, bool, error) {
	var member models.Member
	var matched bool
	_, err := r.mutate(ctx, roomID, func(tx *gorm.DB, room *models.Room) error {
		var err error
		member, matched, err = applyGuess(room, memberID, guess, inc)
		if err != nil || !matched {
			return err
		}
		return tx.Model(&dbmodels.Member{}).
			Where("room_id = ? AND member_id = ?", roomID, memberID).
			UpdateColumn("score", gorm.Expr("score + ?", inc)).Error
	})
	return member, matched, err
}

func (r *roomRepository) DeleteIfEmpty(ctx context.Context, roomID string) (bool, error) {
	var deleted bool
	_, err := r.mutate(ctx, roomID, func(tx *gorm.DB, room *models.Room) error {
		if !room.IsEmpty() {
			return nil
		}
		deleted = true
		return tx.Delete(&dbmodels.Room{}, "room_id = ?", roomID).Error
	})
	return deleted, err
}

func (r *roomRepository) Delete(ctx context.Context, roomID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("room_id = ?", roomID).Delete(&dbmodels.Member{}).Error; err != nil {
			return fmt.Errorf("delete members of %s: %w", roomID, err)
		}
		res := tx.Delete(&dbmodels.Room{}, "room_id = ?", roomID)
		if res.Error != nil {
			return fmt.Errorf("delete room %s: %w", roomID, res.Error)
		}
		if res.RowsAffected == 0 {
			return models.ErrRoomNotFound
		}
		return nil
	})
}

// DeleteAll 清空所有房間，只供管理員重置使用
func (r *roomRepository) DeleteAll(ctx context.Context) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		global := tx.Session(&gorm.Session{AllowGlobalUpdate: true})
		if err := global.Delete(&dbmodels.Member{}).Error; err != nil {
			return fmt.Errorf("delete all members: %w", err)
		}
		if err := global.Delete(&dbmodels.Room{}).Error; err != nil {
			return fmt.Errorf("delete all rooms: %w", err)
		}
		return nil
	})
}

// mutate 在交易中鎖定房間列，轉成領域模型後交給 fn 修改
func (r *roomRepository) mutate(ctx context.Context, roomID string, fn func(tx *gorm.DB, room *models.Room) error) (*models.Room, error) {
	var out *models.Room
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec dbmodels.Room
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Preload("Members", orderMembers).
			First(&rec, "room_id = ?", roomID).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.ErrRoomNotFound
			}
			return fmt.Errorf("lock room %s: %w", roomID, err)
		}
		room := toDomainRoom(&rec)
		if err := fn(tx, room); err != nil {
			return err
		}
		out = room
		return nil
	})
	return out, err
}

func orderMembers(db *gorm.DB) *gorm.DB {
	return db.Order("id ASC")
}

func toDomainRoom(rec *dbmodels.Room) *models.Room {
	room := models.NewRoom(rec.RoomID)
	if rec.HasStarted {
		room.Phase = models.RoomPhaseInProgress
	}
	for _, m := range rec.Members {
		room.Members = append(room.Members, models.Member{
			ID:       m.MemberID,
			Username: m.Username,
			Score:    m.Score,
			Turns:    m.Turns,
		})
	}
	if rec.Word != nil && rec.ArtistID != nil {
		room.Turn = &models.Turn{ArtistID: *rec.ArtistID, Word: *rec.Word}
		if rec.TurnStartedAt != nil {
			room.Turn.StartedAt = *rec.TurnStartedAt
		}
	}
	return room
}

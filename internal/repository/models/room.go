package models

import (
	"time"
)

// Room 對應 rooms 資料表，一列代表一個房間文件
type Room struct {
	RoomID        string  `gorm:"primaryKey;size:64"`
	Word          *string `gorm:"size:128"`
	ArtistID      *string `gorm:"size:64"`
	TurnStartedAt *time.Time
	HasStarted    bool `gorm:"not null"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
	Members       []Member `gorm:"foreignKey:RoomID;references:RoomID;constraint:OnDelete:CASCADE"`
}

func (Room) TableName() string { return "rooms" }

// Member 對應 room_members 資料表，ID 遞增順序即為加入順序
type Member struct {
	ID        uint   `gorm:"primaryKey"`
	RoomID    string `gorm:"size:64;not null;uniqueIndex:idx_room_member"`
	MemberID  string `gorm:"size:64;not null;uniqueIndex:idx_room_member"`
	Username  string `gorm:"not null"`
	Score     int    `gorm:"not null"`
	Turns     int    `gorm:"not null"`
	CreatedAt time.Time
}

func (Member) TableName() string { return "room_members" }

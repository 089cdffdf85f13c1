package models

import (
	"strings"
	"time"
)

// RoomPhase 定義房間狀態的類型
type RoomPhase string

const (
	RoomPhaseOpen       RoomPhase = "OPEN"        // 等待玩家加入，尚未開始
	RoomPhaseInProgress RoomPhase = "IN_PROGRESS" // 遊戲進行中，回合輪替
)

// Room 表示一個遊戲房間
type Room struct {
	ID      string
	Members []Member
	Phase   RoomPhase
	Turn    *Turn // 尚未開始任何回合時為 nil
}

// Member 表示房間內的一位玩家，以連線 ID 識別
type Member struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Score    int    `json:"score"`
	Turns    int    `json:"turns"`
}

// Turn 表示目前進行中的回合
type Turn struct {
	ArtistID  string
	Word      string
	StartedAt time.Time
}

// NewRoom 創建一個空的 OPEN 房間
func NewRoom(id string) *Room {
	return &Room{
		ID:      id,
		Members: []Member{},
		Phase:   RoomPhaseOpen,
	}
}

// HasStarted 房間是否已開始遊戲
func (r *Room) HasStarted() bool {
	return r.Phase == RoomPhaseInProgress
}

// IsEmpty 房間內是否已經沒有玩家
func (r *Room) IsEmpty() bool {
	return len(r.Members) == 0
}

// MemberIndex 回傳玩家在列表中的位置，找不到時回傳 -1
func (r *Room) MemberIndex(memberID string) int {
	for i := range r.Members {
		if r.Members[i].ID == memberID {
			return i
		}
	}
	return -1
}

// FindMember 依連線 ID 查找玩家
func (r *Room) FindMember(memberID string) (Member, bool) {
	if i := r.MemberIndex(memberID); i >= 0 {
		return r.Members[i], true
	}
	return Member{}, false
}

// NextArtist 選出下一位畫家：累計回合數最少者優先，相同時取列表中較前者
func (r *Room) NextArtist() (Member, bool) {
	if r.IsEmpty() {
		return Member{}, false
	}
	next := r.Members[0]
	for _, m := range r.Members[1:] {
		if m.Turns < next.Turns {
			next = m
		}
	}
	return next, true
}

// Clone 深拷貝房間，避免呼叫端修改到存儲內部的資料
func (r *Room) Clone() *Room {
	c := &Room{
		ID:      r.ID,
		Phase:   r.Phase,
		Members: make([]Member, len(r.Members)),
	}
	copy(c.Members, r.Members)
	if r.Turn != nil {
		t := *r.Turn
		c.Turn = &t
	}
	return c
}

// MatchesWord 不分大小寫的完全比對
func MatchesWord(word, guess string) bool {
	return strings.EqualFold(word, guess)
}

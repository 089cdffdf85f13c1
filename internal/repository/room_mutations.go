package repository

import (
	"time"

	"pictionary/internal/models"
)

// applyBeginTurn 在已鎖定的房間上套用新回合
func applyBeginTurn(room *models.Room, turn models.Turn) error {
	i := room.MemberIndex(turn.ArtistID)
	if i < 0 {
		return models.ErrMemberNotFound
	}
	room.Members[i].Turns++
	if turn.StartedAt.IsZero() {
		turn.StartedAt = time.Now()
	}
	room.Turn = &turn
	return nil
}

// applyGuess 在已鎖定的房間上比對並計分
func applyGuess(room *models.Room, memberID, guess string, inc int) (models.Member, bool, error) {
	i := room.MemberIndex(memberID)
	if i < 0 {
		return models.Member{}, false, models.ErrMemberNotFound
	}
	if room.Turn == nil || room.Turn.Word == "" {
		return room.Members[i], false, models.ErrNoActiveWord
	}
	if !models.MatchesWord(room.Turn.Word, guess) {
		return room.Members[i], false, nil
	}
	room.Members[i].Score += inc
	return room.Members[i], true, nil
}

// applyAddMember 在已鎖定的房間上加入玩家，回傳是否有變更
func applyAddMember(room *models.Room, member models.Member) (bool, error) {
	if room.HasStarted() {
		return false, models.ErrGameStarted
	}
	if room.MemberIndex(member.ID) >= 0 {
		return false, nil
	}
	member.Score = 0
	member.Turns = 0
	room.Members = append(room.Members, member)
	return true, nil
}

// applyRemoveMember 在已鎖定的房間上移除玩家，回傳是否有變更
func applyRemoveMember(room *models.Room, memberID string) bool {
	i := room.MemberIndex(memberID)
	if i < 0 {
		return false
	}
	room.Members = append(room.Members[:i], room.Members[i+1:]...)
	return true
}

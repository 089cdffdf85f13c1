package repository

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pictionary/internal/models"
)

// runRoomRepositoryContract 所有 RoomRepository 實作都必須通過的行為測試
func runRoomRepositoryContract(t *testing.T, newRepo func(t *testing.T) RoomRepository) {
	ctx := context.Background()

	t.Run("create and find", func(t *testing.T) {
		repo := newRepo(t)
		room, err := repo.Create(ctx, "r1")
		require.NoError(t, err)
		assert.Equal(t, models.RoomPhaseOpen, room.Phase)
		assert.Empty(t, room.Members)

		_, err = repo.Create(ctx, "r1")
		assert.ErrorIs(t, err, models.ErrRoomExists)

		found, err := repo.FindByID(ctx, "r1")
		require.NoError(t, err)
		assert.Equal(t, "r1", found.ID)
		assert.Nil(t, found.Turn)

		_, err = repo.FindByID(ctx, "missing")
		assert.ErrorIs(t, err, models.ErrRoomNotFound)
	})

	t.Run("members keep join order", func(t *testing.T) {
		repo := newRepo(t)
		_, err := repo.Create(ctx, "r1")
		require.NoError(t, err)

		for _, id := range []string{"c1", "c2", "c3"} {
			_, err := repo.AddMember(ctx, "r1", models.Member{ID: id, Username: "user-" + id, Score: 9, Turns: 9})
			require.NoError(t, err)
		}
		// 重複加入不會新增
		room, err := repo.AddMember(ctx, "r1", models.Member{ID: "c2", Username: "again"})
		require.NoError(t, err)
		require.Len(t, room.Members, 3)
		assert.Equal(t, "c1", room.Members[0].ID)
		assert.Equal(t, "c3", room.Members[2].ID)
		assert.Equal(t, "user-c2", room.Members[1].Username)
		assert.Zero(t, room.Members[0].Score)
		assert.Zero(t, room.Members[0].Turns)

		room, removed, err := repo.RemoveMember(ctx, "r1", "c2")
		require.NoError(t, err)
		assert.True(t, removed)
		assert.Len(t, room.Members, 2)

		_, removed, err = repo.RemoveMember(ctx, "r1", "c2")
		require.NoError(t, err)
		assert.False(t, removed)

		_, err = repo.AddMember(ctx, "missing", models.Member{ID: "c1"})
		assert.ErrorIs(t, err, models.ErrRoomNotFound)
	})

	t.Run("join rejected after start", func(t *testing.T) {
		repo := newRepo(t)
		_, err := repo.Create(ctx, "r1")
		require.NoError(t, err)

		room, changed, err := repo.MarkStarted(ctx, "r1")
		require.NoError(t, err)
		assert.True(t, changed)
		assert.True(t, room.HasStarted())

		_, changed, err = repo.MarkStarted(ctx, "r1")
		require.NoError(t, err)
		assert.False(t, changed)

		_, err = repo.AddMember(ctx, "r1", models.Member{ID: "c1"})
		assert.ErrorIs(t, err, models.ErrGameStarted)
	})

	t.Run("begin turn and score guesses", func(t *testing.T) {
		repo := newRepo(t)
		_, err := repo.Create(ctx, "r1")
		require.NoError(t, err)
		_, err = repo.AddMember(ctx, "r1", models.Member{ID: "c1", Username: "alice"})
		require.NoError(t, err)
		_, err = repo.AddMember(ctx, "r1", models.Member{ID: "c2", Username: "bob"})
		require.NoError(t, err)

		_, matched, err := repo.ScoreGuess(ctx, "r1", "c2", "cat", 1)
		assert.ErrorIs(t, err, models.ErrNoActiveWord)
		assert.False(t, matched)

		room, err := repo.BeginTurn(ctx, "r1", models.Turn{ArtistID: "c1", Word: "Cat"})
		require.NoError(t, err)
		require.NotNil(t, room.Turn)
		assert.Equal(t, "c1", room.Turn.ArtistID)
		assert.False(t, room.Turn.StartedAt.IsZero())
		assert.Equal(t, 1, room.Members[0].Turns)

		member, matched, err := repo.ScoreGuess(ctx, "r1", "c2", "dog", 1)
		require.NoError(t, err)
		assert.False(t, matched)
		assert.Equal(t, 0, member.Score)

		member, matched, err = repo.ScoreGuess(ctx, "r1", "c2", "cAT", 1)
		require.NoError(t, err)
		assert.True(t, matched)
		assert.Equal(t, 1, member.Score)

		_, _, err = repo.ScoreGuess(ctx, "r1", "ghost", "cat", 1)
		assert.ErrorIs(t, err, models.ErrMemberNotFound)

		_, err = repo.BeginTurn(ctx, "r1", models.Turn{ArtistID: "ghost", Word: "dog"})
		assert.ErrorIs(t, err, models.ErrMemberNotFound)

		found, err := repo.FindByID(ctx, "r1")
		require.NoError(t, err)
		assert.Equal(t, "Cat", found.Turn.Word)
		assert.Equal(t, 1, found.Members[1].Score)
		assert.Equal(t, 1, found.Members[0].Turns)
	})

	t.Run("delete if empty", func(t *testing.T) {
		repo := newRepo(t)
		_, err := repo.Create(ctx, "r1")
		require.NoError(t, err)
		_, err = repo.AddMember(ctx, "r1", models.Member{ID: "c1"})
		require.NoError(t, err)

		deleted, err := repo.DeleteIfEmpty(ctx, "r1")
		require.NoError(t, err)
		assert.False(t, deleted)

		_, _, err = repo.RemoveMember(ctx, "r1", "c1")
		require.NoError(t, err)
		deleted, err = repo.DeleteIfEmpty(ctx, "r1")
		require.NoError(t, err)
		assert.True(t, deleted)

		_, err = repo.FindByID(ctx, "r1")
		assert.ErrorIs(t, err, models.ErrRoomNotFound)

		// 刪除後可以重新建立同名房間
		_, err = repo.Create(ctx, "r1")
		assert.NoError(t, err)
	})

	t.Run("delete and delete all", func(t *testing.T) {
		repo := newRepo(t)
		for _, id := range []string{"b", "a", "c"} {
			_, err := repo.Create(ctx, id)
			require.NoError(t, err)
		}
		rooms, err := repo.FindAll(ctx)
		require.NoError(t, err)
		require.Len(t, rooms, 3)
		assert.Equal(t, "a", rooms[0].ID)

		require.NoError(t, repo.Delete(ctx, "a"))
		assert.ErrorIs(t, repo.Delete(ctx, "a"), models.ErrRoomNotFound)

		require.NoError(t, repo.DeleteAll(ctx))
		rooms, err = repo.FindAll(ctx)
		require.NoError(t, err)
		assert.Empty(t, rooms)
	})

	t.Run("concurrent guesses are all counted", func(t *testing.T) {
		repo := newRepo(t)
		_, err := repo.Create(ctx, "r1")
		require.NoError(t, err)
		const players = 8
		for i := 0; i < players; i++ {
			_, err := repo.AddMember(ctx, "r1", models.Member{ID: fmt.Sprintf("c%d", i)})
			require.NoError(t, err)
		}
		_, err = repo.BeginTurn(ctx, "r1", models.Turn{ArtistID: "c0", Word: "cat"})
		require.NoError(t, err)

		const guesses = 5
		var wg sync.WaitGroup
		for i := 1; i < players; i++ {
			for j := 0; j < guesses; j++ {
				wg.Add(1)
				go func(id string) {
					defer wg.Done()
					_, _, err := repo.ScoreGuess(ctx, "r1", id, "cat", 1)
					assert.NoError(t, err)
				}(fmt.Sprintf("c%d", i))
			}
		}
		wg.Wait()

		room, err := repo.FindByID(ctx, "r1")
		require.NoError(t, err)
		for _, m := range room.Members[1:] {
			assert.Equal(t, guesses, m.Score, m.ID)
		}
	})

	t.Run("concurrent joins and leaves", func(t *testing.T) {
		repo := newRepo(t)
		_, err := repo.Create(ctx, "r1")
		require.NoError(t, err)

		const n = 20
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(id string) {
				defer wg.Done()
				_, err := repo.AddMember(ctx, "r1", models.Member{ID: id})
				assert.NoError(t, err)
			}(fmt.Sprintf("c%d", i))
		}
		wg.Wait()

		for i := 0; i < n; i += 2 {
			wg.Add(1)
			go func(id string) {
				defer wg.Done()
				_, _, err := repo.RemoveMember(ctx, "r1", id)
				assert.NoError(t, err)
			}(fmt.Sprintf("c%d", i))
		}
		wg.Wait()

		room, err := repo.FindByID(ctx, "r1")
		require.NoError(t, err)
		assert.Len(t, room.Members, n/2)
	})
}

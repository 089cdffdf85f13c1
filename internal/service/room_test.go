package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pictionary/internal/models"
	"pictionary/internal/repository"
)

func TestRoomService_CreateIsExactlyOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make([]error, 10)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = env.rooms.Create(ctx, "R1", "alice")
		}(i)
	}
	wg.Wait()

	var ok, conflicts int
	for _, err := range results {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, models.ErrRoomExists)
		conflicts++
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, len(results)-1, conflicts)
}

func TestRoomService_JoinStartedRoomFails(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.rooms.Create(ctx, "R1", "alice")
	require.NoError(t, err)
	_, err = env.rooms.Join(ctx, "R1", "c1", "alice")
	require.NoError(t, err)

	_, changed, err := env.rooms.Start(ctx, "R1")
	require.NoError(t, err)
	assert.True(t, changed)

	_, err = env.rooms.Join(ctx, "R1", "c2", "bob")
	assert.ErrorIs(t, err, models.ErrGameStarted)
	// 已經在房間內的連線也一樣
	_, err = env.rooms.Join(ctx, "R1", "c1", "alice")
	assert.ErrorIs(t, err, models.ErrGameStarted)

	_, err = env.rooms.Join(ctx, "nope", "c3", "carol")
	assert.ErrorIs(t, err, models.ErrRoomNotFound)
}

func TestRoomService_LeaveDeletesEmptyRoom(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.rooms.Create(ctx, "R1", "alice")
	require.NoError(t, err)
	_, err = env.rooms.Join(ctx, "R1", "c1", "alice")
	require.NoError(t, err)
	members, err := env.rooms.Join(ctx, "R1", "c2", "bob")
	require.NoError(t, err)
	require.Len(t, members, 2)

	room, deleted, err := env.rooms.Leave(ctx, "R1", "c1")
	require.NoError(t, err)
	assert.False(t, deleted)
	require.Len(t, room.Members, 1)
	assert.Equal(t, "c2", room.Members[0].ID)

	room, deleted, err = env.rooms.Leave(ctx, "R1", "c2")
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.Nil(t, room)

	_, err = env.rooms.Exists(ctx, "R1")
	assert.ErrorIs(t, err, models.ErrRoomNotFound)

	// 沒有殘留的房間文件
	_, err = env.rooms.Create(ctx, "R1", "carol")
	assert.NoError(t, err)
}

func TestRoomService_LeaveBeforeCreatorJoinsKeepsRoom(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.rooms.Create(ctx, "R1", "alice")
	require.NoError(t, err)

	_, deleted, err := env.rooms.Leave(ctx, "R1", "stranger")
	require.NoError(t, err)
	assert.False(t, deleted)

	_, err = env.rooms.Exists(ctx, "R1")
	assert.NoError(t, err)
}

func TestRoomService_LeaveCancelsTimer(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.rooms.Create(ctx, "R1", "alice")
	require.NoError(t, err)
	_, err = env.rooms.Join(ctx, "R1", "c1", "alice")
	require.NoError(t, err)
	_, _, err = env.rooms.Start(ctx, "R1")
	require.NoError(t, err)
	require.True(t, env.scheduler.Arm("R1"))

	_, deleted, err := env.rooms.Leave(ctx, "R1", "c1")
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.False(t, env.scheduler.Armed("R1"))
}

func TestRoomService_RecordGuess(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.rooms.Create(ctx, "R1", "alice")
	require.NoError(t, err)
	_, err = env.rooms.Join(ctx, "R1", "c1", "alice")
	require.NoError(t, err)
	_, err = env.rooms.Join(ctx, "R1", "c2", "bob")
	require.NoError(t, err)

	_, err = env.rooms.RecordGuess(ctx, "R1", "c2", "apple")
	assert.ErrorIs(t, err, models.ErrNoActiveWord)

	_, err = env.repo.BeginTurn(ctx, "R1", models.Turn{ArtistID: "c1", Word: "apple"})
	require.NoError(t, err)

	tests := []struct {
		guess   string
		correct bool
		score   int
	}{
		{"Apple", true, 1},
		{"app", false, 1},
		{"APPLE", true, 2},
		{"apple ", false, 2},
	}
	for _, tt := range tests {
		t.Run(tt.guess, func(t *testing.T) {
			res, err := env.rooms.RecordGuess(ctx, "R1", "c2", tt.guess)
			require.NoError(t, err)
			assert.Equal(t, tt.correct, res.Correct)
			assert.Equal(t, tt.score, res.Score)
		})
	}

	_, err = env.rooms.RecordGuess(ctx, "R1", "ghost", "apple")
	assert.ErrorIs(t, err, models.ErrMemberNotFound)
	_, err = env.rooms.RecordGuess(ctx, "R2", "c2", "apple")
	assert.ErrorIs(t, err, models.ErrRoomNotFound)
}

func TestRoomService_ConcurrentGuessesNoLostUpdate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.rooms.Create(ctx, "R1", "alice")
	require.NoError(t, err)
	for _, id := range []string{"c1", "c2", "c3"} {
		_, err = env.rooms.Join(ctx, "R1", id, id)
		require.NoError(t, err)
	}
	_, err = env.repo.BeginTurn(ctx, "R1", models.Turn{ArtistID: "c1", Word: "apple"})
	require.NoError(t, err)

	const rounds = 50
	var wg sync.WaitGroup
	for _, id := range []string{"c2", "c3"} {
		for i := 0; i < rounds; i++ {
			wg.Add(1)
			go func(id string) {
				defer wg.Done()
				res, err := env.rooms.RecordGuess(ctx, "R1", id, "apple")
				assert.NoError(t, err)
				assert.True(t, res.Correct)
			}(id)
		}
	}
	wg.Wait()

	room, err := env.rooms.GetRoom(ctx, "R1")
	require.NoError(t, err)
	assert.Equal(t, 0, room.Members[0].Score)
	assert.Equal(t, rounds, room.Members[1].Score)
	assert.Equal(t, rounds, room.Members[2].Score)
}

func TestRoomService_Reset(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for _, id := range []string{"R1", "R2"} {
		_, err := env.rooms.Create(ctx, id, "alice")
		require.NoError(t, err)
		_, err = env.rooms.Join(ctx, id, "c-"+id, "alice")
		require.NoError(t, err)
		_, _, err = env.rooms.Start(ctx, id)
		require.NoError(t, err)
		env.scheduler.Arm(id)
	}

	require.NoError(t, env.rooms.Reset(ctx))
	assert.Zero(t, env.scheduler.Len())

	rooms, err := env.rooms.ListRooms(ctx)
	require.NoError(t, err)
	assert.Empty(t, rooms)
}

// recreatingRepo 在刪除空房間後立刻以同一 ID 建立新房間並開始遊戲
type recreatingRepo struct {
	repository.RoomRepository
	arm      func(roomID string) bool
	armed    bool
	recreate sync.Once
}

func (r *recreatingRepo) DeleteIfEmpty(ctx context.Context, roomID string) (bool, error) {
	deleted, err := r.RoomRepository.DeleteIfEmpty(ctx, roomID)
	if err != nil || !deleted {
		return deleted, err
	}
	r.recreate.Do(func() {
		if _, err := r.RoomRepository.Create(ctx, roomID); err != nil {
			return
		}
		if _, err := r.RoomRepository.AddMember(ctx, roomID, models.Member{ID: "c9", Username: "newcomer"}); err != nil {
			return
		}
		if _, _, err := r.RoomRepository.MarkStarted(ctx, roomID); err != nil {
			return
		}
		r.armed = r.arm(roomID)
	})
	return deleted, nil
}

func TestRoomService_LeaveKeepsTimerOfRecreatedRoom(t *testing.T) {
	wrapper := &recreatingRepo{}
	env := newTestEnv(t, func(e *testEnv) {
		wrapper.RoomRepository = e.repo
		e.repo = wrapper
	})
	wrapper.arm = env.scheduler.Arm
	ctx := context.Background()

	_, err := env.rooms.Create(ctx, "R1", "alice")
	require.NoError(t, err)
	_, err = env.rooms.Join(ctx, "R1", "c1", "alice")
	require.NoError(t, err)
	_, _, err = env.rooms.Start(ctx, "R1")
	require.NoError(t, err)
	require.True(t, env.scheduler.Arm("R1"))

	_, deleted, err := env.rooms.Leave(ctx, "R1", "c1")
	require.NoError(t, err)
	assert.True(t, deleted)

	assert.True(t, wrapper.armed, "recreated room must get its own timer")
	assert.True(t, env.scheduler.Armed("R1"))
	room, err := env.rooms.GetRoom(ctx, "R1")
	require.NoError(t, err)
	assert.Equal(t, models.RoomPhaseInProgress, room.Phase)
	require.Eventually(t, func() bool {
		for _, turn := range env.pub.turns("R1") {
			if turn.ArtistID == "c9" {
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)
}

func TestRoomService_DeleteCancelsTimer(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.rooms.Create(ctx, "R1", "alice")
	require.NoError(t, err)
	_, err = env.rooms.Join(ctx, "R1", "c1", "alice")
	require.NoError(t, err)
	_, _, err = env.rooms.Start(ctx, "R1")
	require.NoError(t, err)
	require.True(t, env.scheduler.Arm("R1"))

	require.NoError(t, env.rooms.Delete(ctx, "R1"))
	assert.False(t, env.scheduler.Armed("R1"))
	_, err = env.rooms.GetRoom(ctx, "R1")
	assert.ErrorIs(t, err, models.ErrRoomNotFound)

	assert.ErrorIs(t, env.rooms.Delete(ctx, "R1"), models.ErrRoomNotFound)
}

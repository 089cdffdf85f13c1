package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"pictionary/internal/models"
)

// 回覆給客戶端的訊息
const (
	msgRoomCreated    = "Room created successfully"
	msgRoomExists     = "Room with this ID already exists"
	msgConnecting     = "Connecting you to room"
	msgInvalidRoom    = "Invalid Room ID"
	msgGameStarted    = "Game has already started"
	msgCannotJoin     = "Room with this ID does not exist/game has started"
	msgStartingGame   = "Starting Game!"
	msgResetComplete  = "All rooms have been deleted"
	msgInternalError  = "Internal server error"
	msgUnknownMessage = "Invalid message"
)

// Publisher 將事件送到連線或房間內的所有訂閱者
type Publisher interface {
	Subscribe(connID, roomID string)
	Unsubscribe(connID, roomID string)
	Send(connID string, evt models.OutboundEvent)
	Broadcast(roomID string, evt models.OutboundEvent)
	BroadcastExcept(roomID, exceptConnID string, evt models.OutboundEvent)
	// DropRoom 清除房間的所有訂閱，DropAll 清除所有房間的訂閱
	DropRoom(roomID string)
	DropAll()
}

// GameService 處理客戶端事件：驗證前置條件、更新房間、驅動計時器並發送通知
type GameService struct {
	rooms     *RoomService
	scheduler *TurnScheduler
	publisher Publisher
	admin     *AdminGate
	logger    *zap.Logger
}

func NewGameService(rooms *RoomService, scheduler *TurnScheduler, publisher Publisher, admin *AdminGate, logger *zap.Logger) *GameService {
	return &GameService{
		rooms:     rooms,
		scheduler: scheduler,
		publisher: publisher,
		admin:     admin,
		logger:    logger,
	}
}

// HandleEvent 處理單一連線送來的事件，領域錯誤都會轉成狀態回覆
func (g *GameService) HandleEvent(ctx context.Context, connID string, evt models.InboundEvent) {
	switch e := evt.(type) {
	case models.CreateRoom:
		g.createRoom(ctx, connID, e)
	case models.RoomExists:
		g.roomExists(ctx, connID, e)
	case models.JoinRoom:
		g.joinRoom(ctx, connID, e)
	case models.LeaveRoom:
		g.leaveRoom(ctx, connID, e.RoomID)
	case models.StartGame:
		g.startGame(ctx, connID, e)
	case models.TurnRequest:
		// 回合由計時器推進
		g.logger.Debug("ignoring client turn request", zap.String("room_id", e.RoomID), zap.String("conn_id", connID))
	case models.Guess:
		g.guess(ctx, connID, e)
	case models.Draw:
		g.publisher.BroadcastExcept(e.RoomID, connID, models.DrawEvent{PathPayload: e.PathPayload})
	default:
		g.publisher.Send(connID, models.NewErrorEvent(msgUnknownMessage))
	}
}

// HandleDisconnect 連線中斷時離開所有已加入的房間
func (g *GameService) HandleDisconnect(ctx context.Context, connID string, roomIDs []string) {
	for _, roomID := range roomIDs {
		g.leaveRoom(ctx, connID, roomID)
	}
}

// HandleInvalid 回覆無法解析的訊息
func (g *GameService) HandleInvalid(connID string, err error) {
	g.logger.Debug("invalid client message", zap.String("conn_id", connID), zap.Error(err))
	g.publisher.Send(connID, models.NewErrorEvent(msgUnknownMessage))
}

func (g *GameService) createRoom(ctx context.Context, connID string, e models.CreateRoom) {
	if g.admin.Reserved(e.RoomID) {
		g.reset(ctx, connID, e)
		return
	}

	_, err := g.rooms.Create(ctx, e.RoomID, e.Username)
	switch {
	case err == nil:
		g.publisher.Send(connID, models.NewReply(e.RoomID, models.StatusSuccess, msgRoomCreated))
	case errors.Is(err, models.ErrRoomExists):
		g.publisher.Send(connID, models.NewReply(e.RoomID, models.StatusError, msgRoomExists))
	default:
		g.storeFailure(connID, e.RoomID, "create room", err)
	}
}

// reset 只有管理員憑證完全符合時才清空所有房間，其他情況與房間已存在的回覆相同
func (g *GameService) reset(ctx context.Context, connID string, e models.CreateRoom) {
	if !g.admin.Allows(e.RoomID, e.Username) {
		g.logger.Warn("rejected operator reset", zap.String("conn_id", connID))
		g.publisher.Send(connID, models.NewReply(e.RoomID, models.StatusError, msgRoomExists))
		return
	}
	if err := g.Reset(ctx); err != nil {
		g.storeFailure(connID, e.RoomID, "reset rooms", err)
		return
	}
	g.publisher.Send(connID, models.NewReply(e.RoomID, models.StatusSuccess, msgResetComplete))
}

// Reset 刪除所有房間與計時器，並清除所有連線的房間訂閱
func (g *GameService) Reset(ctx context.Context) error {
	if err := g.rooms.Reset(ctx); err != nil {
		return err
	}
	g.publisher.DropAll()
	return nil
}

// CloseRoom 強制關閉單一房間，原本的成員不再收到該房間的廣播
func (g *GameService) CloseRoom(ctx context.Context, roomID string) error {
	if err := g.rooms.Delete(ctx, roomID); err != nil {
		return err
	}
	g.publisher.DropRoom(roomID)
	return nil
}

func (g *GameService) roomExists(ctx context.Context, connID string, e models.RoomExists) {
	room, err := g.rooms.Exists(ctx, e.RoomID)
	switch {
	case errors.Is(err, models.ErrRoomNotFound):
		g.publisher.Send(connID, models.NewReply(e.RoomID, models.StatusRoom404, msgInvalidRoom))
	case err != nil:
		g.storeFailure(connID, e.RoomID, "find room", err)
	case room.HasStarted():
		g.publisher.Send(connID, models.NewReply(e.RoomID, models.StatusError, msgGameStarted))
	default:
		g.publisher.Send(connID, models.NewReply(e.RoomID, models.StatusSuccess, msgConnecting))
	}
}

func (g *GameService) joinRoom(ctx context.Context, connID string, e models.JoinRoom) {
	members, err := g.rooms.Join(ctx, e.RoomID, connID, e.Username)
	switch {
	case errors.Is(err, models.ErrRoomNotFound), errors.Is(err, models.ErrGameStarted):
		g.publisher.Send(connID, models.NewReply(e.RoomID, models.StatusRoom404, msgCannotJoin))
		return
	case err != nil:
		g.storeFailure(connID, e.RoomID, "join room", err)
		return
	}

	g.publisher.Subscribe(connID, e.RoomID)
	g.publisher.Send(connID, models.NewReply(e.RoomID, models.StatusSuccess, models.UsernamePayload{Username: e.Username}))
	g.publisher.Broadcast(e.RoomID, models.NewUsersEvent(models.StatusNewUser, e.RoomID, members))
}

func (g *GameService) leaveRoom(ctx context.Context, connID, roomID string) {
	room, deleted, err := g.rooms.Leave(ctx, roomID, connID)
	switch {
	case errors.Is(err, models.ErrRoomNotFound):
		g.publisher.Unsubscribe(connID, roomID)
		return
	case err != nil:
		// 仍是成員，保留訂閱
		g.logger.Error("failed to leave room", zap.String("room_id", roomID), zap.String("conn_id", connID), zap.Error(err))
		return
	}
	g.publisher.Unsubscribe(connID, roomID)
	if deleted {
		return
	}
	g.publisher.Broadcast(roomID, models.NewUsersEvent(models.StatusUserLeftRoom, roomID, room.Members))
}

func (g *GameService) startGame(ctx context.Context, connID string, e models.StartGame) {
	_, _, err := g.rooms.Start(ctx, e.RoomID)
	switch {
	case errors.Is(err, models.ErrRoomNotFound):
		g.publisher.Send(connID, models.StatusEvent{Name: models.EventStartGame, Status: models.StatusRoom404, Payload: msgInvalidRoom})
		return
	case err != nil:
		g.logger.Error("failed to start game", zap.String("room_id", e.RoomID), zap.Error(err))
		g.publisher.Send(connID, models.StatusEvent{Name: models.EventStartGame, Status: models.StatusError, Payload: msgInternalError})
		return
	}

	g.publisher.Broadcast(e.RoomID, models.StatusEvent{Name: models.EventStartGame, Status: models.StatusSuccess, Payload: msgStartingGame})
	// 已啟動的計時器不會重複觸發
	g.scheduler.Arm(e.RoomID)
}

func (g *GameService) guess(ctx context.Context, connID string, e models.Guess) {
	res, err := g.rooms.RecordGuess(ctx, e.RoomID, connID, e.Guess)
	reply := func(status models.Status, score int) {
		g.publisher.Send(connID, models.StatusEvent{Name: models.EventGuess, Status: status, Payload: models.ScorePayload{Score: score}})
	}

	switch {
	case errors.Is(err, models.ErrRoomNotFound), errors.Is(err, models.ErrMemberNotFound):
		g.publisher.Send(connID, models.StatusEvent{Name: models.EventGuess, Status: models.StatusRoom404, Payload: msgInvalidRoom})
	case errors.Is(err, models.ErrNoActiveWord):
		reply(models.StatusError, res.Score)
	case err != nil:
		g.logger.Error("failed to record guess", zap.String("room_id", e.RoomID), zap.String("conn_id", connID), zap.Error(err))
		g.publisher.Send(connID, models.StatusEvent{Name: models.EventGuess, Status: models.StatusError, Payload: msgInternalError})
	case res.Correct:
		reply(models.StatusSuccess, res.Score)
	default:
		reply(models.StatusWrong, res.Score)
	}
}

// storeFailure 存儲錯誤時回覆通用錯誤，不假設任何狀態已變更
func (g *GameService) storeFailure(connID, roomID, op string, err error) {
	g.logger.Error("room store failure", zap.String("op", op), zap.String("room_id", roomID), zap.String("conn_id", connID), zap.Error(err))
	g.publisher.Send(connID, models.NewReply(roomID, models.StatusError, msgInternalError))
}

package models

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Status 回應與廣播所攜帶的狀態碼
type Status string

const (
	StatusSuccess      Status = "SUCCESS"
	StatusError        Status = "ERROR"
	StatusRoom404      Status = "ROOM_404"
	StatusWrong        Status = "WRONG"
	StatusNewUser      Status = "NEW_USER"
	StatusUserLeftRoom Status = "USER_LEFT_ROOM"
)

const (
	EventCreateRoom = "CREATE_ROOM"
	EventRoomExists = "ROOM_EXISTS"
	EventJoinRoom   = "JOIN_ROOM"
	EventLeaveRoom  = "LEAVE_ROOM"
	EventStartGame  = "START_GAME"
	EventTurn       = "TURN"
	EventGuess      = "GUESS"
	EventDraw       = "DRAW"
	EventUsers      = "USERS"
	EventConnected  = "CONNECTED"
	EventError      = "ERROR"
)

// ClearBoard 每回合開始前要求所有人清空畫布
const ClearBoard = "CLEAR_BOARD"

var (
	ErrUnknownEvent  = errors.New("unknown event")
	ErrMissingRoomID = errors.New("missing roomId")
)

// Envelope 代表 WebSocket 上傳輸的統一訊息格式
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// InboundEvent 是客戶端送來的事件，只有本檔案定義的型別可以實作
type InboundEvent interface {
	RoomKey() string
	isInbound()
}

type CreateRoom struct {
	RoomID   string `json:"roomId"`
	Username string `json:"username"`
}

type RoomExists struct {
	RoomID string `json:"roomId"`
}

type JoinRoom struct {
	RoomID   string `json:"roomId"`
	Username string `json:"username"`
}

type LeaveRoom struct {
	RoomID string `json:"roomId"`
}

type StartGame struct {
	RoomID string `json:"roomId"`
}

type TurnRequest struct {
	RoomID string `json:"roomId"`
}

type Guess struct {
	RoomID string `json:"roomId"`
	Guess  string `json:"guess"`
}

// Draw 的 PathPayload 不做任何解析，原封不動轉送
type Draw struct {
	RoomID      string          `json:"roomId"`
	PathPayload json.RawMessage `json:"pathPayload"`
}

func (e CreateRoom) RoomKey() string  { return e.RoomID }
func (e RoomExists) RoomKey() string  { return e.RoomID }
func (e JoinRoom) RoomKey() string    { return e.RoomID }
func (e LeaveRoom) RoomKey() string   { return e.RoomID }
func (e StartGame) RoomKey() string   { return e.RoomID }
func (e TurnRequest) RoomKey() string { return e.RoomID }
func (e Guess) RoomKey() string       { return e.RoomID }
func (e Draw) RoomKey() string        { return e.RoomID }

func (CreateRoom) isInbound()  {}
func (RoomExists) isInbound()  {}
func (JoinRoom) isInbound()    {}
func (LeaveRoom) isInbound()   {}
func (StartGame) isInbound()   {}
func (TurnRequest) isInbound() {}
func (Guess) isInbound()       {}
func (Draw) isInbound()        {}

// DecodeInbound 解析客戶端訊息並轉換為對應的事件型別
func DecodeInbound(raw []byte) (InboundEvent, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("invalid envelope: %w", err)
	}

	var evt InboundEvent
	var err error
	switch env.Event {
	case EventCreateRoom:
		evt, err = decodeData[CreateRoom](env.Data)
	case EventRoomExists:
		evt, err = decodeData[RoomExists](env.Data)
	case EventJoinRoom:
		evt, err = decodeData[JoinRoom](env.Data)
	case EventLeaveRoom:
		evt, err = decodeData[LeaveRoom](env.Data)
	case EventStartGame:
		evt, err = decodeData[StartGame](env.Data)
	case EventTurn:
		evt, err = decodeData[TurnRequest](env.Data)
	case EventGuess:
		evt, err = decodeData[Guess](env.Data)
	case EventDraw:
		evt, err = decodeData[Draw](env.Data)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Event)
	}
	if err != nil {
		return nil, fmt.Errorf("invalid %s payload: %w", env.Event, err)
	}
	if evt.RoomKey() == "" {
		return nil, ErrMissingRoomID
	}
	return evt, nil
}

func decodeData[T InboundEvent](data json.RawMessage) (InboundEvent, error) {
	var v T
	if len(data) == 0 {
		return v, nil
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// OutboundEvent 是伺服器送往客戶端的事件
type OutboundEvent interface {
	EventName() string
	Data() any
	isOutbound()
}

// StatusEvent 帶有狀態碼的回應，格式為 {status, payload}
type StatusEvent struct {
	Name    string
	Status  Status
	Payload any
}

type statusData struct {
	Status  Status `json:"status"`
	Payload any    `json:"payload"`
}

func (e StatusEvent) EventName() string { return e.Name }
func (e StatusEvent) Data() any         { return statusData{Status: e.Status, Payload: e.Payload} }
func (StatusEvent) isOutbound()         {}

// TurnEvent 通知新回合開始
type TurnEvent struct {
	Word         string `json:"word"`
	ArtistID     string `json:"id"`
	TurnInterval int    `json:"turnInterval"` // 秒
}

func (e TurnEvent) EventName() string { return EventTurn }
func (e TurnEvent) Data() any         { return e }
func (TurnEvent) isOutbound()         {}

// DrawEvent 轉送畫筆事件
type DrawEvent struct {
	PathPayload json.RawMessage
}

func (e DrawEvent) EventName() string { return EventDraw }
func (e DrawEvent) Data() any {
	if len(e.PathPayload) == 0 {
		return json.RawMessage("null")
	}
	return e.PathPayload
}
func (DrawEvent) isOutbound() {}

// ConnectedEvent 告知客戶端自己的連線 ID
type ConnectedEvent struct {
	ID string `json:"id"`
}

func (e ConnectedEvent) EventName() string { return EventConnected }
func (e ConnectedEvent) Data() any         { return e }
func (ConnectedEvent) isOutbound()         {}

// UsersPayload 房間玩家列表
type UsersPayload struct {
	RoomID string   `json:"roomId"`
	Users  []Member `json:"users"`
}

// ScorePayload 猜測結果所附帶的分數
type ScorePayload struct {
	Score int `json:"score"`
}

// UsernamePayload 加入成功時回傳給加入者
type UsernamePayload struct {
	Username string `json:"username"`
}

// NewReply 以房間 ID 作為事件名稱回覆單一連線
func NewReply(roomID string, status Status, payload any) StatusEvent {
	return StatusEvent{Name: roomID, Status: status, Payload: payload}
}

// NewUsersEvent 創建玩家列表廣播
func NewUsersEvent(status Status, roomID string, members []Member) StatusEvent {
	if members == nil {
		members = []Member{}
	}
	return StatusEvent{Name: EventUsers, Status: status, Payload: UsersPayload{RoomID: roomID, Users: members}}
}

// NewClearBoardEvent 創建清空畫布事件
func NewClearBoardEvent() DrawEvent {
	return DrawEvent{PathPayload: json.RawMessage(`{"eventName":"` + ClearBoard + `"}`)}
}

// NewErrorEvent 創建通用錯誤訊息
func NewErrorEvent(message string) StatusEvent {
	return StatusEvent{Name: EventError, Status: StatusError, Payload: message}
}

// Encode 將事件序列化為 Envelope
func Encode(evt OutboundEvent) ([]byte, error) {
	data, err := json.Marshal(evt.Data())
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", evt.EventName(), err)
	}
	return json.Marshal(Envelope{Event: evt.EventName(), Data: data})
}

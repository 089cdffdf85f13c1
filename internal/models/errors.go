package models

import "errors"

var (
	ErrRoomExists     = errors.New("room already exists")
	ErrRoomNotFound   = errors.New("room not found")
	ErrMemberNotFound = errors.New("member not found")
	ErrGameStarted    = errors.New("game has already started")
	ErrNoActiveWord   = errors.New("no active word")
)

package core

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
)

var (
	ErrRoomExists    = errors.New("room already exists")
	ErrRoomNotFound  = errors.New("room not found")
	ErrRoomClosed    = fmt.Errorf("%w: room closed", ErrRoomNotFound)
	ErrRoleFull      = errors.New("role already taken")
	ErrInvalidRoomID = errors.New("invalid room id")
	ErrUnauthorized  = errors.New("invalid password")
	ErrRoomNotStale  = errors.New("room is not stale")
)

// Strict makes internal invariant violations panic instead of being logged.
// It is switched on in debug mode.
var Strict bool

func invariant(ok bool, module, msg string) {
	if ok {
		return
	}
	if Strict {
		panic(module + ": " + msg)
	}
	log.Error().Str("module", module).Msg("invariant violated: " + msg)
}

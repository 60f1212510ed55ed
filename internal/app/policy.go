package app

import (
	"github.com/dkeye/Chatter/internal/core"
	"github.com/dkeye/Chatter/internal/domain"
)

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	MarkSlow
	KickMember
	DropFrame
)

func (a BackpressureAction) String() string {
	switch a {
	case MarkSlow:
		return "mark_slow"
	case KickMember:
		return "kick"
	case DropFrame:
		return "drop"
	default:
		return "none"
	}
}

// Policy decides what happens to a connection whose send buffer is full.
type Policy interface {
	OnBackPressure(room domain.RoomID, conn core.SignalConnection) BackpressureAction
}

// SimplePolicy kicks every slow connection.
type SimplePolicy struct{}

func (SimplePolicy) OnBackPressure(domain.RoomID, core.SignalConnection) BackpressureAction {
	return KickMember
}

// StaticPolicy applies the same action to every slow connection.
type StaticPolicy struct {
	Action BackpressureAction
}

func (p StaticPolicy) OnBackPressure(domain.RoomID, core.SignalConnection) BackpressureAction {
	return p.Action
}

// ParsePolicy maps a config value to a Policy; unknown values kick.
func ParsePolicy(name string) Policy {
	switch name {
	case "none":
		return StaticPolicy{Action: NoAction}
	case "drop":
		return StaticPolicy{Action: DropFrame}
	case "mark_slow":
		return StaticPolicy{Action: MarkSlow}
	default:
		return SimplePolicy{}
	}
}

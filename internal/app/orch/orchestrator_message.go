package orch

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Chatter/internal/domain"
	"github.com/dkeye/Chatter/internal/metrics"
)

const MaxMessageLen = 4096

func (o *Orchestrator) SendMessage(req SendMessageRequest) Ack {
	if len(req.Role) > domain.MaxRoleLen {
		return failure(AckBadPayload)
	}
	text, valid := cleanText(req.Message)
	if !valid {
		return failure(AckEmptyMessage)
	}

	room, err := o.Rooms.Get(req.RoomID)
	if err != nil {
		return failure(AckRoomNotFound)
	}
	msg, res, err := room.Send(req.Role, text, req.CreatedAt)
	if err != nil {
		return failure(AckRoomNotFound)
	}

	metrics.MessagesTotal.Inc()
	o.handleDelivery(room.ID(), res)
	o.publish(room.ID(), msg)
	log.Debug().Str("module", "orch").Str("room_id", string(req.RoomID)).Str("message_id", msg.MessageID).Msg("message sent")
	return Ack{Success: true, MessageID: msg.MessageID}
}

// GetMessages never fails; an unknown room has no messages.
func (o *Orchestrator) GetMessages(req RoomRequest) []domain.Entry {
	room, err := o.Rooms.Get(req.RoomID)
	if err != nil {
		return []domain.Entry{}
	}
	return room.Messages()
}

// cleanText drops control characters other than newline and tab, trims
// surrounding space and caps the length at MaxMessageLen bytes.
func cleanText(s string) (string, bool) {
	s = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) || r == utf8.RuneError {
			return -1
		}
		return r
	}, s)
	s = strings.TrimSpace(s)
	if len(s) > MaxMessageLen {
		cut := MaxMessageLen
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		s = s[:cut]
	}
	return s, s != ""
}

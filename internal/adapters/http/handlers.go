package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Chatter/internal/app/orch"
	"github.com/dkeye/Chatter/internal/core"
	"github.com/dkeye/Chatter/internal/domain"
)

type handlers struct {
	orch *orch.Orchestrator
	feed Pinger
}

type healthResponse struct {
	Status      string `json:"status"`
	Rooms       int    `json:"rooms"`
	Connections int    `json:"connections"`
	Feed        string `json:"feed,omitempty"`
}

func (h *handlers) health(c *gin.Context) {
	resp := healthResponse{
		Status:      "ok",
		Rooms:       h.orch.Rooms.Len(),
		Connections: h.orch.Registry.Count(),
	}
	code := http.StatusOK
	if h.feed != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.feed.Ping(ctx); err != nil {
			resp.Status, resp.Feed = "degraded", "fail"
			code = http.StatusServiceUnavailable
		} else {
			resp.Feed = "pass"
		}
	}
	c.JSON(code, resp)
}

type sessionResponse struct {
	UserID      domain.UserID `json:"userId"`
	ClientToken string        `json:"clientToken"`
}

// session hands out a stable suggested user id per browser.
func (h *handlers) session(c *gin.Context) {
	sess := sessions.Default(c)
	uid, _ := sess.Get("user_id").(string)
	if uid == "" {
		uid = uuid.NewString()
		sess.Set("user_id", uid)
		if err := sess.Save(); err != nil {
			log.Error().Err(err).Str("module", "adapters.http").Msg("session save")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "session unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, sessionResponse{UserID: domain.UserID(uid), ClientToken: c.GetString("client_token")})
}

func (h *handlers) listRooms(c *gin.Context) {
	c.JSON(http.StatusOK, h.orch.GetRooms())
}

func (h *handlers) createRoom(c *gin.Context) {
	var req orch.CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, orch.Ack{Error: orch.AckBadPayload})
		return
	}
	ack := h.orch.CreateRoom(req)
	c.JSON(ackStatus(ack, http.StatusCreated), ack)
}

func (h *handlers) getRoom(c *gin.Context) {
	snap, err := h.orch.GetRoom(domain.RoomID(c.Param("id")))
	if errors.Is(err, core.ErrRoomNotFound) {
		c.JSON(http.StatusNotFound, orch.Ack{Error: orch.AckRoomNotFound})
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *handlers) deleteRoom(c *gin.Context) {
	var body struct {
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, orch.Ack{Error: orch.AckBadPayload})
		return
	}
	ack := h.orch.DeleteRoom(orch.DeleteRoomRequest{RoomID: domain.RoomID(c.Param("id")), Password: body.Password})
	c.JSON(ackStatus(ack, http.StatusOK), ack)
}

func (h *handlers) getMessages(c *gin.Context) {
	c.JSON(http.StatusOK, h.orch.GetMessages(orch.RoomRequest{RoomID: domain.RoomID(c.Param("id"))}))
}

func (h *handlers) touchRoom(c *gin.Context) {
	h.orch.TouchRoom(orch.RoomRequest{RoomID: domain.RoomID(c.Param("id"))})
	c.Status(http.StatusNoContent)
}

func ackStatus(ack orch.Ack, okStatus int) int {
	if ack.Success {
		return okStatus
	}
	switch ack.Error {
	case orch.AckRoomExists:
		return http.StatusConflict
	case orch.AckRoomNotFound:
		return http.StatusNotFound
	case orch.AckInvalidPassword:
		return http.StatusForbidden
	default:
		return http.StatusBadRequest
	}
}

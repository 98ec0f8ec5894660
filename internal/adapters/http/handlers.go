package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pion/webrtc/v4"

	"github.com/dkeye/LiveClass/internal/adapters/signal"
	"github.com/dkeye/LiveClass/internal/app/orch"
	"github.com/dkeye/LiveClass/internal/domain"
)

const defaultEndReason = "ended by host"

type Handlers struct {
	Orch *orch.Orchestrator
	ICE  []webrtc.ICEServer
}

type EndRequest struct {
	Reason string `json:"reason" binding:"max=200"`
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrRoomNotFound), errors.Is(err, domain.ErrTargetNotInRoom):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrRoomFull), errors.Is(err, domain.ErrRoomOccupied), errors.Is(err, domain.ErrNotInRoom):
		return http.StatusConflict
	case errors.Is(err, domain.ErrRoomEnded):
		return http.StatusGone
	case errors.Is(err, domain.ErrNotAuthorized):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrMalformedEnvelope), errors.Is(err, domain.ErrRoomIDInvalid):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func abort(c *gin.Context, err error) {
	c.AbortWithStatusJSON(statusFor(err), gin.H{"error": domain.Code(err), "message": err.Error()})
}

func roomParam(c *gin.Context) (domain.RoomID, bool) {
	id := domain.RoomID(c.Param("id"))
	if err := domain.ValidateRoomID(id); err != nil {
		abort(c, err)
		return "", false
	}
	return id, true
}

func caller(c *gin.Context) domain.ParticipantID {
	return domain.ParticipantID(c.GetString(signal.ParticipantKey))
}

func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "rooms": h.Orch.Rooms.Len()})
}

func (h *Handlers) ICEServers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"iceServers": h.ICE})
}

func (h *Handlers) ListRooms(c *gin.Context) {
	rooms, err := h.Orch.ListRooms(c.Request.Context())
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rooms": rooms})
}

func (h *Handlers) GetRoom(c *gin.Context) {
	id, ok := roomParam(c)
	if !ok {
		return
	}
	info, err := h.Orch.RoomInfo(c.Request.Context(), id)
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

func (h *Handlers) ListParticipants(c *gin.Context) {
	id, ok := roomParam(c)
	if !ok {
		return
	}
	ps, err := h.Orch.Participants(c.Request.Context(), id)
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"participants": ps})
}

// EndRoom requires the caller to be the connected host of the room.
func (h *Handlers) EndRoom(c *gin.Context) {
	id, ok := roomParam(c)
	if !ok {
		return
	}
	var req EndRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "malformed_envelope", "message": err.Error()})
			return
		}
	}
	if req.Reason == "" {
		req.Reason = defaultEndReason
	}
	if err := h.Orch.EndRoom(c.Request.Context(), id, caller(c), req.Reason); err != nil {
		abort(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handlers) RemoveParticipant(c *gin.Context) {
	id, ok := roomParam(c)
	if !ok {
		return
	}
	target := domain.ParticipantID(c.Param("pid"))
	if err := h.Orch.RemoveFromRoom(c.Request.Context(), id, caller(c), target, c.Query("reason")); err != nil {
		abort(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

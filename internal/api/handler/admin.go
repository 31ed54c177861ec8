package handler

import (
	"anonchat/backend/internal/moderation"
	"anonchat/backend/internal/storage"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type moderationRequest struct {
	Pseudonym string `json:"pseudonym" validate:"required,hexadecimal,len=64"`
}

func (h *Handler) Stats(c *gin.Context) {
	stats, err := h.Moderation.Stats(c.Request.Context())
	if err != nil {
		h.internalError(c, "stats", err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// ListRooms serves GET /admin/rooms?open=true, newest first.
func (h *Handler) ListRooms(c *gin.Context) {
	openOnly := false
	if raw := c.Query("open"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "open must be a boolean"})
			return
		}
		openOnly = v
	}

	rooms, err := h.Moderation.ListRooms(c.Request.Context(), openOnly)
	if err != nil {
		h.internalError(c, "list rooms", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rooms": rooms})
}

func (h *Handler) GetRoom(c *gin.Context) {
	view, err := h.Moderation.RoomWithMessages(c.Request.Context(), c.Param("id"))
	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		return
	}
	if err != nil {
		h.internalError(c, "get room", err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) ListReports(c *gin.Context) {
	reports, err := h.Moderation.ListReports(c.Request.Context())
	if err != nil {
		h.internalError(c, "list reports", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reports": reports})
}

func (h *Handler) Ban(c *gin.Context) {
	req, ok := h.bindModeration(c)
	if !ok {
		return
	}
	res, err := h.Moderation.Ban(c.Request.Context(), req.Pseudonym)
	if errors.Is(err, moderation.ErrParticipantNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "participant not found"})
		return
	}
	if err != nil {
		h.internalError(c, "ban", err)
		return
	}

	body := gin.H{"participant": res.Participant}
	if res.ClosedRoom != nil {
		body["closed_room_id"] = res.ClosedRoom.ID
	}
	c.JSON(http.StatusOK, body)
}

func (h *Handler) Unban(c *gin.Context) {
	req, ok := h.bindModeration(c)
	if !ok {
		return
	}
	p, err := h.Moderation.Unban(c.Request.Context(), req.Pseudonym)
	if errors.Is(err, moderation.ErrParticipantNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "participant not found"})
		return
	}
	if err != nil {
		h.internalError(c, "unban", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"participant": p})
}

func (h *Handler) bindModeration(c *gin.Context) (moderationRequest, bool) {
	var req moderationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return req, false
	}
	if err := h.validate.Struct(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "pseudonym must be 64 hex characters"})
		return req, false
	}
	return req, true
}

func (h *Handler) internalError(c *gin.Context, op string, err error) {
	h.Log.Error("admin request failed", zap.String("op", op), zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}

package handler

import (
	"anonchat/backend/internal/chathub"
	"anonchat/backend/internal/metrics"
	"anonchat/backend/internal/moderation"
	"anonchat/backend/internal/registry"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// Handler містить посилання на ChatHub та сервіси модерації
type Handler struct {
	Hub        *chathub.ManagerService
	Registry   *registry.Service
	Moderation *moderation.Service
	Metrics    *metrics.Metrics
	Log        *zap.Logger

	jwtSecret []byte
	validate  *validator.Validate
}

func NewHandler(hub *chathub.ManagerService, reg *registry.Service, mod *moderation.Service, jwtSecret string) *Handler {
	return &Handler{
		Hub:        hub,
		Registry:   reg,
		Moderation: mod,
		Metrics:    hub.Metrics,
		Log:        hub.Log,
		jwtSecret:  []byte(jwtSecret),
		validate:   validator.New(),
	}
}

package notifications

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/medinaflav/manga-tracker/internal/domain"
	"github.com/medinaflav/manga-tracker/internal/pkg/httputil"
)

var errorMappings = []httputil.ErrorMapping{
	{Error: ErrChannelNotFound, Status: http.StatusNotFound, Message: "notification channel not found"},
	{Error: ErrTokenNotFound, Status: http.StatusNotFound, Message: "unknown link token"},
	{Error: ErrTokenExpired, Status: http.StatusGone, Message: "link token expired, request a new one"},
	{Error: ErrTokenConsumed, Status: http.StatusConflict, Message: "link token already used"},
}

// Handler handles HTTP requests for notification channels.
type Handler struct {
	service   *Service
	validator *validator.Validate
}

// NewHandler creates a new notifications handler.
func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: validator.New(),
	}
}

// RegisterRoutes registers channel management and link routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/users/{userID}/channels", func(r chi.Router) {
		r.Get("/", h.ListChannels)
		r.Post("/link", h.IssueLinkToken)
		r.Delete("/{channelID}", h.UnlinkChannel)
	})

	// The consume endpoint is unscoped: possession of the token is
	// the credential.
	r.Post("/link/{token}", h.ConsumeLinkToken)
}

// IssueLinkTokenRequest represents the request body for starting a link.
type IssueLinkTokenRequest struct {
	Type string `json:"type" validate:"required,oneof=telegram webhook"`
}

// ConsumeLinkTokenRequest represents the request body for completing a link.
type ConsumeLinkTokenRequest struct {
	Target string `json:"target" validate:"required,min=1,max=2048"`
}

// channelResponse is the API shape of a notification channel.
type channelResponse struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Target   string `json:"target"`
	IsActive bool   `json:"is_active"`
}

func toChannelResponse(ch domain.NotificationChannel) channelResponse {
	return channelResponse{
		ID:       ch.ID,
		Type:     string(ch.Type),
		Target:   ch.Target,
		IsActive: ch.IsActive,
	}
}

// ListChannels handles GET /users/{userID}/channels.
func (h *Handler) ListChannels(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	channels, err := h.service.ListChannels(r.Context(), userID)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	out := make([]channelResponse, 0, len(channels))
	for _, ch := range channels {
		out = append(out, toChannelResponse(ch))
	}
	httputil.Success(w, http.StatusOK, out)
}

// IssueLinkToken handles POST /users/{userID}/channels/link.
func (h *Handler) IssueLinkToken(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var req IssueLinkTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	token, err := h.service.IssueLinkToken(r.Context(), userID, domain.ChannelType(req.Type))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusCreated, map[string]string{"token": token})
}

// ConsumeLinkToken handles POST /link/{token}.
func (h *Handler) ConsumeLinkToken(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	var req ConsumeLinkTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	channel, err := h.service.ConsumeLinkToken(r.Context(), token, req.Target)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, toChannelResponse(*channel))
}

// UnlinkChannel handles DELETE /users/{userID}/channels/{channelID}.
func (h *Handler) UnlinkChannel(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	channelID := chi.URLParam(r, "channelID")

	if err := h.service.UnlinkChannel(r.Context(), userID, channelID); err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.JSON(w, http.StatusNoContent, nil)
}

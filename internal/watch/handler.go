package watch

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/medinaflav/manga-tracker/internal/domain"
	"github.com/medinaflav/manga-tracker/internal/pkg/httputil"
)

var errorMappings = []httputil.ErrorMapping{
	{Error: ErrWatchItemNotFound, Status: http.StatusNotFound, Message: "watch item not found"},
	{Error: ErrAlreadyWatching, Status: http.StatusConflict, Message: "title already in watch list"},
	{Error: domain.ErrBadChapter, Status: http.StatusBadRequest, Message: "invalid chapter number"},
}

// Handler handles HTTP requests for watch lists.
type Handler struct {
	registry  Registry
	validator *validator.Validate
}

// NewHandler creates a new watch handler.
func NewHandler(registry Registry) *Handler {
	return &Handler{
		registry:  registry,
		validator: validator.New(),
	}
}

// RegisterRoutes registers watch list routes under a user scope.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/users/{userID}/watchlist", func(r chi.Router) {
		r.Get("/", h.ListWatchlist)
		r.Post("/", h.Subscribe)
		r.Patch("/{titleID}", h.SetNotify)
		r.Delete("/{titleID}", h.Unsubscribe)
	})
}

// SubscribeRequest represents the request body for adding a title.
type SubscribeRequest struct {
	TitleID string `json:"title_id" validate:"required,min=1,max=255"`
	Title   string `json:"title" validate:"required,min=1,max=512"`
	// Chapter seeds the last known chapter so history is not
	// re-announced. Empty means start from zero.
	Chapter string `json:"chapter"`
	Notify  *bool  `json:"notify"`
}

// SetNotifyRequest represents the request body for toggling delivery.
type SetNotifyRequest struct {
	Notify *bool `json:"notify" validate:"required"`
}

// watchItemResponse is the API shape of a watch item.
type watchItemResponse struct {
	ID               string `json:"id"`
	TitleID          string `json:"title_id"`
	Title            string `json:"title"`
	LastKnownChapter string `json:"last_known_chapter"`
	Notify           bool   `json:"notify"`
}

func toResponse(item domain.WatchItem) watchItemResponse {
	return watchItemResponse{
		ID:               item.ID,
		TitleID:          item.TitleID,
		Title:            item.Title,
		LastKnownChapter: item.LastKnownChapter.String(),
		Notify:           item.Notify,
	}
}

// ListWatchlist handles GET /users/{userID}/watchlist.
func (h *Handler) ListWatchlist(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	items, err := h.registry.ListByUser(r.Context(), userID)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	out := make([]watchItemResponse, 0, len(items))
	for _, item := range items {
		out = append(out, toResponse(item))
	}
	httputil.Success(w, http.StatusOK, out)
}

// Subscribe handles POST /users/{userID}/watchlist.
func (h *Handler) Subscribe(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var req SubscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	var chapter domain.Chapter
	if req.Chapter != "" {
		var err error
		chapter, err = domain.ParseChapter(req.Chapter)
		if err != nil {
			httputil.HandleError(r.Context(), w, err, errorMappings)
			return
		}
	}

	notify := true
	if req.Notify != nil {
		notify = *req.Notify
	}

	item := &domain.WatchItem{
		UserID:           userID,
		TitleID:          req.TitleID,
		Title:            req.Title,
		LastKnownChapter: chapter,
		Notify:           notify,
	}
	if err := h.registry.Subscribe(r.Context(), item); err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusCreated, toResponse(*item))
}

// SetNotify handles PATCH /users/{userID}/watchlist/{titleID}.
func (h *Handler) SetNotify(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	titleID := chi.URLParam(r, "titleID")

	var req SetNotifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	if err := h.registry.SetNotify(r.Context(), userID, titleID, *req.Notify); err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.JSON(w, http.StatusNoContent, nil)
}

// Unsubscribe handles DELETE /users/{userID}/watchlist/{titleID}.
func (h *Handler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	titleID := chi.URLParam(r, "titleID")

	if err := h.registry.Unsubscribe(r.Context(), userID, titleID); err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.JSON(w, http.StatusNoContent, nil)
}

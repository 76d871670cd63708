package subscriptions

import (
	"net/http"

	"github.com/bissquit/stockwatch/internal/pkg/httputil"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

var errorMappings = []httputil.ErrorMapping{
	{Error: ErrSubscriptionNotFound, Status: http.StatusNotFound, Message: "subscription not found"},
	{Error: ErrInvalidUser, Status: http.StatusUnauthorized, Message: "unauthorized"},
	{Error: ErrInvalidItem, Status: http.StatusBadRequest},
}

// Handler handles HTTP requests for the subscriptions module.
type Handler struct {
	service   *Service
	validator *validator.Validate
}

// NewHandler creates a new subscriptions handler.
func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: validator.New(),
	}
}

// RegisterRoutes registers subscription routes (require auth).
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/me/subscription", func(r chi.Router) {
		r.Get("/", h.GetSubscription)
		r.Delete("/items", h.ClearItems)
		r.Post("/items/{item}/toggle", h.ToggleItem)
	})
}

// ToggleItemRequest holds the path parameter of the toggle endpoint.
type ToggleItemRequest struct {
	Item string `validate:"required,max=64"`
}

// ToggleItemResponse reports the membership of an item after a toggle.
type ToggleItemResponse struct {
	Item       string `json:"item"`
	Subscribed bool   `json:"subscribed"`
}

// GetSubscription handles GET /me/subscription.
func (h *Handler) GetSubscription(w http.ResponseWriter, r *http.Request) {
	sub, err := h.service.Get(r.Context(), httputil.GetUserID(r.Context()))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}
	if sub.Items == nil {
		sub.Items = []string{}
	}
	httputil.Success(w, http.StatusOK, sub)
}

// ToggleItem handles POST /me/subscription/items/{item}/toggle.
func (h *Handler) ToggleItem(w http.ResponseWriter, r *http.Request) {
	req := ToggleItemRequest{Item: chi.URLParam(r, "item")}
	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	key, err := h.service.canonicalItem(req.Item)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	subscribed, err := h.service.Toggle(r.Context(), httputil.GetUserID(r.Context()), key)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, ToggleItemResponse{Item: key, Subscribed: subscribed})
}

// ClearItems handles DELETE /me/subscription/items.
func (h *Handler) ClearItems(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Clear(r.Context(), httputil.GetUserID(r.Context())); err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}
	httputil.NoContent(w)
}

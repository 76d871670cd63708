package stock

import (
	"net/http"
	"strconv"

	"github.com/bissquit/stockwatch/internal/domain"
	"github.com/bissquit/stockwatch/internal/pkg/httputil"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

// Handler handles HTTP requests for the stock module.
type Handler struct {
	service   *Service
	validator *validator.Validate
}

// NewHandler creates a new stock handler.
func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: validator.New(),
	}
}

// RegisterRoutes registers public stock routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/stock", func(r chi.Router) {
		r.Get("/active", h.GetActive)
		r.Get("/history", h.GetHistory)
		r.Get("/catalog", h.GetCatalog)
		r.Get("/snapshots/{id}", h.GetSnapshot)
	})
}

// HistoryQuery holds pagination parameters of GET /stock/history.
type HistoryQuery struct {
	Limit  int `validate:"min=1,max=50"`
	Offset int `validate:"min=0"`
}

// HistoryResponse is one page of snapshot history.
type HistoryResponse struct {
	Items  []domain.Snapshot `json:"items"`
	Total  int               `json:"total"`
	Limit  int               `json:"limit"`
	Offset int               `json:"offset"`
}

var errorMappings = []httputil.ErrorMapping{
	{Error: ErrSnapshotNotFound, Status: http.StatusNotFound, Message: "no current stock found"},
	{Error: ErrInvalidPagination, Status: http.StatusBadRequest},
}

// GetActive handles GET /stock/active request.
func (h *Handler) GetActive(w http.ResponseWriter, r *http.Request) {
	snap, err := h.service.GetActive(r.Context())
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}
	httputil.Success(w, http.StatusOK, snap)
}

// GetHistory handles GET /stock/history request.
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	q := HistoryQuery{Limit: DefaultHistoryLimit}

	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			httputil.Error(w, http.StatusBadRequest, "invalid limit")
			return
		}
		q.Limit = n
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			httputil.Error(w, http.StatusBadRequest, "invalid offset")
			return
		}
		q.Offset = n
	}

	if err := h.validator.Struct(q); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	snaps, total, err := h.service.History(r.Context(), q.Limit, q.Offset)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}
	if snaps == nil {
		snaps = make([]domain.Snapshot, 0)
	}

	httputil.Success(w, http.StatusOK, HistoryResponse{
		Items:  snaps,
		Total:  total,
		Limit:  q.Limit,
		Offset: q.Offset,
	})
}

// GetCatalog handles GET /stock/catalog request.
func (h *Handler) GetCatalog(w http.ResponseWriter, _ *http.Request) {
	httputil.Success(w, http.StatusOK, h.service.Catalog().Items())
}

// GetSnapshot handles GET /stock/snapshots/{id} request.
func (h *Handler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := h.service.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, []httputil.ErrorMapping{
			{Error: ErrSnapshotNotFound, Status: http.StatusNotFound, Message: "snapshot not found"},
		})
		return
	}
	httputil.Success(w, http.StatusOK, snap)
}

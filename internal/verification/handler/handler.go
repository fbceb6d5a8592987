// Package handler exposes the verification index over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"voxid/internal/verification/models"
	"voxid/internal/verification/query"
	"voxid/pkg/platform/httputil"
	"voxid/pkg/platform/middleware/admin"
	"voxid/pkg/platform/middleware/request"
	"voxid/pkg/requestcontext"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service,Query

// Service is the intake and lookup side of the index.
type Service interface {
	Verify(ctx context.Context, accountID string, evidence models.Evidence) (*models.Record, error)
	Get(ctx context.Context, accountID string) (*models.Record, error)
	TokenMetadata(ctx context.Context, accountID string) (models.TokenMetadata, error)
	Clear(ctx context.Context) (int, error)
}

// Query is the read side of the index.
type Query interface {
	Filter(ctx context.Context, c query.Criteria) ([]models.Summary, error)
	Stats(ctx context.Context) (query.Stats, error)
	CreateDataset(ctx context.Context, req query.DatasetRequest) (*query.Dataset, error)
}

// Limits bounds the multipart upload accepted by the intake endpoint.
type Limits struct {
	MaxDocumentBytes int64
	MaxAudioBytes    int64
}

func (l Limits) forKind(kind models.EvidenceKind) int64 {
	if kind == models.EvidenceVoiceSample {
		return l.MaxAudioBytes
	}
	return l.MaxDocumentBytes
}

// total is the largest well-formed intake body, with room for form fields and part headers.
func (l Limits) total() int64 {
	const overhead = 1 << 20
	return 2*l.MaxDocumentBytes + l.MaxAudioBytes + overhead
}

type Handler struct {
	service    Service
	query      Query
	logger     *slog.Logger
	limits     Limits
	adminToken string
}

func New(service Service, q Query, limits Limits, adminToken string, logger *slog.Logger) *Handler {
	return &Handler{
		service:    service,
		query:      q,
		logger:     logger,
		limits:     limits,
		adminToken: adminToken,
	}
}

// Register mounts the verification routes and the admin clear-all route.
func (h *Handler) Register(r chi.Router) {
	r.Route("/verification", func(r chi.Router) {
		r.With(request.BodyLimit(h.limits.total())).Post("/initiate", h.HandleInitiate)

		r.Get("/user/{accountID}", h.HandleGetUser)
		r.Get("/user/{accountID}/token-metadata", h.HandleTokenMetadata)
		r.Get("/stats", h.HandleStats)

		r.Group(func(r chi.Router) {
			r.Use(request.ContentTypeJSON)
			r.Use(request.BodyLimit(maxJSONBody))
			r.Post("/filter", h.HandleFilter)
			r.Post("/dataset", h.HandleCreateDataset)
		})
	})

	r.With(admin.RequireAdminToken(h.adminToken, h.logger)).
		Delete("/admin/verification/records", h.HandleClear)
}

func (h *Handler) HandleGetUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	accountID := chi.URLParam(r, "accountID")

	rec, err := h.service.Get(ctx, accountID)
	if err != nil {
		h.logFailure(ctx, "failed to get verification record", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toRecordResponse(rec))
}

func (h *Handler) HandleTokenMetadata(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	accountID := chi.URLParam(r, "accountID")

	meta, err := h.service.TokenMetadata(ctx, accountID)
	if err != nil {
		h.logFailure(ctx, "failed to build token metadata", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, meta)
}

func (h *Handler) HandleFilter(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[FilterRequest](w, r, h.logger)
	if !ok {
		return
	}

	users, err := h.query.Filter(ctx, req.criteria)
	if err != nil {
		h.logFailure(ctx, "failed to filter verification records", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FilterResponse{
		Count:   len(users),
		Users:   toSummaries(users),
		Filters: req.Criteria,
	})
}

func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stats, err := h.query.Stats(ctx)
	if err != nil {
		h.logFailure(ctx, "failed to compute verification stats", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, stats)
}

func (h *Handler) HandleCreateDataset(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[DatasetRequest](w, r, h.logger)
	if !ok {
		return
	}

	ds, err := h.query.CreateDataset(ctx, query.DatasetRequest{
		Filters:     req.criteria,
		RequestedBy: req.RequestedBy,
		UseCase:     req.UseCase,
	})
	if err != nil {
		h.logFailure(ctx, "failed to create dataset", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toDatasetResponse(ds, req.Filters))
}

func (h *Handler) HandleClear(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	n, err := h.service.Clear(ctx)
	if err != nil {
		h.logFailure(ctx, "failed to clear verification records", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ClearResponse{Cleared: n})
}

func (h *Handler) logFailure(ctx context.Context, msg string, err error) {
	h.logger.ErrorContext(ctx, msg,
		"error", err,
		"request_id", requestcontext.RequestID(ctx),
	)
}

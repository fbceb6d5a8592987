package query

import (
	"context"
	"strconv"
	"strings"
	"time"

	"voxid/internal/verification/models"
	dErrors "voxid/pkg/domain-errors"
	"voxid/pkg/platform/middleware/requesttime"
	"voxid/pkg/requestcontext"
)

// DatasetStatusReady is the only status an assembled dataset can have.
const DatasetStatusReady = "ready"

const (
	datasetIDPrefix    = "DS_"
	datasetSuffixChars = 9
	base36             = "0123456789abcdefghijklmnopqrstuvwxyz"
)

// DatasetRequest asks for the records matching Filters to be packaged for a consumer.
type DatasetRequest struct {
	Filters     Criteria
	RequestedBy string
	UseCase     string
}

type Dataset struct {
	ID          string
	RequestedBy string
	UseCase     string
	Filters     Criteria
	Users       []models.Summary
	CreatedAt   time.Time
	Status      string
}

func (d Dataset) UserCount() int { return len(d.Users) }

// CreateDataset packages the current matches of req.Filters. A filter that
// matches nobody is reported as not found.
func (e *Engine) CreateDataset(ctx context.Context, req DatasetRequest) (*Dataset, error) {
	requestedBy := strings.TrimSpace(req.RequestedBy)
	if requestedBy == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "requestedBy is required")
	}
	useCase := strings.TrimSpace(req.UseCase)
	if useCase == "" {
		useCase = e.defaultUseCase
	}

	users, err := e.Filter(ctx, req.Filters)
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, dErrors.New(dErrors.CodeNotFound, "no verified users match the filters")
	}

	now := requesttime.Now(ctx)
	ds := &Dataset{
		ID:          e.datasetID(now),
		RequestedBy: requestedBy,
		UseCase:     useCase,
		Filters:     req.Filters,
		Users:       users,
		CreatedAt:   now,
		Status:      DatasetStatusReady,
	}

	if e.metrics != nil {
		e.metrics.RecordDatasetCreated()
	}
	e.logger.InfoContext(ctx, "dataset created",
		"dataset_id", ds.ID,
		"user_count", ds.UserCount(),
		"use_case", useCase,
		"request_id", requestcontext.RequestID(ctx),
	)
	return ds, nil
}

// datasetID renders DS_<unix millis>_<9 base36 chars>.
func (e *Engine) datasetID(now time.Time) string {
	var b strings.Builder
	b.WriteString(datasetIDPrefix)
	b.WriteString(strconv.FormatInt(now.UnixMilli(), 10))
	b.WriteByte('_')
	e.mu.Lock()
	defer e.mu.Unlock()
	for range datasetSuffixChars {
		b.WriteByte(base36[e.rng.IntN(len(base36))])
	}
	return b.String()
}

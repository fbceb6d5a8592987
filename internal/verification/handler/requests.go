package handler

import (
	"encoding/json"
	"strings"

	"voxid/internal/verification/query"
	dErrors "voxid/pkg/domain-errors"
	"voxid/pkg/validation"
)

const maxJSONBody = validation.MaxJSONBodySize

// FilterRequest is the raw criteria object posted to /verification/filter.
// Keys that name no filterable attribute are ignored.
type FilterRequest struct {
	Criteria map[string]string

	criteria query.Criteria
}

// UnmarshalJSON accepts the criteria object itself as the request body.
func (r *FilterRequest) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &r.Criteria)
}

func (r *FilterRequest) Normalize() {
	r.Criteria = trimValues(r.Criteria)
}

func (r *FilterRequest) Validate() error {
	c, err := query.ParseCriteria(r.Criteria)
	if err != nil {
		return err
	}
	r.criteria = c
	return nil
}

// DatasetRequest asks for a dataset of the users matching Filters.
type DatasetRequest struct {
	Filters     map[string]string `json:"filters"`
	RequestedBy string            `json:"requestedBy" validate:"notblank,max=256"`
	UseCase     string            `json:"useCase" validate:"max=128"`

	criteria query.Criteria
}

func (r *DatasetRequest) Normalize() {
	r.Filters = trimValues(r.Filters)
	r.RequestedBy = strings.TrimSpace(r.RequestedBy)
	r.UseCase = strings.TrimSpace(r.UseCase)
}

func (r *DatasetRequest) Validate() error {
	if err := validation.Validate(r); err != nil {
		return err
	}
	c, err := query.ParseCriteria(r.Filters)
	if err != nil {
		return err
	}
	r.criteria = c
	return nil
}

// initiateForm holds the non-file fields of the intake upload.
type initiateForm struct {
	AccountID string `json:"accountId" validate:"required,accountid"`
}

func (f *initiateForm) Validate() error {
	if f.AccountID == "" {
		return dErrors.New(dErrors.CodeValidation, "accountId is required")
	}
	return validation.Validate(f)
}

func trimValues(in map[string]string) map[string]string {
	if in == nil {
		return map[string]string{}
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = strings.TrimSpace(v)
	}
	return out
}

package handler

import (
	"time"

	"voxid/internal/verification/models"
	"voxid/internal/verification/query"
)

type DemographicsResponse struct {
	Age             *int   `json:"age,omitempty"`
	AgeRange        string `json:"ageRange,omitempty"`
	Gender          string `json:"gender,omitempty"`
	Region          string `json:"region,omitempty"`
	State           string `json:"state,omitempty"`
	Country         string `json:"country,omitempty"`
	PrimaryLanguage string `json:"primaryLanguage,omitempty"`
	Accent          string `json:"accent,omitempty"`
	Education       string `json:"education,omitempty"`
}

type RecordResponse struct {
	AccountID      string               `json:"accountId"`
	VerificationID string               `json:"verificationId"`
	IsVerified     bool                 `json:"isVerified"`
	Status         string               `json:"status"`
	Score          int                  `json:"verificationScore"`
	Demographics   DemographicsResponse `json:"demographics"`
	CreatedAt      time.Time            `json:"createdAt"`
	UpdatedAt      time.Time            `json:"updatedAt"`
}

type UserSummary struct {
	AccountID    string               `json:"accountId"`
	Demographics DemographicsResponse `json:"demographics"`
	Score        int                  `json:"verificationScore"`
}

type FilterResponse struct {
	Count   int               `json:"count"`
	Users   []UserSummary     `json:"users"`
	Filters map[string]string `json:"filters"`
}

type DatasetResponse struct {
	DatasetID   string            `json:"datasetId"`
	RequestedBy string            `json:"requestedBy"`
	UseCase     string            `json:"useCase"`
	Filters     map[string]string `json:"filters"`
	UserCount   int               `json:"userCount"`
	Users       []UserSummary     `json:"users"`
	CreatedAt   time.Time         `json:"createdAt"`
	Status      string            `json:"status"`
}

type ClearResponse struct {
	Cleared int `json:"cleared"`
}

// IntakeErrorResponse extends the standard error body with the rejection
// reason and, where one applies, the evidence kind at fault.
type IntakeErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
	Reason           string `json:"reason"`
	EvidenceKind     string `json:"evidenceKind,omitempty"`
}

func toDemographics(d models.Demographics) DemographicsResponse {
	return DemographicsResponse{
		Age:             d.Age,
		AgeRange:        string(d.AgeBracket),
		Gender:          string(d.Gender),
		Region:          string(d.Region),
		State:           d.State,
		Country:         d.Country,
		PrimaryLanguage: d.PrimaryLanguage,
		Accent:          d.Accent,
		Education:       d.Education,
	}
}

func toRecordResponse(rec *models.Record) RecordResponse {
	return RecordResponse{
		AccountID:      rec.AccountID,
		VerificationID: rec.VerificationID.String(),
		IsVerified:     rec.IsVerified,
		Status:         string(rec.Status),
		Score:          rec.Score,
		Demographics:   toDemographics(rec.Demographics),
		CreatedAt:      rec.CreatedAt,
		UpdatedAt:      rec.UpdatedAt,
	}
}

func toSummaries(in []models.Summary) []UserSummary {
	out := make([]UserSummary, 0, len(in))
	for _, s := range in {
		out = append(out, UserSummary{
			AccountID:    s.AccountID,
			Demographics: toDemographics(s.Demographics),
			Score:        s.Score,
		})
	}
	return out
}

func toDatasetResponse(ds *query.Dataset, filters map[string]string) DatasetResponse {
	return DatasetResponse{
		DatasetID:   ds.ID,
		RequestedBy: ds.RequestedBy,
		UseCase:     ds.UseCase,
		Filters:     filters,
		UserCount:   ds.UserCount(),
		Users:       toSummaries(ds.Users),
		CreatedAt:   ds.CreatedAt,
		Status:      ds.Status,
	}
}

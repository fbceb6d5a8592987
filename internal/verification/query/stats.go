package query

import (
	"context"

	"voxid/internal/verification/models"
	"voxid/internal/verification/tracer"
	dErrors "voxid/pkg/domain-errors"
)

// Stats aggregates the verified index.
type Stats struct {
	TotalVerifiedUsers int               `json:"totalVerifiedUsers"`
	Demographics       DemographicTables `json:"demographics"`
}

// DemographicTables counts records per attribute value. Records missing an
// attribute are left out of that attribute's table rather than counted as unknown.
type DemographicTables struct {
	Gender    map[string]int `json:"gender"`
	AgeRanges map[string]int `json:"ageRanges"`
	Regions   map[string]int `json:"regions"`
	States    map[string]int `json:"states"`
}

func newStats() Stats {
	return Stats{Demographics: DemographicTables{
		Gender:    map[string]int{},
		AgeRanges: map[string]int{},
		Regions:   map[string]int{},
		States:    map[string]int{},
	}}
}

func (s DemographicTables) add(d models.Demographics) {
	tally(s.Gender, string(d.Gender))
	tally(s.AgeRanges, string(d.AgeBracket))
	tally(s.Regions, string(d.Region))
	tally(s.States, d.State)
}

func tally(table map[string]int, key string) {
	if key != "" {
		table[key]++
	}
}

// Stats computes the aggregate in one pass over a snapshot.
func (e *Engine) Stats(ctx context.Context) (stats Stats, err error) {
	_, span := e.tracer.Start(ctx, tracer.SpanStats)
	defer func() { span.End(err) }()

	records, err := e.records.All(ctx)
	if err != nil {
		return Stats{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list verification records")
	}

	stats = newStats()
	for _, rec := range records {
		if !rec.IsVerified {
			continue
		}
		stats.TotalVerifiedUsers++
		stats.Demographics.add(rec.Demographics)
	}
	span.SetAttributes(tracer.Int(tracer.AttrMatches, stats.TotalVerifiedUsers))
	return stats, nil
}

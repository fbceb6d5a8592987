package extractor

import (
	"context"
	"math/rand/v2"
	"sync"

	"voxid/internal/verification/models"
)

// SimulatedStates are the states the placeholder classifier can attribute to a document.
var SimulatedStates = []string{"Maharashtra", "Delhi", "Karnataka", "Tamil Nadu"}

const (
	simulatedMinAge = 18
	simulatedMaxAge = 67
)

// Simulated is the placeholder classifier. It draws attributes at random from the
// fixed enumerations and ignores the evidence content beyond fingerprinting it.
type Simulated struct {
	mu  sync.Mutex
	rng *rand.Rand
}

type SimulatedOption func(*Simulated)

// WithRand injects the random source, typically a seeded one in tests.
func WithRand(r *rand.Rand) SimulatedOption {
	return func(s *Simulated) {
		if r != nil {
			s.rng = r
		}
	}
}

func NewSimulated(opts ...SimulatedOption) *Simulated {
	s := &Simulated{}
	for _, opt := range opts {
		opt(s)
	}
	if s.rng == nil {
		s.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())) //nolint:gosec // attributes are simulated, not security sensitive
	}
	return s
}

func (s *Simulated) Extract(_ context.Context, kind models.EvidenceKind, raw []byte) (Extraction, error) {
	if err := precheck(kind, raw); err != nil {
		return Extraction{}, err
	}

	out := Extraction{Kind: kind, Fingerprint: fingerprintFor(kind, raw)}

	switch kind {
	case models.EvidencePrimaryDocument:
		s.mu.Lock()
		age := simulatedMinAge + s.rng.IntN(simulatedMaxAge-simulatedMinAge+1)
		gender := models.Genders[s.rng.IntN(len(models.Genders))]
		state := SimulatedStates[s.rng.IntN(len(SimulatedStates))]
		s.mu.Unlock()

		attrs, err := identityAttributes(age, gender, state)
		if err != nil {
			return Extraction{}, err
		}
		out.Attributes = attrs
	case models.EvidenceVoiceSample:
		s.mu.Lock()
		accent := models.Accents[s.rng.IntN(len(models.Accents))]
		language := models.Languages[s.rng.IntN(len(models.Languages))]
		s.mu.Unlock()
		out.Attributes = voiceAttributes(accent, language)
	}
	return out, nil
}

var _ Extractor = (*Simulated)(nil)

// Package extractor turns raw evidence bytes into demographic attributes and a
// deduplication fingerprint.
//
// Extractor is the seam between the intake pipeline and whatever classifier
// reads the evidence. Simulated is the placeholder classifier; HTTPClassifier
// delegates to an external service. Fingerprinting is always local.
package extractor

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"voxid/internal/verification/models"
)

var (
	ErrEmptyEvidence   = errors.New("evidence is empty")
	ErrUnsupportedKind = errors.New("unsupported evidence kind")
)

// Extraction is the result of reading one evidence item.
type Extraction struct {
	Kind       models.EvidenceKind
	Attributes models.Demographics
	// Fingerprint is empty for kinds that are not deduplicated.
	Fingerprint string
}

func (e Extraction) HasFingerprint() bool {
	return e.Fingerprint != ""
}

// Extractor reads one evidence item. Implementations must be safe for concurrent use
// and must not touch any store.
type Extractor interface {
	Extract(ctx context.Context, kind models.EvidenceKind, raw []byte) (Extraction, error)
}

// Fingerprint returns the lowercase hex SHA-256 digest of raw.
func Fingerprint(raw []byte) string {
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// precheck applies the rules shared by every implementation.
func precheck(kind models.EvidenceKind, raw []byte) error {
	if !kind.IsValid() {
		return fmt.Errorf("%w: %q", ErrUnsupportedKind, kind)
	}
	if len(raw) == 0 {
		return ErrEmptyEvidence
	}
	return nil
}

// fingerprintFor returns the digest for kinds that participate in deduplication.
func fingerprintFor(kind models.EvidenceKind, raw []byte) string {
	if !kind.Fingerprinted() {
		return ""
	}
	return Fingerprint(raw)
}

// identityAttributes derives the attribute set of a primary identity document.
func identityAttributes(age int, gender models.Gender, state string) (models.Demographics, error) {
	bracket, err := models.AgeBracketFor(age)
	if err != nil {
		return models.Demographics{}, err
	}
	if gender != models.GenderMale && gender != models.GenderFemale {
		return models.Demographics{}, fmt.Errorf("unrecognized gender %q", gender)
	}
	return models.Demographics{
		Age:        &age,
		AgeBracket: bracket,
		Gender:     gender,
		State:      state,
		Region:     models.RegionForState(state),
	}, nil
}

func voiceAttributes(accent, language string) models.Demographics {
	return models.Demographics{Accent: accent, PrimaryLanguage: language}
}

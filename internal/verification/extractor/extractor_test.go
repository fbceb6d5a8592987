package extractor

import (
	"context"
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voxid/internal/verification/models"
)

func TestFingerprint(t *testing.T) {
	// SHA-256 of "abc".
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", Fingerprint([]byte("abc")))
	assert.NotEqual(t, Fingerprint([]byte("a")), Fingerprint([]byte("b")))
}

func TestSimulated_PrimaryDocument(t *testing.T) {
	s := NewSimulated(WithRand(rand.New(rand.NewPCG(1, 2))))

	for range 200 {
		out, err := s.Extract(context.Background(), models.EvidencePrimaryDocument, []byte("aadhaar-scan"))
		require.NoError(t, err)

		assert.Equal(t, Fingerprint([]byte("aadhaar-scan")), out.Fingerprint)
		require.NotNil(t, out.Attributes.Age)
		age := *out.Attributes.Age
		assert.GreaterOrEqual(t, age, 18)
		assert.LessOrEqual(t, age, 67)

		bracket, err := models.AgeBracketFor(age)
		require.NoError(t, err)
		assert.Equal(t, bracket, out.Attributes.AgeBracket)
		assert.Contains(t, models.Genders, out.Attributes.Gender)
		assert.True(t, slices.Contains(SimulatedStates, out.Attributes.State))
		assert.Equal(t, models.RegionForState(out.Attributes.State), out.Attributes.Region)
		assert.Empty(t, out.Attributes.Accent)
	}
}

func TestSimulated_SecondaryDocument(t *testing.T) {
	out, err := NewSimulated().Extract(context.Background(), models.EvidenceSecondaryDocument, []byte("pan-scan"))
	require.NoError(t, err)

	assert.True(t, out.HasFingerprint())
	assert.Equal(t, models.Demographics{}, out.Attributes, "secondary documents yield no filterable attributes")
}

func TestSimulated_VoiceSample(t *testing.T) {
	out, err := NewSimulated().Extract(context.Background(), models.EvidenceVoiceSample, []byte("RIFF...."))
	require.NoError(t, err)

	assert.False(t, out.HasFingerprint(), "voice samples are not deduplicated")
	assert.True(t, slices.Contains(models.Accents, out.Attributes.Accent))
	assert.True(t, slices.Contains(models.Languages, out.Attributes.PrimaryLanguage))
	assert.Nil(t, out.Attributes.Age)
}

func TestSimulated_SeededIsDeterministic(t *testing.T) {
	a := NewSimulated(WithRand(rand.New(rand.NewPCG(7, 7))))
	b := NewSimulated(WithRand(rand.New(rand.NewPCG(7, 7))))

	for range 20 {
		outA, err := a.Extract(context.Background(), models.EvidencePrimaryDocument, []byte("x"))
		require.NoError(t, err)
		outB, err := b.Extract(context.Background(), models.EvidencePrimaryDocument, []byte("x"))
		require.NoError(t, err)
		assert.Equal(t, outA, outB)
	}
}

func TestSimulated_Rejections(t *testing.T) {
	s := NewSimulated()

	_, err := s.Extract(context.Background(), models.EvidencePrimaryDocument, nil)
	assert.ErrorIs(t, err, ErrEmptyEvidence)

	_, err = s.Extract(context.Background(), models.EvidenceKind("selfie"), []byte("x"))
	assert.ErrorIs(t, err, ErrUnsupportedKind)
}

func TestIdentityAttributes_RejectsMinors(t *testing.T) {
	_, err := identityAttributes(17, models.GenderFemale, "Delhi")
	assert.Error(t, err)

	_, err = identityAttributes(30, models.Gender("Unknown"), "Delhi")
	assert.Error(t, err)

	attrs, err := identityAttributes(30, models.GenderFemale, "Kerala")
	require.NoError(t, err)
	assert.Equal(t, models.RegionOther, attrs.Region)
}

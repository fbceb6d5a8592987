package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"voxid/internal/verification/extractor"
	"voxid/internal/verification/metrics"
	"voxid/internal/verification/models"
	"voxid/internal/verification/service/mocks"
	dErrors "voxid/pkg/domain-errors"
	"voxid/pkg/platform/audit"
	"voxid/pkg/platform/middleware/requesttime"
	"voxid/pkg/platform/sentinel"
	"voxid/pkg/requestcontext"
)

const (
	testAccount = "0x01cf0e2f2f715450"
	testVerID   = models.VerificationID("VER_00112233AABBCCDD")
)

var fixedNow = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

type ServiceSuite struct {
	suite.Suite
	ctrl             *gomock.Controller
	mockRecords      *mocks.MockRecordStore
	mockFingerprints *mocks.MockFingerprintStore
	mockExtractor    *mocks.MockExtractor
	mockAudit        *mocks.MockAuditPublisher
	registry         *prometheus.Registry
	metrics          *metrics.Metrics
	service          *Service
	ctx              context.Context
}

func (s *ServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.mockRecords = mocks.NewMockRecordStore(s.ctrl)
	s.mockFingerprints = mocks.NewMockFingerprintStore(s.ctrl)
	s.mockExtractor = mocks.NewMockExtractor(s.ctrl)
	s.mockAudit = mocks.NewMockAuditPublisher(s.ctrl)
	s.registry = prometheus.NewRegistry()
	s.metrics = metrics.New(s.registry)

	s.service = New(s.mockRecords, s.mockFingerprints, s.mockExtractor,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithMetrics(s.metrics),
		WithAuditPublisher(s.mockAudit),
		WithIDGenerator(func() models.VerificationID { return testVerID }),
	)
	s.ctx = requestcontext.WithRequestID(requesttime.WithTime(context.Background(), fixedNow), "req-1")
}

func (s *ServiceSuite) TearDownTest() {
	s.ctrl.Finish()
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func age(n int) *int { return &n }

func primaryExtraction(raw string) extractor.Extraction {
	return extractor.Extraction{
		Kind: models.EvidencePrimaryDocument,
		Attributes: models.Demographics{
			Age: age(30), AgeBracket: models.AgeBracket26to35,
			Gender: models.GenderFemale, State: "Delhi", Region: models.RegionNorthern,
		},
		Fingerprint: extractor.Fingerprint([]byte(raw)),
	}
}

func secondaryExtraction(raw string) extractor.Extraction {
	return extractor.Extraction{
		Kind:        models.EvidenceSecondaryDocument,
		Fingerprint: extractor.Fingerprint([]byte(raw)),
	}
}

func voiceExtraction() extractor.Extraction {
	return extractor.Extraction{
		Kind:       models.EvidenceVoiceSample,
		Attributes: models.Demographics{Accent: "Hindi", PrimaryLanguage: "Hindi"},
	}
}

func (s *ServiceSuite) expectUnverified(times int) {
	s.mockRecords.EXPECT().Get(gomock.Any(), testAccount).
		Return(nil, sentinel.ErrNotFound).Times(times)
}

func (s *ServiceSuite) expectAudit(action audit.AuditEvent, check func(audit.Event)) {
	s.mockAudit.EXPECT().Emit(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, e audit.Event) error {
			s.Equal(string(action), e.Action)
			s.Equal("req-1", e.RequestID)
			if check != nil {
				check(e)
			}
			return nil
		})
}

func (s *ServiceSuite) intakeCount(outcome string) float64 {
	return testutil.ToFloat64(s.metrics.IntakesTotal.WithLabelValues(outcome))
}

func (s *ServiceSuite) TestVerify_Success() {
	evidence := models.Evidence{
		models.EvidencePrimaryDocument:   []byte("aadhaar"),
		models.EvidenceSecondaryDocument: []byte("pan"),
		models.EvidenceVoiceSample:       []byte("voice"),
	}
	primary, secondary := primaryExtraction("aadhaar"), secondaryExtraction("pan")

	s.expectUnverified(2)
	gomock.InOrder(
		s.mockExtractor.EXPECT().Extract(gomock.Any(), models.EvidencePrimaryDocument, []byte("aadhaar")).Return(primary, nil),
		s.mockExtractor.EXPECT().Extract(gomock.Any(), models.EvidenceSecondaryDocument, []byte("pan")).Return(secondary, nil),
		s.mockExtractor.EXPECT().Extract(gomock.Any(), models.EvidenceVoiceSample, []byte("voice")).Return(voiceExtraction(), nil),
	)
	s.mockFingerprints.EXPECT().Reserve(gomock.Any(), primary.Fingerprint, secondary.Fingerprint).Return("", nil)
	s.mockRecords.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, rec *models.Record) error {
			s.Equal(testAccount, rec.AccountID)
			return nil
		})
	s.expectAudit(audit.EventVerificationSucceeded, func(e audit.Event) {
		s.Equal(testAccount, e.AccountID)
		s.Equal(testVerID.String(), e.VerificationID)
	})

	rec, err := s.service.Verify(s.ctx, testAccount, evidence)
	s.Require().NoError(err)

	s.Equal(testVerID, rec.VerificationID)
	s.True(rec.IsVerified)
	s.Equal(models.StatusVerified, rec.Status)
	s.Equal(90, rec.Score)
	s.Equal(fixedNow, rec.CreatedAt)
	s.Equal(fixedNow, rec.UpdatedAt)
	s.Equal(models.GenderFemale, rec.Demographics.Gender)
	s.Equal("Hindi", rec.Demographics.Accent)
	s.Equal(models.DefaultCountry, rec.Demographics.Country)
	s.Equal(1.0, s.intakeCount(metrics.OutcomeVerified))
	s.Equal(1.0, testutil.ToFloat64(s.metrics.VerifiedRecords))
}

func (s *ServiceSuite) TestVerify_InvalidInputTouchesNothing() {
	s.Run("bad account id", func() {
		_, err := s.service.Verify(s.ctx, "not an id!", models.Evidence{
			models.EvidencePrimaryDocument: []byte("x"),
		})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("unknown evidence kind", func() {
		_, err := s.service.Verify(s.ctx, testAccount, models.Evidence{"passport": []byte("x")})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
	s.Equal(0, testutil.CollectAndCount(s.metrics.IntakesTotal))
}

func (s *ServiceSuite) TestVerify_NoEvidenceIsInsufficient() {
	s.expectUnverified(1)
	s.expectAudit(audit.EventVerificationRejected, func(e audit.Event) {
		s.Equal(string(models.ReasonInsufficientEvidence), e.Reason)
	})

	_, err := s.service.Verify(s.ctx, testAccount, models.Evidence{})
	s.ErrorIs(err, models.ErrInsufficientEvidence)
	s.Equal(1.0, s.intakeCount(string(models.ReasonInsufficientEvidence)))
}

func (s *ServiceSuite) TestVerify_AlreadyVerifiedSkipsExtraction() {
	s.mockRecords.EXPECT().Get(gomock.Any(), testAccount).Return(&models.Record{AccountID: testAccount}, nil)
	s.expectAudit(audit.EventVerificationRejected, func(e audit.Event) {
		s.Equal(string(models.ReasonAccountAlreadyVerified), e.Reason)
	})

	_, err := s.service.Verify(s.ctx, testAccount, models.Evidence{
		models.EvidencePrimaryDocument: []byte("aadhaar"),
	})
	s.ErrorIs(err, models.ErrAccountAlreadyVerified)
}

func (s *ServiceSuite) TestVerify_NoEvidenceForVerifiedAccount() {
	s.mockRecords.EXPECT().Get(gomock.Any(), testAccount).Return(&models.Record{AccountID: testAccount}, nil)
	s.expectAudit(audit.EventVerificationRejected, func(e audit.Event) {
		s.Equal(string(models.ReasonAccountAlreadyVerified), e.Reason)
	})

	_, err := s.service.Verify(s.ctx, testAccount, models.Evidence{})
	s.ErrorIs(err, models.ErrAccountAlreadyVerified)
}

func (s *ServiceSuite) TestVerify_ExtractionFailureStopsAtKind() {
	s.expectUnverified(1)
	s.mockExtractor.EXPECT().Extract(gomock.Any(), models.EvidencePrimaryDocument, gomock.Any()).
		Return(primaryExtraction("aadhaar"), nil)
	s.mockExtractor.EXPECT().Extract(gomock.Any(), models.EvidenceSecondaryDocument, gomock.Any()).
		Return(extractor.Extraction{}, errors.New("unreadable"))
	s.expectAudit(audit.EventVerificationRejected, func(e audit.Event) {
		s.Equal("extraction_failed:secondary_identity_document", e.Reason)
	})

	_, err := s.service.Verify(s.ctx, testAccount, models.Evidence{
		models.EvidencePrimaryDocument:   []byte("aadhaar"),
		models.EvidenceSecondaryDocument: []byte("pan"),
		models.EvidenceVoiceSample:       []byte("voice"),
	})

	var intakeErr *models.IntakeError
	s.Require().ErrorAs(err, &intakeErr)
	s.Equal(models.ReasonExtractionFailed, intakeErr.Reason)
	s.Equal(models.EvidenceSecondaryDocument, intakeErr.Kind)
	s.Equal(1.0, testutil.ToFloat64(s.metrics.ExtractionFailuresTotal.WithLabelValues("secondary_identity_document")))
}

func (s *ServiceSuite) TestVerify_CollisionNamesKindAndSkipsCreate() {
	primary, secondary := primaryExtraction("aadhaar"), secondaryExtraction("pan")

	s.expectUnverified(2)
	s.mockExtractor.EXPECT().Extract(gomock.Any(), models.EvidencePrimaryDocument, gomock.Any()).Return(primary, nil)
	s.mockExtractor.EXPECT().Extract(gomock.Any(), models.EvidenceSecondaryDocument, gomock.Any()).Return(secondary, nil)
	s.mockFingerprints.EXPECT().Reserve(gomock.Any(), primary.Fingerprint, secondary.Fingerprint).
		Return(secondary.Fingerprint, nil)
	s.expectAudit(audit.EventVerificationRejected, nil)

	_, err := s.service.Verify(s.ctx, testAccount, models.Evidence{
		models.EvidencePrimaryDocument:   []byte("aadhaar"),
		models.EvidenceSecondaryDocument: []byte("pan"),
	})

	var intakeErr *models.IntakeError
	s.Require().ErrorAs(err, &intakeErr)
	s.Equal(models.ReasonDuplicateEvidence, intakeErr.Reason)
	s.Equal(models.EvidenceSecondaryDocument, intakeErr.Kind)
	s.Equal(1.0, testutil.ToFloat64(s.metrics.FingerprintCollisionsTotal.WithLabelValues("secondary_identity_document")))
}

func (s *ServiceSuite) TestVerify_IdenticalDocumentsInOneIntake() {
	s.expectUnverified(1)
	s.mockExtractor.EXPECT().Extract(gomock.Any(), models.EvidencePrimaryDocument, gomock.Any()).
		Return(primaryExtraction("same"), nil)
	s.mockExtractor.EXPECT().Extract(gomock.Any(), models.EvidenceSecondaryDocument, gomock.Any()).
		Return(secondaryExtraction("same"), nil)
	s.expectAudit(audit.EventVerificationRejected, nil)

	_, err := s.service.Verify(s.ctx, testAccount, models.Evidence{
		models.EvidencePrimaryDocument:   []byte("same"),
		models.EvidenceSecondaryDocument: []byte("same"),
	})

	var intakeErr *models.IntakeError
	s.Require().ErrorAs(err, &intakeErr)
	s.Equal(models.ReasonDuplicateEvidence, intakeErr.Reason)
	s.Equal(models.EvidenceSecondaryDocument, intakeErr.Kind)
}

func (s *ServiceSuite) TestVerify_BelowGateKeepsFingerprints() {
	secondary := secondaryExtraction("pan")

	s.expectUnverified(2)
	s.mockExtractor.EXPECT().Extract(gomock.Any(), models.EvidenceSecondaryDocument, gomock.Any()).Return(secondary, nil)
	// Reserve commits before the gate; there is no compensating release.
	s.mockFingerprints.EXPECT().Reserve(gomock.Any(), secondary.Fingerprint).Return("", nil)
	s.expectAudit(audit.EventVerificationRejected, nil)

	_, err := s.service.Verify(s.ctx, testAccount, models.Evidence{
		models.EvidenceSecondaryDocument: []byte("pan"),
	})
	s.ErrorIs(err, models.ErrInsufficientEvidence)
}

func (s *ServiceSuite) TestVerify_CreateRaceBecomesAlreadyVerified() {
	primary := primaryExtraction("aadhaar")

	s.expectUnverified(2)
	s.mockExtractor.EXPECT().Extract(gomock.Any(), gomock.Any(), gomock.Any()).Return(primary, nil)
	s.mockFingerprints.EXPECT().Reserve(gomock.Any(), primary.Fingerprint).Return("", nil)
	s.mockRecords.EXPECT().Create(gomock.Any(), gomock.Any()).Return(sentinel.ErrAlreadyExists)
	s.expectAudit(audit.EventVerificationRejected, nil)

	_, err := s.service.Verify(s.ctx, testAccount, models.Evidence{
		models.EvidencePrimaryDocument: []byte("aadhaar"),
	})
	s.ErrorIs(err, models.ErrAccountAlreadyVerified)
}

func (s *ServiceSuite) TestVerify_TakenVerificationIDIsRedrawn() {
	primary := primaryExtraction("aadhaar")
	evidence := models.Evidence{models.EvidencePrimaryDocument: []byte("aadhaar")}

	s.Run("second draw succeeds", func() {
		s.expectUnverified(2)
		s.mockExtractor.EXPECT().Extract(gomock.Any(), gomock.Any(), gomock.Any()).Return(primary, nil)
		s.mockFingerprints.EXPECT().Reserve(gomock.Any(), primary.Fingerprint).Return("", nil)
		gomock.InOrder(
			s.mockRecords.EXPECT().Create(gomock.Any(), gomock.Any()).Return(models.ErrVerificationIDTaken),
			s.mockRecords.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil),
		)
		s.expectAudit(audit.EventVerificationSucceeded, nil)

		rec, err := s.service.Verify(s.ctx, testAccount, evidence)
		s.Require().NoError(err)
		s.Equal(testVerID, rec.VerificationID)
	})

	s.Run("gives up after repeated collisions", func() {
		s.expectUnverified(2)
		s.mockExtractor.EXPECT().Extract(gomock.Any(), gomock.Any(), gomock.Any()).Return(primary, nil)
		s.mockFingerprints.EXPECT().Reserve(gomock.Any(), primary.Fingerprint).Return("", nil)
		s.mockRecords.EXPECT().Create(gomock.Any(), gomock.Any()).Return(models.ErrVerificationIDTaken).Times(maxIDAttempts)
		s.mockAudit.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()

		_, err := s.service.Verify(s.ctx, testAccount, evidence)
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})
}

func (s *ServiceSuite) TestVerify_InfrastructureErrors() {
	s.Run("record lookup", func() {
		s.mockRecords.EXPECT().Get(gomock.Any(), testAccount).Return(nil, errors.New("connection reset"))

		_, err := s.service.Verify(s.ctx, testAccount, models.Evidence{models.EvidencePrimaryDocument: []byte("a")})
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})

	s.Run("fingerprint reservation", func() {
		primary := primaryExtraction("b")
		s.expectUnverified(2)
		s.mockExtractor.EXPECT().Extract(gomock.Any(), gomock.Any(), gomock.Any()).Return(primary, nil)
		s.mockFingerprints.EXPECT().Reserve(gomock.Any(), primary.Fingerprint).Return("", errors.New("redis down"))

		_, err := s.service.Verify(s.ctx, testAccount, models.Evidence{models.EvidencePrimaryDocument: []byte("b")})
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})

	s.Equal(2.0, s.intakeCount(metrics.OutcomeError))
}

func (s *ServiceSuite) TestVerify_AuditFailureDoesNotFailIntake() {
	primary := primaryExtraction("aadhaar")
	s.expectUnverified(2)
	s.mockExtractor.EXPECT().Extract(gomock.Any(), gomock.Any(), gomock.Any()).Return(primary, nil)
	s.mockFingerprints.EXPECT().Reserve(gomock.Any(), primary.Fingerprint).Return("", nil)
	s.mockRecords.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil)
	s.mockAudit.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(errors.New("buffer full"))

	rec, err := s.service.Verify(s.ctx, testAccount, models.Evidence{
		models.EvidencePrimaryDocument: []byte("aadhaar"),
	})
	s.Require().NoError(err)
	s.Equal(40, rec.Score)
}

func (s *ServiceSuite) TestGet() {
	s.Run("found", func() {
		s.mockRecords.EXPECT().Get(gomock.Any(), testAccount).Return(&models.Record{AccountID: testAccount}, nil)
		rec, err := s.service.Get(s.ctx, testAccount)
		s.Require().NoError(err)
		s.Equal(testAccount, rec.AccountID)
	})

	s.Run("not found", func() {
		s.mockRecords.EXPECT().Get(gomock.Any(), "missing").Return(nil, sentinel.ErrNotFound)
		_, err := s.service.Get(s.ctx, "missing")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("store failure", func() {
		s.mockRecords.EXPECT().Get(gomock.Any(), "broken").Return(nil, errors.New("timeout"))
		_, err := s.service.Get(s.ctx, "broken")
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})
}

func (s *ServiceSuite) TestTokenMetadata_UnknownAccount() {
	s.mockRecords.EXPECT().Get(gomock.Any(), "missing").Return(nil, sentinel.ErrNotFound)

	meta, err := s.service.TokenMetadata(s.ctx, "missing")
	s.Require().NoError(err)
	s.False(meta.Verified)
	s.Equal(models.Unspecified, meta.VerificationID)
	s.Equal(models.Unspecified, meta.Country)
}

func (s *ServiceSuite) TestClear() {
	ctx := requestcontext.WithAdminActor(s.ctx, "ops@voxid")
	s.metrics.SetRecords(3)

	gomock.InOrder(
		s.mockRecords.EXPECT().Count(gomock.Any()).Return(3, nil),
		s.mockRecords.EXPECT().Clear(gomock.Any()).Return(nil),
	)
	s.expectAudit(audit.EventRecordsCleared, func(e audit.Event) {
		s.Equal("ops@voxid", e.Actor)
	})

	n, err := s.service.Clear(ctx)
	s.Require().NoError(err)
	s.Equal(3, n)
	s.Equal(0.0, testutil.ToFloat64(s.metrics.VerifiedRecords))
}

package handler

// Handler tests cover status mapping, upload parsing and error bodies.
// Full request flows against real stores live in e2e/features.

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"voxid/internal/verification/handler/mocks"
	"voxid/internal/verification/models"
	"voxid/internal/verification/query"
	dErrors "voxid/pkg/domain-errors"
	"voxid/pkg/platform/middleware/admin"
	"voxid/pkg/requestcontext"
)

const (
	testAdminToken = "s3cret"
	testAccount    = "0x01cf0e2f2f715450"
)

var (
	pngBytes = append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 32)...)
	pdfBytes = []byte("%PDF-1.7\n1 0 obj\n")
	wavBytes = append([]byte("RIFF\x24\x00\x00\x00WAVEfmt "), bytes.Repeat([]byte{0}, 32)...)
)

type HandlerSuite struct {
	suite.Suite
	ctrl    *gomock.Controller
	service *mocks.MockService
	query   *mocks.MockQuery
	router  chi.Router
}

func (s *HandlerSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.service = mocks.NewMockService(s.ctrl)
	s.query = mocks.NewMockQuery(s.ctrl)

	h := New(s.service, s.query, Limits{MaxDocumentBytes: 1024, MaxAudioBytes: 2048}, testAdminToken,
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.router = chi.NewRouter()
	h.Register(s.router)
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

type filePart struct {
	field       string
	contentType string
	data        []byte
}

func multipartBody(fields map[string]string, files ...filePart) (io.Reader, string) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		_ = mw.WriteField(k, v)
	}
	for _, f := range files {
		hdr := textproto.MIMEHeader{}
		hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename="%s.bin"`, f.field, f.field))
		if f.contentType != "" {
			hdr.Set("Content-Type", f.contentType)
		}
		w, _ := mw.CreatePart(hdr)
		_, _ = w.Write(f.data)
	}
	_ = mw.Close()
	return &buf, mw.FormDataContentType()
}

func (s *HandlerSuite) serve(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *HandlerSuite) initiate(fields map[string]string, files ...filePart) *httptest.ResponseRecorder {
	body, contentType := multipartBody(fields, files...)
	req := httptest.NewRequest(http.MethodPost, "/verification/initiate", body)
	req.Header.Set("Content-Type", contentType)
	return s.serve(req)
}

func (s *HandlerSuite) postJSON(path string, body any) *httptest.ResponseRecorder {
	raw, err := json.Marshal(body)
	s.Require().NoError(err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	return s.serve(req)
}

func (s *HandlerSuite) decode(w *httptest.ResponseRecorder, v any) {
	s.Require().NoError(json.NewDecoder(w.Body).Decode(v))
}

func (s *HandlerSuite) assertError(w *httptest.ResponseRecorder, status int, code string) {
	s.Equal(status, w.Code)
	var body map[string]any
	s.decode(w, &body)
	s.Equal(code, body["error"])
}

func verifiedRecord() *models.Record {
	age := 30
	return models.NewVerifiedRecord(testAccount, "VER_00112233AABBCCDD", models.Demographics{
		Age: &age, AgeBracket: models.AgeBracket26to35, Gender: models.GenderFemale,
		State: "Delhi", Region: models.RegionNorthern,
	}, 90, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
}

func (s *HandlerSuite) TestInitiate_Success() {
	s.service.EXPECT().Verify(gomock.Any(), testAccount, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ string, evidence models.Evidence) (*models.Record, error) {
			s.Equal(models.Evidence{
				models.EvidencePrimaryDocument:   pngBytes,
				models.EvidenceSecondaryDocument: pdfBytes,
				models.EvidenceVoiceSample:       wavBytes,
			}, evidence)
			return verifiedRecord(), nil
		})

	w := s.initiate(map[string]string{"accountId": testAccount},
		filePart{field: "aadhaar", contentType: "image/png", data: pngBytes},
		filePart{field: "pan", contentType: "application/pdf", data: pdfBytes},
		filePart{field: "voiceSample", contentType: "audio/wav", data: wavBytes},
	)

	s.Require().Equal(http.StatusOK, w.Code)
	var resp RecordResponse
	s.decode(w, &resp)
	s.Equal(testAccount, resp.AccountID)
	s.Equal("VER_00112233AABBCCDD", resp.VerificationID)
	s.True(resp.IsVerified)
	s.Equal(90, resp.Score)
	s.Equal("26-35", resp.Demographics.AgeRange)
	s.Equal("India", resp.Demographics.Country)
}

func (s *HandlerSuite) TestInitiate_AccountAlias() {
	s.Run("userAddress is accepted", func() {
		s.service.EXPECT().Verify(gomock.Any(), "0xabc", gomock.Any()).Return(verifiedRecord(), nil)
		w := s.initiate(map[string]string{"userAddress": "0xabc"},
			filePart{field: "aadhaar", contentType: "image/jpeg", data: pngBytes})
		s.Equal(http.StatusOK, w.Code)
	})

	s.Run("missing account id", func() {
		w := s.initiate(nil, filePart{field: "aadhaar", contentType: "image/png", data: pngBytes})
		s.assertError(w, http.StatusBadRequest, "validation_error")
	})

	s.Run("malformed account id", func() {
		w := s.initiate(map[string]string{"accountId": "bad id"},
			filePart{field: "aadhaar", contentType: "image/png", data: pngBytes})
		s.assertError(w, http.StatusBadRequest, "validation_error")
	})
}

func (s *HandlerSuite) TestInitiate_UploadLimits() {
	s.Run("document over limit", func() {
		w := s.initiate(map[string]string{"accountId": testAccount},
			filePart{field: "pan", contentType: "application/pdf", data: bytes.Repeat([]byte("a"), 1025)})
		s.assertError(w, http.StatusRequestEntityTooLarge, "payload_too_large")
	})

	s.Run("audio has its own larger limit", func() {
		s.service.EXPECT().Verify(gomock.Any(), testAccount, gomock.Any()).Return(verifiedRecord(), nil)
		w := s.initiate(map[string]string{"accountId": testAccount},
			filePart{field: "voiceSample", contentType: "audio/mpeg", data: bytes.Repeat([]byte("a"), 1500)})
		s.Equal(http.StatusOK, w.Code)
	})

	s.Run("wrong media type for document", func() {
		w := s.initiate(map[string]string{"accountId": testAccount},
			filePart{field: "aadhaar", contentType: "audio/wav", data: wavBytes})
		s.assertError(w, http.StatusUnsupportedMediaType, "unsupported_media_type")
	})

	s.Run("undeclared type is sniffed", func() {
		s.service.EXPECT().Verify(gomock.Any(), testAccount, gomock.Any()).Return(verifiedRecord(), nil)
		w := s.initiate(map[string]string{"accountId": testAccount},
			filePart{field: "aadhaar", contentType: "application/octet-stream", data: pngBytes})
		s.Equal(http.StatusOK, w.Code)
	})

	s.Run("duplicate file field", func() {
		w := s.initiate(map[string]string{"accountId": testAccount},
			filePart{field: "aadhaar", contentType: "image/png", data: pngBytes},
			filePart{field: "aadhaar", contentType: "image/png", data: pngBytes})
		s.assertError(w, http.StatusBadRequest, "validation_error")
	})

	s.Run("not multipart", func() {
		req := httptest.NewRequest(http.MethodPost, "/verification/initiate", strings.NewReader(`{}`))
		req.Header.Set("Content-Type", "application/json")
		s.assertError(s.serve(req), http.StatusUnsupportedMediaType, "unsupported_media_type")
	})
}

func (s *HandlerSuite) TestInitiate_RejectionMapping() {
	cases := []struct {
		name   string
		err    error
		status int
		reason string
		kind   string
	}{
		{"already verified", models.NewAccountAlreadyVerified(), http.StatusConflict, "account_already_verified", ""},
		{"extraction failed", models.NewExtractionFailed(models.EvidenceVoiceSample, errors.New("silence")), http.StatusUnprocessableEntity, "extraction_failed", "voice_sample"},
		{"duplicate", models.NewDuplicateEvidence(models.EvidencePrimaryDocument), http.StatusConflict, "duplicate_evidence", "primary_identity_document"},
		{"insufficient", models.NewInsufficientEvidence(30), http.StatusUnprocessableEntity, "insufficient_evidence", ""},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			s.service.EXPECT().Verify(gomock.Any(), testAccount, gomock.Any()).Return(nil, tc.err)
			w := s.initiate(map[string]string{"accountId": testAccount},
				filePart{field: "aadhaar", contentType: "image/png", data: pngBytes})

			s.Equal(tc.status, w.Code)
			var body IntakeErrorResponse
			s.decode(w, &body)
			s.Equal(tc.reason, body.Reason)
			s.Equal(tc.kind, body.EvidenceKind)
		})
	}

	s.Run("infrastructure failure", func() {
		s.service.EXPECT().Verify(gomock.Any(), testAccount, gomock.Any()).
			Return(nil, dErrors.Wrap(errors.New("db down"), dErrors.CodeInternal, "failed to persist"))
		w := s.initiate(map[string]string{"accountId": testAccount},
			filePart{field: "aadhaar", contentType: "image/png", data: pngBytes})
		s.assertError(w, http.StatusInternalServerError, "internal_error")
	})
}

func (s *HandlerSuite) TestGetUser() {
	s.Run("found", func() {
		s.service.EXPECT().Get(gomock.Any(), testAccount).Return(verifiedRecord(), nil)
		w := s.serve(httptest.NewRequest(http.MethodGet, "/verification/user/"+testAccount, nil))
		s.Equal(http.StatusOK, w.Code)
	})

	s.Run("not found", func() {
		s.service.EXPECT().Get(gomock.Any(), "nobody").
			Return(nil, dErrors.New(dErrors.CodeNotFound, "verification record not found"))
		w := s.serve(httptest.NewRequest(http.MethodGet, "/verification/user/nobody", nil))
		s.assertError(w, http.StatusNotFound, "not_found")
	})
}

func (s *HandlerSuite) TestTokenMetadata() {
	s.service.EXPECT().TokenMetadata(gomock.Any(), "nobody").Return(models.TokenMetadataFor(nil), nil)

	w := s.serve(httptest.NewRequest(http.MethodGet, "/verification/user/nobody/token-metadata", nil))
	s.Require().Equal(http.StatusOK, w.Code)
	var body map[string]any
	s.decode(w, &body)
	s.Equal(false, body["verified"])
	s.Equal("unspecified", body["gender"])
	s.Equal("unspecified", body["country"])
}

func (s *HandlerSuite) TestFilter() {
	s.Run("criteria object is the body", func() {
		s.query.EXPECT().Filter(gomock.Any(), query.Criteria{
			models.AttributeGender:     "Female",
			models.AttributeAgeBracket: "26-35",
		}).Return([]models.Summary{verifiedRecord().Summarize()}, nil)

		w := s.postJSON("/verification/filter", map[string]string{
			"gender": " Female ", "ageRange": "26-35", "shoeSize": "9",
		})
		s.Require().Equal(http.StatusOK, w.Code)
		var resp FilterResponse
		s.decode(w, &resp)
		s.Equal(1, resp.Count)
		s.Equal(testAccount, resp.Users[0].AccountID)
		s.Equal("Female", resp.Filters["gender"])
	})

	s.Run("empty body object matches all", func() {
		s.query.EXPECT().Filter(gomock.Any(), query.Criteria{}).Return(nil, nil)
		w := s.postJSON("/verification/filter", map[string]string{})
		s.Require().Equal(http.StatusOK, w.Code)
		var resp FilterResponse
		s.decode(w, &resp)
		s.Zero(resp.Count)
		s.NotNil(resp.Users)
	})

	s.Run("non-string value", func() {
		w := s.postJSON("/verification/filter", map[string]any{"gender": 1})
		s.assertError(w, http.StatusBadRequest, "bad_request")
	})

	s.Run("wrong content type", func() {
		req := httptest.NewRequest(http.MethodPost, "/verification/filter", strings.NewReader(`{}`))
		req.Header.Set("Content-Type", "text/plain")
		s.Equal(http.StatusUnsupportedMediaType, s.serve(req).Code)
	})
}

func (s *HandlerSuite) TestStats() {
	s.query.EXPECT().Stats(gomock.Any()).Return(query.Stats{
		TotalVerifiedUsers: 3,
		Demographics: query.DemographicTables{
			Gender:    map[string]int{"Male": 1, "Female": 2},
			AgeRanges: map[string]int{},
			Regions:   map[string]int{},
			States:    map[string]int{},
		},
	}, nil)

	w := s.serve(httptest.NewRequest(http.MethodGet, "/verification/stats", nil))
	s.Require().Equal(http.StatusOK, w.Code)
	var body map[string]any
	s.decode(w, &body)
	s.Equal(3.0, body["totalVerifiedUsers"])
	s.Require().Contains(body, "demographics")
	s.NotContains(body, "gender")
	tables := body["demographics"].(map[string]any)
	s.Equal(map[string]any{"Male": 1.0, "Female": 2.0}, tables["gender"])
}

func (s *HandlerSuite) TestCreateDataset() {
	s.Run("created", func() {
		created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		s.query.EXPECT().CreateDataset(gomock.Any(), query.DatasetRequest{
			Filters:     query.Criteria{models.AttributeGender: "Female"},
			RequestedBy: "lab",
		}).Return(&query.Dataset{
			ID: "DS_1767225600000_abc123xyz", RequestedBy: "lab", UseCase: query.DefaultUseCase,
			Users: []models.Summary{verifiedRecord().Summarize()}, CreatedAt: created, Status: query.DatasetStatusReady,
		}, nil)

		w := s.postJSON("/verification/dataset", map[string]any{
			"filters": map[string]string{"gender": "Female"}, "requestedBy": "lab",
		})
		s.Require().Equal(http.StatusCreated, w.Code)
		var resp DatasetResponse
		s.decode(w, &resp)
		s.Equal("DS_1767225600000_abc123xyz", resp.DatasetID)
		s.Equal(1, resp.UserCount)
		s.Equal("ready", resp.Status)
	})

	s.Run("requestedBy missing", func() {
		w := s.postJSON("/verification/dataset", map[string]any{"filters": map[string]string{}})
		s.assertError(w, http.StatusBadRequest, "validation_error")
	})

	s.Run("no matching users", func() {
		s.query.EXPECT().CreateDataset(gomock.Any(), gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeNotFound, "no verified users match the filters"))
		w := s.postJSON("/verification/dataset", map[string]any{"requestedBy": "lab"})
		s.assertError(w, http.StatusNotFound, "not_found")
	})
}

func (s *HandlerSuite) TestClear() {
	s.Run("requires admin token", func() {
		req := httptest.NewRequest(http.MethodDelete, "/admin/verification/records", nil)
		s.assertError(s.serve(req), http.StatusUnauthorized, "unauthorized")
	})

	s.Run("clears with actor", func() {
		s.service.EXPECT().Clear(gomock.Any()).DoAndReturn(func(ctx context.Context) (int, error) {
			s.Equal("ops", requestcontext.AdminActor(ctx))
			return 4, nil
		})
		req := httptest.NewRequest(http.MethodDelete, "/admin/verification/records", nil)
		req.Header.Set(admin.HeaderAdminToken, testAdminToken)
		req.Header.Set(admin.HeaderAdminActor, "ops")

		w := s.serve(req)
		s.Require().Equal(http.StatusOK, w.Code)
		var resp ClearResponse
		s.decode(w, &resp)
		s.Equal(4, resp.Cleared)
	})
}

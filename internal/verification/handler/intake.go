package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"

	"voxid/internal/verification/models"
	dErrors "voxid/pkg/domain-errors"
	"voxid/pkg/platform/httputil"
	"voxid/pkg/requestcontext"
	"voxid/pkg/validation"
)

// Multipart field names of the intake upload.
const (
	fieldAccountID   = "accountId"
	fieldUserAddress = "userAddress"
	fieldAadhaar     = "aadhaar"
	fieldPAN         = "pan"
	fieldVoiceSample = "voiceSample"
)

var fileFields = map[string]models.EvidenceKind{
	fieldAadhaar:     models.EvidencePrimaryDocument,
	fieldPAN:         models.EvidenceSecondaryDocument,
	fieldVoiceSample: models.EvidenceVoiceSample,
}

// HandleInitiate runs one intake from a multipart upload.
func (h *Handler) HandleInitiate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	form, evidence, err := h.readIntake(r)
	if err != nil {
		h.logger.WarnContext(ctx, "invalid verification upload",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, err)
		return
	}

	rec, err := h.service.Verify(ctx, form.AccountID, evidence)
	if err != nil {
		h.writeIntakeError(ctx, w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toRecordResponse(rec))
}

func (h *Handler) writeIntakeError(ctx context.Context, w http.ResponseWriter, err error) {
	var intakeErr *models.IntakeError
	if !errors.As(err, &intakeErr) {
		if !dErrors.HasCode(err, dErrors.CodeValidation) {
			h.logFailure(ctx, "verification intake failed", err)
		}
		httputil.WriteError(w, err)
		return
	}

	code := intakeErr.Code()
	httputil.WriteJSON(w, httputil.DomainCodeToHTTPStatus(code), IntakeErrorResponse{
		Error:            httputil.DomainCodeToHTTPCode(code),
		ErrorDescription: intakeErr.Error(),
		Reason:           string(intakeErr.Reason),
		EvidenceKind:     intakeErr.Kind.String(),
	})
}

// readIntake streams the multipart body, holding each file part to its own
// size limit. accountId wins over its userAddress alias when both are sent.
func (h *Handler) readIntake(r *http.Request) (*initiateForm, models.Evidence, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		if errors.Is(err, http.ErrNotMultipart) {
			return nil, nil, dErrors.New(dErrors.CodeUnsupportedType, "multipart/form-data body required")
		}
		return nil, nil, dErrors.New(dErrors.CodeBadRequest, "malformed multipart body")
	}

	form := &initiateForm{}
	evidence := models.Evidence{}
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, bodyError(err)
		}

		name := part.FormName()
		switch {
		case fileFields[name] != "":
			kind := fileFields[name]
			if _, dup := evidence[kind]; dup {
				_ = part.Close()
				return nil, nil, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("%s was sent more than once", name))
			}
			data, err := h.readFile(part, name, kind)
			_ = part.Close()
			if err != nil {
				return nil, nil, err
			}
			evidence[kind] = data
		case name == fieldAccountID || name == fieldUserAddress:
			v, err := io.ReadAll(io.LimitReader(part, validation.MaxAccountIDLength+1))
			_ = part.Close()
			if err != nil {
				return nil, nil, bodyError(err)
			}
			if name == fieldAccountID || form.AccountID == "" {
				form.AccountID = strings.TrimSpace(string(v))
			}
		default:
			_ = part.Close()
		}
	}

	if err := form.Validate(); err != nil {
		return nil, nil, err
	}
	return form, evidence, nil
}

func (h *Handler) readFile(part *multipart.Part, field string, kind models.EvidenceKind) ([]byte, error) {
	limit := h.limits.forKind(kind)
	data, err := io.ReadAll(io.LimitReader(part, limit+1))
	if err != nil {
		return nil, bodyError(err)
	}
	if int64(len(data)) > limit {
		return nil, dErrors.New(dErrors.CodePayloadTooLarge, fmt.Sprintf("%s exceeds %d bytes", field, limit))
	}
	if err := checkMediaType(field, kind, part.Header.Get("Content-Type"), data); err != nil {
		return nil, err
	}
	return data, nil
}

// checkMediaType accepts images and PDFs for documents and audio for voice
// samples. Undeclared types are sniffed. Empty parts pass through so the
// intake reports them as failed extractions.
func checkMediaType(field string, kind models.EvidenceKind, declared string, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	mediaType, _, err := mime.ParseMediaType(declared)
	if err != nil || mediaType == "application/octet-stream" {
		mediaType, _, _ = mime.ParseMediaType(http.DetectContentType(data))
	}
	if acceptsMediaType(kind, mediaType) {
		return nil
	}
	return dErrors.New(dErrors.CodeUnsupportedType, fmt.Sprintf("%s has unsupported content type %q", field, mediaType))
}

func acceptsMediaType(kind models.EvidenceKind, mediaType string) bool {
	if kind == models.EvidenceVoiceSample {
		return strings.HasPrefix(mediaType, "audio/")
	}
	return strings.HasPrefix(mediaType, "image/") || mediaType == "application/pdf"
}

func bodyError(err error) error {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return dErrors.New(dErrors.CodePayloadTooLarge, "request body too large")
	}
	return dErrors.New(dErrors.CodeBadRequest, "malformed multipart body")
}

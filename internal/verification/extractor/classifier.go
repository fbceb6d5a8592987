package extractor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"voxid/internal/verification/models"
	"voxid/internal/verification/tracer"
	"voxid/pkg/platform/circuit"
)

// ErrorCategory normalizes classifier failures.
type ErrorCategory string

const (
	ErrorTimeout        ErrorCategory = "timeout"
	ErrorBadData        ErrorCategory = "bad_data"
	ErrorAuthentication ErrorCategory = "authentication"
	ErrorOutage         ErrorCategory = "outage"
	ErrorRejected       ErrorCategory = "rejected"
	ErrorCircuitOpen    ErrorCategory = "circuit_open"
	ErrorInternal       ErrorCategory = "internal"
)

// ClassifierError wraps a failed classifier call.
type ClassifierError struct {
	Category   ErrorCategory
	Message    string
	Underlying error
}

func (e *ClassifierError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("classifier [%s]: %s: %v", e.Category, e.Message, e.Underlying)
	}
	return fmt.Sprintf("classifier [%s]: %s", e.Category, e.Message)
}

func (e *ClassifierError) Unwrap() error { return e.Underlying }

func newClassifierError(category ErrorCategory, message string, underlying error) *ClassifierError {
	return &ClassifierError{Category: category, Message: message, Underlying: underlying}
}

// Category extracts the classifier failure category from err.
func Category(err error) ErrorCategory {
	var ce *ClassifierError
	if errors.As(err, &ce) {
		return ce.Category
	}
	return ErrorInternal
}

// ClassifyRequest is the body of POST /classify. Content is base64 encoded on the wire.
type ClassifyRequest struct {
	Kind    models.EvidenceKind `json:"kind"`
	Content []byte              `json:"content"`
}

// ClassifyResponse carries whichever attributes the classifier could read.
type ClassifyResponse struct {
	Age             *int   `json:"age,omitempty"`
	Gender          string `json:"gender,omitempty"`
	State           string `json:"state,omitempty"`
	Accent          string `json:"accent,omitempty"`
	PrimaryLanguage string `json:"primary_language,omitempty"`
}

// HTTPDoer is the minimal interface needed from an HTTP client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

const maxClassifierResponse = 1 << 20

// HTTPClassifier reads evidence through an external classifier service.
// Secondary documents carry no demographics and are fingerprinted without a call.
//
// While the circuit is open, calls fail fast except for one probe per probe interval.
type HTTPClassifier struct {
	baseURL       string
	apiKey        string
	client        HTTPDoer
	timeout       time.Duration
	breaker       *circuit.Breaker
	probeInterval time.Duration
	tracer        tracer.Tracer
	logger        *slog.Logger
	now           func() time.Time

	mu        sync.Mutex
	lastProbe time.Time
}

type HTTPClassifierConfig struct {
	BaseURL       string
	APIKey        string
	Timeout       time.Duration
	ProbeInterval time.Duration
	HTTPClient    HTTPDoer
	Breaker       *circuit.Breaker
	Tracer        tracer.Tracer
	Logger        *slog.Logger
}

func NewHTTPClassifier(cfg HTTPClassifierConfig) *HTTPClassifier {
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.ProbeInterval == 0 {
		cfg.ProbeInterval = 10 * time.Second
	}
	c := &HTTPClassifier{
		baseURL:       cfg.BaseURL,
		apiKey:        cfg.APIKey,
		client:        cfg.HTTPClient,
		timeout:       cfg.Timeout,
		breaker:       cfg.Breaker,
		probeInterval: cfg.ProbeInterval,
		tracer:        cfg.Tracer,
		logger:        cfg.Logger,
		now:           time.Now,
	}
	if c.client == nil {
		c.client = &http.Client{Timeout: cfg.Timeout}
	}
	if c.breaker == nil {
		c.breaker = circuit.New("classifier")
	}
	if c.tracer == nil {
		c.tracer = tracer.NewNoop()
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

func (c *HTTPClassifier) Extract(ctx context.Context, kind models.EvidenceKind, raw []byte) (Extraction, error) {
	if err := precheck(kind, raw); err != nil {
		return Extraction{}, err
	}
	out := Extraction{Kind: kind, Fingerprint: fingerprintFor(kind, raw)}
	if kind == models.EvidenceSecondaryDocument {
		return out, nil
	}

	resp, err := c.classify(ctx, kind, raw)
	if err != nil {
		return Extraction{}, err
	}

	switch kind {
	case models.EvidencePrimaryDocument:
		if resp.Age == nil {
			return Extraction{}, newClassifierError(ErrorBadData, "identity document without age", nil)
		}
		attrs, err := identityAttributes(*resp.Age, models.Gender(resp.Gender), resp.State)
		if err != nil {
			return Extraction{}, newClassifierError(ErrorRejected, "identity document not accepted", err)
		}
		out.Attributes = attrs
	case models.EvidenceVoiceSample:
		if resp.Accent == "" && resp.PrimaryLanguage == "" {
			return Extraction{}, newClassifierError(ErrorBadData, "voice sample without attributes", nil)
		}
		out.Attributes = voiceAttributes(resp.Accent, resp.PrimaryLanguage)
	}
	return out, nil
}

func (c *HTTPClassifier) classify(ctx context.Context, kind models.EvidenceKind, raw []byte) (resp *ClassifyResponse, err error) {
	if !c.allowCall() {
		return nil, newClassifierError(ErrorCircuitOpen, "circuit open", nil)
	}

	ctx, span := c.tracer.Start(ctx, tracer.SpanClassifierAPI, tracer.String(tracer.AttrEvidenceKind, kind.String()))
	defer func() { span.End(err) }()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, status, err := c.do(ctx, kind, raw)
	span.SetAttributes(tracer.Int(tracer.AttrStatusCode, status))
	if err != nil {
		if countsAgainstCircuit(err) && c.breaker.RecordFailure() {
			c.logger.WarnContext(ctx, "classifier circuit open", "error", err)
		}
		return nil, err
	}
	c.breaker.RecordSuccess()
	return resp, nil
}

func (c *HTTPClassifier) do(ctx context.Context, kind models.EvidenceKind, raw []byte) (*ClassifyResponse, int, error) {
	body, err := json.Marshal(ClassifyRequest{Kind: kind, Content: raw})
	if err != nil {
		return nil, 0, newClassifierError(ErrorInternal, "failed to marshal request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/classify", bytes.NewReader(body))
	if err != nil {
		return nil, 0, newClassifierError(ErrorInternal, "failed to create request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	httpResp, err := c.client.Do(req)
	if err != nil {
		var netErr net.Error
		if errors.Is(ctx.Err(), context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
			return nil, 0, newClassifierError(ErrorTimeout, "request timeout", err)
		}
		return nil, 0, newClassifierError(ErrorOutage, "failed to execute request", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, maxClassifierResponse))
	if err != nil {
		return nil, httpResp.StatusCode, newClassifierError(ErrorBadData, "failed to read response", err)
	}

	switch {
	case httpResp.StatusCode == http.StatusUnauthorized, httpResp.StatusCode == http.StatusForbidden:
		return nil, httpResp.StatusCode, newClassifierError(ErrorAuthentication, fmt.Sprintf("authentication failed: %d", httpResp.StatusCode), nil)
	case httpResp.StatusCode == http.StatusUnprocessableEntity, httpResp.StatusCode == http.StatusBadRequest:
		return nil, httpResp.StatusCode, newClassifierError(ErrorRejected, fmt.Sprintf("evidence rejected: %d", httpResp.StatusCode), nil)
	case httpResp.StatusCode >= http.StatusInternalServerError:
		return nil, httpResp.StatusCode, newClassifierError(ErrorOutage, fmt.Sprintf("classifier unavailable: %d", httpResp.StatusCode), nil)
	case httpResp.StatusCode != http.StatusOK:
		return nil, httpResp.StatusCode, newClassifierError(ErrorBadData, fmt.Sprintf("unexpected status: %d", httpResp.StatusCode), nil)
	}

	var out ClassifyResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, httpResp.StatusCode, newClassifierError(ErrorBadData, "failed to parse response", err)
	}
	return &out, httpResp.StatusCode, nil
}

// allowCall lets every call through while closed and one probe per interval while open.
func (c *HTTPClassifier) allowCall() bool {
	if !c.breaker.IsOpen() {
		return true
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	if now.Sub(c.lastProbe) < c.probeInterval {
		return false
	}
	c.lastProbe = now
	return true
}

// Only timeouts and outages count against the circuit; rejections and bad data do not.
func countsAgainstCircuit(err error) bool {
	switch Category(err) {
	case ErrorTimeout, ErrorOutage:
		return true
	}
	return false
}

// Health checks the classifier's /health endpoint.
func (c *HTTPClassifier) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return newClassifierError(ErrorOutage, "health check failed", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return newClassifierError(ErrorOutage, fmt.Sprintf("unhealthy status: %d", resp.StatusCode), nil)
	}
	return nil
}

// Breaker exposes the circuit breaker for readiness reporting.
func (c *HTTPClassifier) Breaker() *circuit.Breaker {
	return c.breaker
}

var _ Extractor = (*HTTPClassifier)(nil)

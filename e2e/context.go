package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"voxid/e2e/fixtures"
)

// TestContext holds state between test steps
type TestContext struct {
	BaseURL          string
	AdminToken       string
	HTTPClient       *http.Client
	LastResponse     *http.Response
	LastResponseBody []byte

	// runID keeps account ids and document bytes unique across runs against a
	// long-lived server, since spent documents are never forgotten.
	runID string
}

// NewTestContext creates a new test context
func NewTestContext() *TestContext {
	baseURL := os.Getenv("BASE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	adminToken := os.Getenv("ADMIN_TOKEN")
	if adminToken == "" {
		adminToken = "e2e-admin-token"
	}

	return &TestContext{
		BaseURL:    baseURL,
		AdminToken: adminToken,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
		runID:      uuid.NewString()[:8],
	}
}

// AccountID maps a scenario alias to this run's account identifier.
func (tc *TestContext) AccountID(alias string) string {
	return fmt.Sprintf("e2e-%s-%s", tc.runID, alias)
}

// DocumentBytes returns stable per-run content for a labelled document.
func (tc *TestContext) DocumentBytes(label string) []byte {
	return []byte(fmt.Sprintf("%s/%s", tc.runID, label))
}

// POST makes a JSON POST request and stores the response
func (tc *TestContext) POST(path string, body interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}
	return tc.do(http.MethodPost, path, bytes.NewReader(data), map[string]string{
		"Content-Type": "application/json",
	})
}

// GET makes a GET request and stores the response
func (tc *TestContext) GET(path string, headers map[string]string) error {
	return tc.do(http.MethodGet, path, nil, headers)
}

// DELETE makes a DELETE request with optional headers and stores the response
func (tc *TestContext) DELETE(path string, headers map[string]string) error {
	return tc.do(http.MethodDelete, path, nil, headers)
}

// POSTMultipart sends form fields and file parts as multipart/form-data.
func (tc *TestContext) POSTMultipart(path string, fields map[string]string, uploads []fixtures.Upload) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return fmt.Errorf("failed to write field %s: %w", k, err)
		}
	}
	for _, u := range uploads {
		hdr := textproto.MIMEHeader{}
		hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, u.Field, u.Field))
		hdr.Set("Content-Type", u.ContentType)
		w, err := mw.CreatePart(hdr)
		if err != nil {
			return fmt.Errorf("failed to create part %s: %w", u.Field, err)
		}
		if _, err := w.Write(u.Data); err != nil {
			return fmt.Errorf("failed to write part %s: %w", u.Field, err)
		}
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("failed to close multipart body: %w", err)
	}
	return tc.do(http.MethodPost, path, &buf, map[string]string{
		"Content-Type": mw.FormDataContentType(),
	})
}

func (tc *TestContext) do(method, path string, body io.Reader, headers map[string]string) error {
	req, err := http.NewRequestWithContext(context.Background(), method, tc.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := tc.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}

	tc.LastResponse = resp
	tc.LastResponseBody, err = io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	return nil
}

// GetResponseField extracts a top-level field from the JSON response.
// Dotted paths descend into nested objects.
func (tc *TestContext) GetResponseField(field string) (interface{}, error) {
	var data map[string]interface{}
	if err := json.Unmarshal(tc.LastResponseBody, &data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	var current interface{} = data
	for _, part := range strings.Split(field, ".") {
		obj, ok := current.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("field %s not found in response", field)
		}
		current, ok = obj[part]
		if !ok {
			return nil, fmt.Errorf("field %s not found in response", field)
		}
	}
	return current, nil
}

// ResponseContains checks if the response body contains a field or text
func (tc *TestContext) ResponseContains(text string) bool {
	if strings.Contains(string(tc.LastResponseBody), text) {
		return true
	}

	var data map[string]interface{}
	if err := json.Unmarshal(tc.LastResponseBody, &data); err == nil {
		if _, ok := data[text]; ok {
			return true
		}
	}
	return false
}

func (tc *TestContext) GetAdminToken() string {
	return tc.AdminToken
}

func (tc *TestContext) GetLastResponseStatus() int {
	if tc.LastResponse == nil {
		return 0
	}
	return tc.LastResponse.StatusCode
}

func (tc *TestContext) GetLastResponseHeader(name string) string {
	if tc.LastResponse == nil {
		return ""
	}
	return tc.LastResponse.Header.Get(name)
}

// WaitReady polls the readiness probe until it succeeds or timeout elapses.
// Compose brings the service up alongside Postgres, Redis and Kafka, so the
// first scenarios may otherwise race the dependency checks.
func (tc *TestContext) WaitReady(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		err := tc.GET("/health/ready", nil)
		if err == nil && tc.GetLastResponseStatus() == http.StatusOK {
			return nil
		}
		if time.Now().After(deadline) {
			if err != nil {
				return fmt.Errorf("service not ready after %s: %w", timeout, err)
			}
			return fmt.Errorf("service not ready after %s: status %d", timeout, tc.GetLastResponseStatus())
		}
		time.Sleep(500 * time.Millisecond)
	}
}

func (tc *TestContext) GetLastResponseBody() []byte {
	return tc.LastResponseBody
}

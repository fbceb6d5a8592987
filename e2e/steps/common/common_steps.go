package common

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/cucumber/godog"
)

// TestContext is the slice of the scenario state the shared steps need.
type TestContext interface {
	GET(path string, headers map[string]string) error
	GetResponseField(field string) (interface{}, error)
	ResponseContains(field string) bool
	GetLastResponseStatus() int
	GetLastResponseBody() []byte
	GetLastResponseHeader(name string) string
}

func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &commonSteps{tc: tc}

	ctx.Step(`^the verification service is running$`, steps.serviceIsRunning)

	ctx.Step(`^I GET "([^"]*)"$`, steps.get)

	ctx.Step(`^the response status should be (\d+)$`, steps.responseStatusShouldBe)
	ctx.Step(`^the response should contain "([^"]*)"$`, steps.responseShouldContain)
	ctx.Step(`^the response field "([^"]*)" should equal "([^"]*)"$`, steps.responseFieldShouldEqual)
	ctx.Step(`^the response field "([^"]*)" should contain "([^"]*)"$`, steps.responseFieldShouldContain)
	ctx.Step(`^the response should carry a request id$`, steps.responseCarriesRequestID)
	ctx.Step(`^the metrics should expose "([^"]*)"$`, steps.metricsShouldExpose)
	ctx.Step(`^log "([^"]*)"$`, steps.logMessage)
}

type commonSteps struct {
	tc TestContext
}

func (s *commonSteps) serviceIsRunning(ctx context.Context) error {
	if err := s.tc.GET("/health/ready", nil); err != nil {
		return fmt.Errorf("service not reachable: %w", err)
	}
	if status := s.tc.GetLastResponseStatus(); status != http.StatusOK {
		return fmt.Errorf("service not ready: status %d\nResponse: %s", status, s.tc.GetLastResponseBody())
	}
	return nil
}

func (s *commonSteps) get(ctx context.Context, path string) error {
	return s.tc.GET(path, nil)
}

func (s *commonSteps) responseStatusShouldBe(ctx context.Context, expected int) error {
	if actual := s.tc.GetLastResponseStatus(); actual != expected {
		return fmt.Errorf("expected status %d but got %d\nResponse: %s", expected, actual, s.tc.GetLastResponseBody())
	}
	return nil
}

func (s *commonSteps) responseShouldContain(ctx context.Context, field string) error {
	if !s.tc.ResponseContains(field) {
		return fmt.Errorf("response does not contain %q\nResponse: %s", field, s.tc.GetLastResponseBody())
	}
	return nil
}

// Numbers decode as float64, so 90 prints as "90" and compares as text.
func (s *commonSteps) responseFieldShouldEqual(ctx context.Context, field, expected string) error {
	actual, err := s.tc.GetResponseField(field)
	if err != nil {
		return err
	}
	if fmt.Sprint(actual) != expected {
		return fmt.Errorf("field %s: expected %s but got %v", field, expected, actual)
	}
	return nil
}

func (s *commonSteps) responseFieldShouldContain(ctx context.Context, field, substring string) error {
	actual, err := s.tc.GetResponseField(field)
	if err != nil {
		return err
	}
	if !strings.Contains(fmt.Sprint(actual), substring) {
		return fmt.Errorf("field %s: expected to contain %s but got %v", field, substring, actual)
	}
	return nil
}

func (s *commonSteps) responseCarriesRequestID(ctx context.Context) error {
	if s.tc.GetLastResponseHeader("X-Request-ID") == "" {
		return fmt.Errorf("response has no X-Request-ID header")
	}
	return nil
}

func (s *commonSteps) metricsShouldExpose(ctx context.Context, name string) error {
	if err := s.tc.GET("/metrics", nil); err != nil {
		return err
	}
	if !strings.Contains(string(s.tc.GetLastResponseBody()), name) {
		return fmt.Errorf("metric %s not exposed", name)
	}
	return nil
}

func (s *commonSteps) logMessage(ctx context.Context, message string) error {
	fmt.Println(message)
	return nil
}

package testutil

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/legacy"

	"github.com/bissquit/stockwatch/api/openapi"
)

const maxReportedBody = 300

// OpenAPIValidator checks requests and responses against the embedded API document.
type OpenAPIValidator struct {
	router routers.Router
}

var (
	loadOnce  sync.Once
	loaded    *OpenAPIValidator
	loadError error
)

// NewOpenAPIValidator returns the shared validator or fails the test.
func NewOpenAPIValidator(t *testing.T) *OpenAPIValidator {
	t.Helper()

	v, err := LoadOpenAPIValidator()
	if err != nil {
		t.Fatalf("load OpenAPI validator: %v", err)
	}
	return v
}

// LoadOpenAPIValidator parses the embedded document once. It is safe for TestMain.
func LoadOpenAPIValidator() (*OpenAPIValidator, error) {
	loadOnce.Do(func() {
		loaded, loadError = parse(openapi.Spec)
	})
	return loaded, loadError
}

func parse(spec []byte) (*OpenAPIValidator, error) {
	doc, err := openapi3.NewLoader().LoadFromData(spec)
	if err != nil {
		return nil, fmt.Errorf("load OpenAPI document: %w", err)
	}
	if err := doc.Validate(context.Background()); err != nil {
		return nil, fmt.Errorf("invalid OpenAPI document: %w", err)
	}
	router, err := legacy.NewRouter(doc)
	if err != nil {
		return nil, fmt.Errorf("build OpenAPI router: %w", err)
	}
	return &OpenAPIValidator{router: router}, nil
}

// Probes answer with plain text and carry no schema worth checking.
func skipped(path string) bool {
	return path == "/healthz" || path == "/readyz"
}

func (v *OpenAPIValidator) route(t *testing.T, method, path string) (*routers.Route, map[string]string, bool) {
	t.Helper()

	probe, err := http.NewRequest(method, path, nil)
	if err != nil {
		t.Errorf("build route probe: %v", err)
		return nil, nil, false
	}
	route, params, err := v.router.FindRoute(probe)
	if err != nil {
		t.Errorf("OpenAPI: %s %s is not documented: %v", method, path, err)
		return nil, nil, false
	}
	return route, params, true
}

// ValidateRequest reports an error if req does not match its documented operation.
func (v *OpenAPIValidator) ValidateRequest(t *testing.T, req *http.Request) {
	t.Helper()

	if skipped(req.URL.Path) {
		return
	}
	route, params, ok := v.route(t, req.Method, req.URL.Path)
	if !ok {
		return
	}

	input := &openapi3filter.RequestValidationInput{
		Request:    req,
		PathParams: params,
		Route:      route,
		Options: &openapi3filter.Options{
			MultiError:         true,
			AuthenticationFunc: openapi3filter.NoopAuthenticationFunc,
		},
	}
	if err := openapi3filter.ValidateRequest(req.Context(), input); err != nil {
		t.Errorf("OpenAPI: request %s %s: %v", req.Method, req.URL.Path, err)
	}
}

// ValidateResponse reports an error if resp does not match the documented
// response for req. The body is read and replaced so callers can still decode it.
func (v *OpenAPIValidator) ValidateResponse(t *testing.T, req *http.Request, resp *http.Response) {
	t.Helper()

	if skipped(req.URL.Path) {
		return
	}
	route, params, ok := v.route(t, req.Method, req.URL.Path)
	if !ok {
		return
	}

	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		t.Errorf("read response body: %v", err)
		return
	}
	resp.Body = io.NopCloser(bytes.NewReader(body))

	input := &openapi3filter.ResponseValidationInput{
		RequestValidationInput: &openapi3filter.RequestValidationInput{
			Request:    req,
			PathParams: params,
			Route:      route,
		},
		Status: resp.StatusCode,
		Header: resp.Header,
		Body:   io.NopCloser(bytes.NewReader(body)),
		Options: &openapi3filter.Options{
			MultiError:            true,
			IncludeResponseStatus: true,
		},
	}
	if err := openapi3filter.ValidateResponse(context.Background(), input); err != nil {
		t.Errorf("OpenAPI: response %s %s (status %d): %s\nbody: %s",
			req.Method, req.URL.Path, resp.StatusCode, clip(err.Error(), 2*maxReportedBody), clip(string(body), maxReportedBody))
	}
}

func clip(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}

package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// HTTPCase is one request against a router and what it must answer.
type HTTPCase struct {
	Name    string
	Method  string
	Path    string
	Body    string
	Headers map[string]string

	WantStatus int
	// WantError is the top-level "error" string of a flat error body, as
	// written by the proxies and the sync trigger.
	WantError string
	// WantCode is error.code of an API envelope.
	WantCode string
	// WantFields are top-level keys of the JSON body.
	WantFields map[string]any
	Check      func(t *testing.T, w *httptest.ResponseRecorder)
}

// Serve sends one request through h. A non-empty body is sent as JSON.
func Serve(h http.Handler, method, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

// RunHTTPCases runs each case as a subtest against h.
func RunHTTPCases(t *testing.T, h http.Handler, cases []HTTPCase) {
	t.Helper()

	for _, tc := range cases {
		t.Run(tc.Name, func(t *testing.T) {
			method := tc.Method
			if method == "" {
				method = http.MethodGet
			}
			w := Serve(h, method, tc.Path, tc.Body, tc.Headers)

			if tc.WantStatus != 0 {
				assert.Equal(t, tc.WantStatus, w.Code, "Unexpected status code")
			}
			if tc.WantError != "" {
				AssertFlatError(t, w, tc.WantError)
			}
			if tc.WantCode != "" {
				AssertEnvelopeError(t, w, tc.WantCode)
			}
			if len(tc.WantFields) > 0 {
				body := DecodeJSON[map[string]any](t, w)
				for key, want := range tc.WantFields {
					assert.Equal(t, want, body[key], "Unexpected value for key: %s", key)
				}
			}
			if tc.Check != nil {
				tc.Check(t, w)
			}
		})
	}
}

// DecodeJSON parses the response body into T.
func DecodeJSON[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()

	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), "Failed to parse JSON response: %s", w.Body.String())
	return out
}

// AssertFlatError checks a {"error": "<message>"} body.
func AssertFlatError(t *testing.T, w *httptest.ResponseRecorder, message string) {
	t.Helper()

	body := DecodeJSON[map[string]any](t, w)
	assert.Equal(t, message, body["error"], "Unexpected error message")
	if success, ok := body["success"]; ok {
		assert.Equal(t, false, success)
	}
}

// AssertEnvelopeError checks an API envelope carrying error.code.
func AssertEnvelopeError(t *testing.T, w *httptest.ResponseRecorder, code string) {
	t.Helper()

	body := DecodeJSON[map[string]any](t, w)
	assert.Equal(t, false, body["success"], "Expected success to be false")
	errObj, ok := body["error"].(map[string]any)
	require.True(t, ok, "Expected error object in response: %s", w.Body.String())
	assert.Equal(t, code, errObj["code"], "Unexpected error code")
}

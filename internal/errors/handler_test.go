package errors

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHandler() *ErrorHandler {
	return NewErrorHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), false)
}

func TestErrorToProblem(t *testing.T) {
	handler := newTestHandler()

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantType   string
	}{
		{
			name:       "deadline exceeded maps to timeout",
			err:        context.DeadlineExceeded,
			wantStatus: http.StatusGatewayTimeout,
			wantType:   TypeTimeout,
		},
		{
			name:       "api error dataset not found",
			err:        DatasetNotFoundError("prices"),
			wantStatus: http.StatusNotFound,
			wantType:   TypeDatasetNotFound,
		},
		{
			name:       "api error validation",
			err:        ErrValidation("mode", "unsupported"),
			wantStatus: http.StatusBadRequest,
			wantType:   TypeValidation,
		},
		{
			name:       "app error not found",
			err:        NewNotFoundError("run 42"),
			wantStatus: http.StatusNotFound,
			wantType:   TypeNotFound,
		},
		{
			name:       "app error parsing marks dataset unreadable",
			err:        NewParsingError("bad column count", nil),
			wantStatus: http.StatusUnprocessableEntity,
			wantType:   TypeDatasetUnreadable,
		},
		{
			name:       "app error pipeline maps to failed run",
			err:        NewPipelineError("impute step failed", assert.AnError),
			wantStatus: http.StatusInternalServerError,
			wantType:   TypeRunFailed,
		},
		{
			name:       "plain not found message",
			err:        assertErrorf("dataset prices not found"),
			wantStatus: http.StatusNotFound,
			wantType:   TypeNotFound,
		},
		{
			name:       "unknown error maps to internal",
			err:        assert.AnError,
			wantStatus: http.StatusInternalServerError,
			wantType:   TypeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/api/test", nil)
			problem := handler.ErrorToProblem(tt.err, r)

			require.NotNil(t, problem)
			assert.Equal(t, tt.wantStatus, problem.Status)
			assert.Equal(t, tt.wantType, problem.Type)
			assert.Equal(t, "/api/test", problem.Instance)
		})
	}
}

// assertErrorf builds a plain error for message-sniffing cases.
func assertErrorf(msg string) error {
	return &plainError{msg: msg}
}

type plainError struct{ msg string }

func (e *plainError) Error() string { return e.msg }

func TestErrorToProblem_AppErrorContext(t *testing.T) {
	handler := newTestHandler()

	appErr := NewLoadError("cannot open file", nil).WithContext("file", "trades.tsv")
	r := httptest.NewRequest(http.MethodGet, "/api/datasets/trades", nil)

	problem := handler.ErrorToProblem(appErr, r)

	require.NotNil(t, problem)
	assert.Equal(t, "trades.tsv", problem.Extensions["file"])
}

func TestHandleError_WritesProblemJSON(t *testing.T) {
	handler := newTestHandler()

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/datasets/missing/profile", nil)

	handler.HandleError(w, r, DatasetNotFoundError("missing"))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "application/json")
	assert.Contains(t, w.Body.String(), "missing")
}

func TestHandleError_NilError(t *testing.T) {
	handler := newTestHandler()

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/health", nil)

	handler.HandleError(w, r, nil)

	assert.Empty(t, w.Body.String())
}

func TestNotFoundHandler(t *testing.T) {
	handler := newTestHandler()

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/nope", nil)

	handler.NotFound(w, r)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "/api/nope")
}

func TestMethodNotAllowedHandler(t *testing.T) {
	handler := newTestHandler()

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodDelete, "/api/health", nil)

	handler.MethodNotAllowed(w, r)

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestRecoveryMiddleware(t *testing.T) {
	handler := newTestHandler()

	panicking := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/pipelines", nil)

	RecoveryMiddleware(handler)(panicking).ServeHTTP(w, r)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), TypeInternal)
}

package responses

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/nabd-ai/vertex-backend/pkg/errors"
	"github.com/nabd-ai/vertex-backend/pkg/logger"
)

func decodeError(t *testing.T, w *httptest.ResponseRecorder) APIError {
	t.Helper()
	var env ErrorEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env.Error
}

func TestWriteSuccessWrapsData(t *testing.T) {
	w := httptest.NewRecorder()
	WriteSuccessStatus(w, http.StatusCreated, map[string]int{"balance": 250})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"data":{"balance":250}}`, w.Body.String())
}

func TestWriteJSONHasNoEnvelope(t *testing.T) {
	w := httptest.NewRecorder()
	WriteJSON(w, http.StatusOK, map[string]bool{"ok": true})
	assert.JSONEq(t, `{"ok":true}`, w.Body.String())
}

func TestWriteJSONFallsBackWhenPayloadCannotEncode(t *testing.T) {
	w := httptest.NewRecorder()
	WriteSuccess(w, map[string]any{"bad": make(chan int)})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "INTERNAL_ERROR", decodeError(t, w).Code)
}

func TestWriteErrorStatusAndVisibility(t *testing.T) {
	cases := []struct {
		name        string
		err         error
		status      int
		message     string
		wantDetails bool
	}{
		{
			name:        "validation shows message and details",
			err:         pkgerrors.New(pkgerrors.CodeValidation, "rating must be 0..5").WithDetails(map[string]string{"field": "rating"}),
			status:      http.StatusBadRequest,
			message:     "rating must be 0..5",
			wantDetails: true,
		},
		{
			name:    "transition",
			err:     pkgerrors.New(pkgerrors.CodeInvalidTransition, "assignment is COMPLETED"),
			status:  http.StatusUnprocessableEntity,
			message: "assignment is COMPLETED",
		},
		{
			name:    "forbidden hides details",
			err:     pkgerrors.New(pkgerrors.CodeForbidden, "not your assignment").WithDetails("x"),
			status:  http.StatusForbidden,
			message: "not your assignment",
		},
		{
			name:    "untyped becomes internal",
			err:     errors.New("pq: password=hunter2"),
			status:  http.StatusInternalServerError,
			message: "internal server error",
		},
		{
			name:    "dependency message stays private",
			err:     pkgerrors.Wrap(pkgerrors.CodeDependency, errors.New("dial tcp"), "load wallet"),
			status:  http.StatusServiceUnavailable,
			message: "dependency unavailable",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteError(context.Background(), nil, w, tc.err)
			assert.Equal(t, tc.status, w.Code)
			got := decodeError(t, w)
			assert.Equal(t, tc.message, got.Message)
			assert.Equal(t, tc.wantDetails, got.Details != nil)
		})
	}
}

func TestWriteErrorLogsByStatus(t *testing.T) {
	var buf bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "responses-test", Output: &buf, Format: logger.FormatJSON})

	WriteError(context.Background(), logg, httptest.NewRecorder(), pkgerrors.New(pkgerrors.CodeNotFound, "missing"))
	assert.Contains(t, buf.String(), `"level":"warn"`)
	assert.Contains(t, buf.String(), `"error_code":"NOT_FOUND"`)

	buf.Reset()
	WriteError(context.Background(), logg, httptest.NewRecorder(), errors.New("boom"))
	assert.Contains(t, buf.String(), `"level":"error"`)
	assert.Contains(t, buf.String(), `"status":500`)

	WriteError(context.Background(), logger.New(logger.Options{Output: io.Discard}), httptest.NewRecorder(), nil)
}

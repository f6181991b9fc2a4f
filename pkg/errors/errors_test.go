package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetadataTable(t *testing.T) {
	cases := []struct {
		code    Code
		status  int
		visible bool
		details bool
		retry   bool
	}{
		{CodeValidation, http.StatusBadRequest, true, true, false},
		{CodeUnauthorized, http.StatusUnauthorized, true, false, false},
		{CodeForbidden, http.StatusForbidden, true, false, false},
		{CodeNotFound, http.StatusNotFound, true, false, false},
		{CodeConflict, http.StatusConflict, true, false, false},
		{CodeInvalidTransition, http.StatusUnprocessableEntity, true, true, false},
		{CodeInsufficientFunds, http.StatusPaymentRequired, true, true, false},
		{CodeIdempotency, http.StatusConflict, true, true, false},
		{CodeRateLimit, http.StatusTooManyRequests, true, false, false},
		{CodeInternal, http.StatusInternalServerError, false, false, true},
		{CodeUpstream, http.StatusBadGateway, false, false, true},
		{CodeDependency, http.StatusServiceUnavailable, false, true, true},
	}
	for _, tc := range cases {
		t.Run(string(tc.code), func(t *testing.T) {
			meta := MetadataFor(tc.code)
			assert.Equal(t, tc.status, meta.HTTPStatus)
			assert.Equal(t, tc.visible, meta.ClientVisible)
			assert.Equal(t, tc.details, meta.DetailsAllowed)
			assert.Equal(t, tc.retry, meta.Retryable)
			assert.NotEmpty(t, meta.PublicMessage)
		})
	}

	assert.Equal(t, MetadataFor(CodeInternal), MetadataFor("SOMETHING_UNKNOWN"))
}

func TestConstructors(t *testing.T) {
	err := Newf(CodeValidation, "amount %s out of range", "0").
		WithDetails(map[string]string{"field": "amount"})
	assert.Equal(t, CodeValidation, err.Code())
	assert.Equal(t, "amount 0 out of range", err.Message())
	assert.Equal(t, map[string]string{"field": "amount"}, err.Details())
	assert.Nil(t, err.Unwrap())

	cause := stdErrors.New("dial tcp")
	wrapped := Wrap(CodeDependency, cause, "load wallet")
	assert.ErrorIs(t, wrapped, cause)
	assert.Equal(t, "DEPENDENCY_ERROR: load wallet: dial tcp", wrapped.Error())

	noCause := Wrap(CodeConflict, nil, "already paired")
	assert.Nil(t, noCause.Unwrap())
	assert.Equal(t, "CONFLICT: already paired", noCause.Error())
}

func TestNilReceiver(t *testing.T) {
	var e *Error
	assert.Equal(t, CodeInternal, e.Code())
	assert.Empty(t, e.Message())
	assert.Nil(t, e.Details())
	assert.Nil(t, e.WithDetails("x"))
	assert.Empty(t, e.Error())
}

func TestChainLookup(t *testing.T) {
	inner := New(CodeInsufficientFunds, "balance too low")
	outer := fmt.Errorf("complete assignment: %w", inner)

	typed := As(outer)
	require.NotNil(t, typed)
	assert.Same(t, inner, typed)
	assert.True(t, IsCode(outer, CodeInsufficientFunds))
	assert.False(t, IsCode(outer, CodeNotFound))
	assert.Equal(t, CodeInsufficientFunds, CodeOf(outer))

	assert.Nil(t, As(nil))
	assert.Nil(t, As(stdErrors.New("plain")))
	assert.Equal(t, CodeInternal, CodeOf(stdErrors.New("plain")))
}

func TestIsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("handler: %w", Wrap(CodeNotFound, stdErrors.New("no rows"), "assignment not found"))
	assert.True(t, stdErrors.Is(err, New(CodeNotFound, "")))
	assert.False(t, stdErrors.Is(err, New(CodeForbidden, "")))
}

func TestWithDetailsDoesNotMutateReceiver(t *testing.T) {
	base := New(CodeValidation, "bad field")
	detailed := base.WithDetails(map[string]string{"field": "rating"})
	assert.Nil(t, base.Details())
	assert.NotNil(t, detailed.Details())
	assert.Equal(t, base.Message(), detailed.Message())
}

package validators

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/nabd-ai/vertex-backend/pkg/errors"
)

func TestParseQueryInt(t *testing.T) {
	cases := []struct {
		query   string
		want    int
		wantErr bool
	}{
		{query: "", want: 20},
		{query: "limit=%20", want: 20},
		{query: "limit=7", want: 7},
		{query: "limit=0", wantErr: true},
		{query: "limit=101", wantErr: true},
		{query: "limit=ten", wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.query, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/?"+tc.query, nil)
			got, err := ParseQueryInt(req, "limit", 20, 1, 100)
			if tc.wantErr {
				require.Error(t, err)
				assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParseQueryBool(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?unreadOnly=true", nil)
	got, err := ParseQueryBool(req, "unreadOnly", false)
	require.NoError(t, err)
	assert.True(t, got)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	got, err = ParseQueryBool(req, "unreadOnly", true)
	require.NoError(t, err)
	assert.True(t, got)

	req = httptest.NewRequest(http.MethodGet, "/?unreadOnly=maybe", nil)
	_, err = ParseQueryBool(req, "unreadOnly", false)
	var appErr *pkgerrors.Error
	require.ErrorAs(t, err, &appErr)
	details, _ := appErr.Details().(map[string]any)
	assert.Equal(t, "unreadOnly", details["field"])
}

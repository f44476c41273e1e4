package ml

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRemoteRegressor_RoundTripThroughModelServer(t *testing.T) {
	local, err := NewLinearRegressor("rf", identityModel())
	require.NoError(t, err)

	srv := httptest.NewServer(NewModelServer(local))
	defer srv.Close()

	remote := NewRemoteRegressor("rf-remote", srv.URL, 2*time.Second)
	assert.Equal(t, "rf-remote", remote.Name())

	x := featureTable(3).Matrix()
	want, err := local.Predict(context.Background(), x)
	require.NoError(t, err)

	got, err := remote.Predict(context.Background(), x)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestRemoteRegressor_PropagatesServerError(t *testing.T) {
	local, err := NewLinearRegressor("rf", identityModel())
	require.NoError(t, err)

	srv := httptest.NewServer(NewModelServer(local))
	defer srv.Close()

	remote := NewRemoteRegressor("rf-remote", srv.URL, 2*time.Second)
	_, err = remote.Predict(context.Background(), [][]float64{{1, 2}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
}

func TestRemoteRegressor_ZeroRowsSkipsCall(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	y, err := NewRemoteRegressor("rf", srv.URL, time.Second).Predict(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, y)
	assert.False(t, called)
}

func TestModelServer_RejectsBadRequests(t *testing.T) {
	local, err := NewLinearRegressor("rf", identityModel())
	require.NoError(t, err)
	ms := NewModelServer(local)

	rec := httptest.NewRecorder()
	ms.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = httptest.NewRecorder()
	ms.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid request")
}

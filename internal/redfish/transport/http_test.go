package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPTransport_Get(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/redfish/v1", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"Name": "Root Service"}`))
	}))
	defer srv.Close()

	tr := NewHTTP(srv.URL)
	res, err := tr.Get(context.Background(), "/redfish/v1")
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, res.Code)
	assert.JSONEq(t, `{"Name": "Root Service"}`, string(res.Body))
	assert.Equal(t, "application/json", res.Headers["Content-Type"])
}

func TestHTTPTransport_NonOKStatusIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	tr := NewHTTP(srv.URL, WithRetryMax(0))
	res, err := tr.Get(context.Background(), "/redfish/v1/Missing")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, res.Code)
}

func TestHTTPTransport_ConnectionFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // Nothing is listening anymore.

	tr := NewHTTP(srv.URL, WithRetryMax(0))
	_, err := tr.Get(context.Background(), "/redfish/v1")
	assert.Error(t, err)
}

func TestHTTPTransport_RetriesServerErrors(t *testing.T) {
	var attempts int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	tr := NewHTTP(srv.URL, WithRetryMax(3))
	res, err := tr.Get(context.Background(), "/redfish/v1")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, 3, attempts)
}

func TestHTTPTransport_RootURI(t *testing.T) {
	assert.Equal(t, DefaultRootURI, NewHTTP("http://example").RootURI())
	assert.Equal(t, "/custom/v2", NewHTTP("http://example", WithRootURI("/custom/v2")).RootURI())
}

func TestNullTransport(t *testing.T) {
	_, err := NullTransport{}.Get(context.Background(), "/redfish/v1")
	assert.ErrorIs(t, err, ErrNullTransport)
	assert.Equal(t, DefaultRootURI, NullTransport{}.RootURI())
}

package net

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildAuthorizedRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	client := NewRestClient(DefaultClientOptions(srv.URL))

	resp, err := BuildAuthorizedRequest(context.Background(), client, "tok-1").Get("/ping")
	require.NoError(t, CheckResponse(resp, err))

	resp, err = BuildAuthorizedRequest(context.Background(), client, "").Get("/ping")
	checkErr := CheckResponse(resp, err)
	var httpErr *HTTPError
	require.True(t, errors.As(checkErr, &httpErr))
	assert.Equal(t, http.StatusUnauthorized, httpErr.StatusCode)
}

func TestNewRestClient_NoRetryOnStatus(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewRestClient(DefaultClientOptions(srv.URL))
	resp, err := client.R().Get("/boom")
	assert.Error(t, CheckResponse(resp, err))
	assert.Equal(t, 1, calls, "5xx 不应触发重试")
}

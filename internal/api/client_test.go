package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestSendsCredentialsAndBody(t *testing.T) {
	var gotAuth, gotPath, gotRequestID string
	var gotBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		gotRequestID = r.Header.Get("X-Request-ID")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":4}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL+"/api/", WithToken(func(context.Context) string { return "abc" }))
	resp, err := client.Post(context.Background(), "/auth/login/", map[string]string{"username": "ana"})
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, "Token abc", gotAuth)
	assert.Equal(t, "/api/auth/login/", gotPath)
	assert.NotEmpty(t, gotRequestID)
	assert.Equal(t, "ana", gotBody["username"])

	var out struct{ ID int }
	require.NoError(t, resp.Decode(&out))
	assert.Equal(t, 4, out.ID)
}

func TestRequestWithoutTokenOmitsHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, WithToken(func(context.Context) string { return "" }), WithAuthScheme("Bearer"))
	resp, err := client.Delete(context.Background(), "items/1/")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.Status)
	require.NoError(t, resp.Decode(&struct{}{}))
}

func TestNon2xxReturnsStructuredError(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"message", `{"message":"Invalid credentials"}`, "Invalid credentials"},
		{"detail", `{"detail":"Token expired."}`, "Token expired."},
		{"non field", `{"non_field_errors":["Unable to log in."]}`, "Unable to log in."},
		{"plain", `oops`, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			_, err := NewClient(srv.URL).Get(context.Background(), "auth/user/")
			require.Error(t, err)

			var apiErr *Error
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, http.StatusBadRequest, apiErr.Status)
			assert.Equal(t, tc.want, apiErr.Message)
			assert.Equal(t, http.StatusBadRequest, StatusOf(err))
			if tc.want == "" {
				assert.Equal(t, "fallback", MessageOf(err, "fallback"))
			} else {
				assert.Equal(t, tc.want, MessageOf(err, "fallback"))
			}
		})
	}
}

func TestPing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodHead, r.Method)
		w.WriteHeader(http.StatusNotFound)
	}))
	client := NewClient(srv.URL)
	assert.NoError(t, client.Ping(context.Background()))

	srv.Close()
	assert.Error(t, client.Ping(context.Background()))
}

func TestMessageOfNonAPIError(t *testing.T) {
	assert.Equal(t, "generic", MessageOf(errors.New("boom"), "generic"))
	assert.Equal(t, 0, StatusOf(errors.New("boom")))
}

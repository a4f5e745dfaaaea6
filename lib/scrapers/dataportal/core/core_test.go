package core

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNonOKStatusReturnsStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gateway exploded", http.StatusBadGateway)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	_, err := client.Get(context.Background(), "main.php", nil)

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusBadGateway, statusErr.Code)
	require.Contains(t, statusErr.Excerpt, "gateway exploded")
}

func TestGetPreservesRepeatedQueryParams(t *testing.T) {
	var query url.Values
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query()
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	_, err := client.Get(context.Background(), "main.php", url.Values{
		"mode": {"theme"},
		"code": {"a81f", "b92c"},
	})
	require.NoError(t, err)
	require.Equal(t, []string{"theme"}, query["mode"])
	require.Equal(t, []string{"a81f", "b92c"}, query["code"])
}

func TestBasicAuthOnlyOnTestEnvironment(t *testing.T) {
	var authHeader string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader = r.Header.Get("Authorization")
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	client, err := NewClient(context.Background(), ClientOptions{
		Environment:   Test,
		BaseUrl:       server.URL,
		BasicUsername: "outer",
		BasicPassword: "secret",
		LoginUsername: "someone",
		LoginPassword: "hunter2",
	})
	require.NoError(t, err)
	_, err = client.Get(context.Background(), "main.php", nil)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(authHeader, "Basic "))

	// production never sends the pair even when configured
	client, err = NewClient(context.Background(), ClientOptions{
		Environment:   Production,
		BaseUrl:       server.URL,
		BasicUsername: "outer",
		BasicPassword: "secret",
		LoginUsername: "someone",
		LoginPassword: "hunter2",
	})
	require.NoError(t, err)
	_, err = client.Get(context.Background(), "main.php", nil)
	require.NoError(t, err)
	require.Empty(t, authHeader)
}

func TestNewClientValidatesCredentials(t *testing.T) {
	_, err := NewClient(context.Background(), ClientOptions{
		Environment: Production,
		BaseUrl:     "https://portal.example",
	})
	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)

	_, err = NewClient(context.Background(), ClientOptions{
		Environment:   Test,
		BaseUrl:       "https://portal.example",
		LoginUsername: "someone",
		LoginPassword: "hunter2",
	})
	require.ErrorAs(t, err, &authErr)
}

func TestExcerptBounded(t *testing.T) {
	long := strings.Repeat("あ", 1000)
	excerpt := Excerpt(long)
	require.LessOrEqual(t, len([]rune(excerpt)), 201)

	require.Equal(t, "a b c", Excerpt("  a\n\tb   c  "))
}

package core

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	_ "embed"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/require"

	"rdcatalog/lib/telemetry"
)

//go:embed fixtures/login_success.html
var loginSuccessFixture []byte

//go:embed fixtures/login_rejected.html
var loginRejectedFixture []byte

//go:embed fixtures/login_ambiguous.html
var loginAmbiguousFixture []byte

func newLoginServer(t testing.TB, result []byte) *httptest.Server {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/index.php" {
			http.NotFound(w, r)
			return
		}
		if r.Method == http.MethodGet {
			w.Write(loginPageFixture)
			return
		}
		require.NoError(t, r.ParseForm())
		// the discovered hidden fields must round-trip
		require.Equal(t, "1", r.PostForm.Get("pass_check"))
		require.Equal(t, "8f3a1c", r.PostForm.Get("csrf_seed"))
		require.Equal(t, "someone", r.PostForm.Get("id"))
		require.Equal(t, "hunter2", r.PostForm.Get("password"))
		w.Write(result)
	}))
	t.Cleanup(server.Close)
	return server
}

func newTestClient(t testing.TB, baseUrl string) *Client {
	client, err := NewClient(context.Background(), ClientOptions{
		Environment:   Production,
		BaseUrl:       baseUrl,
		LoginUsername: "someone",
		LoginPassword: "hunter2",
	})
	require.NoError(t, err)
	// httptest serves on 127.0.0.1, follow its redirects
	client.Http.SetRedirectPolicy(resty.FlexibleRedirectPolicy(5))
	return client
}

func TestLoginSuccess(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:scrapers/dataportal/core")
	defer cleanup()

	server := newLoginServer(t, loginSuccessFixture)
	client := newTestClient(t, server.URL)

	require.NoError(t, client.Login(context.Background()))
}

func TestLoginRejected(t *testing.T) {
	server := newLoginServer(t, loginRejectedFixture)
	client := newTestClient(t, server.URL)

	err := client.Login(context.Background())
	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	require.NotEmpty(t, authErr.Excerpt)
}

func TestLoginAmbiguousNeverSuccess(t *testing.T) {
	server := newLoginServer(t, loginAmbiguousFixture)
	client := newTestClient(t, server.URL)

	err := client.Login(context.Background())
	var ambiguous *AmbiguousResponseError
	require.ErrorAs(t, err, &ambiguous)
	require.Equal(t, "login", ambiguous.Step)
}

func TestIsLoginPage(t *testing.T) {
	require.True(t, IsLoginPage(loginPageFixture))
	require.True(t, IsLoginPage(loginRejectedFixture))
	// the logout link marks an authenticated page even though the
	// word "ログイン" may appear elsewhere on it
	require.False(t, IsLoginPage(loginSuccessFixture))
	require.False(t, IsLoginPage(loginAmbiguousFixture))
}

func TestEnsureSessionRetriesLoginOnce(t *testing.T) {
	expired := true
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/index.php" && r.Method == http.MethodGet:
			w.Write(loginPageFixture)
		case r.URL.Path == "/index.php" && r.Method == http.MethodPost:
			expired = false
			w.Write(loginSuccessFixture)
		case r.URL.Path == "/main.php":
			if expired {
				w.Write(loginPageFixture)
				return
			}
			w.Write([]byte(`<html><body><a href="index.php?mode=logout">ログアウト</a><h1>テーマ管理</h1></body></html>`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	res, err := client.EnsureSession(context.Background(), func(ctx context.Context) (*resty.Response, error) {
		return client.Get(ctx, "main.php", url.Values{"mode": {"theme"}})
	})
	require.NoError(t, err)
	require.Contains(t, string(res.Body()), "テーマ管理")
}

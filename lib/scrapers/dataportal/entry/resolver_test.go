package entry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/require"

	"rdcatalog/lib/scrapers/dataportal/core"
)

// portalServer serves a minimal authenticated portal: a login page on
// GET index.php and the embedded search fixture for theme searches.
func portalServer(t testing.TB, searches *atomic.Int64) *httptest.Server {
	loginPage := []byte(`<html><body><form action="index.php">
		<input name="id" value=""><input name="password" value="">
	</form></body></html>`)
	loggedIn := []byte(`<html><body><a href="index.php?mode=logout">ログアウト</a></body></html>`)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/index.php" && r.Method == http.MethodGet:
			w.Write(loginPage)
		case r.URL.Path == "/index.php" && r.Method == http.MethodPost:
			w.Write(loggedIn)
		case r.URL.Path == "/main.php" && r.Method == http.MethodPost:
			if searches != nil {
				searches.Add(1)
			}
			w.Write(searchResultFixture)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func newResolver(t testing.TB, baseUrl string) *Resolver {
	client, err := core.NewClient(context.Background(), core.ClientOptions{
		Environment:   core.Production,
		BaseUrl:       baseUrl,
		LoginUsername: "someone",
		LoginPassword: "hunter2",
	})
	require.NoError(t, err)
	client.Http.SetRedirectPolicy(resty.FlexibleRedirectPolicy(5))
	return NewResolver(client)
}

func TestResolverLookup(t *testing.T) {
	var searches atomic.Int64
	server := portalServer(t, &searches)
	resolver := newResolver(t, server.URL)
	ctx := context.Background()

	status, err := resolver.Lookup(ctx, "DATASET-0042")
	require.NoError(t, err)
	require.True(t, status.DatasetIDFound)
	require.Equal(t, "272", status.TCode)
	require.Contains(t, status.PublicURL, "arim_data.php?mode=detail&code=a81f&key=9cd2e47b")

	// second lookup is served from the process cache
	_, err = resolver.Lookup(ctx, "DATASET-0042")
	require.NoError(t, err)
	require.Equal(t, int64(1), searches.Load())
}

func TestResolverTCodeCachedPerSelection(t *testing.T) {
	var searches atomic.Int64
	server := portalServer(t, &searches)
	resolver := newResolver(t, server.URL)
	ctx := context.Background()

	tCode, err := resolver.TCode(ctx, "DATASET-0042")
	require.NoError(t, err)
	require.Equal(t, "272", tCode)
	first := searches.Load()

	tCode, err = resolver.TCode(ctx, "DATASET-0042")
	require.NoError(t, err)
	require.Equal(t, "272", tCode)
	require.Equal(t, first, searches.Load())

	// invalidation drops both the selection and the status cache
	resolver.Invalidate()
	_, err = resolver.TCode(ctx, "DATASET-0042")
	require.NoError(t, err)
	require.Greater(t, searches.Load(), first)
}

func TestResolverTCodeMissing(t *testing.T) {
	server := portalServer(t, nil)
	resolver := newResolver(t, server.URL)

	// the fixture renders this row without a t_code input
	_, err := resolver.TCode(context.Background(), "DATASET-0099")
	var missing *core.TokenMissingError
	require.ErrorAs(t, err, &missing)
}

func TestResolverHasContents(t *testing.T) {
	server := portalServer(t, nil)
	resolver := newResolver(t, server.URL)

	has, err := resolver.HasContents(context.Background(), "DATASET-0042")
	require.NoError(t, err)
	require.True(t, has)

	has, err = resolver.HasContents(context.Background(), "DATASET-0099")
	require.NoError(t, err)
	require.False(t, has)
}

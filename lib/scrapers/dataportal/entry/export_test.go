package entry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"

	"rdcatalog/lib/scrapers/dataportal/core"
)

const themeCSV = "データセットID,課題番号,ステータス\n" +
	"DATASET-0042,JPMXP12,非公開\n" +
	"DATASET-0099,JPMXP34,公開済\n" +
	"DATASET-0123,JPMXP56,下書き\n"

func TestDecodeCSVPayload(t *testing.T) {
	// utf-8 with BOM
	decoded := DecodeCSVPayload(append([]byte{0xEF, 0xBB, 0xBF}, []byte(themeCSV)...))
	require.Equal(t, themeCSV, decoded)

	// cp932
	encoded, _, err := transform.Bytes(japanese.ShiftJIS.NewEncoder(), []byte(themeCSV))
	require.NoError(t, err)
	require.Equal(t, themeCSV, DecodeCSVPayload(encoded))

	// euc-jp
	encoded, _, err = transform.Bytes(japanese.EUCJP.NewEncoder(), []byte(themeCSV))
	require.NoError(t, err)
	require.Equal(t, themeCSV, DecodeCSVPayload(encoded))
}

func TestParseThemeCSV(t *testing.T) {
	rows := ParseThemeCSV(themeCSV)
	require.Len(t, rows, 3)
	require.Equal(t, ThemeRow{DatasetID: "DATASET-0042", RawStatus: "非公開"}, rows[0])

	labels := ThemeLabels(rows)
	require.Equal(t, LabelUploaded, labels["DATASET-0042"])
	require.Equal(t, LabelPublished, labels["DATASET-0099"])
	require.Equal(t, LabelNotUploaded, labels["DATASET-0123"])
}

func TestParseThemeCSVEnglishHeaders(t *testing.T) {
	rows := ParseThemeCSV("dataset_id,status\nDATASET-0042,公開済\n")
	require.Len(t, rows, 1)
	require.Equal(t, LabelPublished, rows[0].ListingLabel())
}

func TestParseThemeCSVUnknownHeaders(t *testing.T) {
	require.Empty(t, ParseThemeCSV("a,b\n1,2\n"))
	require.Empty(t, ParseThemeCSV(""))
}

func TestExportPathRoundTrip(t *testing.T) {
	dir := t.TempDir()

	_, ok := FindLatestExport(dir, core.Production)
	require.False(t, ok)

	older := BuildExportPath(dir, core.Production, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	newer := BuildExportPath(dir, core.Production, time.Date(2026, 2, 2, 3, 4, 5, 0, time.UTC))
	require.Equal(t, filepath.Join(dir, "theme_list_production_20260102_030405.csv"), older)

	require.NoError(t, os.WriteFile(older, []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(newer, []byte("b"), 0o644))
	// mtimes decide recency, not names
	require.NoError(t, os.Chtimes(older, time.Now(), time.Now().Add(-time.Hour)))

	latest, ok := FindLatestExport(dir, core.Production)
	require.True(t, ok)
	require.Equal(t, newer, latest)

	// exports are partitioned per environment
	_, ok = FindLatestExport(dir, core.Test)
	require.False(t, ok)
}

func TestExportThemeCSV(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/main.php" && r.Method == http.MethodPost:
			w.Write(searchResultFixture)
		case r.URL.Path == "/main.php" && r.Method == http.MethodGet:
			query := r.URL.Query()
			require.Equal(t, "csv_download", query.Get("mode2"))
			require.Equal(t, "a81f", query.Get("code"))
			require.Equal(t, "9cd2e47b", query.Get("key"))
			w.Write([]byte(themeCSV))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client, err := core.NewClient(context.Background(), core.ClientOptions{
		Environment:   core.Production,
		BaseUrl:       server.URL,
		LoginUsername: "someone",
		LoginPassword: "hunter2",
	})
	require.NoError(t, err)
	client.Http.SetRedirectPolicy(resty.FlexibleRedirectPolicy(5))

	dir := t.TempDir()
	path, err := ExportThemeCSV(context.Background(), client, dir)
	require.NoError(t, err)

	payload, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, themeCSV, string(payload))

	latest, ok := FindLatestExport(dir, core.Production)
	require.True(t, ok)
	require.Equal(t, path, latest)
}

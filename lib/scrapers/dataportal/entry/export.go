package entry

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"

	"rdcatalog/lib/scrapers/dataportal/core"
)

// ExportThemeCSV downloads the authenticated theme-list CSV and writes
// it under dir with the environment+timestamp naming convention,
// returning the written path. The download endpoint requires a
// code/key token pair scraped from the listing page itself.
func ExportThemeCSV(ctx context.Context, client *core.Client, dir string) (string, error) {
	ctx, span := tracer.Start(ctx, "entry:ExportThemeCSV")
	defer span.End()

	res, err := client.EnsureSession(ctx, func(ctx context.Context) (*resty.Response, error) {
		return client.Post(ctx, "main.php", SearchForm(""))
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch theme listing")
		return "", err
	}

	code, key, err := extractExportPair(res.Body())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to locate csv download tokens")
		return "", err
	}

	res, err = client.Get(ctx, "main.php", url.Values{
		"mode":  {"theme"},
		"mode2": {"csv_download"},
		"code":  {code},
		"key":   {key},
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "csv download failed")
		return "", err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := BuildExportPath(dir, client.Env, time.Now())
	if err := os.WriteFile(path, res.Body(), 0o644); err != nil {
		return "", fmt.Errorf("failed to write export: %w", err)
	}
	return path, nil
}

// extractExportPair scrapes the code/key tokens the csv_download
// endpoint requires, from the download anchor or from hidden inputs.
func extractExportPair(html []byte) (code string, key string, err error) {
	doc, parseErr := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if parseErr != nil {
		return "", "", parseErr
	}

	doc.Find("a[href]").EachWithBreak(func(_ int, anchor *goquery.Selection) bool {
		href := anchor.AttrOr("href", "")
		if !strings.Contains(href, "csv_download") {
			return true
		}
		parsed, err := url.Parse(href)
		if err != nil {
			return true
		}
		query := parsed.Query()
		c := strings.TrimSpace(query.Get("code"))
		k := strings.TrimSpace(query.Get("key"))
		if c == "" || k == "" {
			return true
		}
		code, key = c, k
		return false
	})
	if code != "" && key != "" {
		return code, key, nil
	}

	code = strings.TrimSpace(doc.Find(`input[name="code"]`).AttrOr("value", ""))
	key = strings.TrimSpace(doc.Find(`input[name="key"]`).AttrOr("value", ""))
	if code == "" || key == "" {
		return "", "", &core.TokenMissingError{Token: "csv download code/key pair"}
	}
	return code, key, nil
}

// BuildExportPath names a theme-list export for one environment.
func BuildExportPath(dir string, env core.Environment, now time.Time) string {
	return filepath.Join(dir, fmt.Sprintf("theme_list_%s_%s.csv", env, now.Format("20060102_150405")))
}

// FindLatestExport returns the newest export for the environment, used
// as a fallback data source when a live fetch is unavailable.
func FindLatestExport(dir string, env core.Environment) (string, bool) {
	matches, err := filepath.Glob(filepath.Join(dir, fmt.Sprintf("theme_list_%s_*.csv", env)))
	if err != nil || len(matches) == 0 {
		return "", false
	}

	var latest string
	var latestMod time.Time
	for _, path := range matches {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		if latest == "" || info.ModTime().After(latestMod) {
			latest = path
			latestMod = info.ModTime()
		}
	}
	return latest, latest != ""
}

// DecodeCSVPayload turns the portal's CSV bytes into a string. The
// portal has served UTF-8 with and without a BOM as well as CP932 and
// EUC-JP over time, so each encoding is tried in turn.
func DecodeCSVPayload(payload []byte) string {
	payload = bytes.TrimPrefix(payload, []byte{0xEF, 0xBB, 0xBF})
	if utf8.Valid(payload) {
		return string(payload)
	}
	for _, enc := range []transform.Transformer{
		japanese.ShiftJIS.NewDecoder(),
		japanese.EUCJP.NewDecoder(),
	} {
		decoded, _, err := transform.Bytes(enc, payload)
		if err == nil && utf8.Valid(decoded) {
			return string(decoded)
		}
	}
	return string(bytes.ToValidUTF8(payload, []byte("�")))
}

// ThemeRow is one dataset row of the exported theme list.
type ThemeRow struct {
	DatasetID string
	RawStatus string
}

// ListingLabel maps the CSV status cell onto the listing labels used
// for live lookups.
func (r ThemeRow) ListingLabel() string {
	switch {
	case strings.Contains(r.RawStatus, phrasePublic):
		return LabelPublished
	case strings.Contains(r.RawStatus, phrasePrivate):
		return LabelUploaded
	default:
		return LabelNotUploaded
	}
}

// Header cells vary between portal versions, both in language and in
// wording, so the columns are located by candidate matching.
var datasetIDHeaders = []string{"データセットid", "dataset_id", "datasetid", "dataset id"}
var statusHeaders = []string{"ステータス", "状態", "公開ステータス", "status", "公開/非公開", "公開状況"}

func normalizeHeader(h string) string {
	return strings.ToLower(strings.TrimSpace(strings.ReplaceAll(h, "\uFEFF", "")))
}

func pickHeader(headers []string, candidates []string) int {
	for i, h := range headers {
		n := normalizeHeader(h)
		for _, c := range candidates {
			if n == normalizeHeader(c) {
				return i
			}
		}
	}
	return -1
}

// ParseThemeCSV extracts dataset id + status rows from decoded CSV
// text. An export whose columns cannot be located parses to nothing
// rather than to garbage.
func ParseThemeCSV(text string) []ThemeRow {
	reader := csv.NewReader(strings.NewReader(text))
	reader.FieldsPerRecord = -1

	headers, err := reader.Read()
	if err != nil {
		return nil
	}

	idIdx := pickHeader(headers, datasetIDHeaders)
	statusIdx := pickHeader(headers, statusHeaders)
	if idIdx < 0 || statusIdx < 0 {
		for i, h := range headers {
			n := normalizeHeader(h)
			if idIdx < 0 && (strings.Contains(n, "dataset") && strings.Contains(n, "id") ||
				strings.Contains(n, "データセット") && strings.Contains(n, "id")) {
				idIdx = i
			}
			if statusIdx < 0 && (strings.Contains(n, "status") || strings.Contains(n, "ステータ") || strings.Contains(n, "公開")) {
				statusIdx = i
			}
		}
	}
	if idIdx < 0 || statusIdx < 0 {
		return nil
	}

	var rows []ThemeRow
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue
		}
		if len(record) <= idIdx || len(record) <= statusIdx {
			continue
		}
		id := strings.TrimSpace(record[idIdx])
		if id == "" {
			continue
		}
		rows = append(rows, ThemeRow{
			DatasetID: id,
			RawStatus: strings.TrimSpace(record[statusIdx]),
		})
	}
	return rows
}

// ThemeLabels flattens parsed rows into a dataset id → listing label
// map for bulk listing updates.
func ThemeLabels(rows []ThemeRow) map[string]string {
	labels := make(map[string]string, len(rows))
	for _, row := range rows {
		labels[row.DatasetID] = row.ListingLabel()
	}
	return labels
}

// Package entry reconstructs portal-side entry state from scraped
// search-result markup: whether a dataset is registered, whether it is
// editable, its publish status and its public deep-link tokens.
package entry

import (
	"bytes"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"rdcatalog/lib/htmlutil"
)

type PublishStatus string

const (
	StatusPublic  PublishStatus = "public"
	StatusPrivate PublishStatus = "private"
	StatusUnknown PublishStatus = "unknown"
)

// Publish-state phrases rendered in the listing's status cell.
const (
	phrasePublic  = "公開済"
	phrasePrivate = "非公開"
)

// Listing labels shown for a dataset, mirroring the portal's own terms.
const (
	LabelNotUploaded = "未UP"
	LabelUploaded    = "UP済"
	LabelPublished   = "公開済"
)

// EntryStatus is everything recoverable about one dataset from a
// search-result page. Fields degrade independently: a partially
// renderable row still reports whatever could be extracted.
type EntryStatus struct {
	DatasetID       string
	DatasetIDFound  bool
	CanEdit         bool
	CanToggleStatus bool
	CanPublicView   bool
	Status          PublishStatus
	TCode           string
	PublicCode      string
	PublicKey       string
	PublicURL       string
}

// ListingLabel derives the dataset-listing label. A row without an
// edit link is treated as not uploaded regardless of its status cell.
func (s EntryStatus) ListingLabel() string {
	if !s.CanEdit {
		return LabelNotUploaded
	}
	switch s.Status {
	case StatusPublic:
		return LabelPublished
	case StatusPrivate:
		return LabelUploaded
	default:
		return LabelNotUploaded
	}
}

var editModeRegex = regexp.MustCompile(`form_change\d+`)

// ParseEntrySearch derives an EntryStatus from the HTML of a keyword
// search scoped to datasetID. Extraction failures never raise; the
// corresponding field falls back to unknown/disabled.
func ParseEntrySearch(html []byte, datasetID string) EntryStatus {
	datasetID = strings.TrimSpace(datasetID)
	status := EntryStatus{
		DatasetID: datasetID,
		Status:    StatusUnknown,
	}

	text := string(html)
	status.DatasetIDFound = datasetID != "" && strings.Contains(text, datasetID)
	if !status.DatasetIDFound {
		return status
	}

	status.CanEdit = editModeRegex.MatchString(text)
	status.TCode = extractTCode(text, datasetID)

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return status
	}

	doc.Find(`td[rowspan="2"]`).EachWithBreak(func(_ int, cell *goquery.Selection) bool {
		cellText := htmlutil.NormalizeText(cell.Text())
		if !strings.Contains(cellText, "公開") {
			return true
		}
		if strings.Contains(cellText, phrasePublic) {
			status.Status = StatusPublic
		} else if strings.Contains(cellText, phrasePrivate) {
			status.Status = StatusPrivate
		}
		return false
	})

	status.PublicCode, status.PublicKey = extractPublicPair(doc)

	status.CanToggleStatus = status.CanEdit && status.Status != StatusUnknown
	status.CanPublicView = status.CanEdit && status.PublicCode != "" && status.PublicKey != ""
	return status
}

// extractTCode locates the hidden t_code input belonging to the row
// that renders the dataset identifier.
func extractTCode(text, datasetID string) string {
	pattern, err := regexp.Compile(
		`(?s)<td class="l">` + regexp.QuoteMeta(datasetID) + `</td>.*?name="t_code" value="([^"']+)"`,
	)
	if err != nil {
		return ""
	}
	groups := pattern.FindStringSubmatch(text)
	if len(groups) < 2 {
		return ""
	}
	return strings.TrimSpace(groups[1])
}

// extractPublicPair finds the anonymous detail link and returns its
// code/key query tokens.
func extractPublicPair(doc *goquery.Document) (code string, key string) {
	doc.Find("a[href]").EachWithBreak(func(_ int, anchor *goquery.Selection) bool {
		href := strings.TrimSpace(anchor.AttrOr("href", ""))
		if !strings.Contains(href, "arim_data.php") || !strings.Contains(href, "mode=detail") {
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
	return code, key
}

// PublicDetailURL builds the anonymous public-facing deep link for a
// published entry from its scraped code/key pair.
func PublicDetailURL(base *url.URL, code, key string) string {
	if base == nil || code == "" || key == "" {
		return ""
	}
	ref := &url.URL{
		Path:     "arim_data.php",
		RawQuery: fmt.Sprintf("mode=detail&code=%s&key=%s", url.QueryEscape(code), url.QueryEscape(key)),
	}
	return base.ResolveReference(ref).String()
}

// contentsWindow bounds the fallback text search around the dataset
// identifier when structured parsing fails.
const contentsWindow = 4000

// HasContentsLink reports whether the dataset's listing row carries a
// content-download link, which means a content archive has already
// been uploaded for it.
func HasContentsLink(html []byte, datasetID string) bool {
	datasetID = strings.TrimSpace(datasetID)
	if datasetID == "" {
		return false
	}
	text := string(html)
	if !strings.Contains(text, datasetID) {
		return false
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err == nil {
		found, decided := contentsLinkFromRows(doc, datasetID)
		if decided {
			return found
		}
	}

	idx := strings.Index(text, datasetID)
	window := text[idx:]
	if len(window) > contentsWindow {
		window = window[:contentsWindow]
	}
	return strings.Contains(window, "arim_data_file.php") && strings.Contains(window, "mode=free")
}

// contentsLinkFromRows checks the identifier's row and the row after
// it (the listing renders each entry across two rows).
func contentsLinkFromRows(doc *goquery.Document, datasetID string) (found bool, decided bool) {
	doc.Find("td.l").EachWithBreak(func(_ int, cell *goquery.Selection) bool {
		if htmlutil.NormalizeText(cell.Text()) != datasetID {
			return true
		}
		decided = true

		row := cell.Closest("tr")
		rows := row.AddSelection(row.Next())
		rows.Find("a[href]").EachWithBreak(func(_ int, anchor *goquery.Selection) bool {
			href := anchor.AttrOr("href", "")
			if strings.Contains(href, "arim_data_file.php") && strings.Contains(href, "mode=free") {
				found = true
				return false
			}
			return true
		})
		return false
	})
	return found, decided
}

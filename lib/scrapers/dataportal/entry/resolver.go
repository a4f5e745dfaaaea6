package entry

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/codes"

	"rdcatalog/lib/scrapers/dataportal/core"
)

// Resolver answers "what does the portal currently know about this
// dataset" by running keyword searches and parsing the result markup.
// The t_code handle is resolved lazily and cached only for the current
// selection.
type Resolver struct {
	client *core.Client
	cache  *statusCache

	mu            sync.Mutex
	selectedID    string
	selectedTCode string
}

func NewResolver(client *core.Client) *Resolver {
	return &Resolver{
		client: client,
		cache:  newStatusCache(defaultCacheTTL),
	}
}

func NewResolverWithTTL(client *core.Client, ttl time.Duration) *Resolver {
	return &Resolver{
		client: client,
		cache:  newStatusCache(ttl),
	}
}

// SearchForm builds the listing search request the portal's theme page
// submits. Empty filter fields must still be present.
func SearchForm(keyword string) url.Values {
	return url.Values{
		"mode":                 {"theme"},
		"keyword":              {keyword},
		"search_inst":          {""},
		"search_license_level": {""},
		"search_status":        {""},
		"page":                 {"1"},
	}
}

func (r *Resolver) search(ctx context.Context, keyword string) (*resty.Response, error) {
	return r.client.EnsureSession(ctx, func(ctx context.Context) (*resty.Response, error) {
		return r.client.Post(ctx, "main.php", SearchForm(keyword))
	})
}

// Lookup derives the dataset's live portal state, serving repeat calls
// from the short-lived process cache.
func (r *Resolver) Lookup(ctx context.Context, datasetID string) (EntryStatus, error) {
	ctx, span := tracer.Start(ctx, "resolver:Lookup")
	defer span.End()

	datasetID = strings.TrimSpace(datasetID)
	key := cacheKey(string(r.client.Env), datasetID)
	if status, ok := r.cache.get(key); ok {
		return status, nil
	}

	res, err := r.search(ctx, datasetID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "search request failed")
		return EntryStatus{}, err
	}

	status := ParseEntrySearch(res.Body(), datasetID)
	if status.PublicCode != "" && status.PublicKey != "" {
		status.PublicURL = PublicDetailURL(r.client.BaseUrl, status.PublicCode, status.PublicKey)
	}

	slog.DebugContext(
		ctx, "resolved portal entry",
		"dataset_id", datasetID,
		"found", status.DatasetIDFound,
		"can_edit", status.CanEdit,
		"status", status.Status,
	)

	r.cache.set(key, status)
	return status, nil
}

// TCode resolves the portal-internal numeric handle for a dataset.
// The handle is cached for the lifetime of the current selection and
// thrown away when the selection changes.
func (r *Resolver) TCode(ctx context.Context, datasetID string) (string, error) {
	datasetID = strings.TrimSpace(datasetID)

	r.mu.Lock()
	if r.selectedID == datasetID && r.selectedTCode != "" {
		tCode := r.selectedTCode
		r.mu.Unlock()
		return tCode, nil
	}
	r.mu.Unlock()

	status, err := r.Lookup(ctx, datasetID)
	if err != nil {
		return "", err
	}
	if status.TCode == "" {
		return "", &core.TokenMissingError{Token: "t_code for dataset " + datasetID}
	}

	r.mu.Lock()
	r.selectedID = datasetID
	r.selectedTCode = status.TCode
	r.mu.Unlock()
	return status.TCode, nil
}

// HasContents reports whether a content archive download link exists
// on the dataset's listing row.
func (r *Resolver) HasContents(ctx context.Context, datasetID string) (bool, error) {
	res, err := r.search(ctx, strings.TrimSpace(datasetID))
	if err != nil {
		return false, err
	}
	return HasContentsLink(res.Body(), datasetID), nil
}

// Invalidate drops the selection-scoped t_code and the status cache.
// Call it whenever the selected dataset or the environment changes.
func (r *Resolver) Invalidate() {
	r.mu.Lock()
	r.selectedID = ""
	r.selectedTCode = ""
	r.mu.Unlock()
	r.cache.clear()
}

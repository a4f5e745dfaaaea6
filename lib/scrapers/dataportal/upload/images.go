package upload

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/antzucaro/matchr"
	"go.opentelemetry.io/otel/codes"

	"rdcatalog/lib/htmlutil"
	"rdcatalog/lib/scrapers/dataportal/core"
	"rdcatalog/lib/scrapers/dataportal/entry"
)

// DuplicatePolicy decides what happens when an image's caption already
// exists on the portal. The choice belongs to the caller.
type DuplicatePolicy int

const (
	DuplicateAbort DuplicatePolicy = iota
	DuplicateSkip
	DuplicateForce
)

// Image is one local file to register against a portal entry.
type Image struct {
	Path         string
	OriginalName string
	Caption      string
}

// ImageResult reports what happened to one image of a batch.
type ImageResult struct {
	Image           Image
	Skipped         bool
	NearestExisting string
	Result          StepResult
}

// tempHandleStrategy is one way the portal has been seen to render the
// temporary filename token. Strategies are tried in order; each is
// independently testable.
type tempHandleStrategy struct {
	name    string
	extract func(body string, doc *goquery.Document) (string, bool)
}

// the portal mixes upper and lower case between pages
var (
	scriptTempFileRegex = regexp.MustCompile(`(?i)temp_file\s*=\s*["']([^"']+)["']`)
	bareTempFileRegex   = regexp.MustCompile(`(?i)temp_\d+\.(?:jpeg|jpg|png)`)
)

var tempHandleStrategies = []tempHandleStrategy{
	{"hidden field", func(_ string, doc *goquery.Document) (string, bool) {
		for _, input := range doc.Find("input").Nodes {
			if !strings.EqualFold(htmlutil.Attr(input, "name"), "ti_file") {
				continue
			}
			if value := htmlutil.Attr(input, "value"); value != "" {
				return value, true
			}
		}
		return "", false
	}},
	{"script variable", func(_ string, doc *goquery.Document) (string, bool) {
		for _, script := range doc.Find("script").Nodes {
			groups := scriptTempFileRegex.FindStringSubmatch(htmlutil.GetText(script))
			if len(groups) > 1 && groups[1] != "" {
				return groups[1], true
			}
		}
		return "", false
	}},
	{"bare filename", func(body string, _ *goquery.Document) (string, bool) {
		if match := bareTempFileRegex.FindString(body); match != "" {
			return match, true
		}
		return "", false
	}},
}

// extractTempHandle locates the server-issued temporary filename in a
// confirm response, reporting which strategy found it.
func extractTempHandle(body string) (handle string, strategy string, ok bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return "", "", false
	}
	for _, s := range tempHandleStrategies {
		if handle, ok := s.extract(body, doc); ok {
			return handle, s.name, true
		}
	}
	return "", "", false
}

var serverErrorRegex = regexp.MustCompile(`<b>(?:Warning|ERROR)[^<]*</b>:[^<]+`)

// serverError extracts a PHP Warning/ERROR marker verbatim from a
// response body. Any marker fails the step.
func serverError(body string) (string, bool) {
	if !strings.Contains(body, "Warning") && !strings.Contains(body, "ERROR") {
		return "", false
	}
	if match := serverErrorRegex.FindString(body); match != "" {
		return match, true
	}
	return core.Excerpt(body), true
}

// ExistingCaptions fetches the captions already registered for an
// entry, used to detect duplicates before uploading.
func (o *Orchestrator) ExistingCaptions(ctx context.Context, tCode string) (map[string]bool, error) {
	form := entry.SearchForm("")
	form.Set("mode2", "image")
	form.Set("t_code", tCode)

	res, err := o.client.Post(ctx, "main.php", form)
	if err != nil {
		return nil, err
	}

	captions := map[string]bool{}
	for _, groups := range captionCellRegex.FindAllStringSubmatch(string(res.Body()), -1) {
		caption := strings.TrimSpace(groups[1])
		if caption != "" {
			captions[caption] = true
		}
	}
	return captions, nil
}

var captionCellRegex = regexp.MustCompile(`<td class="l">([^<]+)</td>`)

// nearestCaption returns the registered caption closest to the given
// one, for duplicate-skip diagnostics.
func nearestCaption(caption string, existing map[string]bool) string {
	best := ""
	bestDist := -1
	for candidate := range existing {
		dist := matchr.Levenshtein(caption, candidate)
		if bestDist < 0 || dist < bestDist {
			best, bestDist = candidate, dist
		}
	}
	return best
}

// RegisterImages registers a batch of images against a dataset's
// entry. Duplicates are resolved per the caller's policy before any
// upload begins: abort fails the whole batch, skip drops the
// duplicates, force uploads everything.
func (o *Orchestrator) RegisterImages(ctx context.Context, datasetID string, images []Image, policy DuplicatePolicy) ([]ImageResult, error) {
	ctx, span := tracer.Start(ctx, "orchestrator:RegisterImages")
	defer span.End()

	if err := o.client.Login(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "login failed")
		return nil, err
	}
	tCode, err := o.resolver.TCode(ctx, datasetID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "t_code resolution failed")
		return nil, err
	}

	existing, err := o.ExistingCaptions(ctx, tCode)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "existing caption fetch failed")
		return nil, err
	}

	var results []ImageResult
	for _, img := range images {
		if policy != DuplicateForce && existing[img.Caption] {
			if policy == DuplicateAbort {
				return results, &core.ValidationError{
					Reason: fmt.Sprintf("caption %q is already registered", img.Caption),
				}
			}
			slog.InfoContext(
				ctx, "skipping duplicate image",
				"caption", img.Caption,
				"nearest_existing", nearestCaption(img.Caption, existing),
			)
			results = append(results, ImageResult{
				Image:           img,
				Skipped:         true,
				NearestExisting: nearestCaption(img.Caption, existing),
			})
			continue
		}

		result, err := o.registerOne(ctx, tCode, img)
		results = append(results, ImageResult{Image: img, Result: result})
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "image registration failed")
			return results, err
		}
		existing[img.Caption] = true
	}
	return results, nil
}

// registerOne runs the two-exchange handshake for a single image:
// upload the raw bytes with the confirm flag, extract the temporary
// filename token the server issued, then commit referencing it. The
// token is consumed exactly once.
func (o *Orchestrator) registerOne(ctx context.Context, tCode string, img Image) (StepResult, error) {
	payload, err := os.ReadFile(img.Path)
	if err != nil {
		return StepResult{}, err
	}

	form := imageForm(tCode)
	form.Set("mode4", "conf")
	form.Set("ti_title", img.Caption)
	res, err := o.client.PostMultipart(ctx, "main.php", form, []core.File{{
		Param:  "upload_file",
		Name:   img.OriginalName,
		Reader: bytes.NewReader(payload),
	}})
	if err != nil {
		return StepResult{}, err
	}

	body := string(res.Body())
	if msg, failed := serverError(body); failed {
		result := StepResult{Outcome: OutcomeRejected, Reason: msg, Excerpt: core.Excerpt(body)}
		return result, result.asError("image upload confirm")
	}
	handle, strategy, ok := extractTempHandle(body)
	if !ok {
		return StepResult{
			Outcome: OutcomeRejected,
			Reason:  "temp handle missing",
			Excerpt: core.Excerpt(body),
		}, &core.TokenMissingError{Token: "temp upload handle"}
	}
	slog.DebugContext(ctx, "extracted temp handle", "handle", handle, "strategy", strategy)

	form = imageForm(tCode)
	form.Set("mode4", "rec")
	form.Set("ti_title", img.Caption)
	form.Set("ti_file", handle)
	form.Set("original_filename", img.OriginalName)
	form.Set("old_filename", "")
	form.Set("file_delete_flag", "")
	form.Set("file_change_flag", "1")
	res, err = o.client.Post(ctx, "main.php", form)
	if err != nil {
		return StepResult{}, err
	}

	body = string(res.Body())
	if msg, failed := serverError(body); failed {
		result := StepResult{Outcome: OutcomeRejected, Reason: msg, Excerpt: core.Excerpt(body)}
		return result, result.asError("image upload commit")
	}
	// no verified success phrase exists for this commit; absence of an
	// error marker is the only signal the portal gives
	return StepResult{
		Outcome: OutcomeCommitted,
		Reason:  "no error marker in commit response",
		Excerpt: core.Excerpt(body),
	}, nil
}

func imageForm(tCode string) url.Values {
	form := entry.SearchForm("")
	form.Set("mode2", "image")
	form.Set("mode3", "regist")
	form.Set("ti_code", "0")
	form.Set("t_code", tCode)
	return form
}


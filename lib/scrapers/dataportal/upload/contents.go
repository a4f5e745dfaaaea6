package upload

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.opentelemetry.io/otel/codes"

	"rdcatalog/lib/scrapers/dataportal/core"
	"rdcatalog/lib/scrapers/dataportal/entry"
)

// zip local file header magic
var archiveMagic = []byte{'P', 'K'}

// validateArchive rejects anything that is not a zip before a single
// byte goes over the wire.
func validateArchive(payload []byte) error {
	if len(payload) < len(archiveMagic) || !bytes.Equal(payload[:len(archiveMagic)], archiveMagic) {
		return &core.ValidationError{Reason: "file does not look like a zip archive"}
	}
	return nil
}

// UploadContents uploads a content archive for a dataset: validate the
// archive signature locally, establish a session, open the dataset's
// upload mode and submit the multipart archive. A final response with
// no recognizable phrase is surfaced as ambiguous, never assumed
// successful.
func (o *Orchestrator) UploadContents(ctx context.Context, datasetID, archivePath string) (StepResult, error) {
	ctx, span := tracer.Start(ctx, "orchestrator:UploadContents")
	defer span.End()

	payload, err := os.ReadFile(archivePath)
	if err != nil {
		return StepResult{}, err
	}
	if err := validateArchive(payload); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "archive validation failed")
		return StepResult{}, err
	}

	if err := o.client.Login(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "login failed")
		return StepResult{}, err
	}

	tCode, err := o.resolver.TCode(ctx, datasetID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "t_code resolution failed")
		return StepResult{}, err
	}

	// navigate to the dataset's listing row, then open upload mode
	form := entry.SearchForm("")
	form.Set("t_code", tCode)
	if _, err := o.client.Post(ctx, "main.php", form); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "listing fetch failed")
		return StepResult{}, err
	}

	form = entry.SearchForm("")
	form.Set("mode2", "open")
	form.Set("t_code", tCode)
	if _, err := o.client.Post(ctx, "main.php", form); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "open upload mode failed")
		return StepResult{}, err
	}

	form = entry.SearchForm("")
	form.Set("mode2", "contents_upload")
	form.Set("t_code", tCode)
	res, err := o.client.PostMultipart(ctx, "main.php", form, []core.File{{
		Param:  "contents_file",
		Name:   filepath.Base(archivePath),
		Reader: bytes.NewReader(payload),
	}})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "archive upload failed")
		return StepResult{}, err
	}

	result := classify(string(res.Body()), contentsRules, o.ContentsMatchMode, core.Excerpt)
	if err := result.asError(fmt.Sprintf("contents upload for %s", datasetID)); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "contents upload not confirmed")
		return result, err
	}
	return result, nil
}

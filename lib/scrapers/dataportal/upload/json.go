package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"

	"go.opentelemetry.io/otel/codes"

	"rdcatalog/lib/scrapers/dataportal/core"
	"rdcatalog/lib/scrapers/dataportal/entry"
)

type JSONUploadOptions struct {
	// DryRun stops after the non-destructive confirm step; the
	// commit POST is never sent.
	DryRun bool
}

// UploadJSON runs the two-phase metadata upload: login, session
// warm-up, multipart confirm, then commit. The confirm response is
// classified before the destructive commit is issued.
//
// The commit step accepts an unrecognized non-error response as
// success: at that point the registration has already happened on the
// portal side and there is nothing to roll back, so the optimistic
// reading is a documented limitation rather than a guess.
func (o *Orchestrator) UploadJSON(ctx context.Context, path string, opts JSONUploadOptions) (StepResult, error) {
	ctx, span := tracer.Start(ctx, "orchestrator:UploadJSON")
	defer span.End()

	payload, err := os.ReadFile(path)
	if err != nil {
		return StepResult{}, err
	}
	if !json.Valid(payload) {
		err := &core.ValidationError{Reason: "file is not valid JSON: " + filepath.Base(path)}
		span.RecordError(err)
		span.SetStatus(codes.Error, "json validation failed")
		return StepResult{}, err
	}

	if err := o.client.Login(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "login failed")
		return StepResult{}, err
	}

	// session warm-up; the portal rejects uploads on a session that
	// never rendered the theme page
	if _, err := o.client.Get(ctx, "main.php", url.Values{"mode": {"theme"}}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "warm-up fetch failed")
		return StepResult{}, err
	}

	filename := filepath.Base(path)
	result, err := o.confirmJSON(ctx, filename, payload)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "confirm step failed")
		return result, err
	}

	if opts.DryRun {
		slog.InfoContext(ctx, "dry run, skipping commit", "file", filename)
		return result, nil
	}

	result, err = o.commitJSON(ctx, filename)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "commit step failed")
	}
	return result, err
}

func (o *Orchestrator) confirmJSON(ctx context.Context, filename string, payload []byte) (StepResult, error) {
	form := entry.SearchForm("")
	form.Set("mode2", "json_upload")
	form.Set("mode3", "conf")

	res, err := o.client.PostMultipart(ctx, "main.php", form, []core.File{{
		Param:  "upload_json_file",
		Name:   filename,
		Reader: bytes.NewReader(payload),
	}})
	if err != nil {
		return StepResult{}, err
	}

	result := classify(string(res.Body()), jsonConfirmRules, MatchSubstring, core.Excerpt)
	if result.Outcome == OutcomeRejected {
		return result, result.asError("json upload confirm")
	}
	if result.Outcome == OutcomeUnrecognized {
		// optimistically accepted only here, where nothing has been
		// registered yet and the commit still guards itself
		slog.WarnContext(
			ctx, "unrecognized confirm response, continuing",
			"file", filename,
			"excerpt", result.Excerpt,
		)
		result.Outcome = OutcomeConfirmed
	}
	return result, nil
}

func (o *Orchestrator) commitJSON(ctx context.Context, filename string) (StepResult, error) {
	form := entry.SearchForm("")
	form.Set("mode2", "json_upload")
	form.Set("mode3", "rec")
	form.Set("json_filename", filename)

	res, err := o.client.Post(ctx, "main.php", form)
	if err != nil {
		return StepResult{}, err
	}

	result := classify(string(res.Body()), jsonCommitRules, MatchSubstring, core.Excerpt)
	switch result.Outcome {
	case OutcomeRejected:
		return result, result.asError("json upload commit")
	case OutcomeUnrecognized:
		slog.WarnContext(
			ctx, "unrecognized commit response, treating as registered",
			"file", filename,
			"excerpt", result.Excerpt,
		)
		result.Outcome = OutcomeCommitted
	}
	return result, nil
}

package core

import (
	"context"
	"log/slog"
	"strings"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/codes"
)

// The portal renders no machine-readable login result. Success is
// detected by the logout link appearing in the returned page; the
// login form reappearing means the credentials were rejected.
const (
	phraseLogout  = "ログアウト"
	phraseLogin   = "ログイン"
	phraseLoginEn = "Login"
)

// Login establishes an authenticated portal session: fetch the login
// page, discover its form, overwrite the credential slots and submit.
// A response containing neither the logout marker nor the login form
// is reported as ambiguous, never as success.
func (c *Client) Login(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "client:Login")
	defer span.End()

	res, err := c.Get(ctx, "index.php", nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch login page")
		return err
	}

	form, err := ParseLoginForm(res.Body())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to parse login form")
		return err
	}
	form.Fill(c.loginUsername, c.loginPassword)

	target := form.Action
	if target == "" {
		target = "index.php"
	}
	res, err = c.Post(ctx, target, form.Fields)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to submit login form")
		return err
	}

	body := string(res.Body())
	switch {
	case strings.Contains(body, phraseLogout):
		slog.DebugContext(ctx, "portal login succeeded", "env", c.Env, "user", c.loginUsername)
		return nil
	case IsLoginPage([]byte(body)):
		err := &AuthError{
			Reason:  "portal rejected the login credentials",
			Excerpt: Excerpt(body),
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "login rejected")
		return err
	default:
		err := &AmbiguousResponseError{Step: "login", Excerpt: Excerpt(body)}
		span.RecordError(err)
		span.SetStatus(codes.Error, "login response unrecognized")
		return err
	}
}

// IsLoginPage reports whether a response rendered the login form
// instead of the expected content, which indicates an expired or
// never-established session.
func IsLoginPage(body []byte) bool {
	text := string(body)
	if strings.Contains(text, phraseLogout) {
		return false
	}
	return strings.Contains(text, phraseLogin) || strings.Contains(text, phraseLoginEn)
}

// EnsureSession runs fetch and, when the portal answered with the
// login page, re-establishes the session exactly once and retries.
// This is the only automatic retry in the protocol client.
func (c *Client) EnsureSession(ctx context.Context, fetch func(ctx context.Context) (*resty.Response, error)) (*resty.Response, error) {
	res, err := fetch(ctx)
	if err != nil {
		return nil, err
	}
	if !IsLoginPage(res.Body()) {
		return res, nil
	}

	slog.WarnContext(ctx, "portal session expired, logging in again", "env", c.Env)
	if err := c.Login(ctx); err != nil {
		return nil, err
	}
	res, err = fetch(ctx)
	if err != nil {
		return nil, err
	}
	if IsLoginPage(res.Body()) {
		return nil, &AuthError{
			Reason:  "portal kept rendering the login page after re-login",
			Excerpt: Excerpt(string(res.Body())),
		}
	}
	return res, nil
}

package core

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"rdcatalog/lib/restyutil"
)

type Environment string

const (
	Production Environment = "production"
	Test       Environment = "test"
)

// excerptRunes bounds the slice of raw HTML attached to errors and
// ambiguous outcomes.
const excerptRunes = 200

// Client drives the catalog portal over its HTML form interface. The
// cookie jar is owned by exactly one orchestration at a time; create
// independent clients for parallel workflows.
type Client struct {
	Env     Environment
	BaseUrl *url.URL
	Http    *resty.Client

	loginUsername string
	loginPassword string
}

type ClientOptions struct {
	Environment Environment
	BaseUrl     string
	// Outer Basic-Auth pair, required for the test environment. The
	// production portal never receives it even when configured.
	BasicUsername string
	BasicPassword string
	LoginUsername string
	LoginPassword string
}

func NewClient(ctx context.Context, opts ClientOptions) (*Client, error) {
	if opts.LoginUsername == "" || opts.LoginPassword == "" {
		return nil, &AuthError{Reason: "login username and password are required"}
	}
	if opts.Environment == Test && (opts.BasicUsername == "" || opts.BasicPassword == "") {
		return nil, &AuthError{Reason: "the test environment requires a basic auth pair"}
	}

	baseUrl, err := url.Parse(opts.BaseUrl)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}

	client := resty.New()
	client.SetBaseURL(opts.BaseUrl)
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	client.SetCookieJar(jar)
	if opts.Environment == Test {
		client.SetBasicAuth(opts.BasicUsername, opts.BasicPassword)
	}

	client.SetHeader("user-agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36")
	client.SetRedirectPolicy(resty.DomainCheckRedirectPolicy(baseUrl.Hostname()))
	client.SetTimeout(time.Second * 30)

	restyutil.InstrumentClient(client, tracer, restyInstrumentOutput)

	slog.DebugContext(
		ctx, "created portal client",
		"env", opts.Environment,
		"base_url", opts.BaseUrl,
		"login_user", opts.LoginUsername,
	)

	return &Client{
		Env:           opts.Environment,
		BaseUrl:       baseUrl,
		Http:          client,
		loginUsername: opts.LoginUsername,
		loginPassword: opts.LoginPassword,
	}, nil
}

// File is one multipart file attachment.
type File struct {
	// Param is the form field name, e.g. "upload_json_file".
	Param  string
	Name   string
	Reader io.Reader
}

func (c *Client) Get(ctx context.Context, path string, params url.Values) (*resty.Response, error) {
	res, err := c.Http.R().
		SetContext(ctx).
		SetQueryParamsFromValues(params).
		Get(path)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", path, err)
	}
	return res, checkStatus(res)
}

func (c *Client) Post(ctx context.Context, path string, form url.Values) (*resty.Response, error) {
	res, err := c.Http.R().
		SetContext(ctx).
		SetFormDataFromValues(form).
		Post(path)
	if err != nil {
		return nil, fmt.Errorf("POST %s: %w", path, err)
	}
	return res, checkStatus(res)
}

func (c *Client) PostMultipart(ctx context.Context, path string, form url.Values, files []File) (*resty.Response, error) {
	req := c.Http.R().
		SetContext(ctx).
		SetFormDataFromValues(form)
	for _, f := range files {
		req.SetFileReader(f.Param, f.Name, f.Reader)
	}
	res, err := req.Post(path)
	if err != nil {
		return nil, fmt.Errorf("POST %s: %w", path, err)
	}
	return res, checkStatus(res)
}

func checkStatus(res *resty.Response) error {
	if res.StatusCode() >= 200 && res.StatusCode() <= 299 {
		return nil
	}
	return &StatusError{
		Code:    res.StatusCode(),
		Excerpt: Excerpt(res.String()),
	}
}

// Excerpt returns a whitespace-collapsed slice of the start of a raw
// response body, bounded so diagnostics stay readable.
func Excerpt(body string) string {
	collapsed := strings.Join(strings.Fields(body), " ")
	runes := []rune(collapsed)
	if len(runes) <= excerptRunes {
		return collapsed
	}
	return string(runes[:excerptRunes]) + "…"
}

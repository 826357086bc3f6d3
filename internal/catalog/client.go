package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/oshokin/carnival/internal/digest"
	"github.com/oshokin/carnival/internal/domain/product"
	"github.com/oshokin/carnival/internal/logger"
	"github.com/oshokin/carnival/internal/manifest"
	"github.com/oshokin/carnival/internal/version"
)

const (
	// DefaultTimeout bounds a single storefront request.
	DefaultTimeout = 30 * time.Second

	loginPath    = "login"
	userInfoPath = "user_info"

	// maxResponseSize caps storefront documents read into memory.
	maxResponseSize = 64 << 20
)

// Options configures a Client.
type Options struct {
	// APIURL is the storefront API root.
	APIURL string
	// ContentURL is the chunk store root. Empty means "chunks/" next to each manifest.
	ContentURL string
	// Timeout bounds each request.
	Timeout time.Duration
	// Algorithm validates manifest digests. Nil means SHA256.
	Algorithm digest.Algorithm
}

// Client is a storefront API client bound to one session.
type Client struct {
	api       *url.URL
	content   *url.URL
	alg       digest.Algorithm
	jar       *cookiejar.Jar
	http      *http.Client
	userAgent string
}

// NewClient creates a client that replays session on every request.
func NewClient(opts Options, session Session) (*Client, error) {
	if opts.APIURL == "" {
		return nil, errAPIURLRequired
	}

	api, err := url.Parse(strings.TrimSuffix(opts.APIURL, "/") + "/")
	if err != nil {
		return nil, fmt.Errorf("parse api url: %w", err)
	}

	var content *url.URL
	if opts.ContentURL != "" {
		if content, err = url.Parse(opts.ContentURL); err != nil {
			return nil, fmt.Errorf("parse content url: %w", err)
		}
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	jar.SetCookies(api, session.HTTPCookies())

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Client{
		api:       api,
		content:   content,
		alg:       opts.Algorithm,
		jar:       jar,
		http:      &http.Client{Jar: jar, Timeout: timeout},
		userAgent: version.UserAgent(),
	}, nil
}

// Session returns the cookies the client currently holds for the API.
func (c *Client) Session() Session {
	return sessionFrom(c.jar.Cookies(c.api))
}

// Apply attaches the session cookies that match req's URL.
// It is used for content requests that do not go through the client.
func (c *Client) Apply(req *http.Request) {
	for _, cookie := range c.jar.Cookies(req.URL) {
		req.AddCookie(cookie)
	}
}

// loginResponse is the login endpoint payload.
type loginResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Authenticate signs in and returns the resulting session.
func (c *Client) Authenticate(ctx context.Context, creds Credentials) (*Session, error) {
	form := url.Values{
		"usre": {creds.Username},
		"usrp": {creds.Password},
	}

	endpoint := c.api.JoinPath(loginPath)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create login request: %w", err)
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	body, err := c.do(req)
	if err != nil {
		return nil, err
	}

	var resp loginResponse
	if err = json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode login response: %w", err)
	}

	if resp.Status != statusSuccess {
		if resp.Message == "" {
			resp.Message = resp.Status
		}

		return nil, fmt.Errorf("%w: %s", ErrLoginFailed, resp.Message)
	}

	logger.DebugKV(ctx, "Signed in", "user", creds.Username)

	session := c.Session()

	return &session, nil
}

// Sync fetches the user profile and the purchased library.
func (c *Client) Sync(ctx context.Context) (*SyncResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.api.JoinPath(userInfoPath).String(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create sync request: %w", err)
	}

	body, err := c.do(req)
	if err != nil {
		return nil, err
	}

	var resp userInfoResponse
	if err = json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: decode user info: %w", ErrNotLoggedIn, err)
	}

	if !resp.LoggedIn() {
		return nil, ErrNotLoggedIn
	}

	result := &SyncResult{
		User:    resp.UserInfo,
		Session: c.Session(),
	}

	if resp.ShowcaseContent != nil {
		result.Library.Products = resp.ShowcaseContent.Content.UserCollection
	}

	normalisePlatforms(ctx, result.Library.Products)

	return result, nil
}

// Manifest retrieves and parses the manifest of v.
func (c *Client) Manifest(ctx context.Context, p product.Product, v product.ProductVersion) ([]manifest.Entry, error) {
	data, err := c.ManifestData(ctx, p, v)
	if err != nil {
		return nil, err
	}

	return c.ParseManifest(v, data)
}

// ManifestData downloads the raw manifest document of v.
func (c *Client) ManifestData(ctx context.Context, p product.Product, v product.ProductVersion) ([]byte, error) {
	ref, err := c.manifestURL(v)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref.String(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create manifest request: %w", err)
	}

	logger.DebugKV(ctx, "Downloading manifest", "slug", p.Slug, "version", v.Version, "url", ref.String())

	return c.do(req)
}

// ParseManifest parses data as the manifest of v, resolving retrieval URLs.
func (c *Client) ParseManifest(v product.ProductVersion, data []byte) ([]manifest.Entry, error) {
	ref, err := c.manifestURL(v)
	if err != nil {
		return nil, err
	}

	chunks := c.content
	if chunks == nil {
		chunks = ref.ResolveReference(&url.URL{Path: "chunks/"})
	}

	entries, err := manifest.Parse(bytes.NewReader(data), manifest.DetectFormat(v.Manifest), manifest.Options{
		Algorithm:  c.alg,
		SourceBase: ref,
		ChunkBase:  chunks,
	})
	if err != nil {
		return nil, fmt.Errorf("parse manifest of %s: %w", v.Version, err)
	}

	return entries, nil
}

func (c *Client) manifestURL(v product.ProductVersion) (*url.URL, error) {
	if v.Manifest == "" {
		return nil, fmt.Errorf("%s/%s: %w", v.Version, v.Platform, ErrNoManifest)
	}

	ref, err := url.Parse(v.Manifest)
	if err != nil {
		return nil, fmt.Errorf("parse manifest reference: %w", err)
	}

	return c.api.ResolveReference(ref), nil
}

// do sends req and returns the body of a 2xx response.
func (c *Client) do(req *http.Request) ([]byte, error) {
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, &StatusError{URL: req.URL.String(), Code: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	return body, nil
}

// normalisePlatforms maps storefront platform aliases to canonical names.
func normalisePlatforms(ctx context.Context, products []product.Product) {
	for i := range products {
		for j := range products[i].Versions {
			v := &products[i].Versions[j]

			platform, err := product.ParsePlatform(string(v.Platform))
			if err != nil {
				logger.DebugKV(ctx, "Keeping unknown platform", "slug", products[i].Slug, "platform", v.Platform)
				continue
			}

			v.Platform = platform
		}
	}
}

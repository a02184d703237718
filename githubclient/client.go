// Package githubclient wraps the GitHub public events API with
// conditional-request support.
package githubclient

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"

	"github.com/snackoverflow/snack-gateway/types"
	"github.com/snackoverflow/snack-gateway/world"
)

var (
	UserAgent = "SnackGateway/1.0 (SnackOverflow)"
)

var tracer = otel.Tracer("githubclient")

// ErrNotModified reports that the event feed is unchanged since the etag
// the request carried. It is a successful no-op, not a failure.
var ErrNotModified = errors.New("github: feed not modified")

type Client struct {
	http *http.Client
	// base is the events API origin; overridable for tests.
	base string
}

func NewClient(httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = new(http.Client)
	}
	return &Client{
		http: httpClient,
		base: "https://" + world.GithubAPIHost,
	}
}

// NewClientWithBase returns a client pointed at an alternate origin.
func NewClientWithBase(httpClient *http.Client, base string) *Client {
	c := NewClient(httpClient)
	c.base = strings.TrimSuffix(base, "/")
	return c
}

// ParseHandle extracts the username from a stored GitHub profile URL.
// The poller must not start on an empty or malformed handle, so anything
// that is not a github.com URL with a username path is an error.
func ParseHandle(githubURL string) (string, error) {
	if githubURL == "" {
		return "", errors.New("github handle is empty")
	}

	parsed, err := url.Parse(githubURL)
	if err != nil {
		return "", errors.Wrap(err, "github handle is not a url")
	}

	host := parsed.Hostname()
	if host != world.GithubHost && host != "www."+world.GithubHost {
		return "", errors.Errorf("github handle host %q is not %s", host, world.GithubHost)
	}

	username := strings.Trim(parsed.Path, "/")
	if username == "" || strings.Contains(username, "/") {
		return "", errors.Errorf("github handle path %q does not name a user", parsed.Path)
	}

	return username, nil
}

// FetchEvents fetches a user's public event feed, newest first. etag is
// the validation token of the previous response; pass "" on the first
// poll. On a 304 the returned error is ErrNotModified and the stored
// token must be left unchanged. On fresh data the second return value is
// the new token to persist.
func (c *Client) FetchEvents(ctx context.Context, username string, etag string) ([]types.GithubEvent, string, error) {
	ctx, span := tracer.Start(ctx, "FetchEvents")
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, "GET", c.base+"/users/"+url.PathEscape(username)+"/events/public", nil)
	if err != nil {
		return nil, "", err
	}
	req.Header.Set("Accept", world.GithubAcceptMedia)
	req.Header.Set("X-GitHub-Api-Version", world.GithubAPIVersion)
	req.Header.Set("Date", time.Now().UTC().Format(http.TimeFormat))
	req.Header.Set("User-Agent", UserAgent)
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		span.RecordError(err)
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		return nil, "", ErrNotModified
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, "", errors.Errorf("github responded %d: %s", resp.StatusCode, string(body))
	}

	var events []types.GithubEvent
	err = json.NewDecoder(resp.Body).Decode(&events)
	if err != nil {
		span.RecordError(err)
		return nil, "", errors.Wrap(err, "malformed event feed")
	}

	return events, resp.Header.Get("ETag"), nil
}

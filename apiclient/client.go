// Package apiclient wraps the Snack Overflow REST API. Every call carries
// the session cookie jar and the CSRF cookie/header pair; author lookups
// are cached in memcache.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/totegamma/httpsig"
	"go.opentelemetry.io/otel"

	"github.com/snackoverflow/snack-gateway/types"
)

var (
	UserAgent = "SnackGateway/1.0 (SnackOverflow)"
)

var tracer = otel.Tracer("apiclient")

const (
	csrfCookieName = "csrftoken"
	csrfHeaderName = "X-CSRFToken"

	authorCacheExpiration = 1800 // 30 minutes
)

type Client struct {
	mc     *memcache.Client
	http   *http.Client
	config types.GatewayConfig
	// base is config.APIBase parsed once, for cookie lookups.
	base *url.URL
	// deliveryKey signs activity deliveries to remote-host inboxes.
	deliveryKey any
}

func NewClient(mc *memcache.Client, config types.GatewayConfig, deliveryKey any) (*Client, error) {
	base, err := url.Parse(config.APIBase)
	if err != nil {
		return nil, fmt.Errorf("invalid api base %q: %w", config.APIBase, err)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}

	return &Client{
		mc:          mc,
		http:        &http.Client{Jar: jar, Timeout: 30 * time.Second},
		config:      config,
		base:        base,
		deliveryKey: deliveryKey,
	}, nil
}

func (c *Client) endpoint(path string) string {
	return strings.TrimSuffix(c.config.APIBase, "/") + "/" + strings.TrimPrefix(path, "/")
}

// csrfToken returns the CSRF cookie the server set at login, if any.
func (c *Client) csrfToken() string {
	for _, cookie := range c.http.Jar.Cookies(c.base) {
		if cookie.Name == csrfCookieName {
			return cookie.Value
		}
	}
	return ""
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewBuffer(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path), reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", UserAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if method != "GET" {
		if token := c.csrfToken(); token != "" {
			req.Header.Set(csrfHeaderName, token)
		}
	}
	return req, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s %s [%d]: %s", req.Method, req.URL.Path, resp.StatusCode, string(body))
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := c.newRequest(ctx, "GET", path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

// ---------------------------------------------------------------------
// session

// Login posts credentials and returns the logged-in author record. The
// session and CSRF cookies land in the client's jar.
func (c *Client) Login(ctx context.Context, email, password string) (types.Author, error) {
	ctx, span := tracer.Start(ctx, "Login")
	defer span.End()

	req, err := c.newRequest(ctx, "POST", "login/", map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return types.Author{}, err
	}

	var user types.Author
	err = c.do(req, &user)
	if err != nil {
		span.RecordError(err)
		return types.Author{}, err
	}
	return user, nil
}

// Logout tears the server-side session down.
func (c *Client) Logout(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "Logout")
	defer span.End()

	req, err := c.newRequest(ctx, "POST", "logout/", map[string]string{})
	if err != nil {
		return err
	}
	return c.do(req, nil)
}

// Register creates an account.
func (c *Client) Register(ctx context.Context, reg map[string]string) error {
	ctx, span := tracer.Start(ctx, "Register")
	defer span.End()

	req, err := c.newRequest(ctx, "POST", "register/", reg)
	if err != nil {
		return err
	}
	return c.do(req, nil)
}

// ---------------------------------------------------------------------
// authors and relationships

// GetAuthor fetches an author profile, trying memcache first.
func (c *Client) GetAuthor(ctx context.Context, authorID string) (types.Author, error) {
	ctx, span := tracer.Start(ctx, "GetAuthor")
	defer span.End()

	cacheKey := "author:" + authorID
	cache, err := c.mc.Get(cacheKey)
	if err == nil {
		var author types.Author
		if err := json.Unmarshal(cache.Value, &author); err == nil {
			return author, nil
		}
	}

	var author types.Author
	err = c.getJSON(ctx, "authors/"+authorID, &author)
	if err != nil {
		span.RecordError(err)
		return types.Author{}, err
	}

	authorBytes, err := json.Marshal(author)
	if err == nil {
		c.mc.Set(&memcache.Item{
			Key:        cacheKey,
			Value:      authorBytes,
			Expiration: authorCacheExpiration,
		})
	}

	return author, nil
}

func (c *Client) GetFollowers(ctx context.Context, authorID string) ([]types.Author, error) {
	ctx, span := tracer.Start(ctx, "GetFollowers")
	defer span.End()

	var collection types.Collection[types.Author]
	err := c.getJSON(ctx, "authors/"+authorID+"/followers", &collection)
	return collection.Items, err
}

func (c *Client) GetFollowings(ctx context.Context, authorID string) ([]types.Author, error) {
	ctx, span := tracer.Start(ctx, "GetFollowings")
	defer span.End()

	var collection types.Collection[types.Author]
	err := c.getJSON(ctx, "authors/"+authorID+"/followings", &collection)
	return collection.Items, err
}

func (c *Client) GetFriends(ctx context.Context, authorID string) ([]types.Author, error) {
	ctx, span := tracer.Start(ctx, "GetFriends")
	defer span.End()

	var collection types.Collection[types.Author]
	err := c.getJSON(ctx, "authors/"+authorID+"/friends", &collection)
	return collection.Items, err
}

func (c *Client) GetFollowRequests(ctx context.Context, authorID string) ([]types.FollowRequest, error) {
	ctx, span := tracer.Start(ctx, "GetFollowRequests")
	defer span.End()

	var collection types.Collection[types.FollowRequest]
	err := c.getJSON(ctx, "authors/"+authorID+"/followrequests", &collection)
	return collection.Items, err
}

func (c *Client) GetSentFollowRequests(ctx context.Context, authorID string) ([]types.Author, error) {
	ctx, span := tracer.Start(ctx, "GetSentFollowRequests")
	defer span.End()

	var collection types.Collection[types.Author]
	err := c.getJSON(ctx, "authors/"+authorID+"/sentFollowRequests", &collection)
	return collection.Items, err
}

// GetRemoteAuthors lists authors known across the federation, for the
// lookup page.
func (c *Client) GetRemoteAuthors(ctx context.Context) ([]types.Author, error) {
	ctx, span := tracer.Start(ctx, "GetRemoteAuthors")
	defer span.End()

	var collection types.Collection[types.Author]
	err := c.getJSON(ctx, "remote-authors/", &collection)
	return collection.Items, err
}

// RemoveFollower unfollows: deletes otherID from authorID's follower set.
func (c *Client) RemoveFollower(ctx context.Context, authorID, otherID string) error {
	ctx, span := tracer.Start(ctx, "RemoveFollower")
	defer span.End()

	req, err := c.newRequest(ctx, "DELETE", "authors/"+authorID+"/followers/"+otherID, nil)
	if err != nil {
		return err
	}
	return c.do(req, nil)
}

// AcceptFollower accepts a pending follow request from otherID.
func (c *Client) AcceptFollower(ctx context.Context, authorID, otherID string) error {
	ctx, span := tracer.Start(ctx, "AcceptFollower")
	defer span.End()

	req, err := c.newRequest(ctx, "PUT", "authors/"+authorID+"/followers/"+otherID, nil)
	if err != nil {
		return err
	}
	return c.do(req, nil)
}

// RejectFollowRequest declines a pending follow request from otherID.
func (c *Client) RejectFollowRequest(ctx context.Context, authorID, otherID string) error {
	ctx, span := tracer.Start(ctx, "RejectFollowRequest")
	defer span.End()

	req, err := c.newRequest(ctx, "DELETE", "authors/"+authorID+"/followrequests/"+otherID, nil)
	if err != nil {
		return err
	}
	return c.do(req, nil)
}

// ---------------------------------------------------------------------
// posts

func (c *Client) GetPosts(ctx context.Context, authorID string) ([]types.Post, error) {
	ctx, span := tracer.Start(ctx, "GetPosts")
	defer span.End()

	var collection types.Collection[types.Post]
	err := c.getJSON(ctx, "authors/"+authorID+"/posts", &collection)
	return collection.Items, err
}

func (c *Client) GetPost(ctx context.Context, authorID, postID string) (types.Post, error) {
	ctx, span := tracer.Start(ctx, "GetPost")
	defer span.End()

	var post types.Post
	err := c.getJSON(ctx, "authors/"+authorID+"/posts/"+postID, &post)
	return post, err
}

// GetPublicPosts fetches the Explore timeline.
func (c *Client) GetPublicPosts(ctx context.Context) ([]types.Post, error) {
	ctx, span := tracer.Start(ctx, "GetPublicPosts")
	defer span.End()

	var collection types.Collection[types.Post]
	err := c.getJSON(ctx, "publicPosts/", &collection)
	return collection.Items, err
}

func (c *Client) CreatePost(ctx context.Context, authorID string, draft any) (types.Post, error) {
	ctx, span := tracer.Start(ctx, "CreatePost")
	defer span.End()

	req, err := c.newRequest(ctx, "POST", "authors/"+authorID+"/posts/", draft)
	if err != nil {
		return types.Post{}, err
	}

	var post types.Post
	err = c.do(req, &post)
	if err != nil {
		span.RecordError(err)
		return types.Post{}, err
	}
	return post, nil
}

func (c *Client) UpdatePost(ctx context.Context, authorID, postID string, draft any) (types.Post, error) {
	ctx, span := tracer.Start(ctx, "UpdatePost")
	defer span.End()

	req, err := c.newRequest(ctx, "PUT", "authors/"+authorID+"/posts/"+postID, draft)
	if err != nil {
		return types.Post{}, err
	}

	var post types.Post
	err = c.do(req, &post)
	return post, err
}

func (c *Client) DeletePost(ctx context.Context, authorID, postID string) error {
	ctx, span := tracer.Start(ctx, "DeletePost")
	defer span.End()

	req, err := c.newRequest(ctx, "DELETE", "authors/"+authorID+"/posts/"+postID, nil)
	if err != nil {
		return err
	}
	return c.do(req, nil)
}

func (c *Client) GetLikes(ctx context.Context, authorID, postID string) ([]types.Like, error) {
	ctx, span := tracer.Start(ctx, "GetLikes")
	defer span.End()

	var collection types.Collection[types.Like]
	err := c.getJSON(ctx, "authors/"+authorID+"/posts/"+postID+"/likes", &collection)
	return collection.Items, err
}

// ---------------------------------------------------------------------
// inbox delivery

// PostToInbox delivers an activity envelope to an author's inbox through
// the application API.
func (c *Client) PostToInbox(ctx context.Context, authorID string, activity types.Activity) error {
	ctx, span := tracer.Start(ctx, "PostToInbox")
	defer span.End()

	req, err := c.newRequest(ctx, "POST", "authors/"+authorID+"/inbox", activity)
	if err != nil {
		return err
	}
	err = c.do(req, nil)
	if err != nil {
		log.Println(err)
		span.RecordError(err)
	}
	return err
}

// GetInbox reads the notification feed as raw items; callers decode each
// one into the InboxItem union.
func (c *Client) GetInbox(ctx context.Context, authorID string) ([]json.RawMessage, error) {
	ctx, span := tracer.Start(ctx, "GetInbox")
	defer span.End()

	var collection types.Collection[json.RawMessage]
	err := c.getJSON(ctx, "authors/"+authorID+"/inbox", &collection)
	return collection.Items, err
}

// DeliverRemote posts an activity straight to a remote-host inbox URL,
// signing the request with the gateway's delivery key.
func (c *Client) DeliverRemote(ctx context.Context, inbox string, activity any, senderID string) error {
	ctx, span := tracer.Start(ctx, "DeliverRemote")
	defer span.End()

	objectBytes, err := json.Marshal(activity)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", inbox, bytes.NewBuffer(objectBytes))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/activity+json")
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Date", time.Now().UTC().Format(http.TimeFormat))
	req.Header.Set("Host", req.URL.Host)

	prefs := []httpsig.Algorithm{httpsig.RSA_SHA256}
	digestAlgorithm := httpsig.DigestSha256
	headersToSign := []string{httpsig.RequestTarget, "date", "digest", "host"}
	signer, _, err := httpsig.NewSigner(prefs, digestAlgorithm, headersToSign, httpsig.Signature, 0)
	if err != nil {
		log.Println(err)
		return err
	}
	err = signer.SignRequest(c.deliveryKey, "https://"+c.config.FQDN+"/api/authors/"+senderID+"#main-key", req, objectBytes)
	if err != nil {
		log.Println(err)
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		log.Println(err)
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Println(err)
	}
	log.Printf("POST %s [%d]: %s", inbox, resp.StatusCode, string(body))

	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		return fmt.Errorf("error posting to inbox: %d", resp.StatusCode)
	}

	return nil
}

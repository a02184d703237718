package types

import (
	"strings"
	"time"
)

// Author is a wire model of a Snack Overflow author. IDs and URLs are
// fully qualified; the trailing path segment is the UUID.
type Author struct {
	Type         string `json:"type,omitempty"`
	ID           string `json:"id"`
	URL          string `json:"url,omitempty"`
	Host         string `json:"host,omitempty"`
	DisplayName  string `json:"displayName"`
	Github       string `json:"github,omitempty"`
	ProfileImage string `json:"profileImage,omitempty"`
}

// UUID returns the trailing path segment of the author's canonical URL.
func (a Author) UUID() string {
	parts := strings.Split(a.ID, "/")
	return parts[len(parts)-1]
}

// Post is a wire model of a post.
type Post struct {
	Type        string    `json:"type,omitempty"`
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	ContentType string    `json:"contentType"`
	Content     string    `json:"content"`
	Visibility  string    `json:"visibility"`
	Published   time.Time `json:"published"`
	Author      Author    `json:"author"`
	SharedBy    string    `json:"sharedBy,omitempty"`
}

// Comment is a wire model of a comment.
type Comment struct {
	Type        string    `json:"type,omitempty"`
	ID          string    `json:"id"`
	Comment     string    `json:"comment"`
	ContentType string    `json:"contentType"`
	Published   time.Time `json:"published"`
	Author      Author    `json:"author"`
}

// Like is a wire model of a like.
type Like struct {
	Type    string `json:"type,omitempty"`
	Summary string `json:"summary,omitempty"`
	Author  Author `json:"author"`
	Object  string `json:"object"`
}

// FollowRequest is a wire model of a pending follow request as returned
// by GET authors/{id}/followrequests.
type FollowRequest struct {
	Type    string `json:"type,omitempty"`
	Summary string `json:"summary,omitempty"`
	Actor   Author `json:"actor"`
	Object  Author `json:"object"`
}

// Collection is the paginated list envelope the API wraps every listing in.
type Collection[T any] struct {
	Type  string `json:"type,omitempty"`
	Items []T    `json:"items"`
}

// Activity is the envelope delivered to POST authors/{id}/inbox.
type Activity struct {
	Type   string `json:"type"`
	Author string `json:"author,omitempty"`
	Items  []any  `json:"items"`
}

// GithubActor is the acting user of a GitHub public event.
type GithubActor struct {
	ID           int64  `json:"id"`
	Login        string `json:"login"`
	DisplayLogin string `json:"display_login"`
}

// GithubRepo is the repository a GitHub public event happened at.
type GithubRepo struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// GithubEvent is a single entry of GET users/{username}/events/public.
// The feed is ordered newest first.
type GithubEvent struct {
	ID        string      `json:"id"`
	Type      string      `json:"type"`
	Actor     GithubActor `json:"actor"`
	Repo      GithubRepo  `json:"repo"`
	CreatedAt time.Time   `json:"created_at"`
}

// ---------------------------------------------------------------------

type GatewayConfig struct {
	// APIBase is the base URL of the Snack Overflow REST API, including
	// the /api/ prefix.
	APIBase string `yaml:"apiBase"`
	// FQDN is the host this gateway serves as; used to mint activity IDs.
	FQDN string `yaml:"fqdn"`
	// DeliveryPriv is a PEM encoded RSA key used to sign activity
	// deliveries to remote-host inboxes.
	DeliveryPriv string `yaml:"deliveryPriv"`
	// PollInterval is the GitHub poll period in seconds. Zero means the
	// 5 minute default.
	PollInterval int `yaml:"pollInterval"`
}

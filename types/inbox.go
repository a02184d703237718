package types

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// InboxItem is the tagged union over the three activity kinds a Snack
// Overflow inbox can hold. Unknown tags are rejected at decode time
// instead of being silently dropped.
type InboxItem interface {
	Kind() string
}

type FollowItem struct {
	Summary string `json:"summary,omitempty"`
	Actor   Author `json:"author"`
	Object  Author `json:"object"`
}

func (FollowItem) Kind() string { return "Follow" }

type LikeItem struct {
	Summary string `json:"summary,omitempty"`
	Actor   Author `json:"author"`
	// Object is the URL of the liked post or comment.
	Object string `json:"object"`
}

func (LikeItem) Kind() string { return "Like" }

type CommentItem struct {
	Actor       Author    `json:"author"`
	Comment     string    `json:"comment"`
	ContentType string    `json:"contentType"`
	Published   time.Time `json:"published,omitempty"`
	// ID is the URL of the comment itself.
	ID string `json:"id,omitempty"`
}

func (CommentItem) Kind() string { return "Comment" }

// DecodeInboxItem decodes one raw inbox entry. The server is not
// consistent about tag casing ("follow" vs "Follow"), so the tag is
// matched case-insensitively.
func DecodeInboxItem(raw []byte) (InboxItem, error) {
	obj, err := LoadAsRawObj(raw)
	if err != nil {
		return nil, errors.Wrap(err, "malformed inbox item")
	}

	tag := obj.MustGetString("type")
	switch strings.ToLower(tag) {
	case "follow":
		var item FollowItem
		err = json.Unmarshal(raw, &item)
		return item, err
	case "like":
		var item LikeItem
		err = json.Unmarshal(raw, &item)
		return item, err
	case "comment":
		var item CommentItem
		err = json.Unmarshal(raw, &item)
		return item, err
	default:
		return nil, errors.Errorf("unknown inbox item type %q", tag)
	}
}

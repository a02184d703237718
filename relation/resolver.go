// Package relation computes profile-card call-to-actions and visible post
// listings from the viewer's relationship to a profile owner.
package relation

import (
	"sort"
	"strings"

	"github.com/snackoverflow/snack-gateway/types"
	"github.com/snackoverflow/snack-gateway/world"
)

// ButtonState is the single call-to-action a profile card renders.
type ButtonState string

const (
	// Following renders an Unfollow action.
	Following ButtonState = "Following"
	// Request renders Accept/Decline actions.
	Request ButtonState = "Request"
	// Follow renders a follow-request action.
	Follow ButtonState = "Follow"
	// None renders nothing, e.g. a request is already pending.
	None ButtonState = "None"
)

// ExtractID returns the trailing path segment of a canonical author or
// post URL. Bare UUIDs pass through unchanged.
func ExtractID(url string) string {
	url = strings.TrimSuffix(url, "/")
	parts := strings.Split(url, "/")
	return parts[len(parts)-1]
}

// Set is a set of author identities keyed by extracted UUID.
type Set map[string]struct{}

func (s Set) Has(id string) bool {
	_, ok := s[ExtractID(id)]
	return ok
}

// SetOf builds a Set from author records, extracting each UUID from the
// canonical URL.
func SetOf(authors []types.Author) Set {
	s := make(Set, len(authors))
	for _, a := range authors {
		s[a.UUID()] = struct{}{}
	}
	return s
}

// SetOfIDs builds a Set from raw identifier strings or URLs.
func SetOfIDs(ids []string) Set {
	s := make(Set, len(ids))
	for _, id := range ids {
		s[ExtractID(id)] = struct{}{}
	}
	return s
}

// Sets holds the five relationship sets scoped to a profile owner. The
// sets are fetched independently and may be mutually inconsistent at any
// instant; a request that was just accepted can appear in both followings
// and pendingIncoming until the next refresh.
type Sets struct {
	Followers       Set
	Followings      Set
	Friends         Set
	PendingIncoming Set
	PendingOutgoing Set
}

// ResolveButton returns the call-to-action for a card showing target on a
// profile whose relationship sets are sets. owner reports whether the
// viewer owns the profile the card appears on. First match wins:
//
//  1. owner and target followed: Following.
//  2. owner and target asked to follow: Request.
//  3. non-owner, target neither followed nor already requested: Follow.
//  4. anything else: None.
//
// A pending outgoing request is a distinct third state; it is never
// inferred from mere absence in followings.
func ResolveButton(owner bool, targetID string, sets Sets) ButtonState {
	id := ExtractID(targetID)
	switch {
	case owner && sets.Followings.Has(id):
		return Following
	case owner && sets.PendingIncoming.Has(id):
		return Request
	case !owner && !sets.Followings.Has(id) && !sets.PendingOutgoing.Has(id):
		return Follow
	default:
		return None
	}
}

// VisiblePosts returns the subset of owner's posts the viewer may see,
// sorted by published date descending. The owner sees everything. A
// friend sees PUBLIC and FRIENDS posts. Anyone else sees PUBLIC only.
// UNLISTED posts never appear in a listing; they are reachable only via
// their direct link.
func VisiblePosts(viewerID string, owner bool, friends Set, posts []types.Post) []types.Post {
	sorted := make([]types.Post, len(posts))
	copy(sorted, posts)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Published.After(sorted[j].Published)
	})

	if owner {
		return sorted
	}

	isFriend := friends.Has(viewerID)
	visible := make([]types.Post, 0, len(sorted))
	for _, post := range sorted {
		switch post.Visibility {
		case world.VisibilityPublic:
			visible = append(visible, post)
		case world.VisibilityFriends:
			if isFriend {
				visible = append(visible, post)
			}
		}
	}
	return visible
}

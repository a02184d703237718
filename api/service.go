package api

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/snackoverflow/snack-gateway/apiclient"
	"github.com/snackoverflow/snack-gateway/bridge"
	"github.com/snackoverflow/snack-gateway/relation"
	"github.com/snackoverflow/snack-gateway/session"
	"github.com/snackoverflow/snack-gateway/store"
	"github.com/snackoverflow/snack-gateway/types"
	"github.com/snackoverflow/snack-gateway/world"
)

// ErrNotLoggedIn is returned by operations that need a live session.
var ErrNotLoggedIn = errors.New("not logged in")

type Service struct {
	store   *store.Store
	client  *apiclient.Client
	session *session.Manager
	config  types.GatewayConfig
}

func NewService(
	store *store.Store,
	client *apiclient.Client,
	session *session.Manager,
	config types.GatewayConfig,
) *Service {
	return &Service{
		store,
		client,
		session,
		config,
	}
}

// RenderedPost is a post plus its display HTML when the content is
// markdown.
type RenderedPost struct {
	types.Post
	RenderedContent string `json:"renderedContent,omitempty"`
}

// ProfileView is everything a profile page needs in one response: the
// author record, the single call-to-action for the viewer, and the posts
// the viewer may see.
type ProfileView struct {
	Author  types.Author          `json:"author"`
	Button  relation.ButtonState  `json:"button"`
	Posts   []RenderedPost        `json:"posts"`
	Sets    relation.Sets         `json:"-"`
	Pending []types.FollowRequest `json:"followRequests,omitempty"`
}

// AuthorCard is one row of the lookup page.
type AuthorCard struct {
	Author types.Author         `json:"author"`
	Button relation.ButtonState `json:"button"`
}

// Notification is one decoded inbox entry.
type Notification struct {
	Kind string          `json:"kind"`
	Item types.InboxItem `json:"item"`
}

func (s *Service) requireUser(ctx context.Context) (types.Author, error) {
	user, ok := s.session.Current(ctx)
	if !ok {
		return types.Author{}, ErrNotLoggedIn
	}
	return user, nil
}

// Login authenticates against the upstream API and opens the gateway
// session, which in turn starts the poller.
func (s *Service) Login(ctx context.Context, creds world.Credentials) (types.Author, error) {
	ctx, span := tracer.Start(ctx, "Api.Service.Login")
	defer span.End()

	user, err := s.client.Login(ctx, creds.Email, creds.Password)
	if err != nil {
		span.RecordError(err)
		return types.Author{}, err
	}

	if err := s.session.Login(ctx, user); err != nil {
		span.RecordError(err)
		return types.Author{}, err
	}

	return user, nil
}

// Logout closes the gateway session first, so the poller is down before
// the upstream session dies.
func (s *Service) Logout(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "Api.Service.Logout")
	defer span.End()

	if err := s.session.Logout(ctx); err != nil {
		span.RecordError(err)
		return err
	}

	if err := s.client.Logout(ctx); err != nil {
		// the gateway session is already gone; the upstream one expires
		log.Printf("api/logout upstream: %v", err)
		span.RecordError(err)
	}
	return nil
}

// Register creates an upstream account.
func (s *Service) Register(ctx context.Context, reg world.Registration) error {
	ctx, span := tracer.Start(ctx, "Api.Service.Register")
	defer span.End()

	return s.client.Register(ctx, map[string]string{
		"email":         reg.Email,
		"password":      reg.Password,
		"display_name":  reg.DisplayName,
		"github":        reg.Github,
		"profile_image": reg.ProfileImage,
	})
}

// relationSets fetches the owner-scoped relationship sets. The fetches run
// concurrently and each tolerates failure: a set that cannot be fetched is
// treated as empty so one bad upstream call degrades the page instead of
// killing it.
func (s *Service) relationSets(ctx context.Context, ownerID string) (relation.Sets, []types.FollowRequest) {
	ctx, span := tracer.Start(ctx, "Api.Service.relationSets")
	defer span.End()

	var (
		wg                             sync.WaitGroup
		followers, followings, friends []types.Author
		incoming                       []types.FollowRequest
		outgoing                       []types.Author
	)

	fetch := func(what string, run func() error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := run(); err != nil {
				log.Printf("api/profile/%v %v: %v", ownerID, what, err)
			}
		}()
	}

	fetch("followers", func() (err error) {
		followers, err = s.client.GetFollowers(ctx, ownerID)
		return
	})
	fetch("followings", func() (err error) {
		followings, err = s.client.GetFollowings(ctx, ownerID)
		return
	})
	fetch("friends", func() (err error) {
		friends, err = s.client.GetFriends(ctx, ownerID)
		return
	})
	fetch("followrequests", func() (err error) {
		incoming, err = s.client.GetFollowRequests(ctx, ownerID)
		return
	})
	fetch("sentFollowRequests", func() (err error) {
		outgoing, err = s.client.GetSentFollowRequests(ctx, ownerID)
		return
	})
	wg.Wait()

	incomingActors := make([]types.Author, 0, len(incoming))
	for _, request := range incoming {
		incomingActors = append(incomingActors, request.Actor)
	}

	return relation.Sets{
		Followers:       relation.SetOf(followers),
		Followings:      relation.SetOf(followings),
		Friends:         relation.SetOf(friends),
		PendingIncoming: relation.SetOf(incomingActors),
		PendingOutgoing: relation.SetOf(outgoing),
	}, incoming
}

func renderPosts(posts []types.Post) []RenderedPost {
	rendered := make([]RenderedPost, 0, len(posts))
	for _, post := range posts {
		r := RenderedPost{Post: post}
		if post.ContentType == world.ContentTypeMarkdown {
			r.RenderedContent = bridge.RenderMarkdown(post.Content)
		}
		rendered = append(rendered, r)
	}
	return rendered
}

// GetProfile assembles a profile page for the logged-in viewer.
func (s *Service) GetProfile(ctx context.Context, profileID string) (ProfileView, error) {
	ctx, span := tracer.Start(ctx, "Api.Service.GetProfile")
	defer span.End()

	viewer, err := s.requireUser(ctx)
	if err != nil {
		return ProfileView{}, err
	}

	profileID = relation.ExtractID(profileID)
	author, err := s.client.GetAuthor(ctx, profileID)
	if err != nil {
		span.RecordError(err)
		return ProfileView{}, err
	}

	owner := viewer.UUID() == profileID

	sets, incoming := s.relationSets(ctx, profileID)

	posts, err := s.client.GetPosts(ctx, profileID)
	if err != nil {
		log.Printf("api/profile/%v posts: %v", profileID, err)
		span.RecordError(err)
		posts = nil
	}

	view := ProfileView{
		Author: author,
		Posts:  renderPosts(relation.VisiblePosts(viewer.UUID(), owner, sets.Friends, posts)),
		Sets:   sets,
	}
	if owner {
		// the owner's own card has no call-to-action; the pending
		// requests list is what they act on
		view.Button = relation.None
		view.Pending = incoming
	} else {
		// sets on somebody else's profile are scoped to the viewer
		viewerSets, _ := s.relationSets(ctx, viewer.UUID())
		view.Button = relation.ResolveButton(false, profileID, viewerSets)
		view.Sets = viewerSets
	}

	return view, nil
}

// Explore lists every public post across the network, newest first.
func (s *Service) Explore(ctx context.Context) ([]RenderedPost, error) {
	ctx, span := tracer.Start(ctx, "Api.Service.Explore")
	defer span.End()

	posts, err := s.client.GetPublicPosts(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	public := make([]types.Post, 0, len(posts))
	for _, post := range posts {
		if post.Visibility == world.VisibilityPublic {
			public = append(public, post)
		}
	}

	return renderPosts(relation.VisiblePosts("", true, nil, public)), nil
}

// Lookup lists every author known across the federation with the viewer's
// call-to-action per card.
func (s *Service) Lookup(ctx context.Context) ([]AuthorCard, error) {
	ctx, span := tracer.Start(ctx, "Api.Service.Lookup")
	defer span.End()

	viewer, err := s.requireUser(ctx)
	if err != nil {
		return nil, err
	}

	authors, err := s.client.GetRemoteAuthors(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	sets, _ := s.relationSets(ctx, viewer.UUID())

	cards := make([]AuthorCard, 0, len(authors))
	for _, author := range authors {
		if author.UUID() == viewer.UUID() {
			continue
		}
		cards = append(cards, AuthorCard{
			Author: author,
			Button: relation.ResolveButton(false, author.UUID(), sets),
		})
	}
	return cards, nil
}

// Notifications decodes the viewer's inbox. Entries with an unknown tag
// are dropped with a log line rather than failing the whole feed.
func (s *Service) Notifications(ctx context.Context) ([]Notification, error) {
	ctx, span := tracer.Start(ctx, "Api.Service.Notifications")
	defer span.End()

	viewer, err := s.requireUser(ctx)
	if err != nil {
		return nil, err
	}

	raws, err := s.client.GetInbox(ctx, viewer.UUID())
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	notifications := make([]Notification, 0, len(raws))
	for _, raw := range raws {
		item, err := types.DecodeInboxItem(raw)
		if err != nil {
			log.Printf("api/notifications/%v: %v", viewer.UUID(), err)
			continue
		}
		notifications = append(notifications, Notification{Kind: item.Kind(), Item: item})
	}
	return notifications, nil
}

// Follow sends a follow request to the target's inbox. The relationship
// only materializes when the target accepts.
func (s *Service) Follow(ctx context.Context, targetID string) error {
	ctx, span := tracer.Start(ctx, "Api.Service.Follow")
	defer span.End()

	viewer, err := s.requireUser(ctx)
	if err != nil {
		return err
	}

	targetID = relation.ExtractID(targetID)
	target, err := s.client.GetAuthor(ctx, targetID)
	if err != nil {
		span.RecordError(err)
		return err
	}

	item := types.FollowItem{
		Summary: viewer.DisplayName + " wants to follow " + target.DisplayName,
		Actor:   viewer,
		Object:  target,
	}
	activity := types.Activity{
		Type:   world.InboxItemFollow,
		Author: viewer.ID,
		Items:  []any{item},
	}

	// a remote-host author gets the activity delivered straight to their
	// inbox URL with an http signature; a local one goes through the API
	if target.Host != "" && target.Host != s.config.FQDN {
		err = s.client.DeliverRemote(ctx, target.ID+"/inbox", activity, viewer.UUID())
	} else {
		err = s.client.PostToInbox(ctx, targetID, activity)
	}
	if err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

// Unfollow removes the viewer from the target's follower set.
func (s *Service) Unfollow(ctx context.Context, targetID string) error {
	ctx, span := tracer.Start(ctx, "Api.Service.Unfollow")
	defer span.End()

	viewer, err := s.requireUser(ctx)
	if err != nil {
		return err
	}

	return s.client.RemoveFollower(ctx, relation.ExtractID(targetID), viewer.UUID())
}

// AcceptFollower accepts a pending follow request on the viewer's profile.
func (s *Service) AcceptFollower(ctx context.Context, otherID string) error {
	ctx, span := tracer.Start(ctx, "Api.Service.AcceptFollower")
	defer span.End()

	viewer, err := s.requireUser(ctx)
	if err != nil {
		return err
	}

	return s.client.AcceptFollower(ctx, viewer.UUID(), relation.ExtractID(otherID))
}

// DeclineFollower rejects a pending follow request on the viewer's profile.
func (s *Service) DeclineFollower(ctx context.Context, otherID string) error {
	ctx, span := tracer.Start(ctx, "Api.Service.DeclineFollower")
	defer span.End()

	viewer, err := s.requireUser(ctx)
	if err != nil {
		return err
	}

	return s.client.RejectFollowRequest(ctx, viewer.UUID(), relation.ExtractID(otherID))
}

// CreatePost publishes a post on the viewer's profile.
func (s *Service) CreatePost(ctx context.Context, draft world.PostDraft) (types.Post, error) {
	ctx, span := tracer.Start(ctx, "Api.Service.CreatePost")
	defer span.End()

	viewer, err := s.requireUser(ctx)
	if err != nil {
		return types.Post{}, err
	}

	return s.client.CreatePost(ctx, viewer.UUID(), draft)
}

// UpdatePost edits one of the viewer's posts.
func (s *Service) UpdatePost(ctx context.Context, postID string, draft world.PostDraft) (types.Post, error) {
	ctx, span := tracer.Start(ctx, "Api.Service.UpdatePost")
	defer span.End()

	viewer, err := s.requireUser(ctx)
	if err != nil {
		return types.Post{}, err
	}

	return s.client.UpdatePost(ctx, viewer.UUID(), relation.ExtractID(postID), draft)
}

// DeletePost removes one of the viewer's posts.
func (s *Service) DeletePost(ctx context.Context, postID string) error {
	ctx, span := tracer.Start(ctx, "Api.Service.DeletePost")
	defer span.End()

	viewer, err := s.requireUser(ctx)
	if err != nil {
		return err
	}

	postID = relation.ExtractID(postID)
	if err := s.client.DeletePost(ctx, viewer.UUID(), postID); err != nil {
		span.RecordError(err)
		return err
	}

	// drop the cross reference of a mirrored event so the marker logic
	// never points at a post that no longer exists
	references, err := s.store.GetEventReferencesByUser(ctx, viewer.UUID())
	if err != nil {
		log.Printf("api/posts/%v references: %v", postID, err)
		return nil
	}
	for _, reference := range references {
		if relation.ExtractID(reference.PostID) == postID {
			if err := s.store.DeleteEventReference(ctx, reference.EventID); err != nil {
				log.Printf("api/posts/%v delete reference: %v", postID, err)
			}
		}
	}
	return nil
}

// LikePost delivers a Like activity to the post author's inbox.
func (s *Service) LikePost(ctx context.Context, authorID, postID string) error {
	ctx, span := tracer.Start(ctx, "Api.Service.LikePost")
	defer span.End()

	viewer, err := s.requireUser(ctx)
	if err != nil {
		return err
	}

	authorID = relation.ExtractID(authorID)
	postID = relation.ExtractID(postID)
	post, err := s.client.GetPost(ctx, authorID, postID)
	if err != nil {
		span.RecordError(err)
		return err
	}

	// liking twice is a no-op
	likes, err := s.client.GetLikes(ctx, authorID, postID)
	if err == nil {
		for _, like := range likes {
			if like.Author.UUID() == viewer.UUID() {
				return nil
			}
		}
	}

	item := types.LikeItem{
		Summary: viewer.DisplayName + " likes your post",
		Actor:   viewer,
		Object:  post.ID,
	}
	activity := types.Activity{
		Type:   world.InboxItemLike,
		Author: viewer.ID,
		Items:  []any{item},
	}
	return s.client.PostToInbox(ctx, authorID, activity)
}

// CommentPost delivers a Comment activity to the post author's inbox.
func (s *Service) CommentPost(ctx context.Context, authorID, postID string, draft world.CommentDraft) error {
	ctx, span := tracer.Start(ctx, "Api.Service.CommentPost")
	defer span.End()

	viewer, err := s.requireUser(ctx)
	if err != nil {
		return err
	}

	authorID = relation.ExtractID(authorID)
	postID = relation.ExtractID(postID)

	item := types.CommentItem{
		Actor:       viewer,
		Comment:     draft.Comment,
		ContentType: draft.ContentType,
		Published:   time.Now().UTC(),
		ID: "https://" + s.config.FQDN + "/api/authors/" + authorID +
			"/posts/" + postID + "/comments/" + uuid.New().String(),
	}
	activity := types.Activity{
		Type:   world.InboxItemComment,
		Author: viewer.ID,
		Items:  []any{item},
	}
	return s.client.PostToInbox(ctx, authorID, activity)
}

// SharePost republishes somebody else's public post on the viewer's own
// profile, crediting the original author.
func (s *Service) SharePost(ctx context.Context, authorID, postID string) (types.Post, error) {
	ctx, span := tracer.Start(ctx, "Api.Service.SharePost")
	defer span.End()

	viewer, err := s.requireUser(ctx)
	if err != nil {
		return types.Post{}, err
	}

	post, err := s.client.GetPost(ctx, relation.ExtractID(authorID), relation.ExtractID(postID))
	if err != nil {
		span.RecordError(err)
		return types.Post{}, err
	}
	if post.Visibility != world.VisibilityPublic {
		return types.Post{}, errors.New("only public posts can be shared")
	}

	draft := world.PostDraft{
		Title:       post.Title,
		Description: post.Description,
		ContentType: post.ContentType,
		Content:     post.Content,
		Visibility:  world.VisibilityPublic,
		SharedBy:    post.Author.DisplayName,
	}
	return s.client.CreatePost(ctx, viewer.UUID(), draft)
}

// GetLikes lists who liked a post.
func (s *Service) GetLikes(ctx context.Context, authorID, postID string) ([]types.Like, error) {
	ctx, span := tracer.Start(ctx, "Api.Service.GetLikes")
	defer span.End()

	return s.client.GetLikes(ctx, relation.ExtractID(authorID), relation.ExtractID(postID))
}

// GetUserSettings returns the viewer's gateway settings.
func (s *Service) GetUserSettings(ctx context.Context) (types.UserSettings, error) {
	ctx, span := tracer.Start(ctx, "Api.Service.GetUserSettings")
	defer span.End()

	viewer, err := s.requireUser(ctx)
	if err != nil {
		return types.UserSettings{}, err
	}

	settings, err := s.store.GetUserSettings(ctx, viewer.UUID())
	if err != nil {
		return types.UserSettings{UserID: viewer.UUID()}, nil
	}
	return settings, nil
}

// UpsertUserSettings saves the viewer's gateway settings. A changed GitHub
// URL takes effect on the next login.
func (s *Service) UpsertUserSettings(ctx context.Context, settings types.UserSettings) error {
	ctx, span := tracer.Start(ctx, "Api.Service.UpsertUserSettings")
	defer span.End()

	viewer, err := s.requireUser(ctx)
	if err != nil {
		return err
	}

	settings.UserID = viewer.UUID()
	return s.store.UpsertUserSettings(ctx, settings)
}

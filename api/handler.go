package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel"

	"github.com/snackoverflow/snack-gateway/types"
	"github.com/snackoverflow/snack-gateway/world"
)

var tracer = otel.Tracer("api")

type Handler struct {
	service *Service
}

func NewHandler(service *Service) Handler {
	return Handler{
		service,
	}
}

func errorStatus(err error) int {
	if err == ErrNotLoggedIn {
		return http.StatusUnauthorized
	}
	return http.StatusBadGateway
}

// Login opens the gateway session.
func (h Handler) Login(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "Login")
	defer span.End()

	var creds world.Credentials
	if err := c.Bind(&creds); err != nil {
		span.RecordError(err)
		return c.String(http.StatusBadRequest, "Invalid request body")
	}

	user, err := h.service.Login(ctx, creds)
	if err != nil {
		span.RecordError(err)
		return c.JSON(http.StatusUnauthorized, echo.Map{"status": "error", "message": "login failed"})
	}

	return c.JSON(http.StatusOK, echo.Map{"status": "ok", "content": user})
}

// Logout closes the gateway session.
func (h Handler) Logout(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "Logout")
	defer span.End()

	if err := h.service.Logout(ctx); err != nil {
		span.RecordError(err)
		return c.JSON(errorStatus(err), echo.Map{"status": "error", "message": err.Error()})
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
}

// Register creates an upstream account.
func (h Handler) Register(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "Register")
	defer span.End()

	var reg world.Registration
	if err := c.Bind(&reg); err != nil {
		span.RecordError(err)
		return c.String(http.StatusBadRequest, "Invalid request body")
	}

	if err := h.service.Register(ctx, reg); err != nil {
		span.RecordError(err)
		return c.JSON(errorStatus(err), echo.Map{"status": "error", "message": err.Error()})
	}
	return c.JSON(http.StatusCreated, echo.Map{"status": "ok"})
}

// GetProfile renders a profile page view.
func (h Handler) GetProfile(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "GetProfile")
	defer span.End()

	id := c.Param("id")
	if id == "" {
		return c.String(http.StatusBadRequest, "Invalid author id")
	}

	view, err := h.service.GetProfile(ctx, id)
	if err != nil {
		span.RecordError(err)
		return c.JSON(errorStatus(err), echo.Map{"status": "error", "message": err.Error()})
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "ok", "content": view})
}

// Explore lists public posts across the network.
func (h Handler) Explore(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "Explore")
	defer span.End()

	posts, err := h.service.Explore(ctx)
	if err != nil {
		span.RecordError(err)
		return c.JSON(errorStatus(err), echo.Map{"status": "error", "message": err.Error()})
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "ok", "content": posts})
}

// Lookup lists known authors with per-card actions.
func (h Handler) Lookup(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "Lookup")
	defer span.End()

	cards, err := h.service.Lookup(ctx)
	if err != nil {
		span.RecordError(err)
		return c.JSON(errorStatus(err), echo.Map{"status": "error", "message": err.Error()})
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "ok", "content": cards})
}

// Notifications decodes the viewer's inbox.
func (h Handler) Notifications(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "Notifications")
	defer span.End()

	notifications, err := h.service.Notifications(ctx)
	if err != nil {
		span.RecordError(err)
		return c.JSON(errorStatus(err), echo.Map{"status": "error", "message": err.Error()})
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "ok", "content": notifications})
}

// Follow sends a follow request to the target author.
func (h Handler) Follow(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "Follow")
	defer span.End()

	targetID := c.Param("id")
	if targetID == "" {
		return c.String(http.StatusBadRequest, "Invalid author id")
	}

	if err := h.service.Follow(ctx, targetID); err != nil {
		span.RecordError(err)
		return c.JSON(errorStatus(err), echo.Map{"status": "error", "message": err.Error()})
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
}

// Unfollow removes the viewer from the target's followers.
func (h Handler) Unfollow(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "Unfollow")
	defer span.End()

	targetID := c.Param("id")
	if targetID == "" {
		return c.String(http.StatusBadRequest, "Invalid author id")
	}

	if err := h.service.Unfollow(ctx, targetID); err != nil {
		span.RecordError(err)
		return c.JSON(errorStatus(err), echo.Map{"status": "error", "message": err.Error()})
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
}

// AcceptFollower accepts a pending follow request.
func (h Handler) AcceptFollower(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "AcceptFollower")
	defer span.End()

	otherID := c.Param("id")
	if otherID == "" {
		return c.String(http.StatusBadRequest, "Invalid author id")
	}

	if err := h.service.AcceptFollower(ctx, otherID); err != nil {
		span.RecordError(err)
		return c.JSON(errorStatus(err), echo.Map{"status": "error", "message": err.Error()})
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
}

// DeclineFollower rejects a pending follow request.
func (h Handler) DeclineFollower(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "DeclineFollower")
	defer span.End()

	otherID := c.Param("id")
	if otherID == "" {
		return c.String(http.StatusBadRequest, "Invalid author id")
	}

	if err := h.service.DeclineFollower(ctx, otherID); err != nil {
		span.RecordError(err)
		return c.JSON(errorStatus(err), echo.Map{"status": "error", "message": err.Error()})
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
}

// CreatePost publishes a post on the viewer's profile.
func (h Handler) CreatePost(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "CreatePost")
	defer span.End()

	var draft world.PostDraft
	if err := c.Bind(&draft); err != nil {
		span.RecordError(err)
		return c.String(http.StatusBadRequest, "Invalid request body")
	}

	post, err := h.service.CreatePost(ctx, draft)
	if err != nil {
		span.RecordError(err)
		return c.JSON(errorStatus(err), echo.Map{"status": "error", "message": err.Error()})
	}
	return c.JSON(http.StatusCreated, echo.Map{"status": "ok", "content": post})
}

// UpdatePost edits one of the viewer's posts.
func (h Handler) UpdatePost(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "UpdatePost")
	defer span.End()

	var draft world.PostDraft
	if err := c.Bind(&draft); err != nil {
		span.RecordError(err)
		return c.String(http.StatusBadRequest, "Invalid request body")
	}

	post, err := h.service.UpdatePost(ctx, c.Param("postID"), draft)
	if err != nil {
		span.RecordError(err)
		return c.JSON(errorStatus(err), echo.Map{"status": "error", "message": err.Error()})
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "ok", "content": post})
}

// DeletePost removes one of the viewer's posts.
func (h Handler) DeletePost(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "DeletePost")
	defer span.End()

	if err := h.service.DeletePost(ctx, c.Param("postID")); err != nil {
		span.RecordError(err)
		return c.JSON(errorStatus(err), echo.Map{"status": "error", "message": err.Error()})
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
}

// LikePost sends a Like to the post author's inbox.
func (h Handler) LikePost(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "LikePost")
	defer span.End()

	if err := h.service.LikePost(ctx, c.Param("id"), c.Param("postID")); err != nil {
		span.RecordError(err)
		return c.JSON(errorStatus(err), echo.Map{"status": "error", "message": err.Error()})
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
}

// CommentPost sends a Comment to the post author's inbox.
func (h Handler) CommentPost(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "CommentPost")
	defer span.End()

	var draft world.CommentDraft
	if err := c.Bind(&draft); err != nil {
		span.RecordError(err)
		return c.String(http.StatusBadRequest, "Invalid request body")
	}
	if draft.ContentType == "" {
		draft.ContentType = world.ContentTypePlain
	}

	if err := h.service.CommentPost(ctx, c.Param("id"), c.Param("postID"), draft); err != nil {
		span.RecordError(err)
		return c.JSON(errorStatus(err), echo.Map{"status": "error", "message": err.Error()})
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
}

// SharePost republishes a public post on the viewer's profile.
func (h Handler) SharePost(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "SharePost")
	defer span.End()

	post, err := h.service.SharePost(ctx, c.Param("id"), c.Param("postID"))
	if err != nil {
		span.RecordError(err)
		return c.JSON(errorStatus(err), echo.Map{"status": "error", "message": err.Error()})
	}
	return c.JSON(http.StatusCreated, echo.Map{"status": "ok", "content": post})
}

// GetLikes lists who liked a post.
func (h Handler) GetLikes(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "GetLikes")
	defer span.End()

	likes, err := h.service.GetLikes(ctx, c.Param("id"), c.Param("postID"))
	if err != nil {
		span.RecordError(err)
		return c.JSON(errorStatus(err), echo.Map{"status": "error", "message": err.Error()})
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "ok", "content": likes})
}

// GetUserSettings returns the viewer's gateway settings.
func (h Handler) GetUserSettings(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "GetUserSettings")
	defer span.End()

	settings, err := h.service.GetUserSettings(ctx)
	if err != nil {
		span.RecordError(err)
		return c.JSON(errorStatus(err), echo.Map{"status": "error", "message": err.Error()})
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "ok", "content": settings})
}

// UpdateUserSettings saves the viewer's gateway settings.
func (h Handler) UpdateUserSettings(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "UpdateUserSettings")
	defer span.End()

	var settings struct {
		GithubURL string   `json:"githubURL"`
		Aliases   []string `json:"aliases"`
	}
	if err := c.Bind(&settings); err != nil {
		span.RecordError(err)
		return c.String(http.StatusBadRequest, "Invalid request body")
	}

	err := h.service.UpsertUserSettings(ctx, types.UserSettings{
		GithubURL: settings.GithubURL,
		Aliases:   pq.StringArray(settings.Aliases),
	})
	if err != nil {
		span.RecordError(err)
		return c.JSON(errorStatus(err), echo.Map{"status": "error", "message": err.Error()})
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
}

package world

const (
	ContentTypePlain      = "text/plain"
	ContentTypeMarkdown   = "text/markdown"
	ContentTypePNGBase64  = "image/png;base64"
	ContentTypeJPEGBase64 = "image/jpeg;base64"
	ContentTypeBase64     = "application/base64"

	VisibilityPublic   = "PUBLIC"
	VisibilityFriends  = "FRIENDS"
	VisibilityUnlisted = "UNLISTED"
)

const (
	InboxItemFollow  = "Follow"
	InboxItemLike    = "Like"
	InboxItemComment = "Comment"
)

// Keys of the durable session store. The browser client kept these in
// localStorage; the gateway keeps them in redis under a per-user prefix.
const (
	StorageKeyUser       = "user"
	StorageKeyIsLoggedIn = "isLoggedIn"
	StorageKeyPolling    = "polling"
	StorageKeyEtag       = "etag"
	StorageKeyGithubID   = "githubID"
)

const (
	GithubHost        = "github.com"
	GithubAPIHost     = "api.github.com"
	GithubAPIVersion  = "2022-11-28"
	GithubAcceptMedia = "application/vnd.github+json"
)

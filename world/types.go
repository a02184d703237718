package world

// PostDraft is the payload for creating or updating a post via
// POST/PUT authors/{id}/posts.
type PostDraft struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
	Visibility  string `json:"visibility"`
	SharedBy    string `json:"sharedBy,omitempty"`
}

// CommentDraft is the body of a Comment activity delivered to an inbox.
type CommentDraft struct {
	Comment     string `json:"comment"`
	ContentType string `json:"contentType"`
}

// Credentials is the payload for POST login/.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Registration is the payload for POST register/.
type Registration struct {
	Email        string `json:"email"`
	Password     string `json:"password"`
	DisplayName  string `json:"display_name"`
	Github       string `json:"github"`
	ProfileImage string `json:"profile_image"`
}

// Package bridge turns GitHub public events into Snack Overflow posts and
// owns the markdown/html conversions the rest of the gateway renders with.
package bridge

import (
	"fmt"
	"io"
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	xhtml "golang.org/x/net/html"

	"github.com/snackoverflow/snack-gateway/types"
	"github.com/snackoverflow/snack-gateway/world"
)

// RenderMarkdown converts markdown text to HTML for display surfaces.
func RenderMarkdown(text string) string {
	extensions := parser.CommonExtensions | parser.NoEmptyLineBeforeBlock
	p := parser.NewWithExtensions(extensions)
	doc := p.Parse([]byte(text))

	htmlFlags := html.CommonFlags
	opts := html.RendererOptions{Flags: htmlFlags}
	renderer := html.NewRenderer(opts)

	htmlText := string(markdown.Render(doc, renderer))
	return strings.Trim(htmlText, "\n")
}

// HTMLToMarkdown converts an HTML fragment back to markdown. Only anchors,
// paragraphs, and line breaks get structural treatment; everything else
// contributes its text content.
func HTMLToMarkdown(r io.Reader) (string, error) {
	doc, err := xhtml.Parse(r)
	if err != nil {
		return "", err
	}

	var traverse func(n *xhtml.Node) string
	traverse = func(n *xhtml.Node) string {
		var result strings.Builder

		switch n.Type {
		case xhtml.TextNode:
			result.WriteString(n.Data)
		case xhtml.ElementNode:
			switch n.Data {
			case "a":
				var href string
				for _, attr := range n.Attr {
					if attr.Key == "href" {
						href = attr.Val
						break
					}
				}
				result.WriteString("[")
				for c := n.FirstChild; c != nil; c = c.NextSibling {
					result.WriteString(traverse(c))
				}
				result.WriteString(fmt.Sprintf("](%s)", href))
			case "p":
				result.WriteString("\n\n")
				for c := n.FirstChild; c != nil; c = c.NextSibling {
					result.WriteString(traverse(c))
				}
			case "br":
				result.WriteString("\n")
			default:
				for c := n.FirstChild; c != nil; c = c.NextSibling {
					result.WriteString(traverse(c))
				}
			}
		default:
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				result.WriteString(traverse(c))
			}
		}
		return result.String()
	}

	return traverse(doc), nil
}

// describeEvent maps a GitHub event type to the verb used in the post body.
func describeEvent(eventType string) string {
	switch eventType {
	case "PushEvent":
		return "pushed to"
	case "CreateEvent":
		return "created a ref in"
	case "DeleteEvent":
		return "deleted a ref in"
	case "ForkEvent":
		return "forked"
	case "IssuesEvent":
		return "worked on an issue in"
	case "IssueCommentEvent":
		return "commented on an issue in"
	case "PullRequestEvent":
		return "worked on a pull request in"
	case "PullRequestReviewEvent":
		return "reviewed a pull request in"
	case "ReleaseEvent":
		return "published a release in"
	case "WatchEvent":
		return "starred"
	case "PublicEvent":
		return "made public"
	default:
		return "did a " + eventType + " in"
	}
}

// EventToPost synthesizes the public markdown post announcing one GitHub
// event on behalf of user.
func EventToPost(user types.Author, event types.GithubEvent) world.PostDraft {
	body := fmt.Sprintf("**%s** (@%s on GitHub) %s [%s](https://%s/%s)",
		user.DisplayName,
		event.Actor.Login,
		describeEvent(event.Type),
		event.Repo.Name,
		world.GithubHost,
		event.Repo.Name,
	)

	return world.PostDraft{
		Title:       "Github " + event.Type,
		Description: "Github Activity",
		ContentType: world.ContentTypeMarkdown,
		Content:     body,
		Visibility:  world.VisibilityPublic,
	}
}

// SelectNew walks a newest-first event feed and returns the entries newer
// than lastSeenEventID, reordered oldest first so that posts get created in
// chronological order. An empty lastSeenEventID means everything is new.
// Events at or past the marker never come back, which is what keeps a
// restarted cycle from double-posting.
func SelectNew(events []types.GithubEvent, lastSeenEventID string) []types.GithubEvent {
	fresh := []types.GithubEvent{}
	for _, event := range events {
		if lastSeenEventID != "" && event.ID == lastSeenEventID {
			break
		}
		fresh = append(fresh, event)
	}

	// reverse into oldest-first order
	for i, j := 0, len(fresh)-1; i < j; i, j = i+1, j-1 {
		fresh[i], fresh[j] = fresh[j], fresh[i]
	}
	return fresh
}

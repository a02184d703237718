package types

import (
	"github.com/lib/pq"
)

// SyncState is a db model of the per-user GitHub poll bookkeeping.
// LastSeenEventID empty means no poll has completed yet.
type SyncState struct {
	UserID          string `json:"userID" gorm:"primaryKey;type:text"`
	LastSeenEventID string `json:"lastSeenEventID" gorm:"type:text"`
	Etag            string `json:"etag" gorm:"type:text"`
	PollingActive   bool   `json:"pollingActive" gorm:"type:bool"`
}

// EventReference is a db model of a GitHub event cross reference. One row
// per mirrored event; existence of the row is the at-most-once guarantee.
type EventReference struct {
	EventID string `json:"eventID" gorm:"primaryKey;type:text"`
	PostID  string `json:"postID" gorm:"type:text"`
	UserID  string `json:"userID" gorm:"type:text;index"`
}

// UserSettings is a db model of gateway-side user preferences.
type UserSettings struct {
	UserID string `json:"userID" gorm:"primaryKey;type:text"`
	// GithubURL is the profile URL the poller derives the username from.
	GithubURL string `json:"githubURL" gorm:"type:text"`
	// Aliases are alternate canonical URLs this author is known by on
	// remote hosts.
	Aliases pq.StringArray `json:"aliases" gorm:"type:text[]"`
}

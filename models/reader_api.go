// ABOUTME: This file defines the JSON shapes returned by the remote reader API
// ABOUTME: Maps stream contents, subscription list and category state markers

package models

import "strings"

// Category state markers used by the remote API to flag per-user article state.
const (
	CategoryRead    = "user/-/state/com.google/read"
	CategoryStarred = "user/-/state/com.google/starred"
)

// StreamReadingList is the merged stream of all subscribed feeds.
const StreamReadingList = "user/-/state/com.google/reading-list"

// StreamContentsResponse represents the remote API response for stream contents.
type StreamContentsResponse struct {
	Direction    string       `json:"direction"`
	ID           string       `json:"id"`
	Title        string       `json:"title"`
	Description  string       `json:"description"`
	Self         []StreamLink `json:"self"`
	Updated      int64        `json:"updated"`
	Items        []StreamItem `json:"items"`
	Continuation string       `json:"continuation,omitempty"`
}

// StreamItem represents a single article snapshot from the remote API.
type StreamItem struct {
	ID         string        `json:"id"`
	Title      string        `json:"title"`
	Published  int64         `json:"published"`
	Updated    int64         `json:"updated"`
	Author     string        `json:"author"`
	Canonical  []StreamLink  `json:"canonical"`
	Origin     StreamOrigin  `json:"origin"`
	Summary    StreamSummary `json:"summary"`
	Categories []string      `json:"categories"`
}

// StreamLink represents a link in a remote API response.
type StreamLink struct {
	Href string `json:"href"`
	Type string `json:"type,omitempty"`
}

// StreamOrigin represents the source feed of a stream item.
type StreamOrigin struct {
	StreamID string `json:"streamId"`
	Title    string `json:"title"`
	HTMLURL  string `json:"htmlUrl"`
}

// StreamSummary represents the article body or summary as delivered remotely.
type StreamSummary struct {
	Content   string `json:"content"`
	Direction string `json:"direction"`
}

// IsRead reports whether the remote snapshot carries the read state marker.
func (i StreamItem) IsRead() bool {
	return i.hasCategory(CategoryRead)
}

// IsStarred reports whether the remote snapshot carries the starred state marker.
func (i StreamItem) IsStarred() bool {
	return i.hasCategory(CategoryStarred)
}

func (i StreamItem) hasCategory(marker string) bool {
	for _, c := range i.Categories {
		// Exact match or user-scoped variant like "user/1234/state/com.google/read".
		if c == marker || strings.HasSuffix(c, strings.TrimPrefix(marker, "user/-")) {
			return true
		}
	}
	return false
}

// SubscriptionListResponse represents the remote API response for the
// subscription list.
type SubscriptionListResponse struct {
	Subscriptions []RemoteSubscription `json:"subscriptions"`
}

// RemoteSubscription represents a single subscribed feed from the remote API.
type RemoteSubscription struct {
	ID         string               `json:"id"`
	Title      string               `json:"title"`
	Categories []RemoteCategoryItem `json:"categories"`
	URL        string               `json:"url"`
	HTMLURL    string               `json:"htmlUrl"`
	IconURL    string               `json:"iconUrl"`
}

// RemoteCategoryItem represents a folder/label entry on a subscription.
type RemoteCategoryItem struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// ZoneHeaders carries the rate-limit headers captured from one remote response.
// Values are -1 when the corresponding header was absent.
type ZoneHeaders struct {
	Zone1Usage        int64
	Zone1Limit        int64
	Zone1Remaining    int64
	Zone2Usage        int64
	Zone2Limit        int64
	Zone2Remaining    int64
	ResetAfterSeconds int64
}

// HasZone1 reports whether the response carried zone 1 usage headers.
func (h ZoneHeaders) HasZone1() bool {
	return h.Zone1Usage >= 0 && h.Zone1Limit >= 0
}

// HasZone2 reports whether the response carried zone 2 usage headers.
func (h ZoneHeaders) HasZone2() bool {
	return h.Zone2Usage >= 0 && h.Zone2Limit >= 0
}

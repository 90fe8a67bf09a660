// ABOUTME: Service layer contract for the remote reader API surface
// ABOUTME: The mock under mocks/ is regenerated from this file via go:generate

package service

import (
	"context"

	"reader-sync/models"
)

//go:generate mockgen -source=interfaces.go -destination=../mocks/reader_api_mock.go -package=mocks

// ReaderAPI is the remote feed API surface the sync services consume.
// driver.ReaderClient is the production implementation; every method reports
// the rate-limit headers of its response so callers can feed the quota
// tracker.
type ReaderAPI interface {
	// FetchStreamContents pages through a stream newest-first. An empty
	// continuation starts from the top; the response carries the token for
	// the next page.
	FetchStreamContents(ctx context.Context, streamID, continuation string, maxArticles int) (*models.StreamContentsResponse, models.ZoneHeaders, error)

	// FetchSubscriptionList returns the full remote subscription list.
	FetchSubscriptionList(ctx context.Context) (*models.SubscriptionListResponse, models.ZoneHeaders, error)

	// EditTags adds and/or removes one tag on the given items.
	EditTags(ctx context.Context, itemIDs []string, addTag, removeTag string) (models.ZoneHeaders, error)
}

package services

import (
	"context"

	"github.com/username/yieldmap/backend/src/models"
)

// SnapshotService drives one remote data-collection job from trigger to a
// terminal outcome for a given listing source URL. It owns the transient
// trigger/poll states; callers only ever see terminal results or errors.
type SnapshotService interface {
	FetchPriceHistory(ctx context.Context, sourceURL string) (models.HistoryResult, error)
}

// HistoryService resolves a listing id to its price history, consulting the
// retrieval cache first so a repeated request never re-triggers a remote job.
type HistoryService interface {
	GetPriceHistory(ctx context.Context, listingID string) (models.HistoryResult, error)
}

// MapService builds (once) and serves the rendered properties map artifact.
type MapService interface {
	MapArtifact() (string, error)
}

// AlertService notifies operators about failed snapshot retrievals.
type AlertService interface {
	NotifyRetrievalFailure(listingID, reason string) error
}

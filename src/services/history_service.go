// backend/src/services/history_service.go
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/patrickmn/go-cache"
	"github.com/username/yieldmap/backend/src/database"
	"github.com/username/yieldmap/backend/src/logger"
	"github.com/username/yieldmap/backend/src/models"
)

// historyServiceImpl memoizes terminal snapshot outcomes per listing id and
// guarantees at most one in-flight retrieval per listing.
type historyServiceImpl struct {
	snapshot     SnapshotService
	historyCache *cache.Cache
	alerts       AlertService

	mu       sync.Mutex
	inflight map[string]*sync.Mutex
}

func NewHistoryService(snapshot SnapshotService, historyCache *cache.Cache, alerts AlertService) HistoryService {
	return &historyServiceImpl{
		snapshot:     snapshot,
		historyCache: historyCache,
		alerts:       alerts,
		inflight:     make(map[string]*sync.Mutex),
	}
}

// GetPriceHistory returns the cached terminal result for the listing, or
// runs the snapshot protocol once and caches whatever it resolves to.
// Failed outcomes are terminal too and are cached like any other, so a
// broken listing does not hammer the remote service on every request.
func (s *historyServiceImpl) GetPriceHistory(ctx context.Context, listingID string) (models.HistoryResult, error) {
	if cached, found := s.historyCache.Get(listingID); found {
		logger.L.Debug("Price history served from cache", "listingID", listingID)
		return cached.(models.HistoryResult), nil
	}

	listing, err := database.GetListingByID(listingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.HistoryResult{}, fmt.Errorf("%w: id %s", ErrListingNotFound, listingID)
		}
		return models.HistoryResult{}, fmt.Errorf("looking up listing %s: %w", listingID, err)
	}

	// Serialize concurrent first-requests for the same listing so they
	// collapse into a single remote job.
	lock := s.lockFor(listingID)
	lock.Lock()
	defer lock.Unlock()

	// The loser of the race finds the winner's result here.
	if cached, found := s.historyCache.Get(listingID); found {
		logger.L.Debug("Price history resolved by concurrent request", "listingID", listingID)
		return cached.(models.HistoryResult), nil
	}

	logger.L.Info("Starting snapshot retrieval", "listingID", listingID)
	result, err := s.snapshot.FetchPriceHistory(ctx, listing.SourceURL)
	if err != nil {
		// A cancelled request is not a terminal outcome; the next
		// request should run the protocol again.
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return models.HistoryResult{}, err
		}

		result = models.HistoryResult{State: models.HistoryFailed, Reason: failureReason(err)}
		logger.L.Error("Snapshot retrieval failed", "listingID", listingID, "reason", result.Reason, "error", err)
		if s.alerts != nil {
			if alertErr := s.alerts.NotifyRetrievalFailure(listingID, result.Reason); alertErr != nil {
				logger.L.Warn("Failed to send retrieval failure alert", "listingID", listingID, "error", alertErr)
			}
		}
	}

	s.historyCache.Set(listingID, result, cache.DefaultExpiration)
	return result, nil
}

func (s *historyServiceImpl) lockFor(listingID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.inflight[listingID]
	if !ok {
		lock = &sync.Mutex{}
		s.inflight[listingID] = lock
	}
	return lock
}

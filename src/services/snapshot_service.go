// backend/src/services/snapshot_service.go
package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/username/yieldmap/backend/src/config"
	"github.com/username/yieldmap/backend/src/logger"
	"github.com/username/yieldmap/backend/src/models"
	"golang.org/x/net/publicsuffix"
)

// Textual status markers of the snapshot endpoint. The service reports job
// state inside the response body rather than via a structured status field,
// so these substrings are the observable contract.
const (
	emptyMarker    = "Snapshot is empty"
	notReadyMarker = "Snapshot is not ready yet"
)

// triggerResponse is the JSON body returned by the trigger endpoint.
type triggerResponse struct {
	SnapshotID string `json:"snapshot_id"`
}

// snapshotServiceImpl implements SnapshotService against the remote
// data-collection API.
type snapshotServiceImpl struct {
	httpClient      *http.Client
	triggerURL      string
	snapshotURL     string
	tokenPath       string
	initialDelay    time.Duration
	pollInterval    time.Duration
	maxPollAttempts int
}

// NewSnapshotService creates the snapshot service from the loaded config.
func NewSnapshotService() SnapshotService {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		logger.L.Error("Failed to create cookie jar", "error", err)
	}

	return &snapshotServiceImpl{
		httpClient: &http.Client{
			Jar:     jar,
			Timeout: 30 * time.Second,
		},
		triggerURL:      config.Cfg.TriggerURL,
		snapshotURL:     config.Cfg.SnapshotURL,
		tokenPath:       config.Cfg.TokenPath,
		initialDelay:    config.Cfg.InitialDelay,
		pollInterval:    config.Cfg.PollInterval,
		maxPollAttempts: config.Cfg.MaxPollAttempts,
	}
}

// FetchPriceHistory runs the full protocol: trigger, initial grace period,
// bounded poll loop, then parse of the final payload. Any error halts the
// protocol; the "not ready" loop is protocol-prescribed waiting, not retry.
func (s *snapshotServiceImpl) FetchPriceHistory(ctx context.Context, sourceURL string) (models.HistoryResult, error) {
	token, err := s.bearerToken()
	if err != nil {
		return models.HistoryResult{}, err
	}

	snapshotID, err := s.trigger(ctx, token, sourceURL)
	if err != nil {
		return models.HistoryResult{}, err
	}
	logger.L.Info("Snapshot job triggered", "snapshotID", snapshotID)

	// The job cannot possibly be ready immediately after the trigger.
	if err := sleepCtx(ctx, s.initialDelay); err != nil {
		return models.HistoryResult{}, err
	}

	for attempt := 0; attempt < s.maxPollAttempts; attempt++ {
		body, err := s.fetchSnapshot(ctx, token, snapshotID)
		if err != nil {
			return models.HistoryResult{}, err
		}

		// Marker priority: empty beats not-ready beats payload.
		if bytes.Contains(body, []byte(emptyMarker)) {
			logger.L.Info("Snapshot reported empty", "snapshotID", snapshotID)
			return models.HistoryResult{State: models.HistoryEmpty}, nil
		}
		if bytes.Contains(body, []byte(notReadyMarker)) {
			// No point sleeping when the attempt budget is spent.
			if attempt+1 >= s.maxPollAttempts {
				break
			}
			logger.L.Debug("Snapshot not ready, polling again",
				"snapshotID", snapshotID, "attempt", attempt+1, "interval", s.pollInterval)
			if err := sleepCtx(ctx, s.pollInterval); err != nil {
				return models.HistoryResult{}, err
			}
			continue
		}

		records, err := s.parsePayload(snapshotID, body)
		if err != nil {
			return models.HistoryResult{}, err
		}
		logger.L.Info("Snapshot ready", "snapshotID", snapshotID, "records", len(records))
		return models.HistoryResult{State: models.HistoryReady, Records: records}, nil
	}

	return models.HistoryResult{}, fmt.Errorf("%w after %d attempts", ErrPollTimeout, s.maxPollAttempts)
}

// bearerToken reads the API token from its secret location at call time.
// The token value itself is never logged.
func (s *snapshotServiceImpl) bearerToken() (string, error) {
	raw, err := os.ReadFile(s.tokenPath)
	if err != nil {
		return "", fmt.Errorf("%w: reading token file: %v", ErrTrigger, err)
	}
	token := strings.TrimSpace(string(raw))
	if token == "" {
		return "", fmt.Errorf("%w: token file %s is empty", ErrTrigger, s.tokenPath)
	}
	return token, nil
}

// trigger submits the data-collection job and returns the opaque snapshot id.
func (s *snapshotServiceImpl) trigger(ctx context.Context, token, sourceURL string) (string, error) {
	payload, err := json.Marshal([]map[string]string{{"url": sourceURL}})
	if err != nil {
		return "", fmt.Errorf("%w: encoding trigger body: %v", ErrTrigger, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.triggerURL, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("%w: building trigger request: %v", ErrTrigger, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		// Keep the transport error in the chain so callers can still
		// recognize context cancellation underneath ErrNetwork.
		return "", fmt.Errorf("%w: trigger call: %w", ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: trigger endpoint returned status %d", ErrTrigger, resp.StatusCode)
	}

	var triggerResp triggerResponse
	if err := json.NewDecoder(resp.Body).Decode(&triggerResp); err != nil {
		return "", fmt.Errorf("%w: decoding trigger response: %v", ErrTrigger, err)
	}
	if triggerResp.SnapshotID == "" {
		return "", fmt.Errorf("%w: trigger response missing snapshot_id", ErrTrigger)
	}
	return triggerResp.SnapshotID, nil
}

// fetchSnapshot fetches the job status/payload body in CSV format.
func (s *snapshotServiceImpl) fetchSnapshot(ctx context.Context, token, snapshotID string) ([]byte, error) {
	fetchURL := fmt.Sprintf("%s/%s?format=csv", s.snapshotURL, snapshotID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fetchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: building snapshot request: %v", ErrNetwork, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: snapshot call: %w", ErrNetwork, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading snapshot body: %w", ErrNetwork, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: snapshot endpoint returned status %d", ErrNetwork, resp.StatusCode)
	}
	return body, nil
}

// parsePayload stages the raw payload in a fresh per-retrieval temp file,
// parses it, and removes the file. Nothing is shared across listings.
func (s *snapshotServiceImpl) parsePayload(snapshotID string, body []byte) ([]models.PriceHistoryRecord, error) {
	tmp, err := os.CreateTemp("", "snapshot-*.csv")
	if err != nil {
		return nil, fmt.Errorf("%w: creating temp payload file: %v", ErrParse, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(body); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("%w: writing temp payload file: %v", ErrParse, err)
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("%w: rewinding temp payload file: %v", ErrParse, err)
	}
	defer tmp.Close()

	records, err := parseHistoryCSV(tmp)
	if err != nil {
		return nil, fmt.Errorf("%w: snapshot %s: %v", ErrParse, snapshotID, err)
	}
	return records, nil
}

// parseHistoryCSV extracts (date, price) pairs from the snapshot payload.
// Dates are normalized to YYYY-MM-DD; row order is preserved as received.
func parseHistoryCSV(r io.Reader) ([]models.PriceHistoryRecord, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading payload header: %w", err)
	}

	dateIdx, priceIdx := -1, -1
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "date":
			dateIdx = i
		case "price":
			priceIdx = i
		}
	}
	if dateIdx < 0 || priceIdx < 0 {
		return nil, fmt.Errorf("payload missing date/price columns, header: %v", header)
	}

	var records []models.PriceHistoryRecord
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading payload row: %w", err)
		}
		if dateIdx >= len(row) || priceIdx >= len(row) {
			continue
		}

		date, err := normalizeDate(row[dateIdx])
		if err != nil {
			logger.L.Warn("Skipping history row with unparseable date", "raw", row[dateIdx])
			continue
		}

		price, err := strconv.ParseFloat(strings.TrimSpace(row[priceIdx]), 64)
		if err != nil {
			price = models.Absent()
		}

		records = append(records, models.PriceHistoryRecord{Date: date, Price: price})
	}
	return records, nil
}

// Date layouts seen in snapshot exports, tried in order.
var historyDateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"01/02/2006",
}

func normalizeDate(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range historyDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format("2006-01-02"), nil
		}
	}
	return "", fmt.Errorf("unrecognized date %q", raw)
}

// sleepCtx waits for d, or returns early when the request is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

package services

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/username/yieldmap/backend/src/logger"
	"github.com/username/yieldmap/backend/src/models"
)

func TestMain(m *testing.M) {
	logger.InitLogger("error", "json")
	os.Exit(m.Run())
}

// fakeSnapshotAPI scripts the remote data-collection service: one trigger
// endpoint and a sequence of poll responses served in order.
type fakeSnapshotAPI struct {
	t             *testing.T
	triggerStatus int
	triggerBody   string
	pollBodies    []string

	triggerCalls atomic.Int32
	pollCalls    atomic.Int32
}

func (f *fakeSnapshotAPI) start() *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /trigger", func(w http.ResponseWriter, r *http.Request) {
		f.triggerCalls.Add(1)
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			f.t.Errorf("trigger Authorization header: got %q", got)
		}
		if got := r.Header.Get("Content-Type"); got != "application/json" {
			f.t.Errorf("trigger Content-Type header: got %q", got)
		}
		w.WriteHeader(f.triggerStatus)
		w.Write([]byte(f.triggerBody))
	})
	mux.HandleFunc("GET /snapshots/{id}", func(w http.ResponseWriter, r *http.Request) {
		n := int(f.pollCalls.Add(1)) - 1
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			f.t.Errorf("snapshot Authorization header: got %q", got)
		}
		if n >= len(f.pollBodies) {
			n = len(f.pollBodies) - 1
		}
		w.Write([]byte(f.pollBodies[n]))
	})
	server := httptest.NewServer(mux)
	f.t.Cleanup(server.Close)
	return server
}

func newTestSnapshotService(t *testing.T, baseURL string) *snapshotServiceImpl {
	t.Helper()
	tokenPath := filepath.Join(t.TempDir(), "TOKEN")
	if err := os.WriteFile(tokenPath, []byte("test-token\n"), 0o600); err != nil {
		t.Fatalf("writing token file: %v", err)
	}
	return &snapshotServiceImpl{
		httpClient:      &http.Client{Timeout: 5 * time.Second},
		triggerURL:      baseURL + "/trigger",
		snapshotURL:     baseURL + "/snapshots",
		tokenPath:       tokenPath,
		initialDelay:    time.Millisecond,
		pollInterval:    time.Millisecond,
		maxPollAttempts: 5,
	}
}

func TestFetchPriceHistory_NotReadyThenEmpty(t *testing.T) {
	api := &fakeSnapshotAPI{
		t:             t,
		triggerStatus: http.StatusOK,
		triggerBody:   `{"snapshot_id": "snap-1"}`,
		pollBodies: []string{
			"Snapshot is not ready yet, try again in 10s",
			"Snapshot is empty",
		},
	}
	server := api.start()
	svc := newTestSnapshotService(t, server.URL)

	result, err := svc.FetchPriceHistory(context.Background(), "https://example.com/homes/101")
	if err != nil {
		t.Fatalf("FetchPriceHistory returned error: %v", err)
	}
	if result.State != models.HistoryEmpty {
		t.Errorf("State: got %v, want HistoryEmpty", result.State)
	}
	if got := api.pollCalls.Load(); got != 2 {
		t.Errorf("poll calls: got %d, want 2", got)
	}
}

func TestFetchPriceHistory_ReadyCSV(t *testing.T) {
	api := &fakeSnapshotAPI{
		t:             t,
		triggerStatus: http.StatusOK,
		triggerBody:   `{"snapshot_id": "snap-2"}`,
		pollBodies:    []string{"date,price\n2023-01-01,300000\n2023-06-01,310000\n"},
	}
	server := api.start()
	svc := newTestSnapshotService(t, server.URL)

	result, err := svc.FetchPriceHistory(context.Background(), "https://example.com/homes/101")
	if err != nil {
		t.Fatalf("FetchPriceHistory returned error: %v", err)
	}
	if result.State != models.HistoryReady {
		t.Fatalf("State: got %v, want HistoryReady", result.State)
	}
	wantDates := []string{"2023-01-01", "2023-06-01"}
	if len(result.Records) != len(wantDates) {
		t.Fatalf("records: got %d, want %d", len(result.Records), len(wantDates))
	}
	for i, want := range wantDates {
		if result.Records[i].Date != want {
			t.Errorf("record %d date: got %q, want %q", i, result.Records[i].Date, want)
		}
	}
	if result.Records[0].Price != 300000 {
		t.Errorf("record 0 price: got %v, want 300000", result.Records[0].Price)
	}
}

func TestFetchPriceHistory_TriggerRejected(t *testing.T) {
	api := &fakeSnapshotAPI{
		t:             t,
		triggerStatus: http.StatusForbidden,
		triggerBody:   `{"error": "bad token"}`,
		pollBodies:    []string{"Snapshot is empty"},
	}
	server := api.start()
	svc := newTestSnapshotService(t, server.URL)

	_, err := svc.FetchPriceHistory(context.Background(), "https://example.com/homes/101")
	if !errors.Is(err, ErrTrigger) {
		t.Fatalf("error: got %v, want ErrTrigger", err)
	}
	if got := api.pollCalls.Load(); got != 0 {
		t.Errorf("poll calls after trigger failure: got %d, want 0", got)
	}
}

func TestFetchPriceHistory_MissingSnapshotID(t *testing.T) {
	api := &fakeSnapshotAPI{
		t:             t,
		triggerStatus: http.StatusOK,
		triggerBody:   `{}`,
		pollBodies:    []string{"Snapshot is empty"},
	}
	server := api.start()
	svc := newTestSnapshotService(t, server.URL)

	_, err := svc.FetchPriceHistory(context.Background(), "https://example.com/homes/101")
	if !errors.Is(err, ErrTrigger) {
		t.Fatalf("error: got %v, want ErrTrigger", err)
	}
}

func TestFetchPriceHistory_PollBudgetExhausted(t *testing.T) {
	api := &fakeSnapshotAPI{
		t:             t,
		triggerStatus: http.StatusOK,
		triggerBody:   `{"snapshot_id": "snap-3"}`,
		pollBodies:    []string{"Snapshot is not ready yet, try again in 10s"},
	}
	server := api.start()
	svc := newTestSnapshotService(t, server.URL)

	_, err := svc.FetchPriceHistory(context.Background(), "https://example.com/homes/101")
	if !errors.Is(err, ErrPollTimeout) {
		t.Fatalf("error: got %v, want ErrPollTimeout", err)
	}
	if got := api.pollCalls.Load(); got != int32(svc.maxPollAttempts) {
		t.Errorf("poll calls: got %d, want %d", got, svc.maxPollAttempts)
	}
}

func TestFetchPriceHistory_NetworkFailure(t *testing.T) {
	api := &fakeSnapshotAPI{
		t:             t,
		triggerStatus: http.StatusOK,
		triggerBody:   `{"snapshot_id": "snap-4"}`,
		pollBodies:    []string{"Snapshot is empty"},
	}
	server := api.start()
	svc := newTestSnapshotService(t, server.URL)
	server.Close()

	_, err := svc.FetchPriceHistory(context.Background(), "https://example.com/homes/101")
	if !errors.Is(err, ErrNetwork) {
		t.Fatalf("error: got %v, want ErrNetwork", err)
	}
}

func TestFetchPriceHistory_MalformedPayload(t *testing.T) {
	api := &fakeSnapshotAPI{
		t:             t,
		triggerStatus: http.StatusOK,
		triggerBody:   `{"snapshot_id": "snap-5"}`,
		pollBodies:    []string{"timestamp,value\n2023-01-01,300000\n"},
	}
	server := api.start()
	svc := newTestSnapshotService(t, server.URL)

	_, err := svc.FetchPriceHistory(context.Background(), "https://example.com/homes/101")
	if !errors.Is(err, ErrParse) {
		t.Fatalf("error: got %v, want ErrParse", err)
	}
}

func TestFetchPriceHistory_CancelledDuringPoll(t *testing.T) {
	api := &fakeSnapshotAPI{
		t:             t,
		triggerStatus: http.StatusOK,
		triggerBody:   `{"snapshot_id": "snap-6"}`,
		pollBodies:    []string{"Snapshot is not ready yet, try again in 10s"},
	}
	server := api.start()
	svc := newTestSnapshotService(t, server.URL)
	svc.pollInterval = time.Minute

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := svc.FetchPriceHistory(ctx, "https://example.com/homes/101")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error: got %v, want context.Canceled", err)
	}
}

func TestFetchPriceHistory_CancelledDuringHTTPCall(t *testing.T) {
	// The trigger endpoint hangs until the caller gives up, so the
	// cancellation surfaces through the transport error.
	blocking := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	}))
	t.Cleanup(blocking.Close)
	svc := newTestSnapshotService(t, blocking.URL)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := svc.FetchPriceHistory(ctx, "https://example.com/homes/101")
	if err == nil {
		t.Fatal("expected error from cancelled retrieval")
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error must keep context.Canceled in its chain, got %v", err)
	}
}

func TestFetchPriceHistory_NoSleepAfterFinalAttempt(t *testing.T) {
	api := &fakeSnapshotAPI{
		t:             t,
		triggerStatus: http.StatusOK,
		triggerBody:   `{"snapshot_id": "snap-7"}`,
		pollBodies:    []string{"Snapshot is not ready yet, try again in 10s"},
	}
	server := api.start()
	svc := newTestSnapshotService(t, server.URL)
	svc.maxPollAttempts = 1
	svc.pollInterval = time.Minute

	start := time.Now()
	_, err := svc.FetchPriceHistory(context.Background(), "https://example.com/homes/101")
	if !errors.Is(err, ErrPollTimeout) {
		t.Fatalf("error: got %v, want ErrPollTimeout", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("budget-exhausted retrieval slept before returning, took %s", elapsed)
	}
}

func TestNormalizeDate(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{"2023-01-02", "2023-01-02"},
		{"2023-01-02T15:04:05Z", "2023-01-02"},
		{"2023-01-02 15:04:05", "2023-01-02"},
		{"06/01/2023", "2023-06-01"},
	}
	for _, tc := range cases {
		got, err := normalizeDate(tc.raw)
		if err != nil {
			t.Errorf("normalizeDate(%q): unexpected error %v", tc.raw, err)
			continue
		}
		if got != tc.want {
			t.Errorf("normalizeDate(%q): got %q, want %q", tc.raw, got, tc.want)
		}
	}
	if _, err := normalizeDate("not a date"); err == nil {
		t.Error("normalizeDate should fail on garbage input")
	}
}

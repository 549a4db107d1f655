package pagination

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/Zeeshan138063/digikey-client/pkg/catalog"
)

// fakeSearcher serves pages out of a fixed dataset of totalCount records,
// recording every requested offset.
type fakeSearcher struct {
	totalCount int
	offsets    []int
	// failAt, when >= 0, fails the request at that offset.
	failAt  int
	failErr error
	// shrinkTo, when > 0, lowers the reported total after the first page.
	shrinkTo int
}

func newFakeSearcher(total int) *fakeSearcher {
	return &fakeSearcher{totalCount: total, failAt: -1}
}

func (f *fakeSearcher) Search(ctx context.Context, req catalog.SearchRequest) (catalog.SearchResponse, error) {
	f.offsets = append(f.offsets, req.Offset)

	if f.failAt >= 0 && req.Offset == f.failAt {
		return catalog.SearchResponse{}, f.failErr
	}

	total := f.totalCount
	if f.shrinkTo > 0 && req.Offset > 0 {
		total = f.shrinkTo
	}

	remaining := total - req.Offset
	if remaining < 0 {
		remaining = 0
	}
	count := req.Limit
	if count > remaining {
		count = remaining
	}

	records := make([]catalog.VendorRecord, count)
	for i := range records {
		records[i] = catalog.VendorRecord{
			"ManufacturerPartNumber": fmt.Sprintf("PN-%d", req.Offset+i),
		}
	}

	return catalog.SearchResponse{TotalCount: total, Records: records}, nil
}

// memStore records appended batches in memory.
type memStore struct {
	batches []catalog.Batch
	failAll bool
}

func (m *memStore) Append(batch catalog.Batch, path string) error {
	if m.failAll {
		return errors.New("disk full")
	}
	m.batches = append(m.batches, batch)
	return nil
}

func TestCollect_PageRequestCountAndOffsets(t *testing.T) {
	tests := []struct {
		name        string
		totalCount  int
		pageSize    int
		wantOffsets []int
	}{
		{"exact multiple", 100, 50, []int{0, 50}},
		{"partial last page", 120, 50, []int{0, 50, 100}},
		{"single page", 10, 50, []int{0}},
		{"single record", 1, 50, []int{0}},
		{"page size one", 3, 1, []int{0, 1, 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			searcher := newFakeSearcher(tt.totalCount)
			store := &memStore{}
			driver := NewDriver(searcher, store, Config{PageSize: tt.pageSize, StorePath: "x.json"})

			results := driver.Collect(context.Background(), []string{"Amplifiers"})

			if len(results) != 1 {
				t.Fatalf("results = %d, want 1", len(results))
			}
			if results[0].Status != StatusExhausted {
				t.Errorf("status = %s, want exhausted", results[0].Status)
			}
			if len(searcher.offsets) != len(tt.wantOffsets) {
				t.Fatalf("page requests = %d (%v), want %d", len(searcher.offsets), searcher.offsets, len(tt.wantOffsets))
			}
			for i, want := range tt.wantOffsets {
				if searcher.offsets[i] != want {
					t.Errorf("request %d offset = %d, want %d", i, searcher.offsets[i], want)
				}
			}
			if len(store.batches) != len(tt.wantOffsets) {
				t.Errorf("stored batches = %d, want %d", len(store.batches), len(tt.wantOffsets))
			}
		})
	}
}

func TestCollect_BatchSizesForPartialLastPage(t *testing.T) {
	searcher := newFakeSearcher(120)
	store := &memStore{}
	driver := NewDriver(searcher, store, Config{PageSize: 50, StorePath: "x.json"})

	results := driver.Collect(context.Background(), []string{"Amplifiers"})

	if results[0].Batches != 3 || results[0].Records != 120 {
		t.Errorf("result = %d batches / %d records, want 3 / 120", results[0].Batches, results[0].Records)
	}

	wantSizes := []int{50, 50, 20}
	if len(store.batches) != len(wantSizes) {
		t.Fatalf("stored batches = %d, want %d", len(store.batches), len(wantSizes))
	}
	for i, want := range wantSizes {
		if got := len(store.batches[i].Records); got != want {
			t.Errorf("batch %d size = %d, want %d", i, got, want)
		}
		if store.batches[i].Metadata.ItemCount != want {
			t.Errorf("batch %d item_count = %d, want %d", i, store.batches[i].Metadata.ItemCount, want)
		}
	}
}

func TestCollect_ZeroTotalYieldsZeroBatches(t *testing.T) {
	searcher := newFakeSearcher(0)
	store := &memStore{}
	driver := NewDriver(searcher, store, Config{PageSize: 50, StorePath: "x.json"})

	results := driver.Collect(context.Background(), []string{"Unobtainium"})

	if results[0].Status != StatusExhausted {
		t.Errorf("status = %s, want exhausted (empty result is not an error)", results[0].Status)
	}
	if results[0].Batches != 0 || len(store.batches) != 0 {
		t.Errorf("expected zero batches, got %d", len(store.batches))
	}
}

func TestCollect_FailureMidRunKeepsEarlierBatches(t *testing.T) {
	searcher := newFakeSearcher(150)
	searcher.failAt = 100
	searcher.failErr = errors.New("retry attempts exhausted after 3 attempts")
	store := &memStore{}
	driver := NewDriver(searcher, store, Config{PageSize: 50, StorePath: "x.json"})

	results := driver.Collect(context.Background(), []string{"Amplifiers"})

	if results[0].Status != StatusFailed {
		t.Errorf("status = %s, want failed", results[0].Status)
	}
	if results[0].Err == nil {
		t.Error("expected Err to carry the terminal failure")
	}
	// The first two pages were stored before the failure.
	if len(store.batches) != 2 {
		t.Errorf("stored batches = %d, want 2", len(store.batches))
	}
}

func TestCollect_FailedKeywordDoesNotAbortOthers(t *testing.T) {
	searcher := newFakeSearcher(50)
	store := &memStore{}
	driver := NewDriver(searcher, store, Config{PageSize: 50, StorePath: "x.json"})

	// Fail only the first keyword's single page.
	searcher.failAt = 0
	searcher.failErr = errors.New("boom")

	first := driver.Collect(context.Background(), []string{"BadKeyword"})
	searcher.failAt = -1
	second := driver.Collect(context.Background(), []string{"GoodKeyword"})

	if first[0].Status != StatusFailed {
		t.Errorf("first status = %s, want failed", first[0].Status)
	}
	if second[0].Status != StatusExhausted {
		t.Errorf("second status = %s, want exhausted", second[0].Status)
	}
	if len(Failed(append(first, second...))) != 1 {
		t.Errorf("Failed() should report exactly one keyword")
	}
}

func TestCollect_ShrinkingTotalTerminatesEarly(t *testing.T) {
	searcher := newFakeSearcher(500)
	searcher.shrinkTo = 60 // after the first page the vendor reports 60
	store := &memStore{}
	driver := NewDriver(searcher, store, Config{PageSize: 50, StorePath: "x.json"})

	results := driver.Collect(context.Background(), []string{"Amplifiers"})

	// The latest reported total is trusted: page at offset 50 reports 60,
	// so pagination stops after two pages instead of ten.
	if results[0].Status != StatusExhausted {
		t.Errorf("status = %s, want exhausted", results[0].Status)
	}
	if len(searcher.offsets) != 2 {
		t.Errorf("page requests = %d (%v), want 2", len(searcher.offsets), searcher.offsets)
	}
}

func TestCollect_CancellationBetweenPages(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	searcher := newFakeSearcher(100)
	store := &memStore{}
	driver := NewDriver(searcher, store, Config{PageSize: 50, StorePath: "x.json"})

	results := driver.Collect(ctx, []string{"Amplifiers"})

	if results[0].Status != StatusFailed {
		t.Errorf("status = %s, want failed", results[0].Status)
	}
	if !IsCancelled(results[0]) {
		t.Errorf("expected a cancellation failure, got %v", results[0].Err)
	}
	if len(searcher.offsets) != 0 {
		t.Errorf("no pages should be requested after cancellation, got %v", searcher.offsets)
	}
}

func TestCollect_StoreFailureDoesNotStopPagination(t *testing.T) {
	searcher := newFakeSearcher(100)
	store := &memStore{failAll: true}
	driver := NewDriver(searcher, store, Config{PageSize: 50, StorePath: "x.json"})

	results := driver.Collect(context.Background(), []string{"Amplifiers"})

	// The store's fallback sink already received the batches; pagination
	// itself still walks every page.
	if results[0].Status != StatusExhausted {
		t.Errorf("status = %s, want exhausted", results[0].Status)
	}
	if len(searcher.offsets) != 2 {
		t.Errorf("page requests = %d, want 2", len(searcher.offsets))
	}
}

func TestCollect_TimestampsMonotonic(t *testing.T) {
	searcher := newFakeSearcher(120)
	store := &memStore{}
	driver := NewDriver(searcher, store, Config{PageSize: 50, StorePath: "x.json"})

	driver.Collect(context.Background(), []string{"Amplifiers"})

	for i := 1; i < len(store.batches); i++ {
		prev, cur := store.batches[i-1].Metadata.Timestamp, store.batches[i].Metadata.Timestamp
		if cur < prev {
			t.Errorf("batch %d timestamp %q precedes batch %d timestamp %q", i, cur, i-1, prev)
		}
	}
}

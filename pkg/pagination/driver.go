package pagination

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Zeeshan138063/digikey-client/pkg/catalog"
)

var (
	pagesFetchedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "digikey_pages_fetched_total",
		Help: "Total search pages fetched and stored",
	})

	keywordsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "digikey_pagination_keywords_total",
		Help: "Keywords processed by final status",
	}, []string{"status"})
)

// Searcher is the single-page request operation the driver loops over.
type Searcher interface {
	Search(ctx context.Context, req catalog.SearchRequest) (catalog.SearchResponse, error)
}

// Appender persists one batch.
type Appender interface {
	Append(batch catalog.Batch, path string) error
}

// Status tags the final state of one keyword's pagination.
type Status string

const (
	// StatusExhausted means the declared total was reached; there is no
	// more data for this keyword.
	StatusExhausted Status = "exhausted"

	// StatusFailed means pagination stopped early because a page fetch
	// definitively failed. Remaining pages for the keyword are unknown.
	StatusFailed Status = "failed"
)

// KeywordResult reports how one keyword's pagination ended.
type KeywordResult struct {
	Keyword string
	Status  Status
	Batches int
	Records int
	// Err carries the terminal failure for StatusFailed.
	Err error
}

// Config holds driver configuration.
type Config struct {
	// PageSize is the offset/limit window width.
	PageSize int

	// ManufacturerID filters every search (0 disables the filter).
	ManufacturerID int

	// StorePath is the collection file batches are appended to.
	StorePath string
}

// DefaultPageSize matches the vendor's usual page window.
const DefaultPageSize = 50

// Driver paginates keyword searches and stores each page as a batch.
type Driver struct {
	searcher Searcher
	store    Appender
	config   Config
	logger   zerolog.Logger
}

// NewDriver creates a pagination driver.
func NewDriver(searcher Searcher, store Appender, cfg Config) *Driver {
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	return &Driver{
		searcher: searcher,
		store:    store,
		config:   cfg,
		logger:   log.With().Str("component", "pagination").Logger(),
	}
}

// Collect paginates each keyword independently and returns one result per
// keyword, in input order. A failed keyword never aborts the others.
func (d *Driver) Collect(ctx context.Context, keywords []string) []KeywordResult {
	results := make([]KeywordResult, 0, len(keywords))
	for _, keyword := range keywords {
		result := d.collectKeyword(ctx, keyword)
		keywordsTotal.WithLabelValues(string(result.Status)).Inc()
		results = append(results, result)
	}
	return results
}

// collectKeyword walks one keyword from offset 0 until the declared total
// is exhausted or a page definitively fails.
func (d *Driver) collectKeyword(ctx context.Context, keyword string) KeywordResult {
	result := KeywordResult{Keyword: keyword, Status: StatusExhausted}
	offset := 0

	for {
		// Cancellation is honored between pages, never mid-write.
		if err := ctx.Err(); err != nil {
			result.Status = StatusFailed
			result.Err = fmt.Errorf("pagination cancelled: %w", err)
			return result
		}

		req := catalog.SearchRequest{
			Keyword:        keyword,
			Limit:          d.config.PageSize,
			Offset:         offset,
			ManufacturerID: d.config.ManufacturerID,
		}

		resp, err := d.searcher.Search(ctx, req)
		if err != nil {
			// A sentinel from the client ends pagination for this keyword.
			// It does not mean the data is exhausted, which is why the
			// result is tagged Failed rather than Exhausted.
			d.logger.Warn().
				Err(err).
				Str("keyword", keyword).
				Int("offset", offset).
				Msg("Page fetch failed, stopping pagination for keyword")
			result.Status = StatusFailed
			result.Err = err
			return result
		}

		if resp.TotalCount == 0 {
			d.logger.Info().Str("keyword", keyword).Msg("No products for keyword")
			return result
		}

		batch := catalog.NewSearchBatch(req, d.pageURL(offset), resp.Records)
		if err := d.store.Append(batch, d.config.StorePath); err != nil {
			// The store already emitted the batch to its fallback sink;
			// pagination carries on so later pages still land somewhere.
			d.logger.Warn().
				Err(err).
				Str("keyword", keyword).
				Int("offset", offset).
				Msg("Batch not persisted")
		}

		pagesFetchedTotal.Inc()
		result.Batches++
		result.Records += len(resp.Records)

		d.logger.Info().
			Str("keyword", keyword).
			Int("offset", offset).
			Int("records", len(resp.Records)).
			Int("total_count", resp.TotalCount).
			Msg("Stored page")

		offset += d.config.PageSize

		// The latest reported total is trusted even when it shrinks
		// between pages; that can cut a run short, accepted as
		// best-effort.
		if offset >= resp.TotalCount {
			return result
		}
	}
}

func (d *Driver) pageURL(offset int) string {
	return fmt.Sprintf("/products/v4/search/keyword?offset=%d&limit=%d", offset, d.config.PageSize)
}

// Failed filters results down to the keywords that did not finish.
func Failed(results []KeywordResult) []KeywordResult {
	var failed []KeywordResult
	for _, r := range results {
		if r.Status == StatusFailed {
			failed = append(failed, r)
		}
	}
	return failed
}

// IsCancelled reports whether a keyword failure came from context
// cancellation rather than the vendor.
func IsCancelled(r KeywordResult) bool {
	return r.Err != nil && (errors.Is(r.Err, context.Canceled) || errors.Is(r.Err, context.DeadlineExceeded))
}

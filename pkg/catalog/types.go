// Package catalog defines the data model shared by the DigiKey client,
// the pagination driver, and the JSON batch store.
package catalog

import "time"

// TimestampFormat is the wire format for batch timestamps on disk.
// Matches "YYYY-MM-DD HH:MM:SS" in UTC.
const TimestampFormat = "2006-01-02 15:04:05"

// VendorRecord is one product record exactly as returned by the vendor.
// The core passes it through untouched; only the mapper interprets fields.
type VendorRecord map[string]any

// String returns the string value of a top-level field, or "" when the
// field is absent or not a string.
func (r VendorRecord) String(key string) string {
	if s, ok := r[key].(string); ok {
		return s
	}
	return ""
}

// SearchRequest describes one keyword-search page request.
type SearchRequest struct {
	Keyword        string
	Limit          int
	Offset         int
	ManufacturerID int
}

// SearchResponse is the subset of the keyword-search response the core
// needs to drive pagination.
type SearchResponse struct {
	// TotalCount is the vendor-reported total result count. It is
	// authoritative for pagination termination and may exceed the number
	// of records in any single page.
	TotalCount int
	Records    []VendorRecord
}

// BatchMetadata describes how a batch was obtained.
type BatchMetadata struct {
	URL            string `json:"url,omitempty"`
	Keyword        string `json:"keyword,omitempty"`
	ProductNumber  string `json:"product_number,omitempty"`
	ManufacturerID int    `json:"manufacturer_id,omitempty"`
	Offset         int    `json:"offset"`
	Limit          int    `json:"limit,omitempty"`
	ItemCount      int    `json:"item_count"`
	Endpoint       string `json:"endpoint,omitempty"`
	Timestamp      string `json:"timestamp"`
}

// Batch is one fetched page plus metadata, the atomic unit of persistence.
type Batch struct {
	Metadata BatchMetadata  `json:"metadata"`
	Records  []VendorRecord `json:"products"`
}

// NewSearchBatch builds a batch for one keyword-search page.
func NewSearchBatch(req SearchRequest, url string, records []VendorRecord) Batch {
	return Batch{
		Metadata: BatchMetadata{
			URL:            url,
			Keyword:        req.Keyword,
			ManufacturerID: req.ManufacturerID,
			Offset:         req.Offset,
			Limit:          req.Limit,
			ItemCount:      len(records),
			Timestamp:      time.Now().UTC().Format(TimestampFormat),
		},
		Records: records,
	}
}

// NewDetailBatch builds a batch for one product-detail fetch.
func NewDetailBatch(productNumber string, manufacturerID int, records []VendorRecord) Batch {
	return Batch{
		Metadata: BatchMetadata{
			ProductNumber:  productNumber,
			ManufacturerID: manufacturerID,
			ItemCount:      len(records),
			Endpoint:       "ProductDetails",
			Timestamp:      time.Now().UTC().Format(TimestampFormat),
		},
		Records: records,
	}
}

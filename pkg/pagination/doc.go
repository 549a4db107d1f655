// Package pagination walks keyword-search result sets page by page.
//
// The vendor paginates with an offset/limit window and reports an
// authoritative total count on every page. For each keyword the driver
// fetches pages sequentially, hands every page to the store before
// requesting the next one (partial progress survives a crash mid-run), and
// stops when the window passes the most recently reported total.
//
// Example usage:
//
//	driver := pagination.NewDriver(digikeyClient, jsonStore, pagination.Config{
//		PageSize:       50,
//		ManufacturerID: 2946,
//		StorePath:      "api_responses.json",
//	})
//	results := driver.Collect(ctx, []string{"Amplifiers"})
//
// Each keyword yields a tagged result: Exhausted when the data ran out,
// Failed when retries were exhausted or the run was cancelled.
package pagination

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Zeeshan138063/digikey-client/pkg/pagination"
	"github.com/Zeeshan138063/digikey-client/pkg/store"
)

func scrapeCmd() *cobra.Command {
	var (
		manufacturerID int
		pageSize       int
	)

	cmd := &cobra.Command{
		Use:   "scrape <keyword>...",
		Short: "Walk the keyword search pages and store every batch",
		Long: "Fetches all result pages for each keyword and appends every page\n" +
			"as one batch to the search collection. A failed keyword does not\n" +
			"abort the remaining keywords.",
		Example: `  digikey-scraper scrape "Amplifiers"
  digikey-scraper scrape "Heat Shrink" "Connectors" --manufacturer-id 296 --page-size 25`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScrape(cmd, args, manufacturerID, pageSize)
		},
	}
	cmd.Flags().IntVar(&manufacturerID, "manufacturer-id", 0, "filter results to one manufacturer")
	cmd.Flags().IntVar(&pageSize, "page-size", 0, "results per page (default from config)")

	return cmd
}

func runScrape(cmd *cobra.Command, keywords []string, manufacturerID, pageSize int) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	apiClient, _, err := buildClient(cfg)
	if err != nil {
		return err
	}

	if pageSize <= 0 {
		pageSize = cfg.Storage.PageSize
	}

	driver := pagination.NewDriver(apiClient, newStore(), pagination.Config{
		PageSize:       pageSize,
		ManufacturerID: manufacturerID,
		StorePath:      collectionPath(cfg, store.SearchFileName),
	})

	results := driver.Collect(cmd.Context(), keywords)

	for _, r := range results {
		switch r.Status {
		case pagination.StatusExhausted:
			fmt.Printf("%s: %d batches, %d records\n", r.Keyword, r.Batches, r.Records)
		case pagination.StatusFailed:
			fmt.Printf("%s: FAILED after %d batches: %v\n", r.Keyword, r.Batches, r.Err)
		}
	}

	if failed := pagination.Failed(results); len(failed) > 0 {
		return fmt.Errorf("%d of %d keywords failed", len(failed), len(results))
	}
	return nil
}

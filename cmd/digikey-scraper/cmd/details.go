package cmd

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Zeeshan138063/digikey-client/pkg/catalog"
	"github.com/Zeeshan138063/digikey-client/pkg/client"
	"github.com/Zeeshan138063/digikey-client/pkg/mapper"
	"github.com/Zeeshan138063/digikey-client/pkg/store"
)

func detailsCmd() *cobra.Command {
	var (
		manufacturerID int
		fromSearch     bool
	)

	cmd := &cobra.Command{
		Use:   "details [<product-number>...]",
		Short: "Fetch, map, and store product detail records",
		Long: "Fetches the detail record for each product number, maps it to the\n" +
			"normalized schema, and appends one batch per product to both the\n" +
			"mapped and the raw detail collections. Requests are paced to stay\n" +
			"inside the vendor rate limit.",
		Example: `  digikey-scraper details ATQ209 BC547 --manufacturer-id 296
  digikey-scraper details --from-search`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDetails(cmd, args, manufacturerID, fromSearch)
		},
	}
	cmd.Flags().IntVar(&manufacturerID, "manufacturer-id", 0, "manufacturer id for exact matching")
	cmd.Flags().BoolVar(&fromSearch, "from-search", false,
		"fetch details for every product in the stored search collection")

	return cmd
}

func runDetails(cmd *cobra.Command, args []string, manufacturerID int, fromSearch bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	apiClient, _, err := buildClient(cfg)
	if err != nil {
		return err
	}
	st := newStore()

	productNumbers := args
	if fromSearch {
		numbers, err := searchedProductNumbers(st, collectionPath(cfg, store.SearchFileName))
		if err != nil {
			return err
		}
		productNumbers = append(productNumbers, numbers...)
	}
	if len(productNumbers) == 0 {
		return fmt.Errorf("no product numbers given (pass arguments or --from-search)")
	}

	mappedPath := collectionPath(cfg, store.DetailsMappedFileName)
	rawPath := collectionPath(cfg, store.DetailsRawFileName)
	detailMapper := mapper.NewDetailMapper()

	var fetched, missing, skipped, failed int
	for _, pn := range productNumbers {
		record, err := apiClient.ProductDetails(cmd.Context(), pn, manufacturerID)
		if errors.Is(err, client.ErrNotFound) {
			missing++
			continue
		}
		if err != nil {
			if errors.Is(err, client.ErrContextCancelled) {
				return err
			}
			failed++
			fmt.Printf("%s: FAILED: %v\n", pn, err)
			continue
		}
		fetched++

		mapped, skips := mapper.MapBatch(detailMapper, []catalog.VendorRecord{record})
		skipped += skips

		if len(mapped) > 0 {
			batch := catalog.NewDetailBatch(pn, manufacturerID, mappedRecords(mapped))
			if err := st.Append(batch, mappedPath); err != nil {
				fmt.Printf("%s: store mapped batch: %v\n", pn, err)
			}
		}

		rawBatch := catalog.NewDetailBatch(pn, manufacturerID, []catalog.VendorRecord{record})
		if err := st.Append(rawBatch, rawPath); err != nil {
			fmt.Printf("%s: store raw batch: %v\n", pn, err)
		}
	}

	fmt.Printf("details: %d fetched, %d not found, %d mapping skips, %d failed\n",
		fetched, missing, skipped, failed)

	if failed > 0 {
		return fmt.Errorf("%d of %d detail fetches failed", failed, len(productNumbers))
	}
	return nil
}

// searchedProductNumbers extracts the distinct product numbers from the
// stored search collection, in first-seen order.
func searchedProductNumbers(st *store.Store, path string) ([]string, error) {
	batches, err := st.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load search collection: %w", err)
	}

	seen := make(map[string]bool)
	var numbers []string
	for _, batch := range batches {
		for _, record := range batch.Records {
			pn := record.String("ManufacturerProductNumber")
			if pn == "" || seen[pn] {
				continue
			}
			seen[pn] = true
			numbers = append(numbers, pn)
		}
	}
	return numbers, nil
}

// mappedRecords converts normalized products back to the generic record
// shape the store persists.
func mappedRecords(products []mapper.NormalizedProduct) []catalog.VendorRecord {
	records := make([]catalog.VendorRecord, 0, len(products))
	for _, p := range products {
		data, err := json.Marshal(p)
		if err != nil {
			continue
		}
		var record catalog.VendorRecord
		if err := json.Unmarshal(data, &record); err != nil {
			continue
		}
		records = append(records, record)
	}
	return records
}

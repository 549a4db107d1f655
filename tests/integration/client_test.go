package integration

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/Zeeshan138063/digikey-client/internal/testutil"
	"github.com/Zeeshan138063/digikey-client/pkg/auth"
	"github.com/Zeeshan138063/digikey-client/pkg/cache"
	"github.com/Zeeshan138063/digikey-client/pkg/catalog"
	"github.com/Zeeshan138063/digikey-client/pkg/client"
	"github.com/Zeeshan138063/digikey-client/pkg/mapper"
	"github.com/Zeeshan138063/digikey-client/pkg/pagination"
	"github.com/Zeeshan138063/digikey-client/pkg/store"
)

// setupRedis creates a Redis container for integration testing.
func setupRedis(t *testing.T) (*redis.Client, func()) {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr: host + ":" + port.Port(),
	})

	cleanup := func() {
		redisClient.Close()
		container.Terminate(ctx)
	}

	return redisClient, cleanup
}

// newProvider creates a file-backed credential provider pointed at the mock
// token endpoint, with its token file in a test temp dir.
func newProvider(t *testing.T, mock *testutil.MockAPI) *auth.FileProvider {
	t.Helper()

	provider, err := auth.NewFileProvider("it-client-id", "it-secret", mock.TokenURL(),
		t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create provider: %v", err)
	}
	return provider
}

func newClient(t *testing.T, mock *testutil.MockAPI, cacheManager *cache.Manager) *client.Client {
	t.Helper()

	c, err := client.New(client.Config{
		ClientID:    "it-client-id",
		Credentials: newProvider(t, mock),
		BaseURL:     mock.URL(),
		Cache:       cacheManager,
	})
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	c.SetSleep(func(ctx context.Context, d time.Duration) error { return nil })
	return c
}

// TestFullScrapeFlow walks a 120 product catalog at page size 50 and checks
// every stored batch: offsets 0/50/100, sizes 50/50/20, valid JSON on disk,
// monotonic timestamps.
func TestFullScrapeFlow(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SeedGeneratedProducts(120)

	c := newClient(t, mock, nil)
	storePath := filepath.Join(t.TempDir(), store.SearchFileName)

	driver := pagination.NewDriver(c, store.New(os.Stdout), pagination.Config{
		PageSize:  50,
		StorePath: storePath,
	})

	results := driver.Collect(context.Background(), []string{"Amplifiers"})
	if len(results) != 1 {
		t.Fatalf("results = %d, want 1", len(results))
	}
	r := results[0]
	if r.Status != pagination.StatusExhausted {
		t.Fatalf("status = %s (err %v), want exhausted", r.Status, r.Err)
	}
	if r.Batches != 3 || r.Records != 120 {
		t.Errorf("collected %d batches, %d records, want 3/120", r.Batches, r.Records)
	}

	if got := mock.GetSearchOffsets(); len(got) != 3 || got[0] != 0 || got[1] != 50 || got[2] != 100 {
		t.Errorf("search offsets = %v, want [0 50 100]", got)
	}

	// The collection on disk must be a valid JSON array of batches.
	data, err := os.ReadFile(storePath)
	if err != nil {
		t.Fatalf("read collection: %v", err)
	}
	var batches []catalog.Batch
	if err := json.Unmarshal(data, &batches); err != nil {
		t.Fatalf("collection is not valid JSON: %v", err)
	}
	if len(batches) != 3 {
		t.Fatalf("stored batches = %d, want 3", len(batches))
	}

	wantSizes := []int{50, 50, 20}
	for i, batch := range batches {
		if batch.Metadata.ItemCount != wantSizes[i] || len(batch.Records) != wantSizes[i] {
			t.Errorf("batch %d size = %d/%d, want %d",
				i, batch.Metadata.ItemCount, len(batch.Records), wantSizes[i])
		}
		if batch.Metadata.Offset != i*50 {
			t.Errorf("batch %d offset = %d, want %d", i, batch.Metadata.Offset, i*50)
		}
		if batch.Metadata.Keyword != "Amplifiers" {
			t.Errorf("batch %d keyword = %q", i, batch.Metadata.Keyword)
		}
		if i > 0 && batch.Metadata.Timestamp < batches[i-1].Metadata.Timestamp {
			t.Errorf("batch %d timestamp %q before batch %d timestamp %q",
				i, batch.Metadata.Timestamp, i-1, batches[i-1].Metadata.Timestamp)
		}
	}

	// The token was fetched lazily from the mock endpoint.
	if mock.GetTokenCount() < 1 {
		t.Errorf("token requests = %d, want >= 1", mock.GetTokenCount())
	}
}

// TestScrapeSurvivesTransientFailures checks that a search page that fails
// twice with 503 still lands in the collection after retries.
func TestScrapeSurvivesTransientFailures(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SeedGeneratedProducts(30)

	mock.SetHandler("/products/v4/search/keyword", testutil.NewFlakyHandler(2,
		func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]any{
				"ProductsCount": 30,
				"Products":      make([]map[string]any, 30),
			})
		}))

	c := newClient(t, mock, nil)
	storePath := filepath.Join(t.TempDir(), store.SearchFileName)
	driver := pagination.NewDriver(c, store.New(os.Stdout), pagination.Config{
		PageSize:  50,
		StorePath: storePath,
	})

	results := driver.Collect(context.Background(), []string{"resistor"})
	if results[0].Status != pagination.StatusExhausted {
		t.Fatalf("status = %s (err %v), want exhausted after retries", results[0].Status, results[0].Err)
	}
	if results[0].Records != 30 {
		t.Errorf("records = %d, want 30", results[0].Records)
	}
}

// TestDetailsFetchAndMap fetches a seeded product's detail record and pushes
// it through the mapper into a mapped collection batch.
func TestDetailsFetchAndMap(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SeedGeneratedProducts(10)

	c := newClient(t, mock, nil)

	record, err := c.ProductDetails(context.Background(), "PN-5", 0)
	if err != nil {
		t.Fatalf("ProductDetails() error = %v", err)
	}

	mapped, skipped := mapper.MapBatch(mapper.NewDetailMapper(), []catalog.VendorRecord{record})
	if skipped != 0 || len(mapped) != 1 {
		t.Fatalf("mapped = %d, skipped = %d, want 1/0", len(mapped), skipped)
	}
	if mapped[0].ManufacturerPartNumber != "PN-5" {
		t.Errorf("ManufacturerPartNumber = %q, want PN-5", mapped[0].ManufacturerPartNumber)
	}
	if mapped[0].ProductNameEn != "Test product 5" {
		t.Errorf("ProductNameEn = %q", mapped[0].ProductNameEn)
	}

	st := store.New(os.Stdout)
	mappedPath := filepath.Join(t.TempDir(), store.DetailsMappedFileName)
	batch := catalog.NewDetailBatch("PN-5", 0, []catalog.VendorRecord{record})
	if err := st.Append(batch, mappedPath); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	loaded, err := st.Load(mappedPath)
	if err != nil || len(loaded) != 1 {
		t.Fatalf("Load() = %d batches, err %v, want 1", len(loaded), err)
	}
	if loaded[0].Metadata.Endpoint != "ProductDetails" {
		t.Errorf("endpoint = %q, want ProductDetails", loaded[0].Metadata.Endpoint)
	}
}

// TestDetailsNotFound checks the unknown product short-circuit end to end.
func TestDetailsNotFound(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SeedGeneratedProducts(3)

	c := newClient(t, mock, nil)

	before := mock.GetRequestCount()
	_, err := c.ProductDetails(context.Background(), "GHOST-99", 0)
	if !errors.Is(err, client.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
	// Exactly one detail request, no retries.
	if got := mock.GetRequestCount() - before; got > 2 {
		t.Errorf("requests for 404 = %d, want at most detail + token", got)
	}
}

// TestDetailCacheServesRepeatLookups runs the detail path against a real
// Redis and checks the second lookup never reaches the API.
func TestDetailCacheServesRepeatLookups(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SeedGeneratedProducts(5)

	manager := cache.NewManager(redisClient, time.Minute)
	c := newClient(t, mock, manager)
	ctx := context.Background()

	first, err := c.ProductDetails(ctx, "PN-2", 296)
	if err != nil {
		t.Fatalf("First lookup failed: %v", err)
	}

	after := mock.GetRequestCount()

	second, err := c.ProductDetails(ctx, "PN-2", 296)
	if err != nil {
		t.Fatalf("Second lookup failed: %v", err)
	}

	if mock.GetRequestCount() != after {
		t.Errorf("second lookup reached the API (%d -> %d requests)",
			after, mock.GetRequestCount())
	}

	firstJSON, _ := json.Marshal(first)
	secondJSON, _ := json.Marshal(second)
	if string(firstJSON) != string(secondJSON) {
		t.Error("cached record differs from the original response")
	}
}

// Package cmd implements the digikey-scraper CLI commands.
package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/Zeeshan138063/digikey-client/internal/config"
	"github.com/Zeeshan138063/digikey-client/pkg/auth"
	"github.com/Zeeshan138063/digikey-client/pkg/cache"
	"github.com/Zeeshan138063/digikey-client/pkg/client"
	"github.com/Zeeshan138063/digikey-client/pkg/logging"
	"github.com/Zeeshan138063/digikey-client/pkg/ratelimit"
	"github.com/Zeeshan138063/digikey-client/pkg/store"
)

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "digikey-scraper",
		Short: "Scrape the DigiKey product catalog",
		Long: "digikey-scraper walks the DigiKey keyword-search API page by page,\n" +
			"stores every response batch in growing JSON collections, and fetches\n" +
			"per-product detail records with rate-limited bulk requests.",
		SilenceUsage: true,
	}
)

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().
		StringVar(&cfgFile, "config", "", "config file (default $HOME/.config/digikey-scraper/config.yaml)")

	rootCmd.AddCommand(scrapeCmd())
	rootCmd.AddCommand(detailsCmd())
	rootCmd.AddCommand(tokenCmd())
}

// loadConfig reads the configuration and installs the global logger.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}

	logging.Setup(logging.Config{
		Level:  logging.LogLevel(cfg.Logging.Level),
		Pretty: cfg.Logging.Pretty,
	})

	return cfg, nil
}

// buildClient assembles the credential provider and API client from the
// configuration. The returned provider is the same one the client uses, so
// the token subcommand can force refreshes through it.
func buildClient(cfg *config.Config) (*client.Client, *auth.FileProvider, error) {
	if err := os.MkdirAll(cfg.Storage.Dir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("create storage dir: %w", err)
	}

	tokenURL := cfg.API.TokenURL
	if tokenURL == "" {
		base := client.ProductionBaseURL
		if cfg.API.Sandbox {
			base = client.SandboxBaseURL
		}
		tokenURL = base + "/v1/oauth2/token"
	}

	provider, err := auth.NewFileProvider(cfg.API.ClientID, cfg.API.ClientSecret, tokenURL, cfg.Storage.Dir)
	if err != nil {
		return nil, nil, err
	}

	clientCfg := client.Config{
		ClientID:    cfg.API.ClientID,
		Credentials: provider,
		Sandbox:     cfg.API.Sandbox,
		Locale: client.Locale{
			Site:     cfg.API.LocaleSite,
			Language: cfg.API.LocaleLang,
			Currency: cfg.API.LocaleCur,
		},
		Retry: client.RetryConfig{
			MaxRetries:    cfg.Retry.MaxRetries,
			BackoffFactor: cfg.Retry.BackoffFactor,
		},
		Timeout: cfg.API.Timeout,
		Pacer:   ratelimit.NewPacer(cfg.Pacing.PerSecond, cfg.Pacing.Burst, logging.NewLogger("pacer")),
	}

	if cfg.Cache.Enabled {
		redisClient := redis.NewClient(&redis.Options{
			Addr: cfg.Cache.Addr,
			DB:   cfg.Cache.DB,
		})
		clientCfg.Cache = cache.NewManager(redisClient, cfg.Cache.TTL)
	}

	c, err := client.New(clientCfg)
	if err != nil {
		return nil, nil, err
	}
	return c, provider, nil
}

// collectionPath resolves a collection file name inside the storage dir.
func collectionPath(cfg *config.Config, name string) string {
	return filepath.Join(cfg.Storage.Dir, name)
}

func newStore() *store.Store {
	return store.New(os.Stdout)
}

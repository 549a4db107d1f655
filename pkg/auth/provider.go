// Package auth supplies bearer credentials for the DigiKey API.
//
// Token issuance itself is opaque to the rest of the client: a Provider
// hands out the best-known credential and can be asked to mint a fresh one.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var tokenRefreshesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "digikey_token_refreshes_total",
	Help: "Total token refresh attempts by outcome",
}, []string{"outcome"})

// ErrAuth is returned when the token endpoint is unreachable or rejects
// the configured credentials.
var ErrAuth = errors.New("authentication failed")

// IsAuthError reports whether err originated from a failed token refresh.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrAuth)
}

// TokenFileName is the durable credential cache file under the storage path.
const TokenFileName = "token_storage.json"

// Credential is a bearer token plus the bookkeeping needed to persist it.
type Credential struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type,omitempty"`
	ExpiresIn   int       `json:"expires_in,omitempty"`
	ObtainedAt  time.Time `json:"obtained_at,omitempty"`
}

// Provider supplies bearer credentials on demand.
type Provider interface {
	// Current returns the best-known credential without network I/O when
	// one is cached. It refreshes lazily when no credential exists yet.
	Current(ctx context.Context) (Credential, error)

	// Refresh forces a new token fetch and replaces the cached value.
	// Failure is reported as ErrAuth.
	Refresh(ctx context.Context) (Credential, error)
}

// FileProvider stores the current credential in memory and mirrors it to a
// token file under the storage path, so a restarted process reuses the
// token instead of minting a new one.
type FileProvider struct {
	clientID     string
	clientSecret string
	tokenURL     string
	tokenFile    string
	httpClient   *http.Client
	logger       zerolog.Logger

	refreshMu sync.Mutex // serializes refreshes; see Refresh

	mu         sync.Mutex // guards cached + generation
	cached     *Credential
	generation uint64
}

// NewFileProvider creates a provider that exchanges client credentials at
// tokenURL and persists tokens under storagePath.
func NewFileProvider(clientID, clientSecret, tokenURL, storagePath string) (*FileProvider, error) {
	if clientID == "" || clientSecret == "" {
		return nil, fmt.Errorf("client id and secret are required")
	}
	if tokenURL == "" {
		return nil, fmt.Errorf("token url is required")
	}

	p := &FileProvider{
		clientID:     clientID,
		clientSecret: clientSecret,
		tokenURL:     tokenURL,
		tokenFile:    filepath.Join(storagePath, TokenFileName),
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		logger:       log.With().Str("component", "auth").Logger(),
	}
	return p, nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (p *FileProvider) SetHTTPClient(client *http.Client) {
	p.httpClient = client
}

// Current returns the cached credential, falling back to the token file and
// finally to a refresh when nothing is stored yet.
func (p *FileProvider) Current(ctx context.Context) (Credential, error) {
	p.mu.Lock()
	if p.cached != nil {
		cred := *p.cached
		p.mu.Unlock()
		return cred, nil
	}

	if cred, err := p.loadTokenFile(); err == nil {
		p.cached = &cred
		p.mu.Unlock()
		p.logger.Debug().Str("path", p.tokenFile).Msg("Loaded credential from token file")
		return cred, nil
	} else if !os.IsNotExist(err) {
		p.logger.Warn().Err(err).Str("path", p.tokenFile).Msg("Token file unreadable, refreshing")
	}
	p.mu.Unlock()

	return p.Refresh(ctx)
}

// Refresh mints a new token and replaces the cached value. Concurrent
// callers collapse into a single in-flight refresh: whoever arrives while a
// refresh is running waits for it and receives its result.
func (p *FileProvider) Refresh(ctx context.Context) (Credential, error) {
	p.mu.Lock()
	startGen := p.generation
	p.mu.Unlock()

	p.refreshMu.Lock()
	defer p.refreshMu.Unlock()

	// Another caller may have completed a refresh while we waited; reuse
	// its result instead of hitting the endpoint again.
	p.mu.Lock()
	if p.generation != startGen && p.cached != nil {
		cred := *p.cached
		p.mu.Unlock()
		return cred, nil
	}
	p.mu.Unlock()

	cred, err := p.fetchToken(ctx)
	if err != nil {
		tokenRefreshesTotal.WithLabelValues("error").Inc()
		p.logger.Error().Err(err).Msg("Token refresh failed")
		return Credential{}, err
	}

	p.mu.Lock()
	p.cached = &cred
	p.generation++
	p.mu.Unlock()

	if err := p.writeTokenFile(cred); err != nil {
		// The in-memory credential is still valid; losing the mirror only
		// costs a refresh after the next restart.
		p.logger.Warn().Err(err).Str("path", p.tokenFile).Msg("Failed to persist token file")
	}

	tokenRefreshesTotal.WithLabelValues("success").Inc()
	p.logger.Info().Msg("Credential refreshed")
	return cred, nil
}

// fetchToken performs the client-credentials exchange.
func (p *FileProvider) fetchToken(ctx context.Context) (Credential, error) {
	form := url.Values{
		"client_id":     {p.clientID},
		"client_secret": {p.clientSecret},
		"grant_type":    {"client_credentials"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.tokenURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return Credential{}, fmt.Errorf("%w: create request: %v", ErrAuth, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return Credential{}, fmt.Errorf("%w: %v", ErrAuth, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Credential{}, fmt.Errorf("%w: read response: %v", ErrAuth, err)
	}

	if resp.StatusCode != http.StatusOK {
		return Credential{}, fmt.Errorf("%w: token endpoint returned %d", ErrAuth, resp.StatusCode)
	}

	var cred Credential
	if err := json.Unmarshal(body, &cred); err != nil {
		return Credential{}, fmt.Errorf("%w: decode token response: %v", ErrAuth, err)
	}
	if cred.AccessToken == "" {
		return Credential{}, fmt.Errorf("%w: token endpoint returned no access_token", ErrAuth)
	}
	cred.ObtainedAt = time.Now().UTC()

	return cred, nil
}

func (p *FileProvider) loadTokenFile() (Credential, error) {
	data, err := os.ReadFile(p.tokenFile)
	if err != nil {
		return Credential{}, err
	}

	var cred Credential
	if err := json.Unmarshal(data, &cred); err != nil {
		return Credential{}, fmt.Errorf("parse token file: %w", err)
	}
	if cred.AccessToken == "" {
		return Credential{}, fmt.Errorf("token file has no access_token")
	}
	return cred, nil
}

func (p *FileProvider) writeTokenFile(cred Credential) error {
	data, err := json.MarshalIndent(cred, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal credential: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(p.tokenFile), 0o755); err != nil {
		return fmt.Errorf("create storage dir: %w", err)
	}

	tmp := p.tokenFile + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write token file: %w", err)
	}
	return os.Rename(tmp, p.tokenFile)
}

// Package store persists fetched batches as accumulating JSON array files.
//
// Each file holds one PersistedCollection: an ordered, append-only JSON
// array of batches. The file is rewritten in full on every append via a
// temp-file-and-rename protocol, so a reader never observes a half-written
// collection.
package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Zeeshan138063/digikey-client/pkg/catalog"
)

var (
	appendsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "digikey_store_appends_total",
		Help: "Total batch appends by outcome",
	}, []string{"outcome"})

	corruptionRecoveredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "digikey_store_corruption_recovered_total",
		Help: "Times unreadable prior store content was discarded",
	})
)

// Well-known collection files under the storage path.
const (
	SearchFileName        = "api_responses.json"
	DetailsMappedFileName = "product_details_mapped.json"
	DetailsRawFileName    = "product_details_raw.json"
)

// Store appends batches to JSON collection files.
type Store struct {
	fallback io.Writer
	logger   zerolog.Logger
}

// New creates a store. Batches that cannot be written to disk are emitted
// to fallback as a best-effort secondary sink; nil means os.Stdout.
func New(fallback io.Writer) *Store {
	if fallback == nil {
		fallback = os.Stdout
	}
	return &Store{
		fallback: fallback,
		logger:   log.With().Str("component", "store").Logger(),
	}
}

// Append adds one batch to the collection at path, preserving all prior
// batches in order.
//
// Unparsable prior content is discarded with a warning rather than failing
// the append; a file holding a single object instead of an array is wrapped
// into a one-element collection for backward compatibility. A failed write
// emits the batch to the fallback sink and returns the error; it never
// panics past this component.
func (s *Store) Append(batch catalog.Batch, path string) error {
	existing := s.readCollection(path)

	raw, err := json.Marshal(batch)
	if err != nil {
		appendsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("marshal batch: %w", err)
	}
	existing = append(existing, raw)

	if err := s.writeCollection(path, existing); err != nil {
		appendsTotal.WithLabelValues("error").Inc()
		s.logger.Error().Err(err).Str("path", path).Msg("Failed to write collection, emitting batch to fallback sink")
		s.emitFallback(batch)
		return err
	}

	appendsTotal.WithLabelValues("success").Inc()
	s.logger.Info().
		Str("path", path).
		Int("item_count", batch.Metadata.ItemCount).
		Int("collection_len", len(existing)).
		Msg("Batch appended")

	return nil
}

// Load reads the full collection at path. A missing file yields an empty
// collection.
func (s *Store) Load(path string) ([]catalog.Batch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read collection: %w", err)
	}

	var batches []catalog.Batch
	if err := json.Unmarshal(data, &batches); err != nil {
		return nil, fmt.Errorf("parse collection: %w", err)
	}
	return batches, nil
}

// readCollection parses prior content as raw messages so existing batches
// pass through byte-for-byte untouched by this append.
func (s *Store) readCollection(path string) []json.RawMessage {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn().Err(err).Str("path", path).Msg("Existing collection unreadable, starting fresh")
			corruptionRecoveredTotal.Inc()
		}
		return nil
	}

	var existing []json.RawMessage
	if err := json.Unmarshal(data, &existing); err == nil {
		return existing
	}

	// Older runs wrote a single object; wrap it into a one-element
	// collection instead of discarding it.
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' && json.Valid(trimmed) {
		s.logger.Warn().Str("path", path).Msg("Collection holds a single object, wrapping into an array")
		return []json.RawMessage{json.RawMessage(trimmed)}
	}

	s.logger.Warn().Str("path", path).Msg("Existing collection is corrupted, starting fresh")
	corruptionRecoveredTotal.Inc()
	return nil
}

// writeCollection replaces the file with the full collection atomically.
func (s *Store) writeCollection(path string, collection []json.RawMessage) error {
	data, err := json.MarshalIndent(collection, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal collection: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create storage dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".collection-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace collection: %w", err)
	}
	return nil
}

// emitFallback dumps the batch to the secondary sink so the data survives
// somewhere even when the disk write failed.
func (s *Store) emitFallback(batch catalog.Batch) {
	enc := json.NewEncoder(s.fallback)
	enc.SetIndent("", "  ")
	if err := enc.Encode(batch); err != nil {
		s.logger.Error().Err(err).Msg("Fallback sink write failed, batch lost")
	}
}

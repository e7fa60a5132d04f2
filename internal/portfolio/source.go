// Package portfolio supplies the current asset snapshot handed to inference jobs.
// Bookkeeping itself lives with the trading side; this package only reads its output.
package portfolio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/rs/zerolog"
)

// Assets maps a currency code to its balance.
type Assets map[string]float64

// Currencies returns the currency codes in a stable order.
func (a Assets) Currencies() []string {
	codes := make([]string, 0, len(a))
	for code := range a {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// Clone returns an independent copy.
func (a Assets) Clone() Assets {
	out := make(Assets, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// InitialAssets is the starting balance used before any trade has been booked.
func InitialAssets() Assets {
	return Assets{
		"JPY": 100000.0,
		"USD": 0.0,
		"EUR": 0.0,
	}
}

// Source produces the current asset snapshot.
type Source interface {
	CurrentAssets(ctx context.Context) (Assets, error)
}

// FileSource reads balances from a JSON object file such as {"JPY": 98000, "USD": 13.2}.
// A missing file yields InitialAssets.
type FileSource struct {
	path string
	log  zerolog.Logger
}

// NewFileSource creates a balance file reader. An empty path always yields InitialAssets.
func NewFileSource(path string, log zerolog.Logger) *FileSource {
	return &FileSource{
		path: path,
		log:  log.With().Str("component", "balance_source").Logger(),
	}
}

// CurrentAssets implements Source.
func (s *FileSource) CurrentAssets(ctx context.Context) (Assets, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.path == "" {
		return InitialAssets(), nil
	}

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		s.log.Warn().Str("path", s.path).Msg("Balance file not found, using initial assets")
		return InitialAssets(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read balance file: %w", err)
	}

	var assets Assets
	if err := json.Unmarshal(data, &assets); err != nil {
		return nil, fmt.Errorf("failed to parse balance file %s: %w", s.path, err)
	}
	if assets == nil {
		assets = Assets{}
	}
	return assets, nil
}

// StaticSource always returns the same snapshot.
type StaticSource Assets

// CurrentAssets implements Source.
func (s StaticSource) CurrentAssets(ctx context.Context) (Assets, error) {
	return Assets(s).Clone(), nil
}

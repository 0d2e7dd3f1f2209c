// Package catalog manages instruments and the referential cleanup of
// everything derived from them.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"commodity-lab/internal/audit"
	"commodity-lab/internal/domain"
	"commodity-lab/internal/storage"
)

// Service manages the instrument catalog.
type Service struct {
	stores storage.Stores
	audit  *audit.Recorder
	log    zerolog.Logger
}

// NewService creates a catalog service over stores.
func NewService(stores storage.Stores, logger *zerolog.Logger) *Service {
	l := zerolog.Nop()
	if logger != nil {
		l = *logger
	}
	return &Service{
		stores: stores,
		audit:  audit.NewRecorder(stores.Audit, domain.AuditCatalog),
		log:    l.With().Str("component", "catalog").Logger(),
	}
}

// EnsureInstrument inserts inst or merges its non-empty metadata.
func (s *Service) EnsureInstrument(ctx context.Context, inst *domain.Instrument) error {
	if err := s.stores.Instruments.Upsert(ctx, inst); err != nil {
		return fmt.Errorf("upsert instrument %s: %w", inst.Ticker, err)
	}
	return nil
}

// UpdateMeta edits currency, unit and category of an existing instrument.
// Empty values keep what is stored.
func (s *Service) UpdateMeta(ctx context.Context, ticker, currency, unit, category string) error {
	tk := domain.NormalizeTicker(ticker)
	if _, err := s.stores.Instruments.GetByTicker(ctx, tk); err != nil {
		return fmt.Errorf("instrument %s: %w", tk, err)
	}
	return s.EnsureInstrument(ctx, &domain.Instrument{
		Ticker:   tk,
		Currency: currency,
		Unit:     unit,
		Category: strings.TrimSpace(category),
	})
}

// SetWatched flags or unflags every ticker. Unknown tickers are reported
// after the known ones were updated.
func (s *Service) SetWatched(ctx context.Context, tickers []string, watched bool) error {
	var missing []string
	for _, tk := range domain.NormalizeTickers(tickers) {
		err := s.stores.Instruments.SetWatched(ctx, tk, watched)
		if errors.Is(err, storage.ErrNotFound) {
			missing = append(missing, tk)
			continue
		}
		if err != nil {
			return fmt.Errorf("set watched %s: %w", tk, err)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", storage.ErrNotFound, strings.Join(missing, ", "))
	}
	return nil
}

// List returns instruments ordered by ticker.
func (s *Service) List(ctx context.Context, onlyWatched bool) ([]*domain.Instrument, error) {
	return s.stores.Instruments.List(ctx, onlyWatched)
}

// DeleteOptions controls DeleteTickers.
type DeleteOptions struct {
	// DeletePrices also removes raw bars of the requested tickers.
	DeletePrices bool
}

// DeleteResult reports what a delete removed.
type DeleteResult struct {
	Tickers     []string // requested and cascaded tickers, sorted
	Recipes     []string // derived tickers whose recipe was removed
	Transforms  []string // transform ids removed
	PriceRows   int
	DerivedRows int
	AuditRows   int
}

// DeleteTickers removes tickers and cascades through everything that
// depends on them: recipes defining or consuming a ticker and transforms
// using it as derived, base or FX are removed, and their derived tickers are
// deleted in turn. Each deleted ticker leaves one catalog audit entry.
func (s *Service) DeleteTickers(ctx context.Context, tickers []string, opts DeleteOptions) (*DeleteResult, error) {
	requested := domain.NormalizeTickers(tickers)
	result := &DeleteResult{}
	if len(requested) == 0 {
		return result, nil
	}

	explicit := make(map[string]bool, len(requested))
	for _, tk := range requested {
		explicit[tk] = true
	}

	queue := append([]string(nil), requested...)
	done := make(map[string]bool)
	for len(queue) > 0 {
		tk := queue[0]
		queue = queue[1:]
		if done[tk] {
			continue
		}
		done[tk] = true

		if opts.DeletePrices && explicit[tk] {
			n, err := s.stores.Prices.DeleteByTicker(ctx, tk)
			if err != nil {
				return result, fmt.Errorf("delete prices %s: %w", tk, err)
			}
			result.PriceRows += n
		}

		n, err := s.stores.Derived.DeleteByTicker(ctx, tk)
		if err != nil {
			return result, fmt.Errorf("delete derived %s: %w", tk, err)
		}
		result.DerivedRows += n

		recipes, err := s.stores.Recipes.DeleteReferencing(ctx, tk)
		if err != nil {
			return result, fmt.Errorf("delete recipes of %s: %w", tk, err)
		}
		for _, r := range recipes {
			result.Recipes = append(result.Recipes, r)
			queue = append(queue, r)
		}

		transforms, err := s.transformsUsing(ctx, tk)
		if err != nil {
			return result, err
		}
		removed, err := s.stores.Transforms.DeleteReferencing(ctx, tk)
		if err != nil {
			return result, fmt.Errorf("delete transforms of %s: %w", tk, err)
		}
		result.Transforms = append(result.Transforms, removed...)
		for _, t := range transforms {
			queue = append(queue, t.DerivedTicker)
		}

		n, err = s.stores.Audit.DeleteByTicker(ctx, tk)
		if err != nil {
			return result, fmt.Errorf("delete audit %s: %w", tk, err)
		}
		result.AuditRows += n

		if err := s.stores.Instruments.Delete(ctx, tk); err != nil {
			return result, fmt.Errorf("delete instrument %s: %w", tk, err)
		}
		result.Tickers = append(result.Tickers, tk)

		msg := "instrument deleted"
		if !explicit[tk] {
			msg = "instrument deleted by cascade"
		}
		if _, err := s.audit.Record(ctx, tk, domain.StatusSuccess, msg, nil); err != nil {
			s.log.Warn().Err(err).Str("ticker", tk).Msg("audit write failed")
		}
	}

	sort.Strings(result.Tickers)
	result.Recipes = dedupeSorted(result.Recipes)
	result.Transforms = dedupeSorted(result.Transforms)

	s.log.Info().Strs("tickers", result.Tickers).Strs("recipes", result.Recipes).
		Strs("transforms", result.Transforms).Msg("tickers deleted")
	return result, nil
}

func (s *Service) transformsUsing(ctx context.Context, ticker string) ([]*domain.Transform, error) {
	all, err := s.stores.Transforms.List(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("list transforms: %w", err)
	}
	var out []*domain.Transform
	for _, t := range all {
		if t.DerivedTicker == ticker || t.Uses(ticker) {
			out = append(out, t)
		}
	}
	return out, nil
}

func dedupeSorted(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	sort.Strings(in)
	out := in[:1]
	for _, s := range in[1:] {
		if s != out[len(out)-1] {
			out = append(out, s)
		}
	}
	return out
}

package service

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/zlibtools/zdl/internal/catalog"
	"github.com/zlibtools/zdl/internal/domain"
	"github.com/zlibtools/zdl/internal/errors"
	"github.com/zlibtools/zdl/internal/zlibrary"
)

// Search paging bounds, clamped onto whatever the caller asks for.
const (
	DefaultSearchLimit = 25
	MaxSearchLimit     = 100
)

// SearchService runs upstream searches across rotating credentials and
// ingests every page of results into the catalog.
type SearchService struct {
	pool     *zlibrary.Pool
	ingestor *Ingestor
	store    *catalog.Store
	logger   *slog.Logger
}

// NewSearchService creates a search service.
func NewSearchService(pool *zlibrary.Pool, ingestor *Ingestor, store *catalog.Store, logger *slog.Logger) *SearchService {
	return &SearchService{pool: pool, ingestor: ingestor, store: store, logger: logger}
}

// SearchResult is one completed search pass.
type SearchResult struct {
	Books    []zlibrary.BookResult
	Ingested int
	Skipped  int
	Pages    int
}

// Search runs a single page search. With save set the results are
// ingested into the catalog and the query lands in history; without it
// the results are only returned.
func (s *SearchService) Search(ctx context.Context, query string, filters domain.SearchFilters, save bool) (*SearchResult, error) {
	filters = clampSearchFilters(filters)
	if !filters.Order.Valid() {
		return nil, errors.Config("unknown sort order %q", filters.Order)
	}

	books, err := s.searchPage(ctx, requestFor(query, filters))
	if err != nil {
		return nil, err
	}

	result := &SearchResult{Books: books, Pages: 1}
	if save {
		stats, err := s.ingestor.Ingest(ctx, books)
		if err != nil {
			return nil, err
		}
		result.Ingested = stats.Ingested
		result.Skipped = stats.Skipped
		s.recordHistory(ctx, query, filters)
	}

	s.advanceRotation()
	return result, nil
}

// advanceRotation moves the cursor one step after a completed
// operation. Exhaustion is not an error here; the next operation
// surfaces it.
func (s *SearchService) advanceRotation() {
	if _, err := s.pool.Manager().Rotate(); err != nil {
		s.logger.Debug("rotation after operation", "error", err)
	}
}

// SearchAllPages pages through results until a short page or maxPages,
// rotating credentials between pages and ingesting page by page. Pages
// already ingested stay in the catalog even if a later page fails.
func (s *SearchService) SearchAllPages(ctx context.Context, query string, filters domain.SearchFilters, maxPages int, save bool) (*SearchResult, error) {
	filters = clampSearchFilters(filters)
	if !filters.Order.Valid() {
		return nil, errors.Config("unknown sort order %q", filters.Order)
	}
	if maxPages < 1 {
		maxPages = 1
	}

	result := &SearchResult{}
	for page := 1; page <= maxPages; page++ {
		filters.Page = page
		books, err := s.searchPage(ctx, requestFor(query, filters))
		if err != nil {
			// Cancellation always surfaces; pages already ingested stay.
			if errors.Is(err, errors.ErrCancelled) {
				return result, err
			}
			if result.Pages > 0 {
				s.logger.Warn("search stopped mid-run", "page", page, "error", err)
				break
			}
			return nil, err
		}

		if save {
			stats, err := s.ingestor.Ingest(ctx, books)
			if err != nil {
				return result, err
			}
			result.Ingested += stats.Ingested
			result.Skipped += stats.Skipped
		}
		result.Books = append(result.Books, books...)
		result.Pages++

		if len(books) < filters.Limit {
			break
		}
		// Spread page fetches across accounts.
		if _, _, err := s.pool.Rotate(ctx); err != nil {
			break
		}
	}

	if save {
		s.recordHistory(ctx, query, filters)
	}
	if result.Pages > 0 {
		s.advanceRotation()
	}
	return result, nil
}

// searchPage runs one upstream search, walking the credential set on
// failure. A transient error gets one retry on a refreshed session
// before the pool moves on; an auth error invalidates the credential.
func (s *SearchService) searchPage(ctx context.Context, req zlibrary.SearchRequest) ([]zlibrary.BookResult, error) {
	sess, _, err := s.pool.Current(ctx)
	if err != nil {
		return nil, err
	}

	attempts := s.pool.Manager().Len()
	if attempts < 1 {
		attempts = 1
	}
	for i := 0; i < attempts; i++ {
		books, err := sess.Search(ctx, req)
		if err == nil {
			s.pool.Manager().RecordUse(sess.Identity())
			return books, nil
		}
		if errors.Is(err, errors.ErrCancelled) {
			return nil, err
		}

		switch {
		case errors.Is(err, errors.ErrUpstreamTransient):
			refreshed, rerr := s.pool.Refresh(ctx, sess.Identity())
			if rerr == nil {
				if books, err := refreshed.Search(ctx, req); err == nil {
					s.pool.Manager().RecordUse(refreshed.Identity())
					return books, nil
				}
			}
			s.logger.Warn("search failed, rotating", "identity", sess.Identity(), "error", err)
		case errors.Is(err, errors.ErrUpstreamAuth):
			s.pool.Invalidate(sess.Identity())
		default:
			return nil, err
		}

		sess, _, err = s.pool.Rotate(ctx)
		if err != nil {
			return nil, err
		}
	}
	return nil, errors.AllExhausted("search failed on every credential")
}

func (s *SearchService) recordHistory(ctx context.Context, query string, filters domain.SearchFilters) {
	raw, err := json.Marshal(filters)
	if err != nil {
		raw = nil
	}
	if err := s.store.RecordSearch(ctx, query, string(raw)); err != nil {
		s.logger.Warn("could not record search history", "error", err)
	}
}

// MostPopular fetches and ingests the upstream most-popular feed.
func (s *SearchService) MostPopular(ctx context.Context) (*SearchResult, error) {
	return s.feed(ctx, func(sess *zlibrary.Session) ([]zlibrary.BookResult, error) {
		return sess.MostPopular(ctx)
	})
}

// Recently fetches and ingests the upstream recently-added feed.
func (s *SearchService) Recently(ctx context.Context) (*SearchResult, error) {
	return s.feed(ctx, func(sess *zlibrary.Session) ([]zlibrary.BookResult, error) {
		return sess.Recently(ctx)
	})
}

func (s *SearchService) feed(ctx context.Context, fetch func(*zlibrary.Session) ([]zlibrary.BookResult, error)) (*SearchResult, error) {
	sess, _, err := s.pool.Current(ctx)
	if err != nil {
		return nil, err
	}
	books, err := fetch(sess)
	if err != nil {
		return nil, err
	}
	stats, err := s.ingestor.Ingest(ctx, books)
	if err != nil {
		return nil, err
	}

	s.advanceRotation()
	return &SearchResult{Books: books, Ingested: stats.Ingested, Skipped: stats.Skipped, Pages: 1}, nil
}

func clampSearchFilters(f domain.SearchFilters) domain.SearchFilters {
	if f.Limit < 1 {
		f.Limit = DefaultSearchLimit
	}
	if f.Limit > MaxSearchLimit {
		f.Limit = MaxSearchLimit
	}
	if f.Page < 1 {
		f.Page = 1
	}
	return f
}

func requestFor(query string, f domain.SearchFilters) zlibrary.SearchRequest {
	return zlibrary.SearchRequest{
		Query:      query,
		YearFrom:   f.YearFrom,
		YearTo:     f.YearTo,
		Languages:  f.Language,
		Extensions: f.Extension,
		Order:      string(f.Order),
		Page:       f.Page,
		Limit:      f.Limit,
	}
}

package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/user/imdbvec/internal/config"
	"github.com/user/imdbvec/internal/model"
	"github.com/user/imdbvec/internal/repository"
	"github.com/user/imdbvec/internal/utils"
	"golang.org/x/sync/singleflight"
)

// Validation errors reported to the API boundary.
var (
	ErrEmptyQuery = errors.New("query text is required")
	ErrInvalidK   = errors.New("k must be at least 1")
)

// SearchService is the query-side entry point: it embeds the query text,
// normalizes the filters and delegates to the hybrid search. Identical
// requests share one in-flight execution and a small LRU of recent results.
type SearchService struct {
	repos     *repository.Repositories
	embedding *EmbeddingService
	cfg       *config.Config
	results   *lru.Cache[string, []model.SearchResult]
	group     singleflight.Group
}

func NewSearchService(repos *repository.Repositories, embedding *EmbeddingService, cfg *config.Config) *SearchService {
	cache, _ := lru.New[string, []model.SearchResult](256)
	return &SearchService{
		repos:     repos,
		embedding: embedding,
		cfg:       cfg,
		results:   cache,
	}
}

// Search runs one hybrid query. K below 1 is rejected, K above the configured
// ceiling is clamped. Actor filters are normalized the same way person names
// were normalized at import time, so both sides compare lowercase
// alphanumerics only.
func (s *SearchService) Search(ctx context.Context, query string, req *model.SearchRequest) ([]model.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	if req.K < 1 {
		return nil, fmt.Errorf("%w, got %d", ErrInvalidK, req.K)
	}
	if req.K > s.cfg.MaxResults {
		req.K = s.cfg.MaxResults
	}
	req.Actors = utils.NormalizePatterns(req.Actors)

	key := cacheKey(query, req)
	if cached, ok := s.results.Get(key); ok {
		return cached, nil
	}

	v, err, _ := s.group.Do(key, func() (interface{}, error) {
		vector, err := s.embedding.Embed(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("embed query: %w", err)
		}
		req.QueryVector = vector

		results, err := s.repos.Search.Search(ctx, req, s.cfg.TitleTypes, s.cfg.EfSearch)
		if err != nil {
			return nil, err
		}
		for i := range results {
			results[i].Score = CompositeScore(results[i].Similarity, results[i].Rating, results[i].Votes)
		}
		log.Printf("[Search] query %q returned %d results", query, len(results))
		s.results.Add(key, results)
		return results, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]model.SearchResult), nil
}

// Purge drops cached results. Called after a catalog refresh so stale
// result sets never outlive the data they were computed from.
func (s *SearchService) Purge() {
	s.results.Purge()
}

// CompositeScore blends semantic similarity with catalog popularity: 60%
// cosine similarity, 30% rating scaled to [0,1], 10% log10 of the vote count.
// It mirrors the ORDER BY expression of the hybrid query so reported scores
// match the returned order.
func CompositeScore(similarity float64, rating *float64, votes *int32) float64 {
	r := 0.0
	if rating != nil {
		r = *rating
	}
	v := int32(0)
	if votes != nil {
		v = *votes
	}
	ratingTerm := math.Min(r/10.0, 1.0)
	voteTerm := math.Log10(math.Max(float64(v), 1))
	return 0.60*similarity + 0.30*ratingTerm + 0.10*voteTerm
}

func cacheKey(query string, req *model.SearchRequest) string {
	var sb strings.Builder
	sb.WriteString(query)
	sb.WriteString("|k=")
	fmt.Fprintf(&sb, "%d", req.K)
	sb.WriteString("|ig=")
	sb.WriteString(strings.Join(req.IncludeGenres, ","))
	sb.WriteString("|eg=")
	sb.WriteString(strings.Join(req.ExcludeGenres, ","))
	sb.WriteString("|ac=")
	sb.WriteString(strings.Join(req.Actors, ","))
	if req.FromYear != nil {
		fmt.Fprintf(&sb, "|fy=%d", *req.FromYear)
	}
	if req.ToYear != nil {
		fmt.Fprintf(&sb, "|ty=%d", *req.ToYear)
	}
	if req.MaxRuntime != nil {
		fmt.Fprintf(&sb, "|rt=%d", *req.MaxRuntime)
	}
	if req.MinRating != nil {
		fmt.Fprintf(&sb, "|mr=%g", *req.MinRating)
	}
	return sb.String()
}

package service

import (
	"context"
	"log"
	"time"

	"github.com/user/imdbvec/internal/config"
	"github.com/user/imdbvec/internal/importer"
	"golang.org/x/sync/singleflight"
)

// RefreshService owns the catalog lifecycle: it runs the full refresh cycle,
// kicks off the embedding backfill afterwards, and repeats on the configured
// interval. Concurrent triggers (scheduler plus an admin call) collapse into
// one run.
type RefreshService struct {
	importer  *importer.Importer
	embedding *EmbeddingService
	search    *SearchService
	cfg       *config.Config
	group     singleflight.Group
}

func NewRefreshService(imp *importer.Importer, embedding *EmbeddingService,
	search *SearchService, cfg *config.Config) *RefreshService {
	return &RefreshService{
		importer:  imp,
		embedding: embedding,
		search:    search,
		cfg:       cfg,
	}
}

// Refresh runs one refresh-then-backfill cycle and returns the canonical set
// size. Overlapping calls share the in-flight run and its result.
func (s *RefreshService) Refresh(ctx context.Context) (int64, error) {
	v, err, shared := s.group.Do("refresh", func() (interface{}, error) {
		count, err := s.importer.RunFullRefresh(ctx)
		if err != nil {
			return int64(0), err
		}
		s.search.Purge()

		if err := s.embedding.Backfill(ctx); err != nil {
			// The catalog itself committed fine; a backfill failure leaves
			// un-embedded rows for the next cycle to pick up.
			log.Printf("[Refresh] backfill stopped early: %v", err)
		}
		return count, nil
	})
	if shared {
		log.Printf("[Refresh] joined in-flight refresh")
	}
	return v.(int64), err
}

// Backfill runs only the embedding loop, for operators re-driving it after an
// outage of the embedding backend.
func (s *RefreshService) Backfill(ctx context.Context) error {
	_, err, _ := s.group.Do("backfill", func() (interface{}, error) {
		return nil, s.embedding.Backfill(ctx)
	})
	return err
}

// Start launches the background scheduler. It returns immediately; the loop
// stops when ctx is cancelled.
func (s *RefreshService) Start(ctx context.Context) {
	go func() {
		if s.cfg.RefreshOnStart {
			if _, err := s.Refresh(ctx); err != nil {
				log.Printf("[Refresh] startup refresh failed: %v", err)
			}
		}

		if s.cfg.RefreshEvery <= 0 {
			log.Printf("[Refresh] scheduler disabled")
			return
		}

		ticker := time.NewTicker(s.cfg.RefreshEvery)
		defer ticker.Stop()
		log.Printf("[Refresh] scheduler running every %s", s.cfg.RefreshEvery)

		for {
			select {
			case <-ctx.Done():
				log.Printf("[Refresh] scheduler stopped")
				return
			case <-ticker.C:
				if _, err := s.Refresh(ctx); err != nil {
					log.Printf("[Refresh] scheduled refresh failed: %v", err)
				}
			}
		}
	}()
}

package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/pgvector/pgvector-go"
	"github.com/user/imdbvec/internal/config"
	"github.com/user/imdbvec/internal/model"
	"github.com/user/imdbvec/internal/repository"
	"github.com/user/imdbvec/internal/utils"
)

// EmbeddingService talks to the Ollama embeddings API and runs the
// restartable backfill loop over titles without embedding provenance.
type EmbeddingService struct {
	client    *http.Client
	titleRepo *repository.TitleRepository
	cfg       *config.Config
	vectors   *gocache.Cache // query text -> []float32
}

type embeddingRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embeddingResponse struct {
	Embedding []float32 `json:"embedding"`
}

func NewEmbeddingService(titleRepo *repository.TitleRepository, cfg *config.Config) *EmbeddingService {
	return &EmbeddingService{
		client:    &http.Client{Timeout: 60 * time.Second},
		titleRepo: titleRepo,
		cfg:       cfg,
		vectors:   gocache.New(10*time.Minute, 30*time.Minute),
	}
}

// Embed computes one vector with bounded retry. Server-side 5xx, transport
// failures and timeouts are retried with backoff; anything else (a 4xx, a
// malformed response, a wrong dimension) is permanent and propagates at once.
// Identical texts within the cache window reuse the previous vector.
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	if cached, ok := s.vectors.Get(text); ok {
		return cached.([]float32), nil
	}

	var vector []float32
	err := utils.Retry(ctx, s.cfg.EmbedRetries, s.cfg.EmbedBudget, func() error {
		v, err := s.embedOnce(ctx, text)
		if err != nil {
			return err
		}
		vector = v
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.vectors.Set(text, vector, gocache.DefaultExpiration)
	return vector, nil
}

func (s *EmbeddingService) embedOnce(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(embeddingRequest{Model: s.cfg.EmbeddingModel, Prompt: text})
	if err != nil {
		return nil, utils.Permanent(fmt.Errorf("marshal embed request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		s.cfg.OllamaHost+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, utils.Permanent(fmt.Errorf("build embed request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		// transport failure or timeout: retryable
		return nil, fmt.Errorf("post embed request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("embedding backend returned %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, utils.Permanent(fmt.Errorf("embedding backend returned %d", resp.StatusCode))
	}

	var out embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, utils.Permanent(fmt.Errorf("decode embed response: %w", err))
	}
	if len(out.Embedding) != s.cfg.EmbeddingDim {
		return nil, utils.Permanent(fmt.Errorf("embedding has dimension %d, want %d",
			len(out.Embedding), s.cfg.EmbeddingDim))
	}
	return out.Embedding, nil
}

// Backfill embeds every title missing provenance, in pages ordered by id.
// The loop is idempotent and restartable: it re-derives its work purely from
// persisted state. A permanent embed failure persists the vectors already
// computed for the current page, then stops the loop with the error.
func (s *EmbeddingService) Backfill(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		batch, err := s.titleRepo.FindMissingEmbeddings(s.cfg.EmbedBatchSize)
		if err != nil {
			return fmt.Errorf("fetch backfill batch: %w", err)
		}
		if len(batch) == 0 {
			log.Printf("[Embedding] backfill complete, all titles embedded")
			return nil
		}

		log.Printf("[Embedding] backfill processing %d titles", len(batch))
		updates := make([]repository.EmbeddingUpdate, 0, len(batch))
		var embedErr error
		for i := range batch {
			title := &batch[i]
			directors, err := s.titleRepo.DirectorNames(title.ID)
			if err != nil {
				embedErr = fmt.Errorf("load directors for %s: %w", title.Tconst, err)
				break
			}
			vector, err := s.Embed(ctx, buildEmbedText(title, directors))
			if err != nil {
				embedErr = fmt.Errorf("embed %s: %w", title.Tconst, err)
				break
			}
			updates = append(updates, repository.EmbeddingUpdate{
				ID:     title.ID,
				Vector: pgvector.NewVector(vector),
				Model:  s.cfg.EmbeddingModel,
				At:     time.Now(),
			})
		}

		if err := s.titleRepo.SaveEmbeddings(updates); err != nil {
			return fmt.Errorf("persist backfill batch: %w", err)
		}
		if embedErr != nil {
			return embedErr
		}
	}
}

// buildEmbedText assembles the embedding input deterministically: title with
// primary -> original -> tconst fallback, tag lines for the structured
// signals, then director names. Identical catalog state always produces
// identical input, so re-embedding is reproducible.
func buildEmbedText(title *model.Title, directors []string) string {
	var sb strings.Builder
	sb.WriteString(firstNonEmpty(deref(title.PrimaryTitle), deref(title.OriginalTitle), title.Tconst))

	var tags []string
	if title.TitleType != nil && *title.TitleType != "" {
		tags = append(tags, "type:"+*title.TitleType)
	}
	for _, g := range title.Genres {
		if g != "" {
			tags = append(tags, "genre:"+g)
		}
	}
	if title.StartYear != nil {
		tags = append(tags, fmt.Sprintf("year:%d", *title.StartYear))
	}
	if title.RuntimeMinutes != nil && *title.RuntimeMinutes > 0 {
		tags = append(tags, fmt.Sprintf("runtime:%dm", *title.RuntimeMinutes))
	}
	if title.Rating != nil {
		tags = append(tags, fmt.Sprintf("rating:%.1f", *title.Rating))
	}
	if title.Votes != nil && *title.Votes > 0 {
		tags = append(tags, fmt.Sprintf("votes:%d", *title.Votes))
	}
	if len(tags) > 0 {
		sb.WriteString("\n\nTags: ")
		sb.WriteString(strings.Join(tags, ", "))
	}

	if title.Plot != nil && *title.Plot != "" {
		sb.WriteString("\n\nPlot: ")
		sb.WriteString(*title.Plot)
	}

	if len(directors) > 0 {
		sb.WriteString("\n\nDirectors: ")
		sb.WriteString(strings.Join(directors, ", "))
	}

	return sb.String()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

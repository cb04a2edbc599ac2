package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/user/imdbvec/internal/model"
	"github.com/user/imdbvec/internal/service"
	"gorm.io/gorm"
)

// SearchKNN handles GET /api/search/knn. The free-text query is embedded and
// run through the hybrid retrieval engine with the structured filters from
// the query string.
func (h *Handler) SearchKNN(c *gin.Context) {
	q := c.Query("q")

	k := 10
	if raw := c.Query("k"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "k must be an integer"})
			return
		}
		k = parsed
	}

	req := &model.SearchRequest{
		K:             k,
		IncludeGenres: splitParam(c.Query("genres")),
		ExcludeGenres: splitParam(c.Query("exclude_genres")),
		Actors:        splitParam(c.Query("actors")),
	}

	var err error
	if req.FromYear, err = intParam(c, "from_year"); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.ToYear, err = intParam(c, "to_year"); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.MaxRuntime, err = intParam(c, "max_runtime"); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.MinRating, err = floatParam(c, "min_rating"); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.FromYear != nil && req.ToYear != nil && *req.FromYear > *req.ToYear {
		c.JSON(http.StatusBadRequest, gin.H{"error": "from_year must not exceed to_year"})
		return
	}

	results, err := h.Search.Search(c.Request.Context(), q, req)
	if err != nil {
		if errors.Is(err, service.ErrEmptyQuery) || errors.Is(err, service.ErrInvalidK) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		log.Printf("[API] search failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "search failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"query":   q,
		"count":   len(results),
		"results": results,
	})
}

// GetMovie handles GET /api/movies/:tconst.
func (h *Handler) GetMovie(c *gin.Context) {
	tconst := c.Param("tconst")

	title, err := h.Repos.Title.FindByTconst(tconst)
	if err != nil {
		log.Printf("[API] load movie %s: %v", tconst, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		return
	}
	if title == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "movie not found"})
		return
	}

	cast, err := h.Repos.Title.Cast(title.ID, 10)
	if err != nil {
		log.Printf("[API] load cast %s: %v", tconst, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"movie": title,
		"cast":  cast,
	})
}

var validate = validator.New()

type plotRequest struct {
	Plot string `json:"plot" validate:"required,max=10000"`
}

// UpdatePlot handles PUT /api/admin/movies/:tconst/plot. Storing new plot
// text also invalidates the stored embedding so the next backfill pass
// recomputes it.
func (h *Handler) UpdatePlot(c *gin.Context) {
	tconst := c.Param("tconst")

	var req plotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := validate.Struct(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "plot is required and capped at 10000 characters"})
		return
	}

	if err := h.Repos.Title.UpdatePlot(tconst, req.Plot); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "movie not found"})
			return
		}
		log.Printf("[API] update plot %s: %v", tconst, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// AdminRefresh handles POST /api/admin/refresh: kicks off a refresh cycle in
// the background and returns immediately. Concurrent triggers collapse into
// the in-flight run.
func (h *Handler) AdminRefresh(c *gin.Context) {
	go func() {
		if _, err := h.Refresh.Refresh(context.Background()); err != nil {
			log.Printf("[API] triggered refresh failed: %v", err)
		}
	}()
	c.JSON(http.StatusAccepted, gin.H{"status": "refresh started"})
}

// AdminBackfill handles POST /api/admin/backfill: re-drives the embedding
// loop without re-importing.
func (h *Handler) AdminBackfill(c *gin.Context) {
	go func() {
		if err := h.Refresh.Backfill(context.Background()); err != nil {
			log.Printf("[API] triggered backfill failed: %v", err)
		}
	}()
	c.JSON(http.StatusAccepted, gin.H{"status": "backfill started"})
}

// Health handles GET /health with a catalog size probe.
func (h *Handler) Health(c *gin.Context) {
	count, err := h.Repos.Title.Count()
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "movies": count})
}

func splitParam(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func intParam(c *gin.Context, name string) (*int, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil, errors.New(name + " must be an integer")
	}
	return &v, nil
}

func floatParam(c *gin.Context, name string) (*float64, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, errors.New(name + " must be a number")
	}
	return &v, nil
}

package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/user/imdbvec/internal/config"
	"github.com/user/imdbvec/internal/service"
)

func searchTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{MaxResults: 50, EfSearch: 200}
	h := NewHandler(nil, cfg, service.NewSearchService(nil, nil, cfg), nil)

	r := gin.New()
	r.GET("/api/search/knn", h.SearchKNN)
	return r
}

func TestSearchKNNValidation(t *testing.T) {
	r := searchTestRouter()

	cases := []struct {
		name string
		url  string
	}{
		{"missing query", "/api/search/knn?k=5"},
		{"non-integer k", "/api/search/knn?q=heist&k=abc"},
		{"zero k", "/api/search/knn?q=heist&k=0"},
		{"non-integer year", "/api/search/knn?q=heist&from_year=nineteen"},
		{"non-numeric rating", "/api/search/knn?q=heist&min_rating=high"},
		{"inverted year range", "/api/search/knn?q=heist&from_year=2000&to_year=1990"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, tc.url, nil)
			r.ServeHTTP(w, req)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestSplitParam(t *testing.T) {
	assert.Nil(t, splitParam(""))
	assert.Equal(t, []string{"Drama", "Comedy"}, splitParam("Drama,Comedy"))
	assert.Equal(t, []string{"Drama"}, splitParam(" Drama , , "))
}

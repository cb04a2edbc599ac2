package handler

import (
	"github.com/user/imdbvec/internal/config"
	"github.com/user/imdbvec/internal/repository"
	"github.com/user/imdbvec/internal/service"
)

// Handler bundles the HTTP endpoints with their collaborators.
type Handler struct {
	Repos   *repository.Repositories
	Config  *config.Config
	Search  *service.SearchService
	Refresh *service.RefreshService
}

func NewHandler(repos *repository.Repositories, cfg *config.Config,
	search *service.SearchService, refresh *service.RefreshService) *Handler {
	return &Handler{
		Repos:   repos,
		Config:  cfg,
		Search:  search,
		Refresh: refresh,
	}
}

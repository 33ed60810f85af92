package authz

import (
	"log/slog"

	"github.com/rakhadavedra/sow-analysis/internal/cache"
)

// Service bundles permission resolution and menu composition behind a single
// API for transport and admin call sites.
type Service struct {
	*Resolver
	*MenuComposer
}

func NewService(repo RepositoryAPI, store *cache.Store, logger *slog.Logger) *Service {
	return &Service{
		Resolver:     NewResolver(repo, store, logger),
		MenuComposer: NewMenuComposer(repo, store, logger),
	}
}

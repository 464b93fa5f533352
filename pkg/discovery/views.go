package discovery

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/craftui/dataset-engine/pkg/apperrors"
	"github.com/craftui/dataset-engine/pkg/models"
)

// ViewAPI is the slice of the metadata client that view discovery uses.
// *webapi.Client satisfies it.
type ViewAPI interface {
	ListSavedQueries(ctx context.Context, entityName string) ([]models.ViewDefinition, error)
	ListUserQueries(ctx context.Context, entityName string) ([]models.ViewDefinition, error)
	GetSavedQuery(ctx context.Context, viewID string) (*models.ViewDefinition, error)
	GetUserQuery(ctx context.Context, viewID string) (*models.ViewDefinition, error)
	ListViewEntities(ctx context.Context) ([]string, error)
}

// ViewService enumerates and resolves persisted views for entities.
// It is deliberately read-through with no caching of its own: views can be
// edited externally at any time, and stale view definitions are worse than
// an extra metadata call.
type ViewService interface {
	// ListViews returns system and personal views for an entity, merged and
	// sorted by display name.
	ListViews(ctx context.Context, entityName string) ([]models.ViewDefinition, error)

	// GetView resolves a view id, trying the system namespace first and the
	// personal namespace second. Unknown ids return (nil, nil).
	GetView(ctx context.Context, viewID string) (*models.ViewDefinition, error)

	// GetDefaultView returns the entity's default system view, or nil when
	// the entity has none.
	GetDefaultView(ctx context.Context, entityName string) (*models.ViewDefinition, error)

	// ListEntitiesWithViews returns the logical names of entities that have
	// at least one public view.
	ListEntitiesWithViews(ctx context.Context) ([]string, error)
}

type viewService struct {
	api    ViewAPI
	logger *zap.Logger
}

// NewViewService creates a ViewService over the given metadata client.
func NewViewService(api ViewAPI, logger *zap.Logger) ViewService {
	return &viewService{
		api:    api,
		logger: logger.Named("view-discovery"),
	}
}

var _ ViewService = (*viewService)(nil)

func (s *viewService) ListViews(ctx context.Context, entityName string) ([]models.ViewDefinition, error) {
	saved, err := s.api.ListSavedQueries(ctx, entityName)
	if err != nil {
		return nil, fmt.Errorf("list system views: %w", err)
	}
	personal, err := s.api.ListUserQueries(ctx, entityName)
	if err != nil {
		return nil, fmt.Errorf("list personal views: %w", err)
	}

	views := append(saved, personal...)
	sort.SliceStable(views, func(i, j int) bool {
		return strings.ToLower(views[i].Name) < strings.ToLower(views[j].Name)
	})

	s.logger.Debug("listed views",
		zap.String("entity", entityName),
		zap.Int("system", len(saved)),
		zap.Int("personal", len(personal)))

	return views, nil
}

func (s *viewService) GetView(ctx context.Context, viewID string) (*models.ViewDefinition, error) {
	view, err := s.api.GetSavedQuery(ctx, viewID)
	if err == nil {
		return view, nil
	}
	if !apperrors.IsNotFound(err) {
		return nil, fmt.Errorf("get system view: %w", err)
	}

	view, err = s.api.GetUserQuery(ctx, viewID)
	if err == nil {
		return view, nil
	}
	if !apperrors.IsNotFound(err) {
		return nil, fmt.Errorf("get personal view: %w", err)
	}

	// Absent in both namespaces is an expected outcome, not an error.
	return nil, nil
}

func (s *viewService) GetDefaultView(ctx context.Context, entityName string) (*models.ViewDefinition, error) {
	saved, err := s.api.ListSavedQueries(ctx, entityName)
	if err != nil {
		return nil, fmt.Errorf("list system views: %w", err)
	}
	for i := range saved {
		if saved[i].IsDefault {
			return &saved[i], nil
		}
	}
	return nil, nil
}

func (s *viewService) ListEntitiesWithViews(ctx context.Context) ([]string, error) {
	entities, err := s.api.ListViewEntities(ctx)
	if err != nil {
		return nil, fmt.Errorf("list entities with views: %w", err)
	}
	sort.Strings(entities)
	return entities, nil
}

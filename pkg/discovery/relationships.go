package discovery

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/craftui/dataset-engine/pkg/models"
	"github.com/craftui/dataset-engine/pkg/webapi"
)

// RelationshipAPI is the slice of the metadata client that relationship
// discovery uses. *webapi.Client satisfies it.
type RelationshipAPI interface {
	GetLookupAttributes(ctx context.Context, entityName string) ([]models.LookupAttribute, error)
	GetOneToManyRelationships(ctx context.Context, referenced, referencing string) ([]webapi.RelationshipDef, error)
	GetManyToOneRelationships(ctx context.Context, referenced, referencing string) ([]webapi.RelationshipDef, error)
	GetEntityDefinitions(ctx context.Context, logicalNames []string) (map[string]*models.EntityInfo, error)
}

// Resolver discovers structural relationships between entities. It is
// stateless with respect to selection: when multiple relationships match,
// all are returned and the caller disambiguates. The resolver never guesses
// by name similarity.
type Resolver interface {
	// Resolve finds relationships where child references parent. Strategies
	// run strictly in order and short-circuit on the first non-empty
	// result:
	//   1. lookup-typed attributes on child whose targets include parent
	//   2. relationship-definition metadata for both directions
	// An empty result means no relationship exists; it is not an error.
	Resolve(ctx context.Context, parentEntity, childEntity string) ([]models.EntityRelationship, error)

	// RelatedEntities finds every entity with a relationship into parent,
	// filtered to entities that have at least one view, sorted by display
	// name.
	RelatedEntities(ctx context.Context, parentEntity string) ([]models.EntityInfo, error)
}

type resolver struct {
	api             RelationshipAPI
	views           ViewService
	cache           *Cache
	publisherPrefix string
	logger          *zap.Logger
}

// NewResolver creates a Resolver. cache must not be nil; pass a zero-TTL
// cache to disable memoization. publisherPrefix optionally narrows
// lookup-attribute scans to one publisher's customizations.
func NewResolver(api RelationshipAPI, views ViewService, cache *Cache, publisherPrefix string, logger *zap.Logger) Resolver {
	return &resolver{
		api:             api,
		views:           views,
		cache:           cache,
		publisherPrefix: publisherPrefix,
		logger:          logger.Named("relationship-discovery"),
	}
}

var _ Resolver = (*resolver)(nil)

// newRelationship is the single canonical construction for discovered
// relationships, applied regardless of which strategy found the match, so
// every result carries the derived lookup-field name.
func newRelationship(schemaName, referenced, referencing, attribute string, kind models.RelationshipType) models.EntityRelationship {
	return models.EntityRelationship{
		SchemaName:           schemaName,
		ReferencedEntity:     referenced,
		ReferencingEntity:    referencing,
		ReferencingAttribute: attribute,
		LookupFieldName:      models.LookupFieldName(attribute),
		RelationshipType:     kind,
	}
}

func (r *resolver) Resolve(ctx context.Context, parentEntity, childEntity string) ([]models.EntityRelationship, error) {
	if cached, ok := r.cache.Get("rel", parentEntity, childEntity); ok {
		if rels, ok := cached.([]models.EntityRelationship); ok {
			return rels, nil
		}
	}

	rels, err := r.resolveByLookupAttributes(ctx, parentEntity, childEntity)
	if err != nil {
		return nil, err
	}

	if len(rels) == 0 {
		rels, err = r.resolveByRelationshipDefs(ctx, parentEntity, childEntity)
		if err != nil {
			return nil, err
		}
	}

	r.logger.Debug("resolved relationships",
		zap.String("parent", parentEntity),
		zap.String("child", childEntity),
		zap.Int("count", len(rels)))

	r.cache.Set(rels, "rel", parentEntity, childEntity)
	return rels, nil
}

// resolveByLookupAttributes is the common case: the child entity holds the
// foreign key as a lookup attribute targeting the parent.
func (r *resolver) resolveByLookupAttributes(ctx context.Context, parentEntity, childEntity string) ([]models.EntityRelationship, error) {
	attrs, err := r.api.GetLookupAttributes(ctx, childEntity)
	if err != nil {
		return nil, fmt.Errorf("lookup attributes on %s: %w", childEntity, err)
	}

	var matches []models.LookupAttribute
	for _, attr := range attrs {
		for _, target := range attr.Targets {
			if target == parentEntity {
				matches = append(matches, attr)
				break
			}
		}
	}

	// A configured publisher prefix narrows the scan to that publisher's
	// customizations, but never narrows to nothing.
	if r.publisherPrefix != "" {
		var narrowed []models.LookupAttribute
		for _, attr := range matches {
			if strings.HasPrefix(attr.LogicalName, r.publisherPrefix+"_") {
				narrowed = append(narrowed, attr)
			}
		}
		if len(narrowed) > 0 {
			matches = narrowed
		}
	}

	var rels []models.EntityRelationship
	for _, attr := range matches {
		schemaName := fmt.Sprintf("%s_%s", childEntity, attr.LogicalName)
		rels = append(rels, newRelationship(schemaName, parentEntity, childEntity, attr.LogicalName, models.RelationshipOneToMany))
	}
	return rels, nil
}

// resolveByRelationshipDefs queries relationship-definition metadata in both
// directions. This catches relationships the attribute enumeration does not
// expose.
func (r *resolver) resolveByRelationshipDefs(ctx context.Context, parentEntity, childEntity string) ([]models.EntityRelationship, error) {
	oneToMany, err := r.api.GetOneToManyRelationships(ctx, parentEntity, childEntity)
	if err != nil {
		return nil, fmt.Errorf("one-to-many definitions: %w", err)
	}
	manyToOne, err := r.api.GetManyToOneRelationships(ctx, childEntity, parentEntity)
	if err != nil {
		return nil, fmt.Errorf("many-to-one definitions: %w", err)
	}

	seen := make(map[string]bool)
	var rels []models.EntityRelationship

	for _, def := range oneToMany {
		if def.SchemaName == "" || seen[def.SchemaName] {
			continue
		}
		seen[def.SchemaName] = true
		rels = append(rels, newRelationship(def.SchemaName, def.ReferencedEntity, def.ReferencingEntity,
			def.ReferencingAttribute, models.RelationshipOneToMany))
	}
	for _, def := range manyToOne {
		if def.SchemaName == "" || seen[def.SchemaName] {
			continue
		}
		seen[def.SchemaName] = true
		rels = append(rels, newRelationship(def.SchemaName, def.ReferencedEntity, def.ReferencingEntity,
			def.ReferencingAttribute, models.RelationshipManyToOne))
	}

	return rels, nil
}

func (r *resolver) RelatedEntities(ctx context.Context, parentEntity string) ([]models.EntityInfo, error) {
	if cached, ok := r.cache.Get("related", parentEntity); ok {
		if infos, ok := cached.([]models.EntityInfo); ok {
			return infos, nil
		}
	}

	defs, err := r.api.GetOneToManyRelationships(ctx, parentEntity, "")
	if err != nil {
		return nil, fmt.Errorf("relationships into %s: %w", parentEntity, err)
	}

	seen := make(map[string]bool)
	var names []string
	for _, def := range defs {
		if def.ReferencingEntity == "" || seen[def.ReferencingEntity] {
			continue
		}
		seen[def.ReferencingEntity] = true
		names = append(names, def.ReferencingEntity)
	}
	if len(names) == 0 {
		r.cache.Set([]models.EntityInfo(nil), "related", parentEntity)
		return nil, nil
	}

	// Relationship metadata is a superset of what is browsable; keep only
	// entities that actually have views.
	withViews, err := r.views.ListEntitiesWithViews(ctx)
	if err != nil {
		return nil, err
	}
	browsable := make(map[string]bool, len(withViews))
	for _, name := range withViews {
		browsable[name] = true
	}

	var candidates []string
	for _, name := range names {
		if browsable[name] {
			candidates = append(candidates, name)
		}
	}
	if len(candidates) == 0 {
		r.cache.Set([]models.EntityInfo(nil), "related", parentEntity)
		return nil, nil
	}

	// One batched metadata call for the display names.
	byName, err := r.api.GetEntityDefinitions(ctx, candidates)
	if err != nil {
		return nil, fmt.Errorf("batch entity definitions: %w", err)
	}

	var infos []models.EntityInfo
	for _, name := range candidates {
		if info := byName[name]; info != nil {
			infos = append(infos, *info)
		}
	}
	sort.Slice(infos, func(i, j int) bool {
		return strings.ToLower(infos[i].DisplayName) < strings.ToLower(infos[j].DisplayName)
	})

	r.cache.Set(infos, "related", parentEntity)
	return infos, nil
}

package webapi

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/jinzhu/inflection"

	"github.com/craftui/dataset-engine/pkg/apperrors"
	"github.com/craftui/dataset-engine/pkg/models"
)

// RelationshipDef is one relationship-definition row from the metadata API.
type RelationshipDef struct {
	SchemaName           string `json:"SchemaName"`
	ReferencedEntity     string `json:"ReferencedEntity"`
	ReferencedAttribute  string `json:"ReferencedAttribute"`
	ReferencingEntity    string `json:"ReferencingEntity"`
	ReferencingAttribute string `json:"ReferencingAttribute"`
}

type entityDefRow struct {
	LogicalName           string `json:"LogicalName"`
	LogicalCollectionName string `json:"LogicalCollectionName"`
	PrimaryIDAttribute    string `json:"PrimaryIdAttribute"`
	PrimaryNameAttribute  string `json:"PrimaryNameAttribute"`
	DisplayName           struct {
		UserLocalizedLabel *struct {
			Label string `json:"Label"`
		} `json:"UserLocalizedLabel"`
	} `json:"DisplayName"`
}

func (r entityDefRow) toInfo() *models.EntityInfo {
	info := &models.EntityInfo{
		LogicalName:          r.LogicalName,
		PrimaryIDAttribute:   r.PrimaryIDAttribute,
		PrimaryNameAttribute: r.PrimaryNameAttribute,
		CollectionName:       r.LogicalCollectionName,
	}
	if r.DisplayName.UserLocalizedLabel != nil {
		info.DisplayName = r.DisplayName.UserLocalizedLabel.Label
	}
	if info.DisplayName == "" {
		info.DisplayName = r.LogicalName
	}
	// Older schema snapshots omit the collection name; the API's own
	// convention is the pluralized logical name.
	if info.CollectionName == "" {
		info.CollectionName = inflection.Plural(r.LogicalName)
	}
	return info
}

const entityDefSelect = "LogicalName,LogicalCollectionName,PrimaryIdAttribute,PrimaryNameAttribute,DisplayName"

// GetEntityDefinition looks up one entity by logical name.
func (c *Client) GetEntityDefinition(ctx context.Context, logicalName string) (*models.EntityInfo, error) {
	if logicalName == "" {
		return nil, fmt.Errorf("%w: empty entity logical name", apperrors.ErrNotFound)
	}

	path := fmt.Sprintf("EntityDefinitions(LogicalName='%s')", escapeSingleQuotes(logicalName))
	query := url.Values{"$select": []string{entityDefSelect}}

	var row entityDefRow
	if err := c.getOne(ctx, c.apiURL(path, query), &row); err != nil {
		return nil, fmt.Errorf("get entity definition %s: %w", logicalName, err)
	}
	return row.toInfo(), nil
}

// GetEntityDefinitions batch-resolves several entities in one metadata call,
// returning them keyed by logical name. Unknown names are simply absent.
func (c *Client) GetEntityDefinitions(ctx context.Context, logicalNames []string) (map[string]*models.EntityInfo, error) {
	if len(logicalNames) == 0 {
		return map[string]*models.EntityInfo{}, nil
	}

	var clauses []string
	for _, name := range logicalNames {
		clauses = append(clauses, fmt.Sprintf("LogicalName eq '%s'", escapeSingleQuotes(name)))
	}
	query := url.Values{
		"$select": []string{entityDefSelect},
		"$filter": []string{strings.Join(clauses, " or ")},
	}

	envelope, err := c.getList(ctx, c.apiURL("EntityDefinitions", query), nil)
	if err != nil {
		return nil, fmt.Errorf("get entity definitions: %w", err)
	}

	out := make(map[string]*models.EntityInfo, len(envelope.Value))
	for _, raw := range envelope.Value {
		row := entityDefRow{
			LogicalName:           models.CoerceString(raw["LogicalName"]),
			LogicalCollectionName: models.CoerceString(raw["LogicalCollectionName"]),
			PrimaryIDAttribute:    models.CoerceString(raw["PrimaryIdAttribute"]),
			PrimaryNameAttribute:  models.CoerceString(raw["PrimaryNameAttribute"]),
		}
		if row.LogicalName == "" {
			continue
		}
		info := row.toInfo()
		if label := localizedLabel(raw["DisplayName"]); label != "" {
			info.DisplayName = label
		}
		out[row.LogicalName] = info
	}
	return out, nil
}

func localizedLabel(raw any) string {
	display, ok := raw.(map[string]any)
	if !ok {
		return ""
	}
	label, ok := display["UserLocalizedLabel"].(map[string]any)
	if !ok {
		return ""
	}
	return models.CoerceString(label["Label"])
}

// GetLookupAttributes returns the lookup-typed attributes of an entity and
// the entities each one targets.
func (c *Client) GetLookupAttributes(ctx context.Context, entityName string) ([]models.LookupAttribute, error) {
	path := fmt.Sprintf(
		"EntityDefinitions(LogicalName='%s')/Attributes/Microsoft.Dynamics.CRM.LookupAttributeMetadata",
		escapeSingleQuotes(entityName))
	query := url.Values{"$select": []string{"LogicalName,Targets"}}

	envelope, err := c.getList(ctx, c.apiURL(path, query), nil)
	if err != nil {
		return nil, fmt.Errorf("get lookup attributes for %s: %w", entityName, err)
	}

	var attrs []models.LookupAttribute
	for _, raw := range envelope.Value {
		attr := models.LookupAttribute{LogicalName: models.CoerceString(raw["LogicalName"])}
		if attr.LogicalName == "" {
			continue
		}
		if targets, ok := raw["Targets"].([]any); ok {
			for _, t := range targets {
				attr.Targets = append(attr.Targets, models.CoerceString(t))
			}
		}
		attrs = append(attrs, attr)
	}
	return attrs, nil
}

// GetOneToManyRelationships returns one-to-many relationship definitions
// filtered by the referenced (one side) and referencing (many side)
// entities. Either filter may be empty to match any entity on that side.
func (c *Client) GetOneToManyRelationships(ctx context.Context, referenced, referencing string) ([]RelationshipDef, error) {
	return c.getRelationships(ctx, "Microsoft.Dynamics.CRM.OneToManyRelationshipMetadata", referenced, referencing)
}

// GetManyToOneRelationships is the mirror query: definitions where the
// subject entity holds the lookup.
func (c *Client) GetManyToOneRelationships(ctx context.Context, referenced, referencing string) ([]RelationshipDef, error) {
	return c.getRelationships(ctx, "Microsoft.Dynamics.CRM.ManyToOneRelationshipMetadata", referenced, referencing)
}

func (c *Client) getRelationships(ctx context.Context, kind, referenced, referencing string) ([]RelationshipDef, error) {
	var clauses []string
	if referenced != "" {
		clauses = append(clauses, fmt.Sprintf("ReferencedEntity eq '%s'", escapeSingleQuotes(referenced)))
	}
	if referencing != "" {
		clauses = append(clauses, fmt.Sprintf("ReferencingEntity eq '%s'", escapeSingleQuotes(referencing)))
	}

	query := url.Values{
		"$select": []string{"SchemaName,ReferencedEntity,ReferencedAttribute,ReferencingEntity,ReferencingAttribute"},
	}
	if len(clauses) > 0 {
		query.Set("$filter", strings.Join(clauses, " and "))
	}

	path := "RelationshipDefinitions/" + kind
	envelope, err := c.getList(ctx, c.apiURL(path, query), nil)
	if err != nil {
		return nil, fmt.Errorf("get relationships (%s): %w", kind, err)
	}

	var defs []RelationshipDef
	for _, raw := range envelope.Value {
		defs = append(defs, RelationshipDef{
			SchemaName:           models.CoerceString(raw["SchemaName"]),
			ReferencedEntity:     models.CoerceString(raw["ReferencedEntity"]),
			ReferencedAttribute:  models.CoerceString(raw["ReferencedAttribute"]),
			ReferencingEntity:    models.CoerceString(raw["ReferencingEntity"]),
			ReferencingAttribute: models.CoerceString(raw["ReferencingAttribute"]),
		})
	}
	return defs, nil
}

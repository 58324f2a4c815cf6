// Package metadata holds the entity schema the engine consults: attribute
// types, primary-name attributes, alternate keys and relationships. The
// engine consumes it read-only through the Provider interface; tests and
// the CLI populate a Registry, either programmatically or from YAML.
package metadata

import (
	"fmt"
	"sync"
)

// AttributeType enumerates the attribute value types the platform knows.
type AttributeType int

const (
	TypeString AttributeType = iota
	TypeInteger
	TypeDecimal
	TypeBoolean
	TypeDateTime
	TypeUniqueID
	TypeLookup
	TypeOptionSet
	TypeMoney
)

var attributeTypeNames = map[AttributeType]string{
	TypeString:    "string",
	TypeInteger:   "integer",
	TypeDecimal:   "decimal",
	TypeBoolean:   "boolean",
	TypeDateTime:  "datetime",
	TypeUniqueID:  "uniqueid",
	TypeLookup:    "lookup",
	TypeOptionSet: "optionset",
	TypeMoney:     "money",
}

func (t AttributeType) String() string {
	if n, ok := attributeTypeNames[t]; ok {
		return n
	}
	return fmt.Sprintf("attributetype(%d)", int(t))
}

// ParseAttributeType parses the YAML spelling of an attribute type.
func ParseAttributeType(s string) (AttributeType, error) {
	for t, n := range attributeTypeNames {
		if n == s {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown attribute type %q", s)
}

// AttributeMetadata describes one attribute of an entity type.
type AttributeMetadata struct {
	Name string
	Type AttributeType

	// Target is the referenced entity type for lookup attributes.
	Target string
}

// AlternateKey is a named, ordered list of attribute names whose combined
// non-null values must be unique per entity type. A record with any key
// attribute null opts out of the constraint.
type AlternateKey struct {
	Name       string
	Attributes []string
}

// EntityMetadata describes one entity type.
type EntityMetadata struct {
	Name string

	// PrimaryID is the primary-key attribute; defaults to "<name>id".
	PrimaryID string

	// PrimaryName is the attribute whose value populates reference
	// display text.
	PrimaryName string

	Attributes map[string]AttributeMetadata
	Keys       []AlternateKey
}

// PrimaryIDAttribute returns the primary-key attribute name, applying the
// platform default when unset.
func (m *EntityMetadata) PrimaryIDAttribute() string {
	if m != nil && m.PrimaryID != "" {
		return m.PrimaryID
	}
	if m != nil {
		return m.Name + "id"
	}
	return ""
}

// RelationshipKind distinguishes one-to-many from many-to-many.
type RelationshipKind int

const (
	OneToMany RelationshipKind = iota
	ManyToMany
)

// Relationship describes an association between two entity types. For
// many-to-many relationships, Intersect names the linking entity type.
type Relationship struct {
	Name string
	Kind RelationshipKind

	// Referenced is the "one" side; ReferencedAttribute its matching
	// attribute (usually the primary key).
	Referenced          string
	ReferencedAttribute string

	// Referencing is the "many" side; ReferencingAttribute the lookup
	// attribute pointing at the referenced entity.
	Referencing          string
	ReferencingAttribute string

	Intersect string
}

// Provider is the read-only schema interface the engine and the query
// evaluator consume.
type Provider interface {
	// Entity returns the metadata for an entity type, if registered.
	Entity(name string) (*EntityMetadata, bool)

	// Attribute returns the metadata for one attribute of an entity type.
	Attribute(entity, attribute string) (AttributeMetadata, bool)

	// Relationship returns a relationship by schema name.
	Relationship(name string) (*Relationship, bool)

	// RelationshipBetween returns a one-to-many relationship whose two
	// sides are the given entity types, if exactly one is registered.
	RelationshipBetween(a, b string) (*Relationship, bool)
}

// Registry is an in-memory Provider. Safe for concurrent use.
type Registry struct {
	mu            sync.RWMutex
	entities      map[string]*EntityMetadata
	relationships map[string]*Relationship
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		entities:      make(map[string]*EntityMetadata),
		relationships: make(map[string]*Relationship),
	}
}

// RegisterEntity adds or replaces an entity type definition.
func (r *Registry) RegisterEntity(m *EntityMetadata) error {
	if m == nil || m.Name == "" {
		return fmt.Errorf("entity metadata requires a name")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entities[m.Name] = m
	return nil
}

// keyableTypes are the attribute types the platform allows in alternate
// keys.
var keyableTypes = map[AttributeType]bool{
	TypeString:    true,
	TypeInteger:   true,
	TypeDecimal:   true,
	TypeDateTime:  true,
	TypeLookup:    true,
	TypeOptionSet: true,
}

// RegisterKey adds an alternate key to a registered entity type. Every
// key attribute must be declared on the entity and be of a keyable type.
func (r *Registry) RegisterKey(entity string, key AlternateKey) error {
	if len(key.Attributes) == 0 {
		return fmt.Errorf("alternate key %q requires at least one attribute", key.Name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.entities[entity]
	if !ok {
		return fmt.Errorf("entity %q is not registered", entity)
	}
	for _, attr := range key.Attributes {
		am, ok := m.Attributes[attr]
		if !ok {
			return fmt.Errorf("alternate key %q references undeclared attribute %q on %q", key.Name, attr, entity)
		}
		if !keyableTypes[am.Type] {
			return fmt.Errorf("alternate key %q: attribute %q has type %s, which cannot participate in a key", key.Name, attr, am.Type)
		}
	}
	m.Keys = append(m.Keys, key)
	return nil
}

// RegisterRelationship adds or replaces a relationship definition.
func (r *Registry) RegisterRelationship(rel *Relationship) error {
	if rel == nil || rel.Name == "" {
		return fmt.Errorf("relationship requires a name")
	}
	if rel.Kind == ManyToMany && rel.Intersect == "" {
		return fmt.Errorf("many-to-many relationship %q requires an intersect entity", rel.Name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.relationships[rel.Name] = rel
	return nil
}

// Entity implements Provider.
func (r *Registry) Entity(name string) (*EntityMetadata, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.entities[name]
	return m, ok
}

// Attribute implements Provider.
func (r *Registry) Attribute(entity, attribute string) (AttributeMetadata, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.entities[entity]
	if !ok {
		return AttributeMetadata{}, false
	}
	am, ok := m.Attributes[attribute]
	return am, ok
}

// Relationship implements Provider.
func (r *Registry) Relationship(name string) (*Relationship, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rel, ok := r.relationships[name]
	return rel, ok
}

// RelationshipBetween implements Provider. Only one-to-many relationships
// participate; the match must be unique to count.
func (r *Registry) RelationshipBetween(a, b string) (*Relationship, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var found *Relationship
	for _, rel := range r.relationships {
		if rel.Kind != OneToMany {
			continue
		}
		if (rel.Referenced == a && rel.Referencing == b) || (rel.Referenced == b && rel.Referencing == a) {
			if found != nil {
				return nil, false
			}
			found = rel
		}
	}
	return found, found != nil
}

package metadata

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Document is the YAML form of a schema, used by the CLI and tests.
//
//	entities:
//	  - name: account
//	    primary_name: name
//	    attributes:
//	      name: string
//	      primarycontactid: { type: lookup, target: contact }
//	    keys:
//	      - name: accountnumber
//	        attributes: [accountnumber]
//	relationships:
//	  - name: contact_accounts
//	    kind: one-to-many
//	    referenced: contact
//	    referenced_attribute: contactid
//	    referencing: account
//	    referencing_attribute: primarycontactid
type Document struct {
	Entities      []entityDoc       `yaml:"entities"`
	Relationships []relationshipDoc `yaml:"relationships"`
}

type entityDoc struct {
	Name        string              `yaml:"name"`
	PrimaryID   string              `yaml:"primary_id"`
	PrimaryName string              `yaml:"primary_name"`
	Attributes  map[string]attrDoc  `yaml:"attributes"`
	Keys        []alternateKeyDoc   `yaml:"keys"`
}

type attrDoc struct {
	Type   string
	Target string
}

// UnmarshalYAML accepts either a bare type name or a mapping with
// type/target fields.
func (a *attrDoc) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		return node.Decode(&a.Type)
	}
	var full struct {
		Type   string `yaml:"type"`
		Target string `yaml:"target"`
	}
	if err := node.Decode(&full); err != nil {
		return err
	}
	a.Type = full.Type
	a.Target = full.Target
	return nil
}

type alternateKeyDoc struct {
	Name       string   `yaml:"name"`
	Attributes []string `yaml:"attributes"`
}

type relationshipDoc struct {
	Name                 string `yaml:"name"`
	Kind                 string `yaml:"kind"`
	Referenced           string `yaml:"referenced"`
	ReferencedAttribute  string `yaml:"referenced_attribute"`
	Referencing          string `yaml:"referencing"`
	ReferencingAttribute string `yaml:"referencing_attribute"`
	Intersect            string `yaml:"intersect"`
}

// ParseDocument builds a Registry from a YAML schema document.
func ParseDocument(data []byte) (*Registry, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse schema document: %w", err)
	}

	reg := NewRegistry()
	for _, ent := range doc.Entities {
		if ent.Name == "" {
			return nil, fmt.Errorf("schema document: entity without a name")
		}
		meta := &EntityMetadata{
			Name:        ent.Name,
			PrimaryID:   ent.PrimaryID,
			PrimaryName: ent.PrimaryName,
			Attributes:  make(map[string]AttributeMetadata, len(ent.Attributes)),
		}
		for name, attr := range ent.Attributes {
			t, err := ParseAttributeType(attr.Type)
			if err != nil {
				return nil, fmt.Errorf("entity %q attribute %q: %w", ent.Name, name, err)
			}
			meta.Attributes[name] = AttributeMetadata{Name: name, Type: t, Target: attr.Target}
		}
		if err := reg.RegisterEntity(meta); err != nil {
			return nil, err
		}
		for _, key := range ent.Keys {
			if err := reg.RegisterKey(ent.Name, AlternateKey{Name: key.Name, Attributes: key.Attributes}); err != nil {
				return nil, err
			}
		}
	}

	for _, rel := range doc.Relationships {
		kind := OneToMany
		switch rel.Kind {
		case "", "one-to-many":
		case "many-to-many":
			kind = ManyToMany
		default:
			return nil, fmt.Errorf("relationship %q: unknown kind %q", rel.Name, rel.Kind)
		}
		err := reg.RegisterRelationship(&Relationship{
			Name:                 rel.Name,
			Kind:                 kind,
			Referenced:           rel.Referenced,
			ReferencedAttribute:  rel.ReferencedAttribute,
			Referencing:          rel.Referencing,
			ReferencingAttribute: rel.ReferencingAttribute,
			Intersect:            rel.Intersect,
		})
		if err != nil {
			return nil, err
		}
	}

	return reg, nil
}

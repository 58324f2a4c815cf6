package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/crmock/crmock/internal/engine"
	"github.com/crmock/crmock/internal/metadata"
	"github.com/crmock/crmock/internal/record"
)

// LoadMetadata reads a YAML metadata document into a registry.
func LoadMetadata(path string) (*metadata.Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "read metadata document", err)
	}
	reg, err := metadata.ParseDocument(data)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "parse metadata document", err)
	}
	return reg, nil
}

type dataDocument struct {
	Records []recordDocument `yaml:"records"`
}

type recordDocument struct {
	Entity     string    `yaml:"entity"`
	ID         string    `yaml:"id"`
	Attributes yaml.Node `yaml:"attributes"`
}

// LoadData reads a YAML seed document and creates its records through the
// engine, so seeded rows carry system attributes and version stamps like
// any other record.
func LoadData(path string, eng *engine.Engine) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "read data document", err)
	}
	var doc dataDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return WrapExitError(ExitCommandError, "parse data document", err)
	}

	for i, rd := range doc.Records {
		ent, err := decodeRecord(rd)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("record %d", i+1), err)
		}
		if _, err := eng.Create(ent); err != nil {
			return WrapExitError(ExitFailure, fmt.Sprintf("create record %d (%s)", i+1, ent.Type), err)
		}
	}
	return nil
}

func decodeRecord(rd recordDocument) (*record.Entity, error) {
	if rd.Entity == "" {
		return nil, fmt.Errorf("record requires an entity type")
	}

	var ent *record.Entity
	if rd.ID != "" {
		id, err := uuid.Parse(rd.ID)
		if err != nil {
			return nil, fmt.Errorf("record id %q: %w", rd.ID, err)
		}
		ent = record.NewWithID(rd.Entity, id)
	} else {
		ent = record.New(rd.Entity)
	}

	if rd.Attributes.Kind == 0 {
		return ent, nil
	}
	if rd.Attributes.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("attributes must be a mapping")
	}
	// Mapping content alternates key and value nodes; iterating preserves
	// the document's attribute order.
	for i := 0; i+1 < len(rd.Attributes.Content); i += 2 {
		name := rd.Attributes.Content[i].Value
		v, err := decodeValue(rd.Attributes.Content[i+1])
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %w", name, err)
		}
		ent.Set(name, v)
	}
	return ent, nil
}

// decodeValue maps a YAML node onto a record value. Scalars follow the
// YAML tag; references, options, money, guids and times use tagged
// single-key mappings.
func decodeValue(n *yaml.Node) (record.Value, error) {
	switch n.Kind {
	case yaml.ScalarNode:
		return decodeScalar(n)
	case yaml.MappingNode:
		return decodeTagged(n)
	}
	return nil, fmt.Errorf("unsupported value shape")
}

func decodeScalar(n *yaml.Node) (record.Value, error) {
	switch n.Tag {
	case "!!null":
		return record.Null{}, nil
	case "!!bool":
		var b bool
		if err := n.Decode(&b); err != nil {
			return nil, err
		}
		return record.Bool(b), nil
	case "!!int":
		var i int64
		if err := n.Decode(&i); err != nil {
			return nil, err
		}
		return record.Int(i), nil
	case "!!float":
		var f float64
		if err := n.Decode(&f); err != nil {
			return nil, err
		}
		return record.Float(f), nil
	default:
		return record.String(n.Value), nil
	}
}

func decodeTagged(n *yaml.Node) (record.Value, error) {
	fields := make(map[string]string, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		fields[n.Content[i].Value] = n.Content[i+1].Value
	}

	switch {
	case fields["ref"] != "":
		id, err := uuid.Parse(fields["id"])
		if err != nil {
			return nil, fmt.Errorf("ref id %q: %w", fields["id"], err)
		}
		return record.Ref{Entity: fields["ref"], ID: id, Name: fields["name"]}, nil

	case hasField(fields, "option"):
		var opt int
		if _, err := fmt.Sscanf(fields["option"], "%d", &opt); err != nil {
			return nil, fmt.Errorf("option %q: %w", fields["option"], err)
		}
		return record.Option(opt), nil

	case hasField(fields, "money"):
		var amount float64
		if _, err := fmt.Sscanf(fields["money"], "%g", &amount); err != nil {
			return nil, fmt.Errorf("money %q: %w", fields["money"], err)
		}
		return record.Money(amount), nil

	case hasField(fields, "guid"):
		id, err := uuid.Parse(fields["guid"])
		if err != nil {
			return nil, fmt.Errorf("guid %q: %w", fields["guid"], err)
		}
		return record.GUID(id), nil

	case hasField(fields, "time"):
		t, err := time.Parse(time.RFC3339, fields["time"])
		if err != nil {
			return nil, fmt.Errorf("time %q: %w", fields["time"], err)
		}
		return record.NewTime(t), nil
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	return nil, fmt.Errorf("unknown tagged value with keys [%s]", strings.Join(keys, ", "))
}

func hasField(fields map[string]string, name string) bool {
	_, ok := fields[name]
	return ok
}

package recordstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// DefaultRecordType is used for fixtures that do not name a type.
const DefaultRecordType = "Item"

// fixture is one entry of a fixture file. RawFields, when set, is stored
// verbatim instead of Fields, which lets a fixture describe a record the
// service cannot decode.
type fixture struct {
	RecordName string         `json:"recordName" yaml:"recordName"`
	RecordType string         `json:"recordType" yaml:"recordType"`
	Fields     map[string]any `json:"fields" yaml:"fields"`
	RawFields  string         `json:"rawFields" yaml:"rawFields"`
}

// LoadFixtures reads records from a .json, .yaml or .yml file holding a
// list of fixtures. Records without a name get a random UUID.
func LoadFixtures(path string) ([]Record, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var fx []fixture
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := json.Unmarshal(b, &fx); err != nil {
			return nil, fmt.Errorf("json unmarshal: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &fx); err != nil {
			return nil, fmt.Errorf("yaml unmarshal: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported fixture format %q", filepath.Ext(path))
	}

	out := make([]Record, 0, len(fx))
	for i, f := range fx {
		r := Record{Name: f.RecordName, Type: f.RecordType}
		if r.Name == "" {
			r.Name = uuid.NewString()
		}
		if r.Type == "" {
			r.Type = DefaultRecordType
		}
		if f.RawFields != "" {
			r.Fields = json.RawMessage(f.RawFields)
		} else {
			if f.Fields == nil {
				f.Fields = map[string]any{}
			}
			raw, err := json.Marshal(f.Fields)
			if err != nil {
				return nil, fmt.Errorf("fixture %d (%s): json marshal: %w", i, r.Name, err)
			}
			r.Fields = raw
		}
		out = append(out, r)
	}
	return out, nil
}

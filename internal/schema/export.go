package schema

import (
	"encoding/json"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Marshal renders the schema as "yaml" or "json".
func (s *Schema) Marshal(format string) ([]byte, error) {
	switch format {
	case "yaml", "yml", "":
		out, err := yaml.Marshal(s)
		return out, eris.Wrap(err, "schema: marshal yaml")
	case "json":
		out, err := json.MarshalIndent(s, "", "  ")
		return out, eris.Wrap(err, "schema: marshal json")
	default:
		return nil, eris.Errorf("schema: unsupported format %q", format)
	}
}

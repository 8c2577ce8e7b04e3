package catalogue

import (
	"encoding/json"
	"fmt"
	"strings"

	toolerrors "github.com/alennartz/toolscript/pkg/errors"
	"github.com/tidwall/gjson"
)

// LoadManifest decodes and validates a descriptor manifest document (§6).
func LoadManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, toolerrors.NewInvalidArgumentError("manifest is not valid JSON", err)
	}
	for i := range m.McpServers {
		tools := m.McpServers[i].Tools
		for j := range tools {
			if len(tools[j].Params) == 0 && len(tools[j].Schemas) > 0 {
				tools[j].Params = deriveParamsFromSchema(tools[j].Schemas[0])
			}
		}
	}
	if err := validateManifest(&m); err != nil {
		return nil, err
	}
	return &m, nil
}

// deriveParamsFromSchema derives a VM parameter signature from a raw JSON
// Schema input document, reaching straight into its "required" and
// "properties" fields rather than decoding the whole schema into a struct.
func deriveParamsFromSchema(schema json.RawMessage) []McpToolParam {
	parsed := gjson.ParseBytes(schema)
	required := make(map[string]bool)
	for _, name := range parsed.Get("required").Array() {
		required[name.String()] = true
	}

	var params []McpToolParam
	parsed.Get("properties").ForEach(func(key, value gjson.Result) bool {
		name := key.String()
		params = append(params, McpToolParam{
			Name:        name,
			LuauType:    luauTypeFromSchemaType(value.Get("type").String()),
			Required:    required[name],
			Description: value.Get("description").String(),
		})
		return true
	})
	return params
}

func luauTypeFromSchemaType(schemaType string) string {
	switch schemaType {
	case "integer", "number":
		return "number"
	case "boolean":
		return "boolean"
	case "array":
		return "table"
	case "object":
		return "table"
	case "string":
		return "string"
	default:
		return "any"
	}
}

func validateManifest(m *Manifest) error {
	apis := make(map[string]struct{}, len(m.Apis))
	for _, a := range m.Apis {
		if a.Name == "" {
			return toolerrors.NewInvalidArgumentError("api descriptor missing name", nil)
		}
		apis[a.Name] = struct{}{}
	}

	seenFunc := make(map[string]struct{}, len(m.Functions))
	for i := range m.Functions {
		f := &m.Functions[i]
		if f.Name == "" {
			return toolerrors.NewInvalidArgumentError("function descriptor missing name", nil)
		}
		if _, dup := seenFunc[f.Name]; dup {
			return toolerrors.NewInvalidArgumentError(
				fmt.Sprintf("duplicate function name %q", f.Name), nil)
		}
		seenFunc[f.Name] = struct{}{}

		if _, ok := apis[f.API]; !ok {
			return toolerrors.NewInvalidArgumentError(
				fmt.Sprintf("function %q references unknown api %q", f.Name, f.API), nil)
		}

		for _, p := range f.Parameters {
			if p.Location == LocationPath {
				placeholder := "{" + p.Name + "}"
				count := strings.Count(f.PathTemplate, placeholder)
				if count != 1 {
					return toolerrors.NewInvalidArgumentError(
						fmt.Sprintf("function %q path parameter %q must appear exactly once in path_template, found %d",
							f.Name, p.Name, count), nil)
				}
			}
		}
	}

	return nil
}

// Package catalogue implements the descriptor catalogue (C1): an
// in-memory, immutable-after-load registry of callable functions, their
// parameter/schema metadata, and the frozen injections authored at
// configuration time.
package catalogue

import "encoding/json"

// ParamLocation is where a parameter is attached to an HTTP request.
type ParamLocation string

// Parameter locations.
const (
	LocationPath   ParamLocation = "path"
	LocationQuery  ParamLocation = "query"
	LocationHeader ParamLocation = "header"
)

// ParamKind is the scalar kind of a parameter's VM-facing value.
type ParamKind string

// Parameter kinds.
const (
	KindString  ParamKind = "string"
	KindInteger ParamKind = "integer"
	KindNumber  ParamKind = "number"
	KindBoolean ParamKind = "boolean"
)

// HTTPMethod is a descriptor's HTTP verb.
type HTTPMethod string

// Supported HTTP methods.
const (
	MethodGet    HTTPMethod = "GET"
	MethodPost   HTTPMethod = "POST"
	MethodPut    HTTPMethod = "PUT"
	MethodPatch  HTTPMethod = "PATCH"
	MethodDelete HTTPMethod = "DELETE"
)

// AuthSchemeKind tags the variant of AuthScheme.
type AuthSchemeKind string

// Auth scheme kinds.
const (
	AuthBearer AuthSchemeKind = "bearer"
	AuthAPIKey AuthSchemeKind = "api_key"
	AuthBasic  AuthSchemeKind = "basic"
)

// AuthScheme describes how an API expects credentials to be attached.
// Exactly the fields relevant to Kind are populated.
type AuthScheme struct {
	Kind   AuthSchemeKind `json:"kind"`
	Header string         `json:"header,omitempty"` // Bearer, ApiKey
	Prefix string         `json:"prefix,omitempty"` // Bearer
}

// ApiDescriptor names one upstream HTTP API.
//
//nolint:revive // "ApiDescriptor" mirrors the manifest's wire vocabulary (§3).
type ApiDescriptor struct {
	Name       string      `json:"name"`
	BaseURL    string      `json:"base_url"`
	AuthScheme *AuthScheme `json:"auth_scheme,omitempty"`
}

// ParamDescriptor describes one parameter of a FunctionDescriptor.
type ParamDescriptor struct {
	Name         string        `json:"name"`
	Location     ParamLocation `json:"location"`
	Kind         ParamKind     `json:"kind"`
	Required     bool          `json:"required"`
	Default      *string       `json:"default,omitempty"`
	EnumValues   []string      `json:"enum_values,omitempty"`
	Format       string        `json:"format,omitempty"`
	FrozenValue  *string       `json:"frozen_value,omitempty"`
}

// Frozen reports whether the parameter is server-injected and hidden from
// the VM surface.
func (p *ParamDescriptor) Frozen() bool {
	return p.FrozenValue != nil
}

// RequestBodyDescriptor describes a function's JSON request body.
type RequestBodyDescriptor struct {
	ContentType string `json:"content_type"`
	SchemaRef   string `json:"schema_ref,omitempty"`
	Required    bool   `json:"required"`
}

// FunctionDescriptor is one callable surfaced to the VM as `sdk.<name>`.
type FunctionDescriptor struct {
	Name           string                 `json:"name"`
	API            string                 `json:"api"`
	Method         HTTPMethod             `json:"method"`
	PathTemplate   string                 `json:"path_template"`
	Parameters     []ParamDescriptor      `json:"parameters,omitempty"`
	RequestBody    *RequestBodyDescriptor `json:"request_body,omitempty"`
	ResponseSchema string                 `json:"response_schema,omitempty"`
}

// VisibleParameters returns the non-frozen parameters, i.e. those that
// appear in the VM-facing call signature.
func (f *FunctionDescriptor) VisibleParameters() []ParamDescriptor {
	var out []ParamDescriptor
	for _, p := range f.Parameters {
		if !p.Frozen() {
			out = append(out, p)
		}
	}
	return out
}

// HasBody reports whether the function takes a request body argument.
func (f *FunctionDescriptor) HasBody() bool {
	return f.RequestBody != nil
}

// TypeField is one field of a TypeDescriptor.
type TypeField struct {
	Name     string `json:"name"`
	Type     string `json:"type"` // scalar name, "array:<T>", "map:<T>", or a named reference
	Required bool   `json:"required"`
	Nullable bool   `json:"nullable"`
	Enum     []string `json:"enum,omitempty"`
	Format   string   `json:"format,omitempty"`
}

// TypeDescriptor is a named, possibly recursive, record type referenced by
// request bodies and response schemas.
type TypeDescriptor struct {
	Name   string      `json:"name"`
	Fields []TypeField `json:"fields"`
}

// McpToolParam describes one input parameter of an MCP tool as surfaced to
// the VM signature generator.
//
//nolint:revive // "Mcp" mirrors the manifest's wire vocabulary (§3).
type McpToolParam struct {
	Name        string `json:"name"`
	LuauType    string `json:"luau_type"`
	Required    bool   `json:"required"`
	Description string `json:"description,omitempty"`
}

// McpTool is one tool exposed by an upstream MCP server.
type McpTool struct {
	Name          string          `json:"name"`
	Server        string          `json:"server"`
	Params        []McpToolParam  `json:"params,omitempty"`
	Schemas       []json.RawMessage `json:"schemas,omitempty"`
	OutputSchemas []json.RawMessage `json:"output_schemas,omitempty"`
}

// McpServerDescriptor names one upstream MCP server and the tools it
// advertises at manifest build time. The binder installs exactly this set;
// tools the live server lists beyond it are not added.
type McpServerDescriptor struct {
	Name  string    `json:"name"`
	Tools []McpTool `json:"tools,omitempty"`
}

// Manifest is the top-level JSON document consumed by the catalogue at
// startup (§6).
type Manifest struct {
	Apis        []ApiDescriptor       `json:"apis"`
	Functions   []FunctionDescriptor  `json:"functions"`
	Schemas     []TypeDescriptor      `json:"schemas"`
	McpServers  []McpServerDescriptor `json:"mcp_servers,omitempty"`
}

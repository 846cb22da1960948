// Package discovery imports tool definitions from an external OpenAPI 3.x
// or Swagger 2.0 specification, synthesizing config.ApiServiceConfig and
// config.Tool records an admin can save into a tenant's ToolServiceStore
// without hand-writing a URI for every endpoint (spec.md §4.4, grounded on
// fdl-tools/src/discovery.rs's OpenApiParser).
package discovery

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"gopkg.in/yaml.v3"

	"github.com/r3e-network/flowengine/internal/config"
	"github.com/r3e-network/flowengine/internal/flowerr"
)

// Version identifies which specification dialect a document follows.
type Version string

const (
	VersionSwagger2  Version = "v2"
	VersionOpenAPI3  Version = "v3.0"
	VersionOpenAPI31 Version = "v3.1"
)

// Parameter describes one operation parameter as discovered from a spec
// document (path, query, header, or cookie location).
type Parameter struct {
	Name        string
	Location    string
	Type        string
	Required    bool
	Description string
	Default     any
}

// Tool is one discovered HTTP operation: a method+path pair synthesized
// into an id/name/parameters triple ready to become a config.Tool.
type Tool struct {
	ID                string
	Name              string
	Description       string
	Method            string
	Path              string
	Parameters        []Parameter
	RequestBodySchema json.RawMessage
	ResponseSchema    json.RawMessage
	Tags              []string
}

// Info carries the spec document's top-level info block.
type Info struct {
	Title       string
	Description string
	Version     string
}

// Spec is a fully parsed specification document: version, info, a resolved
// base URL, and every discovered operation.
type Spec struct {
	Version Version
	Info    Info
	BaseURL string
	Tools   []Tool
}

// ParseJSON parses raw OpenAPI/Swagger JSON bytes.
func ParseJSON(data []byte) (*Spec, error) {
	if !gjson.ValidBytes(data) {
		return nil, flowerr.New(flowerr.CodeParseError, "invalid JSON")
	}
	return parseValue(gjson.ParseBytes(data))
}

// ParseYAML parses raw OpenAPI/Swagger YAML bytes by decoding to a generic
// tree and re-encoding to JSON, so the rest of the parser can work over a
// single gjson.Result representation regardless of source format.
func ParseYAML(data []byte) (*Spec, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, flowerr.Wrap(flowerr.CodeParseError, "invalid YAML", err)
	}
	jsonBytes, err := json.Marshal(normalizeYAML(doc))
	if err != nil {
		return nil, flowerr.Wrap(flowerr.CodeParseError, "re-encoding YAML as JSON", err)
	}
	return parseValue(gjson.ParseBytes(jsonBytes))
}

// ParseContent sniffs whether content is JSON or YAML and parses it
// accordingly, mirroring ToolDiscoveryService::discover_from_content.
func ParseContent(content string) (*Spec, error) {
	trimmed := strings.TrimSpace(content)
	if strings.HasPrefix(trimmed, "{") {
		return ParseJSON([]byte(content))
	}
	return ParseYAML([]byte(content))
}

// normalizeYAML rewrites map[interface{}]interface{} nodes (yaml.v3 actually
// emits map[string]interface{}, but nested scalars such as map keys decoded
// from non-string YAML keys can still produce non-string-keyed maps) into
// map[string]interface{} so json.Marshal does not reject them.
func normalizeYAML(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = normalizeYAML(val)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprintf("%v", k)] = normalizeYAML(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = normalizeYAML(val)
		}
		return out
	default:
		return t
	}
}

func parseValue(root gjson.Result) (*Spec, error) {
	version, err := detectVersion(root)
	if err != nil {
		return nil, err
	}
	info := parseInfo(root)
	baseURL := parseBaseURL(root, version)
	tools, err := parsePaths(root, version)
	if err != nil {
		return nil, err
	}
	return &Spec{Version: version, Info: info, BaseURL: baseURL, Tools: tools}, nil
}

func detectVersion(root gjson.Result) (Version, error) {
	if openapi := root.Get("openapi"); openapi.Exists() {
		v := openapi.String()
		switch {
		case strings.HasPrefix(v, "3.1"):
			return VersionOpenAPI31, nil
		case strings.HasPrefix(v, "3.0"):
			return VersionOpenAPI3, nil
		}
	}
	if swagger := root.Get("swagger"); swagger.Exists() && swagger.String() == "2.0" {
		return VersionSwagger2, nil
	}
	return "", flowerr.New(flowerr.CodeParseError, "unable to detect OpenAPI version")
}

func parseInfo(root gjson.Result) Info {
	info := root.Get("info")
	title := info.Get("title").String()
	if title == "" {
		title = "Untitled API"
	}
	version := info.Get("version").String()
	if version == "" {
		version = "1.0.0"
	}
	return Info{Title: title, Description: info.Get("description").String(), Version: version}
}

func parseBaseURL(root gjson.Result, version Version) string {
	switch version {
	case VersionSwagger2:
		host := root.Get("host")
		if !host.Exists() {
			return ""
		}
		scheme := "https"
		if schemes := root.Get("schemes"); schemes.IsArray() && len(schemes.Array()) > 0 {
			scheme = schemes.Array()[0].String()
		}
		return fmt.Sprintf("%s://%s%s", scheme, host.String(), root.Get("basePath").String())
	default:
		servers := root.Get("servers")
		if servers.IsArray() && len(servers.Array()) > 0 {
			return servers.Array()[0].Get("url").String()
		}
		return ""
	}
}

var httpMethods = []string{"get", "post", "put", "patch", "delete", "options", "head"}

func parsePaths(root gjson.Result, version Version) ([]Tool, error) {
	paths := root.Get("paths")
	if !paths.Exists() || !paths.IsObject() {
		return nil, flowerr.New(flowerr.CodeParseError, "missing 'paths' field")
	}

	var tools []Tool
	paths.ForEach(func(pathKey, pathItem gjson.Result) bool {
		if !pathItem.IsObject() {
			return true
		}
		for _, method := range httpMethods {
			op := pathItem.Get(method)
			if !op.Exists() {
				continue
			}
			tools = append(tools, parseOperation(pathKey.String(), method, op, version))
		}
		return true
	})
	return tools, nil
}

func parseOperation(path, method string, op gjson.Result, version Version) Tool {
	operationID := op.Get("operationId").String()
	if operationID == "" {
		operationID = generateOperationID(path, method)
	}

	summary := op.Get("summary").String()
	description := op.Get("description").String()
	name := summary
	if name == "" {
		name = operationID
	}
	desc := description
	if desc == "" {
		desc = summary
	}

	var tags []string
	op.Get("tags").ForEach(func(_, tag gjson.Result) bool {
		tags = append(tags, tag.String())
		return true
	})

	return Tool{
		ID:                operationID,
		Name:              name,
		Description:       desc,
		Method:            strings.ToUpper(method),
		Path:              path,
		Parameters:        parseParameters(op),
		RequestBodySchema: parseRequestBody(op, version),
		ResponseSchema:    parseResponse(op, version),
		Tags:              tags,
	}
}

func generateOperationID(path, method string) string {
	clean := strings.NewReplacer("/", "_", "{", "", "}", "").Replace(path)
	clean = strings.Trim(clean, "_")
	return fmt.Sprintf("%s_%s", method, clean)
}

func parseParameters(op gjson.Result) []Parameter {
	var result []Parameter
	op.Get("parameters").ForEach(func(_, param gjson.Result) bool {
		name := param.Get("name").String()
		if name == "" {
			name = "unknown"
		}
		location := param.Get("in").String()
		if location == "" {
			location = "query"
		}
		p := Parameter{
			Name:        name,
			Location:    location,
			Required:    param.Get("required").Bool(),
			Description: param.Get("description").String(),
			Type:        extractType(param),
		}
		if def := param.Get("default"); def.Exists() {
			p.Default = def.Value()
		}
		result = append(result, p)
		return true
	})
	return result
}

func extractType(param gjson.Result) string {
	if t := param.Get("schema.type"); t.Exists() {
		return t.String()
	}
	if t := param.Get("type"); t.Exists() {
		return t.String()
	}
	return "string"
}

func parseRequestBody(op gjson.Result, version Version) json.RawMessage {
	switch version {
	case VersionSwagger2:
		var schema json.RawMessage
		op.Get("parameters").ForEach(func(_, param gjson.Result) bool {
			if param.Get("in").String() == "body" {
				if s := param.Get("schema"); s.Exists() {
					schema = json.RawMessage(s.Raw)
				}
				return false
			}
			return true
		})
		return schema
	default:
		content := op.Get("requestBody.content")
		if !content.Exists() {
			return nil
		}
		if jsonContent := content.Get("application/json"); jsonContent.Exists() {
			return rawSchema(jsonContent)
		}
		var first json.RawMessage
		content.ForEach(func(_, mediaType gjson.Result) bool {
			first = rawSchema(mediaType)
			return false
		})
		return first
	}
}

func parseResponse(op gjson.Result, version Version) json.RawMessage {
	responses := op.Get("responses")
	if !responses.Exists() {
		return nil
	}
	success := responses.Get("200")
	if !success.Exists() {
		success = responses.Get("201")
	}
	if !success.Exists() {
		success = responses.Get("default")
	}
	if !success.Exists() {
		return nil
	}
	switch version {
	case VersionSwagger2:
		return rawSchema(success)
	default:
		jsonContent := success.Get("content.application/json")
		if !jsonContent.Exists() {
			return nil
		}
		return rawSchema(jsonContent)
	}
}

func rawSchema(v gjson.Result) json.RawMessage {
	schema := v.Get("schema")
	if !schema.Exists() {
		return nil
	}
	return json.RawMessage(schema.Raw)
}

// mapOpenAPIType maps an OpenAPI/Swagger primitive type name to the GML
// value kind an admin-imported Tool's ArgsSchema should declare.
func mapOpenAPIType(openapiType string) string {
	switch openapiType {
	case "integer", "number":
		return "number"
	case "boolean":
		return "boolean"
	case "array":
		return "array"
	case "object":
		return "object"
	default:
		return "string"
	}
}

// ToToolService converts a parsed Spec into a config.ApiServiceConfig plus
// one config.Tool per discovered operation, ready to save into a tenant's
// ConfigStore/ToolServiceStore without hand-authoring a URI per endpoint.
func (s *Spec) ToToolService(serviceCode, tenantID string) (config.ApiServiceConfig, []config.Tool) {
	svc := config.DefaultApiServiceConfig()
	svc.Name = serviceCode
	svc.BaseURL = s.BaseURL
	svc.AuthType = config.AuthNone

	tools := make([]config.Tool, 0, len(s.Tools))
	for _, t := range s.Tools {
		tools = append(tools, discoveredToolToTool(serviceCode, tenantID, t))
	}
	return svc, tools
}

func discoveredToolToTool(serviceCode, tenantID string, t Tool) config.Tool {
	schema := make(map[string]any, len(t.Parameters))
	for _, p := range t.Parameters {
		entry := map[string]any{
			"type":     mapOpenAPIType(p.Type),
			"nullable": !p.Required,
			"in":       p.Location,
		}
		if p.Description != "" {
			entry["description"] = p.Description
		}
		if p.Default != nil {
			entry["default"] = p.Default
		}
		schema[p.Name] = entry
	}

	code := t.ID
	if code == "" {
		code = uuid.NewString()
	}

	return config.Tool{
		TenantID:    tenantID,
		ServiceCode: serviceCode,
		Code:        code,
		DisplayName: t.Name,
		ArgsSchema:  schema,
		Enabled:     true,
	}
}

package tools

import (
	"context"
	"fmt"

	"github.com/r3e-network/flowengine/internal/flow"
	"github.com/r3e-network/flowengine/pkg/gml/value"
)

// executeMCP simulates a call against an MCP server, wrapping the result as
// typed content segments ({text|image|resource}), grounded on
// fdl-executor/src/nodes/mcp.rs's execute_mcp_call — a placeholder even in
// the original implementation, pending a real MCP client.
func (r *ManagedToolRegistry) executeMCP(ctx context.Context, u ParsedURI, args value.Value, tc flow.ToolContext) (value.Value, error) {
	toolName := u.Endpoint

	var segments []value.Value
	switch toolName {
	case "read_file":
		path := argOr(args, "path", value.String("unknown")).AsString()
		segments = []value.Value{textSegment(fmt.Sprintf("[Simulated file content from %s]", path))}
	case "write_file":
		segments = []value.Value{textSegment("File written successfully")}
	case "list_directory":
		path := argOr(args, "path", value.String(".")).AsString()
		segments = []value.Value{textSegment(fmt.Sprintf("[Simulated directory listing for %s]", path))}
	case "search":
		query := argOr(args, "query", value.String("")).AsString()
		segments = []value.Value{textSegment(fmt.Sprintf("[Simulated search results for: %s]", query))}
	default:
		segments = []value.Value{textSegment(fmt.Sprintf("[MCP %s::%s executed]", u.ServiceName, toolName))}
	}

	return value.Mapping(map[string]value.Value{
		"success": value.Bool(true),
		"server":  value.String(u.ServiceName),
		"tool":    value.String(toolName),
		"content": value.Array(segments),
		"isError": value.Bool(false),
	}), nil
}

func textSegment(text string) value.Value {
	return value.Mapping(map[string]value.Value{
		"type": value.String("text"),
		"text": value.String(text),
	})
}

// imageSegment and resourceSegment complete the three content-segment kinds
// spec.md §4.4.4 names; a real MCP client would populate these from server
// responses carrying image or embedded-resource content.
func imageSegment(data, mimeType string) value.Value {
	return value.Mapping(map[string]value.Value{
		"type":     value.String("image"),
		"data":     value.String(data),
		"mimeType": value.String(mimeType),
	})
}

func resourceSegment(uri, text string) value.Value {
	return value.Mapping(map[string]value.Value{
		"type": value.String("resource"),
		"uri":  value.String(uri),
		"text": value.String(text),
	})
}

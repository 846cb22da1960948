package tools

import (
	"context"
	"fmt"

	"github.com/r3e-network/flowengine/internal/flow"
	"github.com/r3e-network/flowengine/pkg/gml/value"
)

// executeAgent simulates an LLM agent invocation. Agent URIs are either
// written directly or composed by the bridge from a `model` field as
// agent://model (spec.md §4.7), so the service name here is the model
// identifier. No agent runtime exists in the corpus this is grounded on
// (fdl-runtime's converter.rs only ever builds the URI, never calls it), so
// this stays a canned response describing what ran, same shape as mcp://.
func (r *ManagedToolRegistry) executeAgent(ctx context.Context, u ParsedURI, args value.Value, tc flow.ToolContext) (value.Value, error) {
	instructions := argOr(args, "instructions", value.String("")).AsString()
	prompt := argOr(args, "prompt", value.String("")).AsString()

	reply := fmt.Sprintf("[Simulated response from agent model %s]", u.ServiceName)
	if prompt != "" {
		reply = fmt.Sprintf("[Simulated response from agent model %s for prompt: %s]", u.ServiceName, prompt)
	}

	return value.Mapping(map[string]value.Value{
		"success":      value.Bool(true),
		"model":        value.String(u.ServiceName),
		"instructions": value.String(instructions),
		"content":      value.String(reply),
	}), nil
}

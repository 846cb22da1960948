// Package tools implements URI-addressed tool dispatch (spec.md §4.4):
// ManagedToolRegistry resolves a scheme://service[/operation[/...]] URI
// against tenant-scoped configuration and delegates to a scheme-specific
// handler. Grounded on fdl-tools/src/managed.rs.
package tools

import (
	"strings"

	"github.com/r3e-network/flowengine/internal/flowerr"
)

// ParsedURI is the result of parsing a tool URI into its scheme, service
// name and remaining path, grounded on managed.rs's ParsedUri.
type ParsedURI struct {
	Scheme      string
	ServiceName string
	Endpoint    string // remaining path after the service name, "" if absent
	HasEndpoint bool
}

// ParseURI splits a URI of the form "scheme://service[/endpoint...][?query]".
// The query string, if present, is discarded: FlowEngine's tool URIs carry
// no query-string arguments of their own (args are the node's `args`
// mapping, not the URI).
func ParseURI(uri string) (ParsedURI, error) {
	parts := strings.SplitN(uri, "://", 2)
	if len(parts) != 2 || parts[0] == "" {
		return ParsedURI{}, flowerr.New(flowerr.CodeInvalidURI, "invalid uri: "+uri)
	}

	scheme := parts[0]
	remaining := parts[1]
	if idx := strings.IndexByte(remaining, '?'); idx >= 0 {
		remaining = remaining[:idx]
	}

	pathParts := strings.SplitN(remaining, "/", 2)
	serviceName := pathParts[0]
	if serviceName == "" {
		return ParsedURI{}, flowerr.New(flowerr.CodeInvalidURI, "invalid uri, missing service: "+uri)
	}

	p := ParsedURI{Scheme: scheme, ServiceName: serviceName}
	if len(pathParts) > 1 {
		p.Endpoint = pathParts[1]
		p.HasEndpoint = true
	}
	return p, nil
}

// EndpointOr returns the parsed endpoint, or fallback when the URI had none
// (e.g. db:// URIs default to the "list" UDF per managed.rs).
func (p ParsedURI) EndpointOr(fallback string) string {
	if p.HasEndpoint {
		return p.Endpoint
	}
	return fallback
}

// SplitEndpoint further splits a multi-segment endpoint on "/", used by the
// oss/mq/mail/sms/svc handlers whose URIs carry an explicit operation ahead
// of a resource path (e.g. "oss://minio/upload/reports/file.json").
func SplitEndpoint(endpoint string) (first, rest string, hasRest bool) {
	parts := strings.SplitN(endpoint, "/", 2)
	if len(parts) == 1 {
		return parts[0], "", false
	}
	return parts[0], parts[1], true
}

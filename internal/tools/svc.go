package tools

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/r3e-network/flowengine/internal/flow"
	"github.com/r3e-network/flowengine/pkg/gml/value"
)

type svcOperation string

const (
	svcCall      svcOperation = "call"
	svcHealth    svcOperation = "health"
	svcInfo      svcOperation = "info"
	svcEndpoints svcOperation = "endpoints"
)

func parseSvcOperation(s string) (svcOperation, bool) {
	switch strings.ToLower(s) {
	case "call", "invoke", "rpc":
		return svcCall, true
	case "health", "healthcheck", "ping":
		return svcHealth, true
	case "info", "metadata":
		return svcInfo, true
	case "endpoints", "instances", "list":
		return svcEndpoints, true
	default:
		return "", false
	}
}

// resolveSvcOperation mirrors svc.rs's parse_path: a recognized operation
// name in the first endpoint segment selects that operation with the method
// in the remainder; otherwise the whole endpoint is the method and the
// operation defaults to Call.
func resolveSvcOperation(endpoint string) (op svcOperation, method string) {
	if endpoint == "" {
		return svcCall, ""
	}
	first, rest, hasRest := SplitEndpoint(endpoint)
	if parsed, ok := parseSvcOperation(first); ok {
		return parsed, rest
	}
	if !hasRest {
		return svcCall, first
	}
	return svcCall, endpoint
}

// svcRoundRobin tracks the next-endpoint index per (tenant, service),
// grounded on svc.rs's SvcConnection.current_index AtomicUsize.
var svcRoundRobin sync.Map // map[string]*uint64

func nextRoundRobinIndex(key string) uint64 {
	v, _ := svcRoundRobin.LoadOrStore(key, new(uint64))
	counter := v.(*uint64)
	return atomic.AddUint64(counter, 1) - 1
}

func svcEndpointList(cfg map[string]any) []string {
	raw, ok := cfg["endpoints"].([]any)
	if !ok {
		if single := stringConfig(cfg, "endpoint"); single != "" {
			return []string{single}
		}
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, e := range raw {
		if s, ok := e.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func selectSvcEndpoint(roundRobinKey string, endpoints []string, loadBalancer string) string {
	if len(endpoints) == 0 {
		return ""
	}
	switch loadBalancer {
	case "random":
		return endpoints[time.Now().UnixNano()%int64(len(endpoints))]
	case "least_connections", "weighted":
		return endpoints[0]
	default: // round_robin
		idx := nextRoundRobinIndex(roundRobinKey)
		return endpoints[idx%uint64(len(endpoints))]
	}
}

func (r *ManagedToolRegistry) executeSvc(ctx context.Context, u ParsedURI, args value.Value, tc flow.ToolContext) (value.Value, error) {
	svc, err := r.requireToolService(ctx, tc.TenantID, u.ServiceName)
	if err != nil {
		return value.Null, err
	}
	protocol := stringConfig(svc.Config, "protocol")
	loadBalancer := stringConfig(svc.Config, "load_balancer")
	endpoints := svcEndpointList(svc.Config)

	op, method := resolveSvcOperation(u.Endpoint)

	switch op {
	case svcCall:
		if method == "" {
			method = stringArgOr(args, "method", "")
		}
		if method == "" {
			return value.Null, missingArg("method")
		}
		endpoint := selectSvcEndpoint(tc.TenantID+"/"+u.ServiceName, endpoints, loadBalancer)
		if endpoint == "" {
			return value.Null, flowerrInvalidArg("no available endpoints")
		}
		body := argOr(args, "body", argOr(args, "data", value.Null))
		return value.Mapping(map[string]value.Value{
			"success":      value.Bool(true),
			"requestId":    value.String(uuid.NewString()),
			"endpoint":     value.String(endpoint),
			"method":       value.String(method),
			"protocol":     value.String(protocol),
			"loadBalancer": value.String(loadBalancer),
			"request": value.Mapping(map[string]value.Value{
				"body": body,
			}),
			"response": value.Mapping(map[string]value.Value{
				"status": value.Int(200),
				"body": value.Mapping(map[string]value.Value{
					"result": value.String("ok"),
					"data":   value.Mapping(map[string]value.Value{"sample": value.String("response data")}),
				}),
			}),
			"latencyMs": value.Int(15),
			"timestamp": value.String(time.Now().UTC().Format(time.RFC3339)),
		}), nil
	case svcHealth:
		results := make([]value.Value, 0, len(endpoints))
		for _, ep := range endpoints {
			results = append(results, value.Mapping(map[string]value.Value{
				"endpoint":  value.String(ep),
				"healthy":   value.Bool(true),
				"latencyMs": value.Int(5),
			}))
		}
		return value.Mapping(map[string]value.Value{
			"success":   value.Bool(true),
			"healthy":   value.Bool(len(endpoints) > 0),
			"protocol":  value.String(protocol),
			"endpoints": value.Array(results),
			"timestamp": value.String(time.Now().UTC().Format(time.RFC3339)),
		}), nil
	case svcInfo:
		return value.Mapping(map[string]value.Value{
			"success":       value.Bool(true),
			"protocol":      value.String(protocol),
			"loadBalancer":  value.String(loadBalancer),
			"endpoints":     stringsToValues(endpoints),
			"endpointCount": value.Int(int64(len(endpoints))),
		}), nil
	case svcEndpoints:
		return value.Mapping(map[string]value.Value{
			"success":   value.Bool(true),
			"endpoints": stringsToValues(endpoints),
		}), nil
	default:
		return value.Null, flowerrInvalidArg(fmt.Sprintf("unknown svc operation for endpoint %q", u.Endpoint))
	}
}

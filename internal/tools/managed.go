package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/r3e-network/flowengine/internal/config"
	"github.com/r3e-network/flowengine/internal/flow"
	"github.com/r3e-network/flowengine/internal/flowerr"
	"github.com/r3e-network/flowengine/pkg/gml/value"
)

// ManagedToolRegistry is the flow.ToolDispatcher backing implementation: it
// resolves a scheme://service/... URI against a tenant-scoped
// config.ConfigStore and a config.ToolServiceStore, then dispatches to the
// scheme-specific handler. Grounded on fdl-tools/src/managed.rs's
// ManagedToolRegistry.
type ManagedToolRegistry struct {
	configStore  config.ConfigStore
	serviceStore config.ToolServiceStore
	http         *http.Client
}

// NewManagedToolRegistry builds a registry backed by the given stores. A nil
// *http.Client falls back to a client with a conservative default timeout;
// per-call timeouts from ToolContext still take precedence when set.
func NewManagedToolRegistry(cs config.ConfigStore, ss config.ToolServiceStore, httpClient *http.Client) *ManagedToolRegistry {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &ManagedToolRegistry{configStore: cs, serviceStore: ss, http: httpClient}
}

var _ flow.ToolDispatcher = (*ManagedToolRegistry)(nil)

// Dispatch implements flow.ToolDispatcher (spec.md §4.4).
func (r *ManagedToolRegistry) Dispatch(uri string, args value.Value, tc flow.ToolContext) (value.Value, error) {
	parsed, err := ParseURI(uri)
	if err != nil {
		return value.Null, err
	}

	ctx := context.Background()
	if tc.TimeoutMs > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(tc.TimeoutMs)*time.Millisecond)
		defer cancel()
	}

	switch parsed.Scheme {
	case "api":
		return r.executeAPI(ctx, parsed, args, tc)
	case "db":
		return r.executeDB(ctx, parsed, args, tc)
	case "mcp":
		return r.executeMCP(ctx, parsed, args, tc)
	case "agent":
		return r.executeAgent(ctx, parsed, args, tc)
	case "oss":
		return r.executeOSS(ctx, parsed, args, tc)
	case "mq":
		return r.executeMQ(ctx, parsed, args, tc)
	case "mail":
		return r.executeMail(ctx, parsed, args, tc)
	case "sms":
		return r.executeSMS(ctx, parsed, args, tc)
	case "svc":
		return r.executeSvc(ctx, parsed, args, tc)
	default:
		return value.Null, flowerr.New(flowerr.CodeToolNotFound, "unsupported tool scheme: "+parsed.Scheme)
	}
}

// executeAPI resolves an ApiServiceConfig by (tenant, service) and POSTs the
// node's args as JSON to base_url/endpoint, applying the configured auth and
// header merging (spec.md §4.4, grounded on managed.rs's execute_api).
func (r *ManagedToolRegistry) executeAPI(ctx context.Context, u ParsedURI, args value.Value, tc flow.ToolContext) (value.Value, error) {
	svc, err := r.configStore.GetApiService(ctx, tc.TenantID, u.ServiceName)
	if err != nil {
		return value.Null, flowerr.Wrap(flowerr.CodeConnectionError, "looking up api service", err)
	}
	if svc == nil {
		return value.Null, flowerr.New(flowerr.CodeToolNotFound, "api service not found: "+u.ServiceName)
	}
	if !svc.Enabled {
		return value.Null, flowerr.New(flowerr.CodeToolNotFound, "api service disabled: "+u.ServiceName)
	}

	url := svc.BaseURL
	if u.Endpoint != "" {
		url = url + "/" + u.Endpoint
	}

	body, err := json.Marshal(ToNative(args))
	if err != nil {
		return value.Null, flowerr.Wrap(flowerr.CodeToolInvalidArg, "encoding api request body", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return value.Null, flowerr.Wrap(flowerr.CodeConnectionError, "building api request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Tenant-Id", tc.TenantID)
	req.Header.Set("X-Bu-Code", tc.BuCode)
	for k, v := range svc.DefaultHeaders {
		req.Header.Set(k, v)
	}
	for k, v := range tc.Headers {
		req.Header.Set(k, v)
	}
	if err := applyAuth(req, svc.AuthType, svc.AuthConfig); err != nil {
		return value.Null, err
	}

	return doJSONRequest(r.http, req)
}

// applyAuth mutates req's headers per AuthType, grounded on managed.rs's
// apply_auth.
func applyAuth(req *http.Request, authType config.AuthType, cfg map[string]string) error {
	switch authType {
	case config.AuthNone, "":
		return nil
	case config.AuthAPIKey:
		header := cfg["header_name"]
		if header == "" {
			header = "X-API-Key"
		}
		req.Header.Set(header, cfg["api_key"])
	case config.AuthBasic:
		req.SetBasicAuth(cfg["username"], cfg["password"])
	case config.AuthBearer:
		req.Header.Set("Authorization", "Bearer "+cfg["token"])
	case config.AuthOAuth2:
		req.Header.Set("Authorization", "Bearer "+cfg["access_token"])
	case config.AuthCustom:
		const prefix = "header_"
		for k, v := range cfg {
			if len(k) > len(prefix) && k[:len(prefix)] == prefix {
				req.Header.Set(k[len(prefix):], v)
			}
		}
	default:
		return flowerr.New(flowerr.CodeAuthError, "unknown auth type: "+string(authType))
	}
	return nil
}

func doJSONRequest(client *http.Client, req *http.Request) (value.Value, error) {
	resp, err := client.Do(req)
	if err != nil {
		return value.Null, flowerr.Wrap(flowerr.CodeConnectionError, "calling tool endpoint", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return value.Null, flowerr.Wrap(flowerr.CodeConnectionError, "reading tool response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return value.Null, flowerr.HTTPError(resp.StatusCode, string(respBody))
	}

	if len(respBody) == 0 {
		return value.Null, nil
	}
	var decoded any
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		return value.String(string(respBody)), nil
	}
	return FromNative(decoded), nil
}

func notImplemented(what string) (value.Value, error) {
	return value.Null, flowerr.New(flowerr.CodeToolExecution, fmt.Sprintf("%s is not yet implemented", what))
}

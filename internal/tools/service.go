package tools

import (
	"context"

	"github.com/r3e-network/flowengine/internal/config"
	"github.com/r3e-network/flowengine/internal/flowerr"
	"github.com/r3e-network/flowengine/pkg/gml/value"
)

// requireToolService resolves an enabled config.ToolService by (tenant,
// code) for the placeholder oss/mq/mail/sms/svc schemes, which carry their
// connection settings as a ToolServiceStore row's Config map rather than a
// dedicated ConfigStore table.
func (r *ManagedToolRegistry) requireToolService(ctx context.Context, tenantID, code string) (*config.ToolService, error) {
	svc, err := r.serviceStore.GetService(ctx, tenantID, code)
	if err != nil {
		return nil, flowerr.Wrap(flowerr.CodeConnectionError, "looking up tool service", err)
	}
	if svc == nil {
		return nil, flowerr.New(flowerr.CodeToolNotFound, "tool service not found: "+code)
	}
	if !svc.Enabled {
		return nil, flowerr.New(flowerr.CodeToolNotFound, "tool service disabled: "+code)
	}
	return svc, nil
}

func stringConfig(cfg map[string]any, key string) string {
	if cfg == nil {
		return ""
	}
	if s, ok := cfg[key].(string); ok {
		return s
	}
	return ""
}

func stringArgOr(args value.Value, key, fallback string) string {
	v := argOr(args, key, value.Null)
	if v.Kind() == value.KindString {
		return v.AsString()
	}
	return fallback
}

func intArgOr(args value.Value, key string, fallback int64) int64 {
	v := argOr(args, key, value.Null)
	if v.IsNumeric() {
		return int64(v.Float64())
	}
	return fallback
}

func missingArg(name string) error {
	return flowerr.New(flowerr.CodeToolInvalidArg, "missing '"+name+"' parameter")
}

func flowerrInvalidArg(message string) error {
	return flowerr.New(flowerr.CodeToolInvalidArg, message)
}

package tools

import (
	"context"
	"fmt"

	"github.com/r3e-network/flowengine/internal/config"
	"github.com/r3e-network/flowengine/internal/flow"
	"github.com/r3e-network/flowengine/internal/flowerr"
	"github.com/r3e-network/flowengine/pkg/gml/value"
)

// executeDB resolves a DatasourceConfig and UdfConfig by (tenant, service,
// operation) and dispatches by UdfType. The endpoint defaults to "list" when
// the URI names only the datasource (spec.md §4.4, grounded on managed.rs's
// execute_db).
func (r *ManagedToolRegistry) executeDB(ctx context.Context, u ParsedURI, args value.Value, tc flow.ToolContext) (value.Value, error) {
	ds, err := r.configStore.GetDatasource(ctx, tc.TenantID, u.ServiceName)
	if err != nil {
		return value.Null, flowerr.Wrap(flowerr.CodeConnectionError, "looking up datasource", err)
	}
	if ds == nil {
		return value.Null, flowerr.New(flowerr.CodeToolNotFound, "datasource not found: "+u.ServiceName)
	}
	if !ds.Enabled {
		return value.Null, flowerr.New(flowerr.CodeToolNotFound, "datasource disabled: "+u.ServiceName)
	}

	operation := u.EndpointOr("list")
	udf, err := r.configStore.GetUdf(ctx, tc.TenantID, operation)
	if err != nil {
		return value.Null, flowerr.Wrap(flowerr.CodeConnectionError, "looking up udf", err)
	}
	if udf == nil {
		return value.Null, flowerr.New(flowerr.CodeToolNotFound, "udf not found: "+operation)
	}
	if !udf.Enabled {
		return value.Null, flowerr.New(flowerr.CodeToolNotFound, "udf disabled: "+operation)
	}
	if !dbTypeApplies(udf.ApplicableDBTypes, ds.DBType) {
		return value.Null, flowerr.New(flowerr.CodeDatabaseError,
			fmt.Sprintf("udf %q does not apply to db type %q", operation, ds.DBType))
	}

	switch udf.UdfType {
	case config.UdfBuiltin:
		return executeBuiltinUdf(udf.Handler, ds, args)
	case config.UdfSQL:
		return notImplemented("sql udf execution")
	case config.UdfWasm:
		return notImplemented("wasm udf execution")
	case config.UdfHTTP:
		return notImplemented("http udf execution")
	default:
		return value.Null, flowerr.New(flowerr.CodeDatabaseError, "unknown udf type: "+string(udf.UdfType))
	}
}

func dbTypeApplies(applicable []config.DatabaseType, dbType config.DatabaseType) bool {
	if len(applicable) == 0 {
		return true
	}
	for _, t := range applicable {
		if t == dbType {
			return true
		}
	}
	return false
}

// executeBuiltinUdf returns the canned JSON response for one of the eight
// built-in handlers (builtin::take/list/count/page/create/modify/delete/
// native), grounded on managed.rs's handling of UdfType::Builtin — these are
// placeholder responses in the original implementation too, pending a real
// backend-specific query layer per datasource.
func executeBuiltinUdf(handler string, ds *config.DatasourceConfig, args value.Value) (value.Value, error) {
	meta := map[string]value.Value{
		"datasource": value.String(ds.Name),
		"table":      value.String(ds.Table),
	}

	switch handler {
	case "builtin::count":
		return value.Mapping(mergeMapping(meta, map[string]value.Value{"count": value.Int(0)})), nil
	case "builtin::list", "builtin::take":
		return value.Mapping(mergeMapping(meta, map[string]value.Value{"items": value.Array(nil)})), nil
	case "builtin::page":
		return value.Mapping(mergeMapping(meta, map[string]value.Value{
			"items": value.Array(nil),
			"page":  argOr(args, "page", value.Int(1)),
			"size":  argOr(args, "size", value.Int(20)),
			"total": value.Int(0),
		})), nil
	case "builtin::create":
		return value.Mapping(mergeMapping(meta, map[string]value.Value{"created": value.Bool(true)})), nil
	case "builtin::modify":
		return value.Mapping(mergeMapping(meta, map[string]value.Value{"modified": value.Int(0)})), nil
	case "builtin::delete":
		return value.Mapping(mergeMapping(meta, map[string]value.Value{"deleted": value.Int(0)})), nil
	case "builtin::native":
		return notImplemented("native query execution")
	default:
		return value.Null, flowerr.New(flowerr.CodeDatabaseError, "unknown builtin handler: "+handler)
	}
}

func mergeMapping(base, extra map[string]value.Value) map[string]value.Value {
	out := make(map[string]value.Value, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

func argOr(args value.Value, key string, fallback value.Value) value.Value {
	if args.Kind() != value.KindMapping {
		return fallback
	}
	if v, ok := args.AsMapping()[key]; ok {
		return v
	}
	return fallback
}

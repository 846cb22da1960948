package tools

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/r3e-network/flowengine/internal/flow"
	"github.com/r3e-network/flowengine/pkg/gml/value"
)

// ossOperation mirrors oss.rs's OssOperation, an alias-tolerant operation
// name for object storage calls (oss://service-id/operation/key, or
// oss://service-id/path/to/key with `operation` carried in args).
type ossOperation string

const (
	ossUpload   ossOperation = "upload"
	ossDownload ossOperation = "download"
	ossDelete   ossOperation = "delete"
	ossList     ossOperation = "list"
	ossPresign  ossOperation = "presign"
	ossCopy     ossOperation = "copy"
	ossHead     ossOperation = "head"
)

func parseOssOperation(s string) (ossOperation, bool) {
	switch strings.ToLower(s) {
	case "upload", "put", "save":
		return ossUpload, true
	case "download", "get", "load":
		return ossDownload, true
	case "delete", "remove", "del":
		return ossDelete, true
	case "list", "ls":
		return ossList, true
	case "presign", "sign":
		return ossPresign, true
	case "copy", "cp":
		return ossCopy, true
	case "head", "meta", "metadata":
		return ossHead, true
	default:
		return "", false
	}
}

// resolveOssOperation resolves the operation and object key from the URI
// endpoint and args, per oss.rs's parse_path_with_args: an explicit
// `operation` arg takes the whole endpoint as the key; otherwise the first
// endpoint segment is tried as an operation name, falling back to Download
// with the full endpoint as key.
func resolveOssOperation(endpoint string, args value.Value) (ossOperation, string) {
	if opArg := argOr(args, "operation", value.Null); opArg.Kind() == value.KindString {
		if op, ok := parseOssOperation(opArg.AsString()); ok {
			return op, endpoint
		}
	}

	first, rest, hasRest := SplitEndpoint(endpoint)
	if op, ok := parseOssOperation(first); ok {
		return op, rest
	}
	if !hasRest {
		return ossDownload, first
	}
	return ossDownload, endpoint
}

func (r *ManagedToolRegistry) executeOSS(ctx context.Context, u ParsedURI, args value.Value, tc flow.ToolContext) (value.Value, error) {
	svc, err := r.requireToolService(ctx, tc.TenantID, u.ServiceName)
	if err != nil {
		return value.Null, err
	}
	bucket := stringConfig(svc.Config, "bucket")
	endpoint := stringConfig(svc.Config, "endpoint")
	if endpoint == "" {
		endpoint = "https://s3.amazonaws.com"
	}

	op, key := resolveOssOperation(u.Endpoint, args)
	if k := argOr(args, "key", value.Null); k.Kind() == value.KindString && k.AsString() != "" {
		key = k.AsString()
	}

	switch op {
	case ossUpload:
		if key == "" {
			return value.Null, missingArg("key")
		}
		contentType := stringArgOr(args, "contentType", "application/octet-stream")
		return value.Mapping(map[string]value.Value{
			"success":     value.Bool(true),
			"bucket":      value.String(bucket),
			"key":         value.String(key),
			"contentType": value.String(contentType),
			"etag":        value.String(fmt.Sprintf("%q", randomHex(16))),
			"url":         value.String(fmt.Sprintf("%s/%s/%s", endpoint, bucket, key)),
		}), nil
	case ossDownload:
		if key == "" {
			return value.Null, missingArg("key")
		}
		return value.Mapping(map[string]value.Value{
			"success":      value.Bool(true),
			"bucket":       value.String(bucket),
			"key":          value.String(key),
			"content":      value.String(fmt.Sprintf("[Content of %s]", key)),
			"contentType":  value.String("application/octet-stream"),
			"size":         value.Int(1024),
			"lastModified": value.String(time.Now().UTC().Format(time.RFC3339)),
		}), nil
	case ossDelete:
		if key == "" {
			return value.Null, missingArg("key")
		}
		return value.Mapping(map[string]value.Value{
			"success": value.Bool(true),
			"bucket":  value.String(bucket),
			"key":     value.String(key),
			"deleted": value.Bool(true),
		}), nil
	case ossList:
		prefix := stringArgOr(args, "prefix", "")
		return value.Mapping(map[string]value.Value{
			"success":     value.Bool(true),
			"bucket":      value.String(bucket),
			"prefix":      value.String(prefix),
			"isTruncated": value.Bool(false),
			"contents": value.Array([]value.Value{
				ossEntry(prefix + "example1.txt", 1024),
				ossEntry(prefix + "example2.json", 2048),
			}),
		}), nil
	case ossPresign:
		if key == "" {
			return value.Null, missingArg("key")
		}
		expiresIn := intArgOr(args, "expiresIn", 3600)
		signedURL := fmt.Sprintf("%s/%s/%s?X-Signature=mock_signature&X-Expires=%d", endpoint, bucket, key, expiresIn)
		return value.Mapping(map[string]value.Value{
			"success":   value.Bool(true),
			"bucket":    value.String(bucket),
			"key":       value.String(key),
			"signedUrl": value.String(signedURL),
			"expiresIn": value.Int(expiresIn),
			"expiresAt": value.String(time.Now().Add(time.Duration(expiresIn) * time.Second).UTC().Format(time.RFC3339)),
		}), nil
	case ossCopy:
		return notImplemented("oss copy operation")
	case ossHead:
		return notImplemented("oss head operation")
	default:
		return value.Null, missingArg("operation")
	}
}

func ossEntry(key string, size int64) value.Value {
	return value.Mapping(map[string]value.Value{
		"key":          value.String(key),
		"size":         value.Int(size),
		"lastModified": value.String(time.Now().UTC().Format(time.RFC3339)),
	})
}

func randomHex(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

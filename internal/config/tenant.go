package config

import "github.com/google/uuid"

// GlobalTenant is the sentinel bucket built-in UDFs are registered under;
// tenant-named rows shadow it by name (spec.md §4.5).
const GlobalTenant = "__global__"

// defaultTenantID is the fixed identifier the literal tenant name "default"
// (or an empty tenant) normalizes to, so callers that never set a tenant_id
// still land in one stable, non-colliding bucket instead of the raw string
// "default" or "".
const defaultTenantID = "00000000-0000-0000-0000-000000000000"

// tenantNamespace seeds the UUIDv5 hash for non-UUID tenant strings, so the
// same input always produces the same normalized id across processes.
var tenantNamespace = uuid.MustParse("6c1f42b0-6b3e-4e0a-9f0e-6b6f5b1a9b10")

// NormalizeTenantID maps a caller-supplied tenant identifier onto a stable
// key: "" and "default" collapse to a fixed sentinel UUID, a syntactically
// valid UUID passes through unchanged, and anything else (a legacy numeric
// customer id, a slug) is deterministically hashed into a UUIDv5 identifier
// so two callers naming the same tenant string always resolve to the same
// store key (spec.md §4.5).
func NormalizeTenantID(tenantID string) string {
	if tenantID == "" || tenantID == "default" {
		return defaultTenantID
	}
	if _, err := uuid.Parse(tenantID); err == nil {
		return tenantID
	}
	return uuid.NewSHA1(tenantNamespace, []byte(tenantID)).String()
}

package config

import (
	"context"
	"testing"
)

func TestNormalizeTenantIDDefaultSentinel(t *testing.T) {
	if NormalizeTenantID("") != defaultTenantID {
		t.Fatalf("expected empty tenant to normalize to sentinel")
	}
	if NormalizeTenantID("default") != defaultTenantID {
		t.Fatalf("expected 'default' tenant to normalize to sentinel")
	}
}

func TestNormalizeTenantIDPassesThroughUUID(t *testing.T) {
	id := "6c1f42b0-6b3e-4e0a-9f0e-6b6f5b1a9b11"
	if NormalizeTenantID(id) != id {
		t.Fatalf("expected valid UUID to pass through unchanged")
	}
}

func TestNormalizeTenantIDHashesNonUUIDDeterministically(t *testing.T) {
	a := NormalizeTenantID("acme-corp")
	b := NormalizeTenantID("acme-corp")
	c := NormalizeTenantID("other-corp")
	if a != b {
		t.Fatalf("expected repeated hashing of the same tenant string to match")
	}
	if a == c {
		t.Fatalf("expected different tenant strings to hash differently")
	}
}

func TestInMemoryConfigStoreBuiltinUdfsVisibleToAnyTenant(t *testing.T) {
	store := NewInMemoryConfigStore()
	ctx := context.Background()

	udfs, err := store.ListUdfs(ctx, "any-tenant")
	if err != nil || len(udfs) == 0 {
		t.Fatalf("expected built-in udfs to be listed, err=%v len=%d", err, len(udfs))
	}

	count, err := store.GetUdf(ctx, "any-tenant", "count")
	if err != nil || count == nil || !count.IsBuiltin {
		t.Fatalf("expected built-in 'count' udf, got %+v err=%v", count, err)
	}
}

func TestInMemoryConfigStoreTenantUdfShadowsBuiltin(t *testing.T) {
	store := NewInMemoryConfigStore()
	ctx := context.Background()

	custom := UdfConfig{Name: "count", DisplayName: "Custom count", UdfType: UdfSQL, Handler: "sql::custom_count", Enabled: true}
	if err := store.SaveUdf(ctx, "tenant-a", custom); err != nil {
		t.Fatalf("save udf: %v", err)
	}

	got, err := store.GetUdf(ctx, "tenant-a", "count")
	if err != nil || got == nil || got.IsBuiltin {
		t.Fatalf("expected tenant-specific udf to shadow builtin, got %+v err=%v", got, err)
	}

	// a different tenant still sees the builtin.
	other, err := store.GetUdf(ctx, "tenant-b", "count")
	if err != nil || other == nil || !other.IsBuiltin {
		t.Fatalf("expected other tenant to still see the builtin, got %+v err=%v", other, err)
	}
}

func TestInMemoryConfigStoreApiServiceCRUD(t *testing.T) {
	store := NewInMemoryConfigStore()
	ctx := context.Background()

	cfg := DefaultApiServiceConfig()
	cfg.Name = "crm-service"
	cfg.BaseURL = "https://api.example.com"
	if err := store.SaveApiService(ctx, "tenant1", cfg); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := store.GetApiService(ctx, "tenant1", "crm-service")
	if err != nil || got == nil || got.BaseURL != "https://api.example.com" {
		t.Fatalf("unexpected get result: %+v err=%v", got, err)
	}

	if err := store.DeleteApiService(ctx, "tenant1", "crm-service"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got, err = store.GetApiService(ctx, "tenant1", "crm-service")
	if err != nil || got != nil {
		t.Fatalf("expected nil after delete, got %+v", got)
	}
}

func TestConfigStoreTenantIsolation(t *testing.T) {
	store := NewInMemoryConfigStore()
	ctx := context.Background()

	cfg := DefaultApiServiceConfig()
	cfg.Name = "svc"
	_ = store.SaveApiService(ctx, "tenant-a", cfg)

	got, err := store.GetApiService(ctx, "tenant-b", "svc")
	if err != nil || got != nil {
		t.Fatalf("expected tenant-b to not observe tenant-a's data, got %+v", got)
	}

	listA, _ := store.ListApiServices(ctx, "tenant-a")
	listB, _ := store.ListApiServices(ctx, "tenant-b")
	if len(listA) != 1 || len(listB) != 0 {
		t.Fatalf("expected listing isolation, got lenA=%d lenB=%d", len(listA), len(listB))
	}
}

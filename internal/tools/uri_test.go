package tools

import "testing"

func TestParseURIServiceAndEndpoint(t *testing.T) {
	p, err := ParseURI("api://crm-service/customers/list")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Scheme != "api" || p.ServiceName != "crm-service" || p.Endpoint != "customers/list" {
		t.Fatalf("unexpected parse result: %+v", p)
	}
}

func TestParseURINoEndpoint(t *testing.T) {
	p, err := ParseURI("db://warehouse")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.HasEndpoint {
		t.Fatalf("expected no endpoint, got %q", p.Endpoint)
	}
	if p.EndpointOr("list") != "list" {
		t.Fatalf("expected fallback endpoint")
	}
}

func TestParseURIStripsQuery(t *testing.T) {
	p, err := ParseURI("mcp://filesystem/read_file?trace=1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Endpoint != "read_file" {
		t.Fatalf("expected query to be stripped, got %q", p.Endpoint)
	}
}

func TestParseURIMissingSchemeSeparator(t *testing.T) {
	if _, err := ParseURI("not-a-uri"); err == nil {
		t.Fatalf("expected error for missing ://")
	}
}

func TestParseURIEmptyService(t *testing.T) {
	if _, err := ParseURI("api:///endpoint"); err == nil {
		t.Fatalf("expected error for empty service")
	}
}

func TestSplitEndpoint(t *testing.T) {
	first, rest, hasRest := SplitEndpoint("upload/reports/file.json")
	if first != "upload" || rest != "reports/file.json" || !hasRest {
		t.Fatalf("unexpected split: %q %q %v", first, rest, hasRest)
	}

	first, rest, hasRest = SplitEndpoint("solo")
	if first != "solo" || rest != "" || hasRest {
		t.Fatalf("unexpected split for single segment: %q %q %v", first, rest, hasRest)
	}
}

package geoip

import "testing"

func TestNew_EmptyPathDisablesLookups(t *testing.T) {
	r, err := New("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	country, city := r.Lookup("8.8.8.8")
	if country != "" || city != "" {
		t.Errorf("expected empty results with no database, got %q/%q", country, city)
	}
}

func TestNew_MissingFileDisablesLookups(t *testing.T) {
	r, err := New("/nonexistent/geoip.mmdb")
	if err != nil {
		t.Fatalf("expected missing database to be tolerated, got %v", err)
	}
	country, city := r.Lookup("8.8.8.8")
	if country != "" || city != "" {
		t.Errorf("expected empty results with missing database, got %q/%q", country, city)
	}
}

func TestLookup_InvalidIP(t *testing.T) {
	r, _ := New("")
	if country, _ := r.Lookup("not-an-ip"); country != "" {
		t.Errorf("expected empty country for invalid IP, got %q", country)
	}
}

func TestLookup_NilResolver(t *testing.T) {
	var r *Resolver
	if country, city := r.Lookup("8.8.8.8"); country != "" || city != "" {
		t.Error("expected nil resolver to return empty results")
	}
}

func TestClose_WithoutDatabase(t *testing.T) {
	r, _ := New("")
	if err := r.Close(); err != nil {
		t.Errorf("unexpected error closing resolver without database: %v", err)
	}
}

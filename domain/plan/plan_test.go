package plan

import (
	"testing"
	"time"
)

func TestGrant_Found(t *testing.T) {
	p := Plan{
		ID: "pro",
		Grants: []FeatureGrant{
			{PlanID: "pro", ComponentID: "invoice_ocr", Enabled: true, Limit: Limit(100)},
			{PlanID: "pro", ComponentID: "export_pdf", Enabled: true},
		},
	}

	g, ok := p.Grant("invoice_ocr")
	if !ok {
		t.Fatal("expected grant for invoice_ocr")
	}
	if g.Limit == nil || *g.Limit != 100 {
		t.Errorf("expected limit=100, got %v", g.Limit)
	}
	if g.Unbounded() {
		t.Error("expected bounded grant")
	}
}

func TestGrant_NotFound(t *testing.T) {
	p := Plan{ID: "free"}

	if _, ok := p.Grant("invoice_ocr"); ok {
		t.Error("expected no grant on empty plan")
	}
}

func TestGrant_Unbounded(t *testing.T) {
	p := Plan{
		ID:     "enterprise",
		Grants: []FeatureGrant{{PlanID: "enterprise", ComponentID: "export_pdf", Enabled: true}},
	}

	g, ok := p.Grant("export_pdf")
	if !ok {
		t.Fatal("expected grant")
	}
	if !g.Unbounded() {
		t.Error("expected unbounded grant when limit is nil")
	}
}

func TestPeriod_Default(t *testing.T) {
	p := Plan{ID: "pro"}

	if got := p.Period(); got != 30*24*time.Hour {
		t.Errorf("expected default 30d period, got %s", got)
	}
}

func TestPeriod_Custom(t *testing.T) {
	p := Plan{ID: "weekly", PeriodDays: 7}

	if got := p.Period(); got != 7*24*time.Hour {
		t.Errorf("expected 7d period, got %s", got)
	}
}

func TestEnabledComponents(t *testing.T) {
	p := Plan{
		ID: "pro",
		Grants: []FeatureGrant{
			{ComponentID: "invoice_ocr", Enabled: true},
			{ComponentID: "legacy_scan", Enabled: false},
			{ComponentID: "export_pdf", Enabled: true},
		},
	}

	got := p.EnabledComponents()
	if len(got) != 2 {
		t.Fatalf("expected 2 enabled components, got %d", len(got))
	}
	if got[0] != "invoice_ocr" || got[1] != "export_pdf" {
		t.Errorf("unexpected components: %v", got)
	}
}

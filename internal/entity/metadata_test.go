package entity_test

import (
	"testing"

	"github.com/fieldserve/fieldserve/internal/entity"
)

func TestDefaultRegistryLookup(t *testing.T) {
	registry := entity.DefaultRegistry()

	cases := []struct {
		external string
		want     string
	}{
		{"work_order", "work_order"},
		{"work_orders", "work_order"},
		{"work-orders", "work_order"},
		{"workorders", "work_order"},
		{"inventory-items", "inventory_item"},
		{"inventory", "inventory_item"},
		{"customer", "customer"},
		{"customers", "customer"},
	}
	for _, tc := range cases {
		meta, ok := registry.Lookup(tc.external)
		if !ok {
			t.Fatalf("Lookup(%q): not found", tc.external)
		}
		if meta.Name != tc.want {
			t.Fatalf("Lookup(%q) = %q, want %q", tc.external, meta.Name, tc.want)
		}
	}

	if _, ok := registry.Lookup("payments"); ok {
		t.Fatal("unknown identifier must not resolve")
	}
	if _, ok := registry.Lookup(""); ok {
		t.Fatal("empty identifier must not resolve")
	}
}

func TestDefaultRegistryEntities(t *testing.T) {
	registry := entity.DefaultRegistry()
	names := registry.Entities()
	if len(names) != 8 {
		t.Fatalf("expected 8 entities, got %d: %v", len(names), names)
	}
}

func TestWorkOrderFieldSets(t *testing.T) {
	registry := entity.DefaultRegistry()
	meta, ok := registry.Lookup("work_order")
	if !ok {
		t.Fatal("work_order missing")
	}

	required := meta.RequiredFields()
	wantRequired := []string{"customer_id", "number", "title"}
	if len(required) != len(wantRequired) {
		t.Fatalf("required = %v, want %v", required, wantRequired)
	}
	for i := range required {
		if required[i] != wantRequired[i] {
			t.Fatalf("required = %v, want %v", required, wantRequired)
		}
	}

	for _, frozen := range []string{"id", "number", "customer_id", "created_at"} {
		for _, field := range meta.UpdatableFields() {
			if field == frozen {
				t.Fatalf("field %q must not be updatable", frozen)
			}
		}
	}

	updatable := map[string]bool{}
	for _, field := range meta.UpdatableFields() {
		updatable[field] = true
	}
	for _, want := range []string{"status", "title", "technician_id", "scheduled_at"} {
		if !updatable[want] {
			t.Fatalf("expected %q updatable, got %v", want, meta.UpdatableFields())
		}
	}

	creatable := map[string]bool{}
	for _, field := range meta.CreatableFields() {
		creatable[field] = true
	}
	if creatable["status"] {
		t.Fatal("status must not be creatable, it is server controlled")
	}
	if !creatable["customer_id"] {
		t.Fatal("customer_id must be creatable")
	}
}

func TestNewRegistryValidation(t *testing.T) {
	valid := entity.Metadata{
		Name: "widget", Resource: "widgets", Table: "widgets", Alias: "w", IDColumn: "id",
		Columns: []string{"id", "name"},
	}

	if _, err := entity.NewRegistry([]entity.Metadata{{Name: "widget"}}, nil); err == nil {
		t.Fatal("incomplete metadata must be rejected")
	}
	if _, err := entity.NewRegistry([]entity.Metadata{valid, valid}, nil); err == nil {
		t.Fatal("duplicate entity must be rejected")
	}
	if _, err := entity.NewRegistry([]entity.Metadata{valid}, map[string]string{"gadgets": "gadget"}); err == nil {
		t.Fatal("alias to unknown entity must be rejected")
	}
	registry, err := entity.NewRegistry([]entity.Metadata{valid}, map[string]string{"wdgts": "widget"})
	if err != nil {
		t.Fatalf("valid registry: %v", err)
	}
	if _, ok := registry.Lookup("wdgts"); !ok {
		t.Fatal("registered alias must resolve")
	}
}

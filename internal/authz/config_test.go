package authz

import (
	"errors"
	"testing"
)

func testConfig(t *testing.T) *Config {
	t.Helper()
	cfg, err := NewConfig(DefaultRoles(), DefaultResources(), DefaultRules(), DefaultPolicies())
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	return cfg
}

func TestIsAllowedMinimumRole(t *testing.T) {
	cfg := testConfig(t)

	if !cfg.IsAllowed(RoleDispatcher, ResourceCustomers, OpCreate) {
		t.Fatal("dispatcher meets the customers.create threshold")
	}
	if !cfg.IsAllowed(RoleAdmin, ResourceCustomers, OpCreate) {
		t.Fatal("higher priority roles pass threshold rules")
	}
	if cfg.IsAllowed(RoleTechnician, ResourceCustomers, OpCreate) {
		t.Fatal("technician is below the customers.create threshold")
	}
	if cfg.IsAllowed(RoleCustomer, ResourceRoles, OpList) {
		t.Fatal("customer is below the roles.list threshold")
	}
}

func TestIsAllowedAllowList(t *testing.T) {
	cfg := testConfig(t)

	if !cfg.IsAllowed(RoleManager, ResourceInvoices, OpCreate) {
		t.Fatal("manager is on the invoices.create allow-list")
	}
	if cfg.IsAllowed(RoleDispatcher, ResourceInvoices, OpCreate) {
		t.Fatal("dispatcher is not on the invoices.create allow-list")
	}
	// Allow-lists are exact: higher priority does not substitute for
	// membership.
	if cfg.IsAllowed(RoleManager, ResourceInvoices, OpDelete) {
		t.Fatal("invoices.delete admits only admin")
	}
}

func TestIsAllowedFailsClosed(t *testing.T) {
	cfg := testConfig(t)

	if cfg.IsAllowed("auditor", ResourceInvoices, OpList) {
		t.Fatal("unknown role must deny")
	}
	if cfg.IsAllowed(RoleAdmin, "payments", OpList) {
		t.Fatal("unknown resource must deny")
	}
	if cfg.IsAllowed(RoleAdmin, ResourceInvoices, Operation("export")) {
		t.Fatal("unknown operation must deny")
	}
}

func TestIsAllowedInactiveRoleDenies(t *testing.T) {
	roles := DefaultRoles()
	for i := range roles {
		if roles[i].Name == RoleManager {
			roles[i].Active = false
		}
	}
	cfg, err := NewConfig(roles, DefaultResources(), DefaultRules(), DefaultPolicies())
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	if cfg.IsAllowed(RoleManager, ResourceInvoices, OpCreate) {
		t.Fatal("inactive role must deny even when allow-listed")
	}
	if cfg.HasAtLeast(RoleManager, RoleCustomer) {
		t.Fatal("inactive role fails minimum-role checks")
	}
}

func TestHasAtLeast(t *testing.T) {
	cfg := testConfig(t)

	if !cfg.HasAtLeast(RoleAdmin, RoleTechnician) {
		t.Fatal("admin outranks technician")
	}
	if !cfg.HasAtLeast(RoleTechnician, RoleTechnician) {
		t.Fatal("a role meets its own threshold")
	}
	if cfg.HasAtLeast(RoleCustomer, RoleDispatcher) {
		t.Fatal("customer does not outrank dispatcher")
	}
	if cfg.HasAtLeast("ghost", RoleCustomer) || cfg.HasAtLeast(RoleAdmin, "ghost") {
		t.Fatal("unknown roles fail the ordering check")
	}
}

func TestResolvePolicy(t *testing.T) {
	cfg := testConfig(t)

	if got := cfg.ResolvePolicy(RoleCustomer, ResourceWorkOrders); got != PolicyOwnWorkOrders {
		t.Fatalf("unexpected policy %q", got)
	}
	if got := cfg.ResolvePolicy(RoleTechnician, ResourceWorkOrders); got != PolicyAssignedWorkOrders {
		t.Fatalf("unexpected policy %q", got)
	}
	// Absence is a first-class result, not an error.
	if got := cfg.ResolvePolicy(RoleDispatcher, ResourceInvoices); got != PolicyUnset {
		t.Fatalf("expected unset, got %q", got)
	}
	if got := cfg.ResolvePolicy("ghost", ResourceInvoices); got != PolicyUnset {
		t.Fatalf("expected unset for unknown role, got %q", got)
	}
}

func TestNewConfigRejectsMissingClassification(t *testing.T) {
	resources := DefaultResources()
	resources["payments"] = ResourceRule{Alias: "p"}
	_, err := NewConfig(DefaultRoles(), resources, DefaultRules(), DefaultPolicies())
	if !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestNewConfigRejectsUnknownReferences(t *testing.T) {
	rules := DefaultRules()
	rules[ResourceInvoices][OpCreate] = Rule{Allowed: []string{"superuser"}}
	if _, err := NewConfig(DefaultRoles(), DefaultResources(), rules, DefaultPolicies()); !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}

	policies := DefaultPolicies()
	policies[RoleCustomer][ResourceInventory] = PolicyOwnWorkOrders
	if _, err := NewConfig(DefaultRoles(), DefaultResources(), DefaultRules(), policies); !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected configuration error for unrecognized policy, got %v", err)
	}
}

func TestDefaultConfigValidates(t *testing.T) {
	// Guards the built-in tables against drift.
	cfg := DefaultConfig()
	for name := range DefaultResources() {
		if _, ok := cfg.Resource(name); !ok {
			t.Fatalf("resource %q missing", name)
		}
	}
}

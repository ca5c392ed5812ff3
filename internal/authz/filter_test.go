package authz

import (
	"reflect"
	"testing"
)

func TestBuildFilterWithoutAuthContext(t *testing.T) {
	frag := BuildFilter(nil, ResourceRule{Alias: "wo", Classification: Failsafe})
	if frag.Clause != "" || len(frag.Values) != 0 || frag.Applied {
		t.Fatalf("expected inert fragment, got %+v", frag)
	}
}

func TestBuildFilterAllRecords(t *testing.T) {
	for _, role := range DefaultRoles() {
		actx := &RequestAuthContext{Role: role.Name, UserID: 42, Policy: PolicyAllRecords}
		frag := BuildFilter(actx, ResourceRule{Alias: "inv", Classification: Failsafe})
		if frag.Clause != "" || len(frag.Values) != 0 {
			t.Fatalf("role %s: expected empty clause, got %+v", role.Name, frag)
		}
		if !frag.Applied {
			t.Fatalf("role %s: all_records must report applied", role.Name)
		}
	}
}

func TestBuildFilterUnsetFollowsClassification(t *testing.T) {
	// The outcome must depend only on the classification, for every role.
	for _, role := range DefaultRoles() {
		actx := &RequestAuthContext{Role: role.Name, UserID: 7, Policy: PolicyUnset}

		frag := BuildFilter(actx, ResourceRule{Alias: "it", Classification: Permissive})
		if frag.Clause != "" || frag.Applied {
			t.Fatalf("role %s: permissive unset should be inert, got %+v", role.Name, frag)
		}

		frag = BuildFilter(actx, ResourceRule{Alias: "inv", Classification: Failsafe})
		if frag.Clause != "1=0" || !frag.Applied || len(frag.Values) != 0 {
			t.Fatalf("role %s: failsafe unset should deny, got %+v", role.Name, frag)
		}
	}
}

func TestBuildFilterUnknownClassificationDenies(t *testing.T) {
	actx := &RequestAuthContext{Role: RoleManager, UserID: 7, Policy: PolicyUnset}
	frag := BuildFilter(actx, ResourceRule{Alias: "x"})
	if frag.Clause != "1=0" || !frag.Applied {
		t.Fatalf("unclassified resource must fail closed, got %+v", frag)
	}
}

func TestBuildFilterOwnershipBindsCaller(t *testing.T) {
	rule := ResourceRule{
		Alias:          "wo",
		Classification: Failsafe,
		OwnerColumns: map[PolicyToken]string{
			PolicyOwnWorkOrders:      "customer_id",
			PolicyAssignedWorkOrders: "technician_id",
		},
	}

	frag := BuildFilter(&RequestAuthContext{Role: RoleCustomer, UserID: 99, Policy: PolicyOwnWorkOrders}, rule)
	if frag.Clause != "wo.customer_id = $1" {
		t.Fatalf("unexpected clause %q", frag.Clause)
	}
	if !reflect.DeepEqual(frag.Values, []any{int64(99)}) {
		t.Fatalf("unexpected values %#v", frag.Values)
	}
	if !frag.Applied {
		t.Fatal("ownership filter must report applied")
	}

	frag = BuildFilter(&RequestAuthContext{Role: RoleTechnician, UserID: 12, Policy: PolicyAssignedWorkOrders}, rule)
	if frag.Clause != "wo.technician_id = $1" || len(frag.Values) != 1 {
		t.Fatalf("unexpected fragment %+v", frag)
	}
}

func TestBuildFilterOwnershipWithoutIdentityDenies(t *testing.T) {
	// A valid policy name with nobody to bind it to fails closed, on
	// every classification.
	for _, class := range []Classification{Failsafe, Permissive} {
		rule := ResourceRule{
			Alias:          "wo",
			Classification: class,
			OwnerColumns:   map[PolicyToken]string{PolicyAssignedWorkOrders: "technician_id"},
		}
		frag := BuildFilter(&RequestAuthContext{Role: RoleTechnician, Policy: PolicyAssignedWorkOrders}, rule)
		if frag.Clause != "1=0" || !frag.Applied || len(frag.Values) != 0 {
			t.Fatalf("classification %s: expected deny, got %+v", class, frag)
		}
	}
}

func TestBuildFilterUnrecognizedTokenDenies(t *testing.T) {
	rule := ResourceRule{
		Alias:          "inv",
		Classification: Permissive,
		OwnerColumns:   map[PolicyToken]string{PolicyOwnInvoices: "customer_id"},
	}
	for _, token := range []PolicyToken{"everything", "own_invoices", "ALL_RECORDS"} {
		frag := BuildFilter(&RequestAuthContext{Role: RoleCustomer, UserID: 5, Policy: token}, rule)
		if frag.Clause != "1=0" || !frag.Applied {
			t.Fatalf("token %q: unknown must deny, got %+v", token, frag)
		}
	}
}

func TestConfigFilterResolvesPolicy(t *testing.T) {
	cfg := DefaultConfig()

	frag := cfg.Filter(&RequestAuthContext{Role: RoleCustomer, UserID: 31}, ResourceWorkOrders)
	if frag.Clause != "wo.customer_id = $1" || !frag.Applied {
		t.Fatalf("unexpected fragment %+v", frag)
	}

	// Dispatcher has no invoice policy; invoices are failsafe.
	frag = cfg.Filter(&RequestAuthContext{Role: RoleDispatcher, UserID: 31}, ResourceInvoices)
	if frag.Clause != "1=0" || !frag.Applied {
		t.Fatalf("unconfigured failsafe resource must deny, got %+v", frag)
	}

	// Customer has no inventory policy; inventory is permissive.
	frag = cfg.Filter(&RequestAuthContext{Role: RoleCustomer, UserID: 31}, ResourceInventory)
	if frag.Clause != "" || frag.Applied {
		t.Fatalf("unconfigured permissive resource must be inert, got %+v", frag)
	}

	// A resource that was never registered fails closed.
	frag = cfg.Filter(&RequestAuthContext{Role: RoleAdmin, UserID: 1}, "payments")
	if frag.Clause != "1=0" || !frag.Applied {
		t.Fatalf("unregistered resource must deny, got %+v", frag)
	}
}

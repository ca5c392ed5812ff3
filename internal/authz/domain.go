// Package authz implements the permission gate and row-level-security
// filtering engine shared by every resource exposed through the generic
// entity surface. All decision functions are pure lookups over an
// immutable Config built once at boot; ambiguous or unknown input always
// resolves to a deny.
package authz

// Operation identifies an action gated by the permission table.
type Operation string

const (
	OpList   Operation = "list"
	OpRead   Operation = "read"
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// Role is a named access level with a total priority ordering.
// Roles are immutable after boot.
type Role struct {
	ID       int64
	Name     string
	Priority int
	Active   bool
}

// PolicyToken is the resolved row-level-security rule for a
// (role, resource) pair. The zero value means no policy is configured,
// which is a valid first-class state whose meaning depends on the
// resource classification.
type PolicyToken string

const (
	// PolicyUnset means no entry exists in the policy table.
	PolicyUnset PolicyToken = ""
	// PolicyAllRecords grants unrestricted row access. Distinct from
	// PolicyUnset: the restriction was evaluated and explicitly waived.
	PolicyAllRecords PolicyToken = "all_records"
	// PolicyOwnRecordOnly limits access to the caller's own row.
	PolicyOwnRecordOnly PolicyToken = "own_record_only"

	// Resource-specific ownership variants.
	PolicyOwnWorkOrders      PolicyToken = "own_work_orders_only"
	PolicyAssignedWorkOrders PolicyToken = "assigned_work_orders_only"
	PolicyOwnInvoices        PolicyToken = "own_invoices_only"
	PolicyOwnContracts       PolicyToken = "own_contracts_only"
)

// Classification declares what an unset policy means for a resource.
// This is security configuration, not derived logic: changing it changes
// access outcomes.
type Classification int

const (
	// ClassificationUnknown marks a misconfigured resource. The filter
	// builder treats it as deny-all; Config validation rejects it at boot.
	ClassificationUnknown Classification = iota
	// Failsafe denies everything when no policy is configured.
	Failsafe
	// Permissive applies no extra restriction when no policy is configured.
	Permissive
)

func (c Classification) String() string {
	switch c {
	case Failsafe:
		return "failsafe"
	case Permissive:
		return "permissive"
	default:
		return "unknown"
	}
}

// ResourceRule is the per-resource security configuration record that
// parameterizes the generic filter builder: table alias, unset-policy
// classification, and the set of ownership policies the resource
// recognizes together with the column each one binds to.
type ResourceRule struct {
	Alias          string
	Classification Classification
	OwnerColumns   map[PolicyToken]string
}

// RequestAuthContext is the per-request authorization snapshot assembled
// by the dispatcher: resolved role, user, resource and policy. Created
// once per request, read-only afterwards, never shared across requests.
type RequestAuthContext struct {
	Role     string
	UserID   int64 // zero when no identity could be resolved
	Resource string
	Policy   PolicyToken
}

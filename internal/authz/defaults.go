package authz

// Resource names gated by the permission and policy tables.
const (
	ResourceCustomers   = "customers"
	ResourceTechnicians = "technicians"
	ResourceWorkOrders  = "work_orders"
	ResourceInvoices    = "invoices"
	ResourceContracts   = "contracts"
	ResourceInventory   = "inventory"
	ResourceUsers       = "users"
	ResourceRoles       = "roles"
)

// Role names in priority order.
const (
	RoleAdmin      = "admin"
	RoleManager    = "manager"
	RoleDispatcher = "dispatcher"
	RoleTechnician = "technician"
	RoleCustomer   = "customer"
)

// DefaultRoles returns the built-in role table.
func DefaultRoles() []Role {
	return []Role{
		{ID: 1, Name: RoleAdmin, Priority: 100, Active: true},
		{ID: 2, Name: RoleManager, Priority: 80, Active: true},
		{ID: 3, Name: RoleDispatcher, Priority: 60, Active: true},
		{ID: 4, Name: RoleTechnician, Priority: 40, Active: true},
		{ID: 5, Name: RoleCustomer, Priority: 20, Active: true},
	}
}

// DefaultResources returns the per-resource security records. The
// null-classification split is authoritative configuration: business
// records (work orders, invoices, contracts, customers, users) deny
// everything for an unconfigured role, while reference data (inventory,
// roles, technician listing) is not restricted further.
func DefaultResources() map[string]ResourceRule {
	return map[string]ResourceRule{
		ResourceCustomers: {
			Alias:          "c",
			Classification: Failsafe,
			OwnerColumns:   map[PolicyToken]string{PolicyOwnRecordOnly: "id"},
		},
		ResourceTechnicians: {
			Alias:          "t",
			Classification: Permissive,
			OwnerColumns:   map[PolicyToken]string{PolicyOwnRecordOnly: "id"},
		},
		ResourceWorkOrders: {
			Alias:          "wo",
			Classification: Failsafe,
			OwnerColumns: map[PolicyToken]string{
				PolicyOwnWorkOrders:      "customer_id",
				PolicyAssignedWorkOrders: "technician_id",
			},
		},
		ResourceInvoices: {
			Alias:          "inv",
			Classification: Failsafe,
			OwnerColumns:   map[PolicyToken]string{PolicyOwnInvoices: "customer_id"},
		},
		ResourceContracts: {
			Alias:          "ct",
			Classification: Failsafe,
			OwnerColumns:   map[PolicyToken]string{PolicyOwnContracts: "customer_id"},
		},
		ResourceInventory: {
			Alias:          "it",
			Classification: Permissive,
		},
		ResourceUsers: {
			Alias:          "u",
			Classification: Failsafe,
			OwnerColumns:   map[PolicyToken]string{PolicyOwnRecordOnly: "id"},
		},
		ResourceRoles: {
			Alias:          "r",
			Classification: Permissive,
		},
	}
}

// DefaultRules returns the permission table. Listing and reads are
// mostly minimum-role thresholds narrowed further by row-level security;
// destructive operations use explicit allow-lists.
func DefaultRules() map[string]map[Operation]Rule {
	return map[string]map[Operation]Rule{
		ResourceCustomers: {
			OpList:   {MinRole: RoleCustomer},
			OpRead:   {MinRole: RoleCustomer},
			OpCreate: {MinRole: RoleDispatcher},
			OpUpdate: {MinRole: RoleDispatcher},
			OpDelete: {Allowed: []string{RoleAdmin, RoleManager}},
		},
		ResourceTechnicians: {
			OpList:   {MinRole: RoleCustomer},
			OpRead:   {MinRole: RoleCustomer},
			OpCreate: {MinRole: RoleManager},
			OpUpdate: {MinRole: RoleManager},
			OpDelete: {Allowed: []string{RoleAdmin}},
		},
		ResourceWorkOrders: {
			OpList:   {MinRole: RoleCustomer},
			OpRead:   {MinRole: RoleCustomer},
			OpCreate: {Allowed: []string{RoleAdmin, RoleManager, RoleDispatcher, RoleCustomer}},
			OpUpdate: {MinRole: RoleTechnician},
			OpDelete: {Allowed: []string{RoleAdmin, RoleManager}},
		},
		ResourceInvoices: {
			OpList:   {MinRole: RoleCustomer},
			OpRead:   {MinRole: RoleCustomer},
			OpCreate: {Allowed: []string{RoleAdmin, RoleManager}},
			OpUpdate: {Allowed: []string{RoleAdmin, RoleManager}},
			OpDelete: {Allowed: []string{RoleAdmin}},
		},
		ResourceContracts: {
			OpList:   {MinRole: RoleCustomer},
			OpRead:   {MinRole: RoleCustomer},
			OpCreate: {MinRole: RoleManager},
			OpUpdate: {MinRole: RoleManager},
			OpDelete: {Allowed: []string{RoleAdmin}},
		},
		ResourceInventory: {
			OpList:   {MinRole: RoleTechnician},
			OpRead:   {MinRole: RoleTechnician},
			OpCreate: {MinRole: RoleDispatcher},
			OpUpdate: {MinRole: RoleDispatcher},
			OpDelete: {MinRole: RoleManager},
		},
		ResourceUsers: {
			OpList:   {MinRole: RoleTechnician},
			OpRead:   {MinRole: RoleTechnician},
			OpCreate: {Allowed: []string{RoleAdmin}},
			OpUpdate: {Allowed: []string{RoleAdmin}},
			OpDelete: {Allowed: []string{RoleAdmin}},
		},
		ResourceRoles: {
			OpList:   {MinRole: RoleManager},
			OpRead:   {MinRole: RoleManager},
			OpCreate: {Allowed: []string{RoleAdmin}},
			OpUpdate: {Allowed: []string{RoleAdmin}},
			OpDelete: {Allowed: []string{RoleAdmin}},
		},
	}
}

// DefaultPolicies returns the policy table. Deliberate holes are part of
// the configuration: dispatcher has no entry for invoices or contracts
// (failsafe resources, so no rows), and customer has no entry for
// technicians or inventory (permissive resources, so no extra
// restriction beyond the permission gate).
func DefaultPolicies() map[string]map[string]PolicyToken {
	return map[string]map[string]PolicyToken{
		RoleAdmin: {
			ResourceCustomers:   PolicyAllRecords,
			ResourceTechnicians: PolicyAllRecords,
			ResourceWorkOrders:  PolicyAllRecords,
			ResourceInvoices:    PolicyAllRecords,
			ResourceContracts:   PolicyAllRecords,
			ResourceInventory:   PolicyAllRecords,
			ResourceUsers:       PolicyAllRecords,
			ResourceRoles:       PolicyAllRecords,
		},
		RoleManager: {
			ResourceCustomers:   PolicyAllRecords,
			ResourceTechnicians: PolicyAllRecords,
			ResourceWorkOrders:  PolicyAllRecords,
			ResourceInvoices:    PolicyAllRecords,
			ResourceContracts:   PolicyAllRecords,
			ResourceUsers:       PolicyAllRecords,
		},
		RoleDispatcher: {
			ResourceCustomers:   PolicyAllRecords,
			ResourceTechnicians: PolicyAllRecords,
			ResourceWorkOrders:  PolicyAllRecords,
		},
		RoleTechnician: {
			ResourceWorkOrders: PolicyAssignedWorkOrders,
			ResourceUsers:      PolicyOwnRecordOnly,
		},
		RoleCustomer: {
			ResourceCustomers:  PolicyOwnRecordOnly,
			ResourceWorkOrders: PolicyOwnWorkOrders,
			ResourceInvoices:   PolicyOwnInvoices,
			ResourceContracts:  PolicyOwnContracts,
		},
	}
}

// DefaultConfig assembles the built-in configuration. It panics only on
// programmer error in the tables above, which boot-time tests cover.
func DefaultConfig() *Config {
	cfg, err := NewConfig(DefaultRoles(), DefaultResources(), DefaultRules(), DefaultPolicies())
	if err != nil {
		panic(err)
	}
	return cfg
}

package entity

import "github.com/fieldserve/fieldserve/internal/authz"

// DefaultRegistry describes the entities exposed through the generic
// surface. Column sets mirror the schema under scripts/schema.sql.
func DefaultRegistry() *Registry {
	registry, err := NewRegistry(defaultEntities(), defaultAliases())
	if err != nil {
		panic(err)
	}
	return registry
}

func defaultAliases() map[string]string {
	return map[string]string{
		"work-orders":     "work_order",
		"workorders":      "work_order",
		"inventory-items": "inventory_item",
		"inventory_items": "inventory_item",
	}
}

func defaultEntities() []Metadata {
	immutableBase := map[string]struct{}{
		"id":         {},
		"created_at": {},
		"updated_at": {},
	}

	return []Metadata{
		{
			Name:     "customer",
			Resource: authz.ResourceCustomers,
			Table:    "customers",
			Alias:    "c",
			IDColumn: "id",
			Columns: []string{
				"id", "name", "email", "phone", "address", "is_active",
				"created_at", "updated_at",
			},
			Searchable: []string{"name", "email", "phone"},
			Filterable: []string{"is_active"},
			Sortable:   []string{"name", "created_at"},
			Immutable:  immutableBase,
			Access: map[string]FieldAccess{
				"name":      {Create: AccessFull, Update: AccessFull, Required: true},
				"email":     {Create: AccessFull, Update: AccessFull, Required: true},
				"phone":     {Create: AccessFull, Update: AccessFull},
				"address":   {Create: AccessFull, Update: AccessFull},
				"is_active": {Create: AccessNone, Update: AccessFull},
			},
		},
		{
			Name:     "technician",
			Resource: authz.ResourceTechnicians,
			Table:    "technicians",
			Alias:    "t",
			IDColumn: "id",
			Columns: []string{
				"id", "name", "email", "skills", "region", "is_active",
				"created_at", "updated_at",
			},
			Searchable: []string{"name", "email", "region"},
			Filterable: []string{"region", "is_active"},
			Sortable:   []string{"name", "region", "created_at"},
			Immutable:  immutableBase,
			Access: map[string]FieldAccess{
				"name":      {Create: AccessFull, Update: AccessFull, Required: true},
				"email":     {Create: AccessFull, Update: AccessFull, Required: true},
				"skills":    {Create: AccessFull, Update: AccessFull},
				"region":    {Create: AccessFull, Update: AccessFull},
				"is_active": {Create: AccessNone, Update: AccessFull},
			},
		},
		{
			Name:     "work_order",
			Resource: authz.ResourceWorkOrders,
			Table:    "work_orders",
			Alias:    "wo",
			IDColumn: "id",
			Columns: []string{
				"id", "number", "title", "description", "status", "priority",
				"customer_id", "technician_id", "scheduled_at",
				"created_at", "updated_at",
			},
			Searchable: []string{"number", "title", "description"},
			Filterable: []string{"status", "priority", "customer_id", "technician_id"},
			Sortable:   []string{"number", "status", "priority", "scheduled_at", "created_at"},
			Immutable: map[string]struct{}{
				"id": {}, "number": {}, "customer_id": {},
				"created_at": {}, "updated_at": {},
			},
			Access: map[string]FieldAccess{
				"number":        {Create: AccessFull, Update: AccessNone, Required: true},
				"title":         {Create: AccessFull, Update: AccessFull, Required: true},
				"description":   {Create: AccessFull, Update: AccessFull},
				"status":        {Create: AccessNone, Update: AccessFull},
				"priority":      {Create: AccessFull, Update: AccessFull},
				"customer_id":   {Create: AccessFull, Update: AccessNone, Required: true},
				"technician_id": {Create: AccessFull, Update: AccessFull},
				"scheduled_at":  {Create: AccessFull, Update: AccessFull},
			},
		},
		{
			Name:     "invoice",
			Resource: authz.ResourceInvoices,
			Table:    "invoices",
			Alias:    "inv",
			IDColumn: "id",
			Columns: []string{
				"id", "number", "customer_id", "work_order_id", "status",
				"amount_cents", "due_date", "created_at", "updated_at",
			},
			Searchable: []string{"number"},
			Filterable: []string{"status", "customer_id", "work_order_id"},
			Sortable:   []string{"number", "status", "due_date", "created_at"},
			Immutable: map[string]struct{}{
				"id": {}, "number": {}, "customer_id": {}, "work_order_id": {},
				"created_at": {}, "updated_at": {},
			},
			Access: map[string]FieldAccess{
				"number":        {Create: AccessFull, Update: AccessNone, Required: true},
				"customer_id":   {Create: AccessFull, Update: AccessNone, Required: true},
				"work_order_id": {Create: AccessFull, Update: AccessNone},
				"status":        {Create: AccessNone, Update: AccessFull},
				"amount_cents":  {Create: AccessFull, Update: AccessFull, Required: true},
				"due_date":      {Create: AccessFull, Update: AccessFull},
			},
		},
		{
			Name:     "contract",
			Resource: authz.ResourceContracts,
			Table:    "contracts",
			Alias:    "ct",
			IDColumn: "id",
			Columns: []string{
				"id", "customer_id", "name", "status", "starts_on", "ends_on",
				"created_at", "updated_at",
			},
			Searchable: []string{"name"},
			Filterable: []string{"status", "customer_id"},
			Sortable:   []string{"name", "status", "starts_on", "created_at"},
			Immutable: map[string]struct{}{
				"id": {}, "customer_id": {}, "created_at": {}, "updated_at": {},
			},
			Access: map[string]FieldAccess{
				"customer_id": {Create: AccessFull, Update: AccessNone, Required: true},
				"name":        {Create: AccessFull, Update: AccessFull, Required: true},
				"status":      {Create: AccessNone, Update: AccessFull},
				"starts_on":   {Create: AccessFull, Update: AccessFull, Required: true},
				"ends_on":     {Create: AccessFull, Update: AccessFull},
			},
		},
		{
			Name:     "inventory_item",
			Resource: authz.ResourceInventory,
			Table:    "inventory_items",
			Alias:    "it",
			IDColumn: "id",
			Columns: []string{
				"id", "sku", "name", "quantity", "unit_cost_cents", "location",
				"created_at", "updated_at",
			},
			Searchable: []string{"sku", "name"},
			Filterable: []string{"location"},
			Sortable:   []string{"sku", "name", "quantity", "created_at"},
			Immutable: map[string]struct{}{
				"id": {}, "sku": {}, "created_at": {}, "updated_at": {},
			},
			Access: map[string]FieldAccess{
				"sku":             {Create: AccessFull, Update: AccessNone, Required: true},
				"name":            {Create: AccessFull, Update: AccessFull, Required: true},
				"quantity":        {Create: AccessFull, Update: AccessFull},
				"unit_cost_cents": {Create: AccessFull, Update: AccessFull},
				"location":        {Create: AccessFull, Update: AccessFull},
			},
		},
		{
			Name:     "user",
			Resource: authz.ResourceUsers,
			Table:    "users",
			Alias:    "u",
			IDColumn: "id",
			Columns: []string{
				"id", "email", "name", "role", "is_active",
				"created_at", "updated_at",
			},
			Searchable: []string{"email", "name"},
			Filterable: []string{"role", "is_active"},
			Sortable:   []string{"email", "name", "created_at"},
			Immutable:  immutableBase,
			Access: map[string]FieldAccess{
				"email":     {Create: AccessFull, Update: AccessFull, Required: true},
				"name":      {Create: AccessFull, Update: AccessFull, Required: true},
				"role":      {Create: AccessFull, Update: AccessFull, Required: true},
				"is_active": {Create: AccessNone, Update: AccessFull},
			},
		},
		{
			Name:     "role",
			Resource: authz.ResourceRoles,
			Table:    "roles",
			Alias:    "r",
			IDColumn: "id",
			Columns: []string{
				"id", "name", "priority", "is_active", "created_at", "updated_at",
			},
			Searchable: []string{"name"},
			Filterable: []string{"is_active"},
			Sortable:   []string{"name", "priority", "created_at"},
			Immutable:  immutableBase,
			Access: map[string]FieldAccess{
				"name":      {Create: AccessFull, Update: AccessFull, Required: true},
				"priority":  {Create: AccessFull, Update: AccessFull, Required: true},
				"is_active": {Create: AccessNone, Update: AccessFull},
			},
		},
	}
}

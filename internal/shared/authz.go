package shared

// Permissions declared for RBAC. Route groups check these; the seed
// migration grants them to the built-in roles.
const (
	PermCustomersView   = "customers.view"
	PermCustomersManage = "customers.manage"

	PermCatalogItemView   = "catalog.item.view"
	PermCatalogItemManage = "catalog.item.manage"

	PermQuotesView   = "quotes.view"
	PermQuotesManage = "quotes.manage"
	// PermQuotesDiscountOverride gates manager-authorized discounts outside
	// the automatic second-pair windows.
	PermQuotesDiscountOverride = "quotes.discount.override"

	PermReportsView = "reports.view"

	PermUsersView   = "users.view"
	PermUsersManage = "users.manage"

	// PermApprovalsDecide gates listing and deciding manager approval
	// requests, such as cancelling a signed quote.
	PermApprovalsDecide = "approvals.decide"

	PermAuditView = "audit.view"
)

// AllScopes lists every permission the application declares.
func AllScopes() []string {
	return []string{
		PermCustomersView,
		PermCustomersManage,
		PermCatalogItemView,
		PermCatalogItemManage,
		PermQuotesView,
		PermQuotesManage,
		PermQuotesDiscountOverride,
		PermReportsView,
		PermUsersView,
		PermUsersManage,
		PermApprovalsDecide,
		PermAuditView,
	}
}

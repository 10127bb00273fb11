package rbac

// Role constants. Role assignment is owned by the identity provider; the
// role arrives as a token claim.
const (
	RoleUser       = "user"
	RoleArbitrator = "arbitrator"
	RoleOperator   = "operator"
)

// Permission constants
const (
	PermResolveDispute = "resolve_dispute"
	PermConfirmCash    = "confirm_cash_payment"
	PermForceRefund    = "force_refund"
	PermManagePayouts  = "manage_payouts"
)

// RolePermissions defines what each role can do.
var RolePermissions = map[string][]string{
	// Users act as buyer or seller; party checks live in the services.
	RoleUser: {},
	RoleArbitrator: {
		PermResolveDispute,
		// Arbitrator CANNOT move money: PermManagePayouts, PermForceRefund
	},
	RoleOperator: {
		PermConfirmCash, PermForceRefund, PermManagePayouts,
	},
}

// HasPermission checks if a role has a specific permission.
func HasPermission(role, permission string) bool {
	perms, ok := RolePermissions[role]
	if !ok {
		return false
	}
	for _, p := range perms {
		if p == permission {
			return true
		}
	}
	return false
}

// IsFinancialOperation reports whether permission moves held funds.
func IsFinancialOperation(permission string) bool {
	return permission == PermManagePayouts || permission == PermForceRefund || permission == PermConfirmCash
}

// IsValidRole reports whether role is one of the known roles.
func IsValidRole(role string) bool {
	_, ok := RolePermissions[role]
	return ok
}

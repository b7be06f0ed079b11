package policy

import "github.com/adil/docexchange-backend/models"

// Operation is something a caller can attempt against the service.
type Operation string

const (
	OpUpload Operation = "upload"
	OpList   Operation = "list"
	OpMint   Operation = "mint"
	OpRedeem Operation = "redeem"
)

// Allowed is the whole access model: operations users upload, client
// users browse and mint download links. Redeem is open to anyone
// because the token itself is the credential; this is a deliberate
// capability-token exception, not a missing check. Callers must pass a
// role loaded from the users table, never one claimed by the client.
func Allowed(role models.Role, op Operation) bool {
	switch op {
	case OpUpload:
		return role == models.RoleOps
	case OpList, OpMint:
		return role == models.RoleClient
	case OpRedeem:
		return true
	}
	return false
}

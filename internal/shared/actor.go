package shared

import "context"

// Role identifies a coarse permission group carried by a user account.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleStaff   Role = "staff"
)

// InventoryManagementRoles are the roles that receive low-stock fan-out.
var InventoryManagementRoles = []Role{RoleAdmin, RoleManager}

// Actor is the resolved identity performing an operation.
type Actor struct {
	UserID int64
	Name   string
	Roles  []Role
}

// HasRole reports whether the actor holds the given role.
func (a Actor) HasRole(role Role) bool {
	for _, r := range a.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// ManagesInventory reports whether the actor holds an inventory-management role.
func (a Actor) ManagesInventory() bool {
	for _, r := range InventoryManagementRoles {
		if a.HasRole(r) {
			return true
		}
	}
	return false
}

type actorContextKey struct{}

// ContextWithActor stores the resolved actor in context.
func ContextWithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext extracts the actor from context, if any.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(Actor)
	return actor, ok
}

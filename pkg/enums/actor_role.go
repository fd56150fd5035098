package enums

// ActorRole is the coarse role carried on the x-user-role header.
type ActorRole string

const (
	ActorRoleUser  ActorRole = "user"
	ActorRoleAdmin ActorRole = "admin"
)

// String implements fmt.Stringer.
func (r ActorRole) String() string {
	return string(r)
}

// ParseActorRole maps header input to a role; anything but admin is a regular user.
func ParseActorRole(value string) ActorRole {
	if ActorRole(value) == ActorRoleAdmin {
		return ActorRoleAdmin
	}
	return ActorRoleUser
}

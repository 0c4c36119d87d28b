package auth

type Action string

const (
	ActionRead   Action = "read"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

type Decision bool

const (
	Deny  Decision = false
	Allow Decision = true
)

// Resource identifies who owns the target of an action. Posts set OwnerID;
// user records set both OwnerID and Username to the account itself.
type Resource struct {
	OwnerID  int
	Username string
}

// Authorize decides whether caller may perform action on res. Superusers are
// allowed everything; everyone else only what they own.
func Authorize(caller Identity, res Resource, action Action) Decision {
	if caller.IsSuperuser {
		return Allow
	}
	if res.OwnerID != 0 && res.OwnerID == caller.ID {
		return Allow
	}
	if res.Username != "" && res.Username == caller.Username {
		return Allow
	}
	return Deny
}

// Require is Authorize with a Deny turned into ErrForbidden.
func Require(caller Identity, res Resource, action Action) error {
	if Authorize(caller, res, action) == Deny {
		return ErrForbidden
	}
	return nil
}

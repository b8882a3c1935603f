package shared

// Permissions for privileged ledger operations
const (
	PermLedgerWrite = "ledger:write"
	PermRefundWrite = "refund:write"
)

// Actor is the identity performing a mutating call. Every write path takes
// an explicit Actor instead of deriving the caller from ambient context.
type Actor struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Permissions []string `json:"permissions,omitempty"`
}

// Can reports whether the actor holds the given permission
func (a Actor) Can(permission string) bool {
	for _, p := range a.Permissions {
		if p == permission {
			return true
		}
	}
	return false
}

// Identity returns the string recorded as the creator of ledger entries
func (a Actor) Identity() string {
	if a.Name != "" {
		return a.Name
	}
	return a.ID
}

// GatewayActor is the system identity used when a gateway webhook, rather
// than an administrator, originates a write.
func GatewayActor(gateway Gateway) Actor {
	return Actor{
		ID:          "system",
		Name:        "gateway:" + string(gateway),
		Permissions: []string{PermLedgerWrite, PermRefundWrite},
	}
}

// ErrUnauthorized indicates the actor lacks a required permission
type ErrUnauthorized struct {
	ActorID    string
	Permission string
}

func (e ErrUnauthorized) Error() string {
	return "actor " + e.ActorID + " is not authorized for " + e.Permission
}

// Is implements the errors.Is interface for ErrUnauthorized
func (e ErrUnauthorized) Is(target error) bool {
	t, ok := target.(ErrUnauthorized)
	if !ok {
		return false
	}
	if t.ActorID == "" && t.Permission == "" {
		return true
	}
	return e.ActorID == t.ActorID && e.Permission == t.Permission
}

package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/orderhub-payment-ledger/internal/domain/shared"
)

const (
	// ActorIDHeader identifies the administrator performing a privileged call.
	// Set by the upstream auth proxy after credential verification.
	ActorIDHeader = "X-Actor-ID"

	// ActorNameHeader is the display name recorded as the entry creator
	ActorNameHeader = "X-Actor-Name"

	// ActorPermissionsHeader is a comma-separated permission list
	ActorPermissionsHeader = "X-Actor-Permissions"

	actorKey = "actor"
)

// Actor middleware resolves the calling identity from the auth proxy headers
// and stores it on the context. Requests without an actor id proceed with an
// empty actor; permission checks happen downstream where the operation knows
// what it requires.
func Actor() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := shared.Actor{
			ID:   c.GetHeader(ActorIDHeader),
			Name: c.GetHeader(ActorNameHeader),
		}
		if perms := c.GetHeader(ActorPermissionsHeader); perms != "" {
			for _, p := range strings.Split(perms, ",") {
				if p = strings.TrimSpace(p); p != "" {
					actor.Permissions = append(actor.Permissions, p)
				}
			}
		}

		c.Set(actorKey, actor)
		c.Next()
	}
}

// GetActor retrieves the calling actor from the gin context
func GetActor(c *gin.Context) shared.Actor {
	if v, exists := c.Get(actorKey); exists {
		if actor, ok := v.(shared.Actor); ok {
			return actor
		}
	}
	return shared.Actor{}
}

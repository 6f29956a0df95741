package viewing

import (
	"viewly/internal/models"
	"viewly/internal/services/escrow"
)

// RoleSystem identifies background jobs. It is never accepted from a token.
const RoleSystem = "system"

// SystemCaller is the identity used by the sweeper.
var SystemCaller = models.Caller{UserID: "system", Role: RoleSystem}

// actorFor derives the caller's actor for a request. A tenant or landlord
// must both hold the role and be that party on the request.
func actorFor(caller models.Caller, req *models.ViewingRequest) (escrow.Actor, error) {
	switch caller.Role {
	case models.RoleAdmin:
		return escrow.ActorAdmin, nil
	case RoleSystem:
		return escrow.ActorSystem, nil
	}

	party, ok := req.PartyOf(caller.UserID)
	if !ok {
		return "", ErrUnauthorized
	}
	switch {
	case party == models.PartyTenant && caller.Role == models.RoleTenant:
		return escrow.ActorTenant, nil
	case party == models.PartyLandlord && caller.Role == models.RoleLandlord:
		return escrow.ActorLandlord, nil
	}
	return "", ErrUnauthorized
}

// authorize checks the capability for action and returns the actor to apply it as.
func authorize(caller models.Caller, req *models.ViewingRequest, action escrow.Action) (escrow.Actor, error) {
	actor, err := actorFor(caller, req)
	if err != nil {
		return "", err
	}
	for _, a := range escrow.AllowedActors(action) {
		if a == actor {
			return actor, nil
		}
	}
	return "", ErrUnauthorized
}

// canRead reports whether caller may see req.
func canRead(caller models.Caller, req *models.ViewingRequest) bool {
	_, err := actorFor(caller, req)
	return err == nil
}

package app

import "botdesk/internal/model"

// Principal is the authenticated caller of a request.
type Principal struct {
	ID   uint
	Role model.Role
}

func (p Principal) IsAdmin() bool {
	return p.Role == model.RoleAdmin
}

// Owns reports whether the caller may manage a resource owned by ownerID.
func (p Principal) Owns(ownerID uint) bool {
	return p.IsAdmin() || p.ID == ownerID
}

// OwnerScope returns nil for admins, who see every chatbot.
func (p Principal) OwnerScope() *uint {
	if p.IsAdmin() {
		return nil
	}
	id := p.ID
	return &id
}

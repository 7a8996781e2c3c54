package tenant

import (
	"github.com/google/uuid"

	"github.com/sitepass/sitepass-backend/internal/types"
)

// Context carries the caller's identity and scope through every service call.
// It is passed explicitly, never stashed in a context.Context value, so that
// scoping mistakes show up as compile errors rather than empty result sets.
type Context struct {
	UserID          uuid.UUID
	Role            string
	ContractorID    *uuid.UUID
	AccessibleSites []uuid.UUID
}

func (t Context) IsSysAdmin() bool {
	return t.Role == types.RoleSysAdmin
}

// CanAccessSite reports whether the caller may operate on the given site.
// Sys admins see every site; everyone else is limited to their assignment
// list.
func (t Context) CanAccessSite(siteID uuid.UUID) bool {
	if t.IsSysAdmin() {
		return true
	}
	for _, id := range t.AccessibleSites {
		if id == siteID {
			return true
		}
	}
	return false
}

// SiteFilter returns the site IDs a list query must be restricted to, or nil
// when the caller is unrestricted.
func (t Context) SiteFilter() []uuid.UUID {
	if t.IsSysAdmin() {
		return nil
	}
	return t.AccessibleSites
}

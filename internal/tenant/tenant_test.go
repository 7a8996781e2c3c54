package tenant

import (
	"testing"

	"github.com/google/uuid"

	"github.com/sitepass/sitepass-backend/internal/types"
)

func TestCanAccessSite(t *testing.T) {
	mine := uuid.New()
	other := uuid.New()

	admin := Context{Role: types.RoleSysAdmin}
	if !admin.CanAccessSite(other) {
		t.Error("sys admin must access every site")
	}

	contractor := Context{
		Role:            types.RoleContractorAdmin,
		AccessibleSites: []uuid.UUID{mine},
	}
	if !contractor.CanAccessSite(mine) {
		t.Error("contractor admin must access an assigned site")
	}
	if contractor.CanAccessSite(other) {
		t.Error("contractor admin must not access an unassigned site")
	}

	unassigned := Context{Role: types.RoleWorker}
	if unassigned.CanAccessSite(mine) {
		t.Error("no assignments means no access")
	}
}

func TestSiteFilter(t *testing.T) {
	sites := []uuid.UUID{uuid.New(), uuid.New()}

	admin := Context{Role: types.RoleSysAdmin, AccessibleSites: sites}
	if admin.SiteFilter() != nil {
		t.Error("sys admin queries are unrestricted")
	}

	contractor := Context{Role: types.RoleContractorAdmin, AccessibleSites: sites}
	got := contractor.SiteFilter()
	if len(got) != 2 {
		t.Fatalf("SiteFilter = %d sites, want 2", len(got))
	}
}

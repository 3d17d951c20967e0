// Package policy holds the capability checks for protected operations. Each
// check is a plain predicate over the acting user and the resource.
package policy

import (
	"github.com/charitychain/charitychain-api/models"
)

func IsAdmin(u *models.User) bool {
	return u != nil && u.Role == models.RoleAdmin
}

func IsNGO(u *models.User) bool {
	return u != nil && u.Role == models.RoleNGO
}

// CanManageCampaigns reports whether u may create campaigns and use the NGO
// dashboard. Unverified NGOs are refused.
func CanManageCampaigns(u *models.User) bool {
	return IsNGO(u) && u.Verified
}

// CanEditCampaign reports whether u may change c's content or post updates.
func CanEditCampaign(u *models.User, c *models.Campaign) bool {
	return CanManageCampaigns(u) && c != nil && c.NGO == u.ID
}

// CanViewDonation allows the donor and the NGO that owns the campaign.
func CanViewDonation(u *models.User, d *models.Donation, c *models.Campaign) bool {
	if u == nil || d == nil {
		return false
	}
	if d.Donor == u.ID {
		return true
	}
	return c != nil && c.NGO == u.ID
}

func CanModerate(u *models.User) bool {
	return IsAdmin(u)
}

// CanDeleteUser refuses deleting admin accounts.
func CanDeleteUser(actor, target *models.User) bool {
	return IsAdmin(actor) && target != nil && target.Role != models.RoleAdmin
}

// CanLogin refuses NGOs still waiting for verification.
func CanLogin(u *models.User) bool {
	return u != nil && (u.Role != models.RoleNGO || u.Verified)
}

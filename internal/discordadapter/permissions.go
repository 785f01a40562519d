package discordadapter

import (
	"slices"

	"github.com/bwmarrin/discordgo"
)

// PermissionChecker validates that a Discord user holds the configured
// admin role before a mutating command is allowed to run.
type PermissionChecker struct {
	adminRoleID string
}

// NewPermissionChecker creates a PermissionChecker for the given role ID.
// An empty adminRoleID treats every caller as permitted, which is useful
// for single-admin servers or local development.
func NewPermissionChecker(adminRoleID string) *PermissionChecker {
	return &PermissionChecker{adminRoleID: adminRoleID}
}

// IsAdmin reports whether m's author holds the configured admin role.
// Messages with no Member (DMs) are denied whenever a role is configured,
// since there is no role membership to check there.
func (p *PermissionChecker) IsAdmin(m *discordgo.MessageCreate) bool {
	if p.adminRoleID == "" {
		return true
	}
	if m.Member == nil {
		return false
	}
	return slices.Contains(m.Member.Roles, p.adminRoleID)
}

package appcmd

import (
	"context"
	"errors"
	"fmt"
	"math/bits"
	"strings"

	"github.com/bwmarrin/discordgo"
)

// Check gates an invocation. Returning false (or an error) stops the dispatch
// with a *CheckFailureError.
type Check func(ctx context.Context, it *Interaction) (bool, error)

// Middleware wraps a handler, e.g. for logging or timing.
type Middleware func(HandlerFunc) HandlerFunc

// Apply wraps h with mws; the first in the list is the outermost.
func Apply(h HandlerFunc, mws ...Middleware) HandlerFunc {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// ErrNoPrivateMessage is returned by GuildOnly for DM interactions.
var ErrNoPrivateMessage = errors.New("this command cannot be used in private messages")

// GuildOnly rejects interactions that did not come from a guild.
func GuildOnly() Check {
	return func(_ context.Context, it *Interaction) (bool, error) {
		if it.GuildID == "" {
			return false, ErrNoPrivateMessage
		}
		return true, nil
	}
}

// MissingPermissionsError lists the permission bits the invoker lacks.
type MissingPermissionsError struct {
	Missing int64
}

func (e *MissingPermissionsError) Error() string {
	return "missing permissions: " + PermissionNames(e.Missing)
}

// HasPermissions requires the invoking member to hold every bit in perms.
// Administrators always pass.
func HasPermissions(perms int64) Check {
	return func(_ context.Context, it *Interaction) (bool, error) {
		if it.Member == nil {
			return false, ErrNoPrivateMessage
		}
		have := it.Member.Permissions
		if have&discordgo.PermissionAdministrator != 0 {
			return true, nil
		}
		if missing := perms &^ have; missing != 0 {
			return false, &MissingPermissionsError{Missing: missing}
		}
		return true, nil
	}
}

var permissionNames = map[int64]string{
	discordgo.PermissionCreateInstantInvite:    "Create Instant Invite",
	discordgo.PermissionKickMembers:            "Kick Members",
	discordgo.PermissionBanMembers:             "Ban Members",
	discordgo.PermissionAdministrator:          "Administrator",
	discordgo.PermissionManageChannels:         "Manage Channels",
	discordgo.PermissionManageGuild:            "Manage Server",
	discordgo.PermissionAddReactions:           "Add Reactions",
	discordgo.PermissionViewAuditLogs:          "View Audit Logs",
	discordgo.PermissionViewChannel:            "View Channel",
	discordgo.PermissionSendMessages:           "Send Messages",
	discordgo.PermissionManageMessages:         "Manage Messages",
	discordgo.PermissionEmbedLinks:             "Embed Links",
	discordgo.PermissionAttachFiles:            "Attach Files",
	discordgo.PermissionReadMessageHistory:     "Read Message History",
	discordgo.PermissionMentionEveryone:        "Mention Everyone",
	discordgo.PermissionUseApplicationCommands: "Use Application Commands",
	discordgo.PermissionManageThreads:          "Manage Threads",
	discordgo.PermissionVoiceConnect:           "Connect to Voice Channel",
	discordgo.PermissionVoiceSpeak:             "Speak",
	discordgo.PermissionVoiceMuteMembers:       "Mute Members",
	discordgo.PermissionVoiceMoveMembers:       "Move Members",
	discordgo.PermissionManageNicknames:        "Manage Nicknames",
	discordgo.PermissionManageRoles:            "Manage Roles",
	discordgo.PermissionManageWebhooks:         "Manage Webhooks",
	discordgo.PermissionManageEvents:           "Manage Events",
	discordgo.PermissionModerateMembers:        "Moderate Members",
}

// PermissionNames renders a permission bit set as a readable list.
func PermissionNames(perms int64) string {
	var names []string
	for p := uint64(perms); p != 0; p &= p - 1 {
		bit := int64(1) << bits.TrailingZeros64(p)
		name, ok := permissionNames[bit]
		if !ok {
			name = fmt.Sprintf("0x%x", bit)
		}
		names = append(names, name)
	}
	return strings.Join(names, ", ")
}

// runChecks evaluates checks in order and stops at the first failure.
func runChecks(ctx context.Context, it *Interaction, command string, checks []Check) error {
	for _, check := range checks {
		ok, err := check(ctx, it)
		if err != nil {
			return &CheckFailureError{Command: command, Err: err}
		}
		if !ok {
			return &CheckFailureError{Command: command}
		}
	}
	return nil
}

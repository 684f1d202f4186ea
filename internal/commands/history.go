package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/keshon/commandtree/internal/storage"
	"github.com/keshon/commandtree/pkg/appcmd"
)

var manageGuild int64 = discordgo.PermissionManageGuild

func historyCommand(store *storage.Storage) *appcmd.Command {
	return appcmd.MustCommand(appcmd.CommandSpec{
		Name:                     "commands-log",
		Description:              "Review recently used commands",
		DefaultMemberPermissions: &manageGuild,
		GuildOnly:                true,
		Checks:                   []appcmd.Check{appcmd.HasPermissions(manageGuild)},
		Callback: appcmd.HandlerFunc(func(_ context.Context, it *appcmd.Interaction, _ appcmd.Namespace) error {
			records, err := store.FetchCommandHistory(it.GuildID)
			if err != nil {
				return fmt.Errorf("fetch command history: %w", err)
			}
			if len(records) == 0 {
				return it.RespondMessage("No command history found.", true)
			}
			return it.RespondMessage(codeLeftBlockWrapper+formatHistory(records)+codeRightBlockWrapper, true)
		}),
	})
}

// formatHistory renders records newest first, dropping the oldest lines that
// do not fit in one message.
func formatHistory(records []storage.CommandHistoryRecord) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("%-19s\t%-15s\t%s\n", "# Datetime", "# Username", "# Command"))
	for i := len(records) - 1; i >= 0; i-- {
		r := records[i]
		line := fmt.Sprintf("%-19s\t%-15s\t/%s", r.Datetime.Format("2006-01-02 15:04:05"), r.Username, r.Command)
		if r.Params != "" {
			line += " " + r.Params
		}
		if r.Failed {
			line += " (failed)"
		}
		line += "\n"
		if b.Len()+len(line) > maxContentLength {
			break
		}
		b.WriteString(line)
	}
	return b.String()
}

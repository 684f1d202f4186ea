package commands

import (
	"context"

	"github.com/bwmarrin/discordgo"

	"github.com/keshon/commandtree/pkg/appcmd"
)

var manageMessages int64 = discordgo.PermissionManageMessages

// announceMenu reposts a message as an announcement embed.
func announceMenu() *appcmd.ContextMenu {
	menu, err := appcmd.NewMessageMenu(appcmd.MenuSpec{
		Name:                     "Announce",
		DefaultMemberPermissions: &manageMessages,
		GuildOnly:                true,
		Checks:                   []appcmd.Check{appcmd.HasPermissions(manageMessages)},
	}, func(_ context.Context, it *appcmd.Interaction, msg *discordgo.Message) error {
		if msg.Content == "" {
			return it.RespondMessage("There is no text to announce in that message.", true)
		}
		embed := &discordgo.MessageEmbed{
			Title:       "📣 Announcement",
			Description: msg.Content,
			Color:       0xF5A623,
		}
		if msg.Author != nil {
			embed.Author = &discordgo.MessageEmbedAuthor{Name: msg.Author.Username}
		}
		return it.RespondEmbed(embed, false)
	})
	if err != nil {
		panic(err)
	}
	return menu
}

package commands

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/keshon/commandtree/pkg/appcmd"
)

func helpCommand(tree *appcmd.Tree) *appcmd.Command {
	return appcmd.MustCommand(appcmd.CommandSpec{
		Name:        "help",
		Description: "List the available commands",
		Callback: appcmd.HandlerFunc(func(_ context.Context, it *appcmd.Interaction, _ appcmd.Namespace) error {
			return it.RespondEmbed(&discordgo.MessageEmbed{
				Title:       "Commands",
				Description: helpText(tree, it.GuildID),
			}, true)
		}),
	})
}

// helpText lists every runnable chat command of the guild and global scopes
// by qualified name. Guild commands shadow global ones of the same name.
func helpText(tree *appcmd.Tree, guildID string) string {
	seen := map[string]bool{}
	var lines []string
	scopes := []string{""}
	if guildID != "" {
		scopes = []string{guildID, ""}
	}
	for _, scope := range scopes {
		roots := map[string]bool{}
		for cmd := range tree.Walk(scope, discordgo.ChatApplicationCommand) {
			leaf, ok := cmd.(*appcmd.Command)
			if !ok {
				continue
			}
			root := leaf.Root().Name()
			if seen[root] {
				continue
			}
			roots[root] = true
			lines = append(lines, fmt.Sprintf("`/%s` %s", leaf.QualifiedName(), leaf.Description()))
		}
		for r := range roots {
			seen[r] = true
		}
	}
	if len(lines) == 0 {
		return "No commands available."
	}
	slices.Sort(lines)
	return strings.Join(lines, "\n")
}

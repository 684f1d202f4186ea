// Package docs renders the command reference of a command tree.
package docs

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"text/template"

	"github.com/bwmarrin/discordgo"

	"github.com/keshon/commandtree/pkg/appcmd"
)

var sections = []struct {
	title string
	typ   discordgo.ApplicationCommandType
}{
	{"Slash commands", discordgo.ChatApplicationCommand},
	{"User commands", discordgo.UserApplicationCommand},
	{"Message commands", discordgo.MessageApplicationCommand},
}

// Reference renders the commands of one scope as markdown, one section per
// command type. Groups are flattened into their runnable subcommands.
func Reference(tree *appcmd.Tree, guildID string) string {
	var buf bytes.Buffer
	for _, s := range sections {
		var lines []string
		for c := range tree.Walk(guildID, s.typ) {
			switch c := c.(type) {
			case *appcmd.Command:
				lines = append(lines, chatLine(c))
			case *appcmd.ContextMenu:
				lines = append(lines, fmt.Sprintf("- **%s**\n", c.Name()))
			}
		}
		if len(lines) == 0 {
			continue
		}
		if buf.Len() > 0 {
			buf.WriteString("\n")
		}
		fmt.Fprintf(&buf, "### %s\n\n", s.title)
		for _, l := range lines {
			buf.WriteString(l)
		}
	}
	return buf.String()
}

func chatLine(c *appcmd.Command) string {
	usage := []string{"/" + c.QualifiedName()}
	for _, o := range c.Options() {
		if o.Required {
			usage = append(usage, "<"+o.DisplayName+">")
		} else {
			usage = append(usage, "["+o.DisplayName+"]")
		}
	}
	return fmt.Sprintf("- **`%s`**: %s\n", strings.Join(usage, " "), c.Description())
}

// UpdateReadme executes the template at tmplPath with the command reference
// as .CommandSections and writes the result to outPath.
func UpdateReadme(tree *appcmd.Tree, guildID, tmplPath, outPath string) error {
	tmpl, err := template.ParseFiles(tmplPath)
	if err != nil {
		return fmt.Errorf("parse readme template: %w", err)
	}

	data := struct {
		CommandSections string
	}{
		CommandSections: Reference(tree, guildID),
	}

	var out bytes.Buffer
	if err := tmpl.Execute(&out, data); err != nil {
		return fmt.Errorf("render readme: %w", err)
	}
	return os.WriteFile(outPath, out.Bytes(), 0o644)
}

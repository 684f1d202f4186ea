package appcmd

import (
	"github.com/bwmarrin/discordgo"
)

// Responder sends interaction responses. *discordgo.Session satisfies it.
type Responder interface {
	InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
}

// Object is the opaque reference produced when Discord did not include the
// full entity in the resolved table.
type Object struct {
	ID string
}

// Interaction is the per-dispatch view handed to checks, transformers and
// handlers. It embeds the raw discordgo interaction.
type Interaction struct {
	*discordgo.Interaction

	// CorrelationID is unique per dispatch and shows up in every log line
	// about this interaction.
	CorrelationID string

	responder Responder
	command   AppCommand
	namespace Namespace
	failed    bool
}

// NewInteraction wraps raw for manual use, e.g. in tests of handlers.
func NewInteraction(raw *discordgo.Interaction, r Responder) *Interaction {
	return &Interaction{Interaction: raw, responder: r}
}

// Command returns the resolved command, or nil before resolution.
func (it *Interaction) Command() AppCommand { return it.command }

// Namespace returns the arguments built for this invocation.
func (it *Interaction) Namespace() Namespace { return it.namespace }

// Failed reports whether the dispatch ended in an error.
func (it *Interaction) Failed() bool { return it.failed }

// Respond sends resp through the tree's transport.
func (it *Interaction) Respond(resp *discordgo.InteractionResponse) error {
	return it.responder.InteractionRespond(it.Interaction, resp)
}

// RespondMessage sends a plain channel message response.
func (it *Interaction) RespondMessage(content string, ephemeral bool) error {
	data := &discordgo.InteractionResponseData{Content: content}
	if ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	return it.Respond(&discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: data,
	})
}

// RespondEmbed sends a single embed.
func (it *Interaction) RespondEmbed(embed *discordgo.MessageEmbed, ephemeral bool) error {
	data := &discordgo.InteractionResponseData{Embeds: []*discordgo.MessageEmbed{embed}}
	if ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	return it.Respond(&discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: data,
	})
}

// User returns the invoking user for both guild and DM interactions.
func (it *Interaction) User() *discordgo.User {
	if it.Member != nil && it.Member.User != nil {
		return it.Member.User
	}
	return it.Interaction.User
}

// resolveEntity turns an id into the richest entity available in the resolved
// table, falling back to Object.
func resolveEntity(res *discordgo.ApplicationCommandInteractionDataResolved, kind discordgo.ApplicationCommandOptionType, id, guildID string) any {
	if res == nil {
		return Object{ID: id}
	}
	switch kind {
	case discordgo.ApplicationCommandOptionUser:
		if v := resolveUser(res, id, guildID); v != nil {
			return v
		}
	case discordgo.ApplicationCommandOptionRole:
		if r, ok := res.Roles[id]; ok && r != nil {
			return r
		}
	case discordgo.ApplicationCommandOptionMentionable:
		if v := resolveUser(res, id, guildID); v != nil {
			return v
		}
		if r, ok := res.Roles[id]; ok && r != nil {
			return r
		}
	case discordgo.ApplicationCommandOptionChannel:
		if c, ok := res.Channels[id]; ok && c != nil {
			return c
		}
	case discordgo.ApplicationCommandOptionAttachment:
		if a, ok := res.Attachments[id]; ok && a != nil {
			return a
		}
	}
	return Object{ID: id}
}

// resolveUser prefers a member (with its user filled in) over a bare user.
func resolveUser(res *discordgo.ApplicationCommandInteractionDataResolved, id, guildID string) any {
	user := res.Users[id]
	if m, ok := res.Members[id]; ok && m != nil {
		member := *m
		if member.User == nil {
			member.User = user
		}
		if member.GuildID == "" {
			member.GuildID = guildID
		}
		return &member
	}
	if user != nil {
		return user
	}
	return nil
}

package appcmdtest

import "github.com/bwmarrin/discordgo"

// Chat builds a slash command interaction sent by userID in guildID.
func Chat(guildID, userID, name string, opts ...*discordgo.ApplicationCommandInteractionDataOption) *discordgo.Interaction {
	it := &discordgo.Interaction{
		ID:        "interaction-" + name,
		Type:      discordgo.InteractionApplicationCommand,
		GuildID:   guildID,
		ChannelID: "channel-1",
		Data: discordgo.ApplicationCommandInteractionData{
			ID:          "cmd-" + name,
			Name:        name,
			CommandType: discordgo.ChatApplicationCommand,
			Options:     opts,
		},
	}
	user := &discordgo.User{ID: userID, Username: "user-" + userID}
	if guildID != "" {
		it.Member = &discordgo.Member{User: user}
	} else {
		it.User = user
	}
	return it
}

// Autocomplete turns a chat interaction into an autocomplete request.
func Autocomplete(it *discordgo.Interaction) *discordgo.Interaction {
	it.Type = discordgo.InteractionApplicationCommandAutocomplete
	return it
}

// Sub is a subcommand option.
func Sub(name string, opts ...*discordgo.ApplicationCommandInteractionDataOption) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{Name: name, Type: discordgo.ApplicationCommandOptionSubCommand, Options: opts}
}

// Opt is a value option. Numbers must be float64, as decoded from JSON.
func Opt(name string, typ discordgo.ApplicationCommandOptionType, v any) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{Name: name, Type: typ, Value: v}
}

// Focused is an option the user is currently typing into.
func Focused(name string, typ discordgo.ApplicationCommandOptionType, v any) *discordgo.ApplicationCommandInteractionDataOption {
	o := Opt(name, typ, v)
	o.Focused = true
	return o
}

// MessageMenu builds a message context menu interaction targeting msg.
func MessageMenu(guildID, userID, name string, msg *discordgo.Message) *discordgo.Interaction {
	return &discordgo.Interaction{
		ID:        "interaction-" + name,
		Type:      discordgo.InteractionApplicationCommand,
		GuildID:   guildID,
		ChannelID: msg.ChannelID,
		Member:    &discordgo.Member{User: &discordgo.User{ID: userID, Username: "user-" + userID}},
		Data: discordgo.ApplicationCommandInteractionData{
			ID:          "cmd-" + name,
			Name:        name,
			CommandType: discordgo.MessageApplicationCommand,
			TargetID:    msg.ID,
			Resolved: &discordgo.ApplicationCommandInteractionDataResolved{
				Messages: map[string]*discordgo.Message{msg.ID: msg},
			},
		},
	}
}

// UserMenu builds a user context menu interaction targeting target.
func UserMenu(guildID, userID, name string, target *discordgo.User) *discordgo.Interaction {
	return &discordgo.Interaction{
		ID:        "interaction-" + name,
		Type:      discordgo.InteractionApplicationCommand,
		GuildID:   guildID,
		ChannelID: "channel-1",
		Member:    &discordgo.Member{User: &discordgo.User{ID: userID, Username: "user-" + userID}},
		Data: discordgo.ApplicationCommandInteractionData{
			ID:          "cmd-" + name,
			Name:        name,
			CommandType: discordgo.UserApplicationCommand,
			TargetID:    target.ID,
			Resolved: &discordgo.ApplicationCommandInteractionDataResolved{
				Users: map[string]*discordgo.User{target.ID: target},
			},
		},
	}
}

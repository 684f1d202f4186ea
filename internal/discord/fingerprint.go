package discord

import (
	"crypto/sha1"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/bwmarrin/discordgo"
)

// Fingerprint creates a deterministic hash of a scope's payload. IDs and
// versions are ignored. Top-level commands are sorted; option order is
// significant to Discord and is kept.
func Fingerprint(cmds []*discordgo.ApplicationCommand) string {
	normalized := make([]map[string]any, len(cmds))
	for i, cmd := range cmds {
		normalized[i] = normalizeCommand(cmd)
	}
	slices.SortFunc(normalized, func(a, b map[string]any) int {
		return strings.Compare(fmt.Sprint(a["type"], a["name"]), fmt.Sprint(b["type"], b["name"]))
	})
	data, _ := json.Marshal(normalized)
	sum := sha1.Sum(data)
	return fmt.Sprintf("%x", sum)
}

func normalizeCommand(cmd *discordgo.ApplicationCommand) map[string]any {
	obj := map[string]any{
		"name":        cmd.Name,
		"description": cmd.Description,
		"type":        cmd.Type,
	}
	if cmd.DefaultMemberPermissions != nil {
		obj["default_member_permissions"] = *cmd.DefaultMemberPermissions
	}
	if cmd.DMPermission != nil {
		obj["dm_permission"] = *cmd.DMPermission
	}
	if cmd.NSFW != nil {
		obj["nsfw"] = *cmd.NSFW
	}
	if cmd.NameLocalizations != nil {
		obj["name_localizations"] = sortedLocalizations(*cmd.NameLocalizations)
	}
	if cmd.DescriptionLocalizations != nil {
		obj["description_localizations"] = sortedLocalizations(*cmd.DescriptionLocalizations)
	}
	if len(cmd.Options) > 0 {
		obj["options"] = normalizeOptions(cmd.Options)
	}
	return obj
}

func normalizeOptions(opts []*discordgo.ApplicationCommandOption) []map[string]any {
	normalized := make([]map[string]any, len(opts))

	for i, o := range opts {
		entry := map[string]any{
			"name":         o.Name,
			"description":  o.Description,
			"type":         o.Type,
			"required":     o.Required,
			"autocomplete": o.Autocomplete,
		}
		if len(o.ChannelTypes) > 0 {
			entry["channel_types"] = o.ChannelTypes
		}
		if o.MinValue != nil {
			entry["min_value"] = *o.MinValue
		}
		if o.MaxValue != 0 {
			entry["max_value"] = o.MaxValue
		}
		if o.MinLength != nil {
			entry["min_length"] = *o.MinLength
		}
		if o.MaxLength != 0 {
			entry["max_length"] = o.MaxLength
		}
		if len(o.NameLocalizations) > 0 {
			entry["name_localizations"] = sortedLocalizations(o.NameLocalizations)
		}
		if len(o.DescriptionLocalizations) > 0 {
			entry["description_localizations"] = sortedLocalizations(o.DescriptionLocalizations)
		}
		if len(o.Choices) > 0 {
			choices := make([]map[string]any, len(o.Choices))
			for j, c := range o.Choices {
				choice := map[string]any{
					"name":  c.Name,
					"value": c.Value,
				}
				if len(c.NameLocalizations) > 0 {
					choice["name_localizations"] = sortedLocalizations(c.NameLocalizations)
				}
				choices[j] = choice
			}
			entry["choices"] = choices
		}
		if len(o.Options) > 0 {
			entry["options"] = normalizeOptions(o.Options)
		}
		normalized[i] = entry
	}
	return normalized
}

// sortedLocalizations flattens a localization map into "locale=value" pairs
// in locale order.
func sortedLocalizations(m map[discordgo.Locale]string) []string {
	out := make([]string, 0, len(m))
	for _, l := range slices.Sorted(maps.Keys(m)) {
		out = append(out, string(l)+"="+m[l])
	}
	return out
}

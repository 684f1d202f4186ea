// Package middleware holds bot-level wrappers around command handlers.
package middleware

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/keshon/commandtree/internal/storage"
	"github.com/keshon/commandtree/pkg/appcmd"
)

// HistoryStore receives one record per handled command.
type HistoryStore interface {
	AppendCommandToHistory(guildID string, command storage.CommandHistoryRecord) error
}

// WithCommandLogger records every guild command invocation in the history,
// failed ones included. Storage errors are logged and never surface to the
// user.
func WithCommandLogger(store HistoryStore, logger *zap.Logger) appcmd.Middleware {
	return func(next appcmd.HandlerFunc) appcmd.HandlerFunc {
		return func(ctx context.Context, it *appcmd.Interaction, args appcmd.Namespace) error {
			err := next(ctx, it, args)
			if it.GuildID == "" {
				return err
			}

			user := resolveUser(it)
			rec := storage.CommandHistoryRecord{
				ChannelID:     it.ChannelID,
				GuildID:       it.GuildID,
				UserID:        user.ID,
				Username:      user.Username,
				Command:       commandName(it),
				Params:        FormatArgs(args),
				Failed:        err != nil,
				CorrelationID: it.CorrelationID,
				Datetime:      time.Now().UTC(),
			}
			if e := store.AppendCommandToHistory(it.GuildID, rec); e != nil {
				logger.Warn("failed to log command",
					zap.String("command", rec.Command),
					zap.String("guild", it.GuildID),
					zap.Error(e),
				)
			}
			return err
		}
	}
}

func commandName(it *appcmd.Interaction) string {
	cmd := it.Command()
	if cmd == nil {
		return "unknown"
	}
	if n, ok := cmd.(appcmd.Node); ok {
		return n.QualifiedName()
	}
	return cmd.Name()
}

// resolveUser returns the invoking user, or a placeholder when the payload
// carries none.
func resolveUser(it *appcmd.Interaction) *discordgo.User {
	if u := it.User(); u != nil {
		return u
	}
	return &discordgo.User{ID: "unknown", Username: "Unknown"}
}

// FormatArgs renders arguments as "name=value" pairs sorted by name.
// Entities are shown by id; absent optionals are skipped.
func FormatArgs(args appcmd.Namespace) string {
	keys := make([]string, 0, len(args))
	for k, v := range args {
		if v != nil {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + formatArg(args, k)
	}
	return strings.Join(parts, " ")
}

func formatArg(args appcmd.Namespace, name string) string {
	if id := args.ID(name); id != "" {
		return id
	}
	switch v := args.Value(name).(type) {
	case appcmd.Choice:
		return v.Name
	case appcmd.EnumMember:
		return v.Name
	case string:
		return fmt.Sprintf("%q", v)
	default:
		return fmt.Sprint(v)
	}
}

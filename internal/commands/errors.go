package commands

import (
	"context"
	"errors"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/keshon/commandtree/pkg/appcmd"
)

// ErrorReplier is the tree-wide error hook: it tells the user what went wrong
// in an ephemeral message and logs anything unexpected.
func ErrorReplier(logger *zap.Logger) appcmd.ErrorHandler {
	return func(_ context.Context, it *appcmd.Interaction, err error) {
		fields := []zap.Field{
			zap.String("correlation_id", it.CorrelationID),
			zap.String("guild", it.GuildID),
			zap.Error(err),
		}
		if cmd := it.Command(); cmd != nil {
			fields = append(fields, zap.String("command", cmd.Name()))
		}

		msg, expected := userMessage(err)
		if expected {
			logger.Debug("command rejected", fields...)
		} else {
			logger.Error("command failed", fields...)
		}
		if it.Type == discordgo.InteractionApplicationCommandAutocomplete {
			return
		}
		if rerr := it.RespondMessage(msg, true); rerr != nil {
			logger.Warn("failed to report error to user", append(fields, zap.NamedError("respond_error", rerr))...)
		}
	}
}

// userMessage maps err to text for the invoker. expected is false for
// failures that point at a bug or an outage.
func userMessage(err error) (msg string, expected bool) {
	var (
		missing  *appcmd.MissingPermissionsError
		check    *appcmd.CheckFailureError
		convert  *appcmd.TransformerError
		notFound *appcmd.CommandNotFoundError
		mismatch *appcmd.CommandSignatureMismatchError
	)
	switch {
	case errors.As(err, &missing):
		return "You need the following permissions: " + appcmd.PermissionNames(missing.Missing) + ".", true
	case errors.Is(err, appcmd.ErrNoPrivateMessage):
		return "This command only works in a server.", true
	case errors.As(err, &check):
		return "You cannot use this command here.", true
	case errors.As(err, &convert):
		return "That value is not valid for this option.", true
	case errors.As(err, &notFound), errors.As(err, &mismatch):
		return "This command is out of date. Please try again in a minute.", false
	}
	return "Something went wrong while running this command.", false
}

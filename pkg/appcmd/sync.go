package appcmd

import (
	"context"
	"fmt"
	"net/http"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/keshon/commandtree/pkg/retrylimit"
)

// Payload renders every command of a scope in wire form, translated when a
// translator is configured. The registry lock is held only while taking the
// snapshot.
func (t *Tree) Payload(ctx context.Context, guildID string) ([]*discordgo.ApplicationCommand, error) {
	cmds := t.Commands(guildID, 0)
	out := make([]*discordgo.ApplicationCommand, 0, len(cmds))
	var loc *localizer
	if t.translator != nil {
		loc = &localizer{t: t.translator, locales: t.locales}
	}
	for _, cmd := range cmds {
		w := cmd.ToWire()
		if loc != nil {
			if err := loc.command(ctx, w); err != nil {
				return nil, err
			}
		}
		out = append(out, w)
	}
	return out, nil
}

// Sync bulk-overwrites the remote commands of a scope with the local ones and
// returns what Discord stored. Local state is never modified. A 400 response
// is returned as *SyncError carrying the payload.
func (t *Tree) Sync(ctx context.Context, guildID string) ([]*discordgo.ApplicationCommand, error) {
	appID := t.ApplicationID()
	if appID == "" {
		return nil, ErrMissingApplicationID
	}
	payload, err := t.Payload(ctx, guildID)
	if err != nil {
		return nil, err
	}

	var synced []*discordgo.ApplicationCommand
	err = t.withRetry(ctx, func(ctx context.Context) error {
		var err error
		synced, err = t.client.ApplicationCommandBulkOverwrite(appID, guildID, payload, discordgo.WithContext(ctx))
		return err
	})
	if err != nil {
		if code := retrylimit.StatusCode(err); code == http.StatusBadRequest {
			return nil, &SyncError{GuildID: guildID, StatusCode: code, Commands: payload, Err: err}
		}
		return nil, fmt.Errorf("sync commands: %w", err)
	}
	t.logger.Info("synced application commands",
		zap.String("guild", guildID),
		zap.Int("count", len(synced)),
	)
	return synced, nil
}

// FetchCommands returns the commands Discord has for a scope.
func (t *Tree) FetchCommands(ctx context.Context, guildID string) ([]*discordgo.ApplicationCommand, error) {
	appID := t.ApplicationID()
	if appID == "" {
		return nil, ErrMissingApplicationID
	}
	var cmds []*discordgo.ApplicationCommand
	err := t.withRetry(ctx, func(ctx context.Context) error {
		var err error
		cmds, err = t.client.ApplicationCommands(appID, guildID, discordgo.WithContext(ctx))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("fetch commands: %w", err)
	}
	return cmds, nil
}

// FetchCommand returns one remote command by id.
func (t *Tree) FetchCommand(ctx context.Context, guildID, id string) (*discordgo.ApplicationCommand, error) {
	appID := t.ApplicationID()
	if appID == "" {
		return nil, ErrMissingApplicationID
	}
	var cmd *discordgo.ApplicationCommand
	err := t.withRetry(ctx, func(ctx context.Context) error {
		var err error
		cmd, err = t.client.ApplicationCommand(appID, guildID, id, discordgo.WithContext(ctx))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("fetch command %s: %w", id, err)
	}
	return cmd, nil
}

// EditRemoteCommand replaces one remote command with the local definition.
func (t *Tree) EditRemoteCommand(ctx context.Context, guildID, id string, cmd AppCommand) (*discordgo.ApplicationCommand, error) {
	appID := t.ApplicationID()
	if appID == "" {
		return nil, ErrMissingApplicationID
	}
	w := cmd.ToWire()
	if t.translator != nil {
		loc := &localizer{t: t.translator, locales: t.locales}
		if err := loc.command(ctx, w); err != nil {
			return nil, err
		}
	}
	var edited *discordgo.ApplicationCommand
	err := t.withRetry(ctx, func(ctx context.Context) error {
		var err error
		edited, err = t.client.ApplicationCommandEdit(appID, guildID, id, w, discordgo.WithContext(ctx))
		return err
	})
	if err != nil {
		if code := retrylimit.StatusCode(err); code == http.StatusBadRequest {
			return nil, &SyncError{GuildID: guildID, StatusCode: code, Commands: []*discordgo.ApplicationCommand{w}, Err: err}
		}
		return nil, fmt.Errorf("edit command %s: %w", id, err)
	}
	return edited, nil
}

// DeleteRemoteCommand deletes one remote command by id. The local tree is
// unchanged.
func (t *Tree) DeleteRemoteCommand(ctx context.Context, guildID, id string) error {
	appID := t.ApplicationID()
	if appID == "" {
		return ErrMissingApplicationID
	}
	err := t.withRetry(ctx, func(ctx context.Context) error {
		return t.client.ApplicationCommandDelete(appID, guildID, id, discordgo.WithContext(ctx))
	})
	if err != nil {
		return fmt.Errorf("delete command %s: %w", id, err)
	}
	return nil
}

// FetchPermissions returns the permission overwrites of a command in a guild.
func (t *Tree) FetchPermissions(ctx context.Context, guildID, id string) (*discordgo.GuildApplicationCommandPermissions, error) {
	appID := t.ApplicationID()
	if appID == "" {
		return nil, ErrMissingApplicationID
	}
	var perms *discordgo.GuildApplicationCommandPermissions
	err := t.withRetry(ctx, func(ctx context.Context) error {
		var err error
		perms, err = t.client.ApplicationCommandPermissions(appID, guildID, id, discordgo.WithContext(ctx))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("fetch permissions of %s: %w", id, err)
	}
	return perms, nil
}

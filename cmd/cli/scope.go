package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/bwmarrin/discordgo"

	"github.com/keshon/commandtree/internal/discord"
	"github.com/keshon/commandtree/pkg/appcmd"
)

type payloadDump struct {
	Scope       string                          `json:"scope"`
	Fingerprint string                          `json:"fingerprint"`
	Commands    []*discordgo.ApplicationCommand `json:"commands"`
}

func printPayload(ctx context.Context, w io.Writer, tree *appcmd.Tree, guild string) error {
	payload, err := tree.Payload(ctx, guild)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(payloadDump{
		Scope:       scopeLabel(guild),
		Fingerprint: discord.Fingerprint(payload),
		Commands:    payload,
	})
}

func runSync(ctx context.Context, w io.Writer, e *env, guild string, force bool) error {
	if !force {
		if err := discord.SyncScopes(ctx, e.tree, e.store, []string{guild}, 1, e.logger.Named("sync")); err != nil {
			return err
		}
		fmt.Fprintf(w, "%s is up to date\n", scopeLabel(guild))
		return nil
	}

	payload, err := e.tree.Payload(ctx, guild)
	if err != nil {
		return err
	}
	synced, err := e.tree.Sync(ctx, guild)
	if err != nil {
		return err
	}
	if err := e.store.SetFingerprint(guild, discord.Fingerprint(payload)); err != nil {
		return err
	}
	fmt.Fprintf(w, "uploaded %d commands to %s\n", len(synced), scopeLabel(guild))
	return nil
}

func printRemote(ctx context.Context, w io.Writer, tree *appcmd.Tree, guild string) error {
	cmds, err := tree.FetchCommands(ctx, guild)
	if err != nil {
		return err
	}
	if len(cmds) == 0 {
		fmt.Fprintf(w, "no commands in %s\n", scopeLabel(guild))
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTYPE\tNAME\tDESCRIPTION")
	for _, c := range cmds {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", c.ID, typeLabel(c.Type), c.Name, c.Description)
	}
	return tw.Flush()
}

func scopeLabel(guild string) string {
	if guild == "" {
		return "global scope"
	}
	return "guild " + guild
}

func typeLabel(t discordgo.ApplicationCommandType) string {
	switch t {
	case discordgo.UserApplicationCommand:
		return "user"
	case discordgo.MessageApplicationCommand:
		return "message"
	default:
		return "chat"
	}
}

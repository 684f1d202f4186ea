package appcmd

import (
	"context"
	"net/http"
	"sync"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/keshon/commandtree/pkg/retrylimit"
)

// fakeTransport records REST calls instead of talking to Discord.
type fakeTransport struct {
	mu        sync.Mutex
	responses []*discordgo.InteractionResponse
	overwrite [][]*discordgo.ApplicationCommand
	remote    map[string][]*discordgo.ApplicationCommand
	deleted   []string

	overwriteErr error
	respondErr   error
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{remote: make(map[string][]*discordgo.ApplicationCommand)}
}

func (f *fakeTransport) InteractionRespond(_ *discordgo.Interaction, resp *discordgo.InteractionResponse, _ ...discordgo.RequestOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.respondErr != nil {
		return f.respondErr
	}
	f.responses = append(f.responses, resp)
	return nil
}

func (f *fakeTransport) ApplicationCommandBulkOverwrite(_ string, guildID string, cmds []*discordgo.ApplicationCommand, _ ...discordgo.RequestOption) ([]*discordgo.ApplicationCommand, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.overwrite = append(f.overwrite, cmds)
	if f.overwriteErr != nil {
		return nil, f.overwriteErr
	}
	f.remote[guildID] = cmds
	return cmds, nil
}

func (f *fakeTransport) ApplicationCommands(_, guildID string, _ ...discordgo.RequestOption) ([]*discordgo.ApplicationCommand, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.remote[guildID], nil
}

func (f *fakeTransport) ApplicationCommand(_, guildID, cmdID string, _ ...discordgo.RequestOption) (*discordgo.ApplicationCommand, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.remote[guildID] {
		if c.ID == cmdID {
			return c, nil
		}
	}
	return nil, restError(http.StatusNotFound)
}

func (f *fakeTransport) ApplicationCommandEdit(_, _, cmdID string, cmd *discordgo.ApplicationCommand, _ ...discordgo.RequestOption) (*discordgo.ApplicationCommand, error) {
	edited := *cmd
	edited.ID = cmdID
	return &edited, nil
}

func (f *fakeTransport) ApplicationCommandDelete(_, _, cmdID string, _ ...discordgo.RequestOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, cmdID)
	return nil
}

func (f *fakeTransport) ApplicationCommandPermissions(_, guildID, cmdID string, _ ...discordgo.RequestOption) (*discordgo.GuildApplicationCommandPermissions, error) {
	return &discordgo.GuildApplicationCommandPermissions{ID: cmdID, GuildID: guildID}, nil
}

func (f *fakeTransport) lastResponse() *discordgo.InteractionResponse {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.responses) == 0 {
		return nil
	}
	return f.responses[len(f.responses)-1]
}

// newTestTree returns a tree on a fresh fake transport, closed at cleanup.
func newTestTree(t *testing.T, opts ...TreeOption) (*Tree, *fakeTransport) {
	t.Helper()
	client := newFakeTransport()
	cfg := retrylimit.DefaultRetryConfig()
	cfg.MaxAttempts = 1
	base := []TreeOption{
		WithLogger(zaptest.NewLogger(t)),
		WithApplicationID("app"),
		WithRetry(nil, cfg),
	}
	tree, err := NewTree(client, append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(tree.Close)
	return tree, client
}

// noop is a handler that does nothing.
var noop = HandlerFunc(func(context.Context, *Interaction, Namespace) error { return nil })

func mustCommand(t *testing.T, spec CommandSpec) *Command {
	t.Helper()
	if spec.Callback == nil {
		spec.Callback = noop
	}
	c, err := NewCommand(spec)
	require.NoError(t, err)
	return c
}

func mustGroup(t *testing.T, name string) *Group {
	t.Helper()
	g, err := NewGroup(GroupSpec{Name: name, Description: name + " commands"})
	require.NoError(t, err)
	return g
}

// chatInteraction builds an inbound slash command interaction.
func chatInteraction(guildID, name string, opts ...*discordgo.ApplicationCommandInteractionDataOption) *discordgo.Interaction {
	return &discordgo.Interaction{
		ID:      "1",
		Type:    discordgo.InteractionApplicationCommand,
		GuildID: guildID,
		Member:  &discordgo.Member{User: &discordgo.User{ID: "42"}},
		Data: discordgo.ApplicationCommandInteractionData{
			ID:          "cmd",
			Name:        name,
			CommandType: discordgo.ChatApplicationCommand,
			Options:     opts,
		},
	}
}

func subOpt(name string, opts ...*discordgo.ApplicationCommandInteractionDataOption) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{Name: name, Type: discordgo.ApplicationCommandOptionSubCommand, Options: opts}
}

func groupOpt(name string, opts ...*discordgo.ApplicationCommandInteractionDataOption) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{Name: name, Type: discordgo.ApplicationCommandOptionSubCommandGroup, Options: opts}
}

func valueOpt(name string, typ discordgo.ApplicationCommandOptionType, v any) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{Name: name, Type: typ, Value: v}
}

func restError(code int) *discordgo.RESTError {
	return &discordgo.RESTError{
		Response:     &http.Response{StatusCode: code, Status: http.StatusText(code)},
		ResponseBody: []byte(`{"message":"rejected"}`),
	}
}

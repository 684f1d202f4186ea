// Package appcmdtest provides an in-memory appcmd.Transport for tests of code
// built on the command tree.
package appcmdtest

import (
	"net/http"
	"slices"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/keshon/commandtree/pkg/appcmd"
)

// Transport records interaction responses and stores synced commands per
// scope. The zero value is not usable; call NewTransport.
type Transport struct {
	mu         sync.Mutex
	responses  []*discordgo.InteractionResponse
	overwrites map[string]int
	remote     map[string][]*discordgo.ApplicationCommand

	// OverwriteErr, when set, fails every bulk overwrite.
	OverwriteErr error
}

var _ appcmd.Transport = (*Transport)(nil)

func NewTransport() *Transport {
	return &Transport{
		overwrites: make(map[string]int),
		remote:     make(map[string][]*discordgo.ApplicationCommand),
	}
}

func (f *Transport) InteractionRespond(_ *discordgo.Interaction, resp *discordgo.InteractionResponse, _ ...discordgo.RequestOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses = append(f.responses, resp)
	return nil
}

func (f *Transport) ApplicationCommandBulkOverwrite(_ string, guildID string, cmds []*discordgo.ApplicationCommand, _ ...discordgo.RequestOption) ([]*discordgo.ApplicationCommand, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.overwrites[guildID]++
	if f.OverwriteErr != nil {
		return nil, f.OverwriteErr
	}
	f.remote[guildID] = cmds
	return cmds, nil
}

func (f *Transport) ApplicationCommands(_, guildID string, _ ...discordgo.RequestOption) ([]*discordgo.ApplicationCommand, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.remote[guildID]), nil
}

func (f *Transport) ApplicationCommand(_, guildID, cmdID string, _ ...discordgo.RequestOption) (*discordgo.ApplicationCommand, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.remote[guildID] {
		if c.ID == cmdID {
			return c, nil
		}
	}
	return nil, NotFound()
}

func (f *Transport) ApplicationCommandEdit(_, _, cmdID string, cmd *discordgo.ApplicationCommand, _ ...discordgo.RequestOption) (*discordgo.ApplicationCommand, error) {
	edited := *cmd
	edited.ID = cmdID
	return &edited, nil
}

func (f *Transport) ApplicationCommandDelete(_, guildID, cmdID string, _ ...discordgo.RequestOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.remote[guildID] = slices.DeleteFunc(f.remote[guildID], func(c *discordgo.ApplicationCommand) bool { return c.ID == cmdID })
	return nil
}

func (f *Transport) ApplicationCommandPermissions(_, guildID, cmdID string, _ ...discordgo.RequestOption) (*discordgo.GuildApplicationCommandPermissions, error) {
	return &discordgo.GuildApplicationCommandPermissions{ID: cmdID, GuildID: guildID}, nil
}

// Responses returns every interaction response sent so far.
func (f *Transport) Responses() []*discordgo.InteractionResponse {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.responses)
}

// LastResponse returns the most recent response, or nil.
func (f *Transport) LastResponse() *discordgo.InteractionResponse {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.responses) == 0 {
		return nil
	}
	return f.responses[len(f.responses)-1]
}

// Overwrites reports how many bulk overwrites targeted guildID.
func (f *Transport) Overwrites(guildID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.overwrites[guildID]
}

// NotFound returns the REST error Discord sends for an unknown command.
func NotFound() *discordgo.RESTError {
	return &discordgo.RESTError{
		Response:     &http.Response{StatusCode: http.StatusNotFound, Status: http.StatusText(http.StatusNotFound)},
		ResponseBody: []byte(`{"message":"Unknown application command","code":10063}`),
	}
}

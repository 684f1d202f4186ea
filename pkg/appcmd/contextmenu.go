package appcmd

import (
	"context"
	"maps"
	"slices"

	"github.com/bwmarrin/discordgo"
)

// MenuSpec declares a user or message context menu command.
type MenuSpec struct {
	// Name may contain spaces and mixed case, unlike chat input names.
	Name string

	Checks     []Check
	Middleware []Middleware
	OnError    ErrorHandler

	NameLocalizations        map[discordgo.Locale]string
	DefaultMemberPermissions *int64
	GuildOnly                bool
	NSFW                     bool

	Extras map[string]any
}

// UserMenuFunc handles a user context menu. member is nil outside guilds.
type UserMenuFunc func(ctx context.Context, it *Interaction, user *discordgo.User, member *discordgo.Member) error

// MessageMenuFunc handles a message context menu.
type MessageMenuFunc func(ctx context.Context, it *Interaction, msg *discordgo.Message) error

// ContextMenu is a right-click command on a user or a message.
type ContextMenu struct {
	spec    MenuSpec
	typ     discordgo.ApplicationCommandType
	handler func(ctx context.Context, it *Interaction, target any) error
}

// NewUserMenu declares a user context menu.
func NewUserMenu(spec MenuSpec, fn UserMenuFunc) (*ContextMenu, error) {
	if fn == nil {
		return nil, configErr("new context menu", spec.Name, "callback is required")
	}
	return newContextMenu(spec, discordgo.UserApplicationCommand, func(ctx context.Context, it *Interaction, target any) error {
		switch v := target.(type) {
		case *discordgo.Member:
			return fn(ctx, it, v.User, v)
		case *discordgo.User:
			return fn(ctx, it, v, nil)
		}
		return &InteractionDataError{InteractionID: it.ID, Reason: "unexpected user menu target"}
	})
}

// NewMessageMenu declares a message context menu.
func NewMessageMenu(spec MenuSpec, fn MessageMenuFunc) (*ContextMenu, error) {
	if fn == nil {
		return nil, configErr("new context menu", spec.Name, "callback is required")
	}
	return newContextMenu(spec, discordgo.MessageApplicationCommand, func(ctx context.Context, it *Interaction, target any) error {
		msg, ok := target.(*discordgo.Message)
		if !ok {
			return &InteractionDataError{InteractionID: it.ID, Reason: "unexpected message menu target"}
		}
		return fn(ctx, it, msg)
	})
}

func newContextMenu(spec MenuSpec, typ discordgo.ApplicationCommandType, h func(context.Context, *Interaction, any) error) (*ContextMenu, error) {
	if err := validateName(spec.Name, false); err != nil {
		return nil, &ConfigError{Op: "new context menu", Name: spec.Name, Err: err}
	}
	spec.Checks = slices.Clone(spec.Checks)
	spec.Middleware = slices.Clone(spec.Middleware)
	spec.NameLocalizations = maps.Clone(spec.NameLocalizations)
	spec.Extras = maps.Clone(spec.Extras)
	return &ContextMenu{spec: spec, typ: typ, handler: h}, nil
}

func (*ContextMenu) isAppCommand() {}

func (m *ContextMenu) Name() string { return m.spec.Name }

func (m *ContextMenu) Type() discordgo.ApplicationCommandType { return m.typ }

// Extras returns free-form metadata attached at declaration time.
func (m *ContextMenu) Extras() map[string]any { return m.spec.Extras }

// AddCheck appends a check evaluated before the handler runs.
func (m *ContextMenu) AddCheck(c Check) { m.spec.Checks = append(m.spec.Checks, c) }

// OnError sets the local error hook. The last registration wins.
func (m *ContextMenu) OnError(h ErrorHandler) { m.spec.OnError = h }

func (m *ContextMenu) ToWire() *discordgo.ApplicationCommand {
	cmd := &discordgo.ApplicationCommand{
		Type:                     m.typ,
		Name:                     m.spec.Name,
		DefaultMemberPermissions: m.spec.DefaultMemberPermissions,
	}
	if m.spec.GuildOnly {
		dm := false
		cmd.DMPermission = &dm
	}
	if m.spec.NSFW {
		nsfw := true
		cmd.NSFW = &nsfw
	}
	if len(m.spec.NameLocalizations) > 0 {
		loc := maps.Clone(m.spec.NameLocalizations)
		cmd.NameLocalizations = &loc
	}
	return cmd
}

// target looks up the menu target in the resolved table. A missing entry
// means Discord sent inconsistent data.
func (m *ContextMenu) target(it *Interaction, data discordgo.ApplicationCommandInteractionData) (any, error) {
	res := data.Resolved
	if data.TargetID == "" || res == nil {
		return nil, &InteractionDataError{InteractionID: it.ID, Reason: "context menu without a resolved target"}
	}
	switch m.typ {
	case discordgo.UserApplicationCommand:
		if v := resolveUser(res, data.TargetID, it.GuildID); v != nil {
			return v, nil
		}
	case discordgo.MessageApplicationCommand:
		if msg, ok := res.Messages[data.TargetID]; ok && msg != nil {
			return msg, nil
		}
	}
	return nil, &InteractionDataError{InteractionID: it.ID, Reason: "target " + data.TargetID + " missing from resolved data"}
}

func (m *ContextMenu) invoke(ctx context.Context, it *Interaction, target any, outer []Middleware) error {
	if err := runChecks(ctx, it, m.spec.Name, m.spec.Checks); err != nil {
		return err
	}
	h := Apply(func(ctx context.Context, it *Interaction, _ Namespace) error {
		return m.handler(ctx, it, target)
	}, append(slices.Clone(outer), m.spec.Middleware...)...)
	return callHandler(ctx, it, m.spec.Name, func(ctx context.Context, it *Interaction) error {
		return h(ctx, it, nil)
	})
}

package appcmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// InteractionHandler adapts the tree for (*discordgo.Session).AddHandler.
func (t *Tree) InteractionHandler() func(*discordgo.Session, *discordgo.InteractionCreate) {
	return func(_ *discordgo.Session, ic *discordgo.InteractionCreate) {
		t.Handle(ic.Interaction)
	}
}

// Handle dispatches raw in a background job and returns immediately.
// Interactions other than application commands and autocomplete are ignored.
func (t *Tree) Handle(raw *discordgo.Interaction) {
	if raw == nil || !isCommandInteraction(raw.Type) {
		return
	}
	id := raw.ID
	if id == "" {
		id = uuid.NewString()
	}
	err := t.jobs.StartAsync("interaction:"+id, func(ctx context.Context) error {
		return t.Dispatch(ctx, raw)
	})
	if err != nil {
		t.logger.Warn("interaction not dispatched", zap.String("interaction", id), zap.Error(err))
	}
}

func isCommandInteraction(typ discordgo.InteractionType) bool {
	return typ == discordgo.InteractionApplicationCommand || typ == discordgo.InteractionApplicationCommandAutocomplete
}

// Dispatch resolves and runs raw synchronously. Resolution, conversion, check
// and handler errors go to the error hooks and Dispatch returns nil. It
// returns an error only for cancellation and malformed interaction data.
func (t *Tree) Dispatch(ctx context.Context, raw *discordgo.Interaction) error {
	if raw == nil || !isCommandInteraction(raw.Type) {
		id := ""
		if raw != nil {
			id = raw.ID
		}
		return &InteractionDataError{InteractionID: id, Reason: "not an application command interaction"}
	}
	it := &Interaction{
		Interaction:   raw,
		CorrelationID: uuid.NewString(),
		responder:     t.client,
	}
	data := raw.ApplicationCommandData()
	switch data.CommandType {
	case discordgo.UserApplicationCommand, discordgo.MessageApplicationCommand:
		return t.dispatchMenu(ctx, it, data)
	}
	return t.dispatchChat(ctx, it, data)
}

func (t *Tree) dispatchMenu(ctx context.Context, it *Interaction, data discordgo.ApplicationCommandInteractionData) error {
	menu := t.lookupMenu(data.Name, it.GuildID, data.CommandType)
	if menu == nil {
		return t.fail(ctx, it, nil, &CommandNotFoundError{Name: data.Name, Type: data.CommandType})
	}
	it.command = menu

	target, err := menu.target(it, data)
	if err != nil {
		it.failed = true
		t.logger.Error("malformed context menu interaction",
			zap.String("command", menu.Name()),
			zap.String("correlation_id", it.CorrelationID),
			zap.Error(err),
		)
		return err
	}

	if err := t.interactionCheck(ctx, it, menu.Name()); err != nil {
		return t.fail(ctx, it, menu.spec.OnError, err)
	}
	if err := menu.invoke(ctx, it, target, t.middleware); err != nil {
		return t.fail(ctx, it, menu.spec.OnError, err)
	}
	t.complete(ctx, it, menu)
	return nil
}

func (t *Tree) lookupMenu(name, guildID string, typ discordgo.ApplicationCommandType) *ContextMenu {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if menu, ok := t.menus[menuKey{name: name, guild: guildID, typ: typ}]; ok {
		return menu
	}
	if guildID != "" && t.fallback {
		return t.menus[menuKey{name: name, typ: typ}]
	}
	return nil
}

func (t *Tree) dispatchChat(ctx context.Context, it *Interaction, data discordgo.ApplicationCommandInteractionData) error {
	cmd, opts, err := t.resolveChat(it.GuildID, data)
	if err != nil {
		return t.fail(ctx, it, nil, err)
	}
	it.command = cmd

	if it.Type == discordgo.InteractionApplicationCommandAutocomplete {
		return t.autocomplete(ctx, it, cmd, opts)
	}

	if err := t.interactionCheck(ctx, it, cmd.QualifiedName()); err != nil {
		return t.fail(ctx, it, cmd.errorHook(), err)
	}
	ns, err := cmd.buildNamespace(ctx, it, opts, data.Resolved)
	if err != nil {
		return t.fail(ctx, it, cmd.errorHook(), err)
	}
	it.namespace = ns
	if err := cmd.invoke(ctx, it, ns, t.middleware); err != nil {
		return t.fail(ctx, it, cmd.errorHook(), err)
	}
	t.complete(ctx, it, cmd)
	return nil
}

// resolveChat resolves the full path in the guild scope first. Only when that
// reports not found, and fallback is enabled, is the path resolved again from
// scratch in the global scope. Scopes are never mixed within one path.
func (t *Tree) resolveChat(guildID string, data discordgo.ApplicationCommandInteractionData) (*Command, []*discordgo.ApplicationCommandInteractionDataOption, error) {
	cmd, opts, err := t.resolveIn(guildID, data)
	var notFound *CommandNotFoundError
	if guildID != "" && t.fallback && errors.As(err, &notFound) {
		return t.resolveIn("", data)
	}
	return cmd, opts, err
}

func (t *Tree) resolveIn(scope string, data discordgo.ApplicationCommandInteractionData) (*Command, []*discordgo.ApplicationCommandInteractionDataOption, error) {
	t.mu.RLock()
	root, ok := t.scopeLocked(scope)[data.Name]
	t.mu.RUnlock()
	if !ok {
		return nil, nil, &CommandNotFoundError{Name: data.Name, Type: discordgo.ChatApplicationCommand}
	}

	n, opts := root, data.Options
	var parents []string
	for {
		g, isGroup := n.(*Group)
		if !isGroup {
			break
		}
		parents = append(parents, g.Name())
		if len(opts) == 0 || !isSubcommandOption(opts[0].Type) {
			return nil, nil, &CommandSignatureMismatchError{
				Command: g.QualifiedName(),
				Reason:  "group was invoked without a subcommand",
			}
		}
		sub := opts[0]
		child := g.GetCommand(sub.Name)
		if child == nil {
			return nil, nil, &CommandNotFoundError{Name: sub.Name, Parents: parents, Type: discordgo.ChatApplicationCommand}
		}
		n, opts = child, sub.Options
	}
	return n.(*Command), opts, nil
}

func isSubcommandOption(typ discordgo.ApplicationCommandOptionType) bool {
	return typ == discordgo.ApplicationCommandOptionSubCommand || typ == discordgo.ApplicationCommandOptionSubCommandGroup
}

// autocomplete answers with suggestions for the focused option only. The
// namespace seen by the callback holds the raw values typed so far.
func (t *Tree) autocomplete(ctx context.Context, it *Interaction, cmd *Command, opts []*discordgo.ApplicationCommandInteractionDataOption) error {
	var focused *discordgo.ApplicationCommandInteractionDataOption
	raw := make(Namespace, len(opts))
	for _, o := range opts {
		if local := cmd.optionByDisplay(o.Name); local != nil {
			raw[local.Name] = o.Value
		}
		if o.Focused {
			focused = o
		}
	}
	if focused == nil {
		return t.fail(ctx, it, cmd.errorHook(), cmd.mismatch("autocomplete without a focused option", nil))
	}
	opt := cmd.optionByDisplay(focused.Name)
	if opt == nil || opt.autocomplete == nil {
		return t.fail(ctx, it, cmd.errorHook(), cmd.mismatch(fmt.Sprintf("option %q has no autocomplete", focused.Name), nil))
	}
	it.namespace = raw

	var choices []Choice
	err := callHandler(ctx, it, cmd.QualifiedName(), func(ctx context.Context, it *Interaction) error {
		var err error
		choices, err = opt.autocomplete(ctx, it, focused.Value)
		return err
	})
	if err != nil {
		return t.fail(ctx, it, cmd.errorHook(), err)
	}
	if len(choices) > MaxChoices {
		choices = choices[:MaxChoices]
	}
	wire := make([]*discordgo.ApplicationCommandOptionChoice, 0, len(choices))
	for _, c := range choices {
		v, err := normalizeScalar(opt.Type, c.Value)
		if err != nil {
			return t.fail(ctx, it, cmd.errorHook(), &CommandInvokeError{Command: cmd.QualifiedName(), Err: fmt.Errorf("autocomplete choice %q: %w", c.Name, err)})
		}
		c.Value = v
		wire = append(wire, c.wire())
	}
	err = it.Respond(&discordgo.InteractionResponse{
		Type: discordgo.InteractionApplicationCommandAutocompleteResult,
		Data: &discordgo.InteractionResponseData{Choices: wire},
	})
	if err != nil {
		return t.fail(ctx, it, cmd.errorHook(), fmt.Errorf("respond to autocomplete: %w", err))
	}
	return nil
}

func (t *Tree) interactionCheck(ctx context.Context, it *Interaction, name string) error {
	_, _, check := t.hooks()
	if check == nil {
		return nil
	}
	return runChecks(ctx, it, name, []Check{check})
}

// fail routes err to exactly one hook: local (the command's or nearest
// group's), otherwise the tree's. Cancellation of ctx is returned instead.
func (t *Tree) fail(ctx context.Context, it *Interaction, local ErrorHandler, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		t.logger.Debug("interaction cancelled",
			zap.String("interaction", it.ID),
			zap.String("correlation_id", it.CorrelationID),
			zap.Error(err),
		)
		return ctxErr
	}
	it.failed = true

	hook := local
	if hook == nil {
		hook, _, _ = t.hooks()
	}
	if hook == nil {
		hook = t.defaultErrorHook
	}
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("error hook panicked",
				zap.String("correlation_id", it.CorrelationID),
				zap.Any("panic", r),
				zap.NamedError("original", err),
			)
		}
	}()
	hook(ctx, it, err)
	return nil
}

func (t *Tree) defaultErrorHook(_ context.Context, it *Interaction, err error) {
	fields := []zap.Field{
		zap.String("interaction", it.ID),
		zap.String("correlation_id", it.CorrelationID),
		zap.String("guild", it.GuildID),
		zap.Error(err),
	}
	if cmd := it.Command(); cmd != nil {
		name := cmd.Name()
		if n, ok := cmd.(Node); ok {
			name = n.QualifiedName()
		}
		fields = append(fields, zap.String("command", name))
	}
	t.logger.Error("ignoring error in command", fields...)
}

func (t *Tree) complete(ctx context.Context, it *Interaction, cmd AppCommand) {
	_, done, _ := t.hooks()
	if done == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("completion hook panicked", zap.String("correlation_id", it.CorrelationID), zap.Any("panic", r))
		}
	}()
	done(ctx, it, cmd)
}

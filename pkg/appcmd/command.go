package appcmd

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/bwmarrin/discordgo"
)

// AppCommand is anything a Tree stores at the top of a scope: a *Command, a
// *Group or a *ContextMenu.
type AppCommand interface {
	Name() string
	Type() discordgo.ApplicationCommandType
	// ToWire renders the command as a top-level Discord payload.
	ToWire() *discordgo.ApplicationCommand

	isAppCommand()
}

// Node is a chat input command or group.
type Node interface {
	AppCommand
	Description() string
	Parent() *Group
	QualifiedName() string
	// WireOption renders the node as a nested subcommand or subcommand group.
	WireOption() *discordgo.ApplicationCommandOption

	base() *node
	clone(recv any, parent *Group) Node
}

// HandlerFunc runs a chat input command.
type HandlerFunc func(ctx context.Context, it *Interaction, args Namespace) error

// ErrorHandler receives any error produced while running a command.
type ErrorHandler func(ctx context.Context, it *Interaction, err error)

// Callback is a handler that may need a receiver. HandlerFunc needs none;
// Method binds to the value passed to Bind.
type Callback interface {
	bind(recv any) (HandlerFunc, error)
}

func (h HandlerFunc) bind(any) (HandlerFunc, error) { return h, nil }

// Method adapts a method expression such as (*Tasks).Add so that a command
// can be declared once and bound to many receivers.
type Method[T any] func(recv T, ctx context.Context, it *Interaction, args Namespace) error

func (m Method[T]) bind(recv any) (HandlerFunc, error) {
	v, ok := recv.(T)
	if !ok {
		return nil, fmt.Errorf("receiver %T cannot be bound to %s", recv, strings.TrimPrefix(fmt.Sprintf("%T", new(T)), "*"))
	}
	return func(ctx context.Context, it *Interaction, args Namespace) error {
		return m(v, ctx, it, args)
	}, nil
}

// node holds what commands and groups have in common.
type node struct {
	name        string
	description string
	parent      *Group

	nameLocalizations        map[discordgo.Locale]string
	descriptionLocalizations map[discordgo.Locale]string
	defaultMemberPermissions *int64
	guildOnly                bool
	nsfw                     bool

	checks  []Check
	onError ErrorHandler
	extras  map[string]any
}

func (n *node) base() *node { return n }

func (n *node) Name() string { return n.name }

func (n *node) Description() string { return n.description }

// links guards every node's parent pointer. Groups may be edited while
// dispatch walks up from a leaf.
var links sync.RWMutex

func (n *node) Parent() *Group {
	links.RLock()
	defer links.RUnlock()
	return n.parent
}

// Extras returns free-form metadata attached at declaration time.
func (n *node) Extras() map[string]any { return n.extras }

// QualifiedName is the space separated path from the root, e.g. "tasks add".
func (n *node) QualifiedName() string {
	p := n.Parent()
	if p == nil {
		return n.name
	}
	return p.QualifiedName() + " " + n.name
}

// AddCheck appends a check evaluated before the handler runs.
func (n *node) AddCheck(c Check) { n.checks = append(n.checks, c) }

// OnError sets the local error hook. The last registration wins.
func (n *node) OnError(h ErrorHandler) { n.onError = h }

func (n *node) depth() int {
	d := 0
	for p := n.Parent(); p != nil; p = p.Parent() {
		d++
	}
	return d
}

func (n *node) copyInto(dst *node, parent *Group) {
	links.RLock()
	*dst = *n
	links.RUnlock()
	dst.parent = parent
	dst.checks = slices.Clone(n.checks)
	dst.extras = maps.Clone(n.extras)
	dst.nameLocalizations = maps.Clone(n.nameLocalizations)
	dst.descriptionLocalizations = maps.Clone(n.descriptionLocalizations)
}

func (n *node) wireCommand(options []*discordgo.ApplicationCommandOption) *discordgo.ApplicationCommand {
	cmd := &discordgo.ApplicationCommand{
		Type:                     discordgo.ChatApplicationCommand,
		Name:                     n.name,
		Description:              n.description,
		Options:                  options,
		DefaultMemberPermissions: n.defaultMemberPermissions,
	}
	if n.guildOnly {
		dm := false
		cmd.DMPermission = &dm
	}
	if n.nsfw {
		nsfw := true
		cmd.NSFW = &nsfw
	}
	if len(n.nameLocalizations) > 0 {
		m := maps.Clone(n.nameLocalizations)
		cmd.NameLocalizations = &m
	}
	if len(n.descriptionLocalizations) > 0 {
		m := maps.Clone(n.descriptionLocalizations)
		cmd.DescriptionLocalizations = &m
	}
	return cmd
}

// ancestorChecks returns the checks of every group above n, root first.
func (n *node) ancestorChecks() []Check {
	var chain [][]Check
	for p := n.Parent(); p != nil; p = p.Parent() {
		chain = append(chain, p.checks)
	}
	var out []Check
	for i := len(chain) - 1; i >= 0; i-- {
		out = append(out, chain[i]...)
	}
	return out
}

// errorHook returns the nearest error hook: the node's own, then its
// ancestors'.
func (n *node) errorHook() ErrorHandler {
	if n.onError != nil {
		return n.onError
	}
	for p := n.Parent(); p != nil; p = p.Parent() {
		if p.onError != nil {
			return p.onError
		}
	}
	return nil
}

// CommandSpec declares a chat input command.
type CommandSpec struct {
	Name string
	// Description defaults to a placeholder; long text is shortened to its
	// first paragraph and cut to fit.
	Description string
	Params      []Param
	// Describe and Rename attach parameter descriptions and display names by
	// parameter name.
	Describe map[string]string
	Rename   map[string]string
	Callback Callback

	Checks     []Check
	Middleware []Middleware
	OnError    ErrorHandler

	NameLocalizations        map[discordgo.Locale]string
	DescriptionLocalizations map[discordgo.Locale]string
	// The following only apply to top-level commands.
	DefaultMemberPermissions *int64
	GuildOnly                bool
	NSFW                     bool

	Extras map[string]any
}

// Command is a chat input command, either top-level or a subcommand.
type Command struct {
	node

	options    []*Option
	callback   Callback
	binding    any
	middleware []Middleware
}

var (
	_ Node = (*Command)(nil)
	_ Node = (*Group)(nil)
)

// NewCommand validates spec and derives its options.
func NewCommand(spec CommandSpec) (*Command, error) {
	const op = "new command"
	if err := validateName(spec.Name, true); err != nil {
		return nil, &ConfigError{Op: op, Name: spec.Name, Err: err}
	}
	if spec.Callback == nil {
		return nil, configErr(op, spec.Name, "callback is required")
	}
	options, err := deriveOptions(spec.Name, spec.Params, spec.Describe, spec.Rename)
	if err != nil {
		return nil, err
	}
	description := placeholderDescription
	if spec.Description != "" {
		description = shorten(spec.Description)
	}
	return &Command{
		node: node{
			name:                     spec.Name,
			description:              description,
			nameLocalizations:        maps.Clone(spec.NameLocalizations),
			descriptionLocalizations: maps.Clone(spec.DescriptionLocalizations),
			defaultMemberPermissions: spec.DefaultMemberPermissions,
			guildOnly:                spec.GuildOnly,
			nsfw:                     spec.NSFW,
			checks:                   slices.Clone(spec.Checks),
			onError:                  spec.OnError,
			extras:                   maps.Clone(spec.Extras),
		},
		options:    options,
		callback:   spec.Callback,
		middleware: slices.Clone(spec.Middleware),
	}, nil
}

// MustCommand is NewCommand that panics on error, for package-level
// declarations.
func MustCommand(spec CommandSpec) *Command {
	c, err := NewCommand(spec)
	if err != nil {
		panic(err)
	}
	return c
}

func (*Command) isAppCommand() {}

func (*Command) Type() discordgo.ApplicationCommandType { return discordgo.ChatApplicationCommand }

// Root returns the top-most ancestor, or c itself.
func (c *Command) Root() Node { return rootOf(c) }

// Options returns the derived options, required ones first.
func (c *Command) Options() []*Option { return slices.Clone(c.options) }

// Option returns the option for a parameter name, or nil.
func (c *Command) Option(name string) *Option {
	for _, o := range c.options {
		if o.Name == name {
			return o
		}
	}
	return nil
}

// Bind returns a detached copy of c whose callback is bound to recv.
func (c *Command) Bind(recv any) *Command {
	return c.clone(recv, nil).(*Command)
}

func (c *Command) clone(recv any, parent *Group) Node {
	cp := &Command{
		options:    slices.Clone(c.options),
		callback:   c.callback,
		binding:    c.binding,
		middleware: slices.Clone(c.middleware),
	}
	c.node.copyInto(&cp.node, parent)
	if recv != nil {
		cp.binding = recv
	}
	return cp
}

func (c *Command) wireOptions() []*discordgo.ApplicationCommandOption {
	out := make([]*discordgo.ApplicationCommandOption, len(c.options))
	for i, o := range c.options {
		out[i] = o.Wire()
	}
	return out
}

func (c *Command) ToWire() *discordgo.ApplicationCommand {
	return c.wireCommand(c.wireOptions())
}

func (c *Command) WireOption() *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:                     discordgo.ApplicationCommandOptionSubCommand,
		Name:                     c.name,
		Description:              c.description,
		Options:                  c.wireOptions(),
		NameLocalizations:        maps.Clone(c.nameLocalizations),
		DescriptionLocalizations: maps.Clone(c.descriptionLocalizations),
	}
}

// buildNamespace converts the inbound options into arguments. Options the
// command does not declare and missing required options mean the local and
// remote definitions have drifted apart.
func (c *Command) buildNamespace(ctx context.Context, it *Interaction, in []*discordgo.ApplicationCommandInteractionDataOption, res *discordgo.ApplicationCommandInteractionDataResolved) (Namespace, error) {
	present := make(map[string]*discordgo.ApplicationCommandInteractionDataOption, len(in))
	for _, raw := range in {
		o := c.optionByDisplay(raw.Name)
		if o == nil {
			return nil, c.mismatch(fmt.Sprintf("unknown option %q", raw.Name), nil)
		}
		if raw.Type != o.Type {
			return nil, c.mismatch(fmt.Sprintf("option %q is %s locally but %s remotely", raw.Name, optionTypeLabel(o.Type), optionTypeLabel(raw.Type)), nil)
		}
		present[o.Name] = raw
	}

	ns := make(Namespace, len(c.options))
	for _, o := range c.options {
		raw, ok := present[o.Name]
		if !ok {
			if o.Required {
				return nil, c.mismatch(fmt.Sprintf("required option %q is missing", o.DisplayName), nil)
			}
			ns[o.Name] = o.Default
			continue
		}
		v, err := o.convert(ctx, it, raw.Value, res)
		if err != nil {
			return nil, err
		}
		ns[o.Name] = v
	}
	return ns, nil
}

func (c *Command) optionByDisplay(name string) *Option {
	for _, o := range c.options {
		if o.DisplayName == name {
			return o
		}
	}
	return nil
}

func (c *Command) mismatch(reason string, err error) error {
	return &CommandSignatureMismatchError{Command: c.QualifiedName(), Reason: reason, Err: err}
}

// invoke binds the callback, runs checks and calls the handler through the
// middleware chain. Panics are recovered as *CommandInvokeError.
func (c *Command) invoke(ctx context.Context, it *Interaction, args Namespace, outer []Middleware) error {
	h, err := c.callback.bind(c.binding)
	if err != nil {
		return c.mismatch("callback could not be bound", err)
	}
	checks := append(c.ancestorChecks(), c.checks...)
	if err := runChecks(ctx, it, c.QualifiedName(), checks); err != nil {
		return err
	}
	h = Apply(h, append(slices.Clone(outer), c.middleware...)...)
	return callHandler(ctx, it, c.QualifiedName(), func(ctx context.Context, it *Interaction) error {
		return h(ctx, it, args)
	})
}

func callHandler(ctx context.Context, it *Interaction, name string, fn func(context.Context, *Interaction) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			perr, ok := r.(error)
			if ok {
				perr = fmt.Errorf("panic: %w", perr)
			} else {
				perr = fmt.Errorf("panic: %v", r)
			}
			err = &CommandInvokeError{Command: name, Err: perr}
		}
	}()
	if err := fn(ctx, it); err != nil {
		var invokeErr *CommandInvokeError
		if errors.As(err, &invokeErr) {
			return err
		}
		return &CommandInvokeError{Command: name, Err: err}
	}
	return nil
}

// convert resolves entity ids against the resolved table and runs the
// option's transformer.
func (o *Option) convert(ctx context.Context, it *Interaction, raw any, res *discordgo.ApplicationCommandInteractionDataResolved) (any, error) {
	value := raw
	switch o.Type {
	case discordgo.ApplicationCommandOptionUser,
		discordgo.ApplicationCommandOptionRole,
		discordgo.ApplicationCommandOptionMentionable,
		discordgo.ApplicationCommandOptionChannel,
		discordgo.ApplicationCommandOptionAttachment:
		id, ok := raw.(string)
		if !ok {
			id = fmt.Sprint(raw)
		}
		value = resolveEntity(res, o.Type, id, it.GuildID)
	}
	v, err := o.transformer.Transform(ctx, it, value)
	if err != nil {
		var te *TransformerError
		if errors.As(err, &te) {
			return nil, err
		}
		return nil, &TransformerError{Value: raw, Type: o.Type, Transformer: o.transformer, Err: err}
	}
	return v, nil
}

func rootOf(n Node) Node {
	for p := n.Parent(); p != nil; p = p.Parent() {
		n = p
	}
	return n
}

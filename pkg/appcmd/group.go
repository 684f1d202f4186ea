package appcmd

import (
	"iter"
	"maps"
	"slices"
	"sync"

	"github.com/bwmarrin/discordgo"
)

// GroupSpec declares a command group.
type GroupSpec struct {
	Name        string
	Description string

	Checks  []Check
	OnError ErrorHandler

	NameLocalizations        map[discordgo.Locale]string
	DescriptionLocalizations map[discordgo.Locale]string
	// The following only apply to top-level groups.
	DefaultMemberPermissions *int64
	GuildOnly                bool
	NSFW                     bool

	Extras map[string]any
}

// Group holds subcommands and at most one level of nested groups.
type Group struct {
	node

	mu       sync.RWMutex
	order    []string
	children map[string]Node
}

// NewGroup validates spec and returns an empty group.
func NewGroup(spec GroupSpec) (*Group, error) {
	const op = "new group"
	if err := validateName(spec.Name, true); err != nil {
		return nil, &ConfigError{Op: op, Name: spec.Name, Err: err}
	}
	if spec.Description == "" {
		return nil, configErr(op, spec.Name, "groups must have a description")
	}
	return &Group{
		node: node{
			name:                     spec.Name,
			description:              shorten(spec.Description),
			nameLocalizations:        maps.Clone(spec.NameLocalizations),
			descriptionLocalizations: maps.Clone(spec.DescriptionLocalizations),
			defaultMemberPermissions: spec.DefaultMemberPermissions,
			guildOnly:                spec.GuildOnly,
			nsfw:                     spec.NSFW,
			checks:                   slices.Clone(spec.Checks),
			onError:                  spec.OnError,
			extras:                   maps.Clone(spec.Extras),
		},
		children: make(map[string]Node),
	}, nil
}

// MustGroup is NewGroup that panics on error.
func MustGroup(spec GroupSpec) *Group {
	g, err := NewGroup(spec)
	if err != nil {
		panic(err)
	}
	return g
}

func (*Group) isAppCommand() {}

func (*Group) Type() discordgo.ApplicationCommandType { return discordgo.ChatApplicationCommand }

// Root returns the top-most ancestor, or g itself.
func (g *Group) Root() Node { return rootOf(g) }

// AddCommand attaches n as a child. It fails if the name is taken (unless
// override), if the group is full, or if nesting would exceed two levels.
func (g *Group) AddCommand(n Node, override bool) error {
	const op = "add command"
	b := n.base()
	if p := b.Parent(); p != nil && p != g {
		return configErr(op, n.Name(), "already attached to group %q", p.QualifiedName())
	}
	if sub, ok := n.(*Group); ok {
		if sub == g {
			return configErr(op, n.Name(), "a group cannot contain itself")
		}
		if g.Parent() != nil {
			return configErr(op, n.Name(), "groups can only be nested one level deep")
		}
		if sub.hasSubgroups() {
			return configErr(op, n.Name(), "nested group %q cannot contain groups", n.Name())
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	_, exists := g.children[n.Name()]
	if exists && !override {
		return &CommandAlreadyRegisteredError{Name: g.QualifiedName() + " " + n.Name()}
	}
	if !exists && len(g.children) >= MaxGroupChildren {
		return configErr(op, g.QualifiedName(), "groups cannot have more than %d children", MaxGroupChildren)
	}

	links.Lock()
	defer links.Unlock()
	if b.parent != nil && b.parent != g {
		return configErr(op, n.Name(), "already attached to another group")
	}
	if exists {
		g.children[n.Name()].base().parent = nil
	} else {
		g.order = append(g.order, n.Name())
	}
	g.children[n.Name()] = n
	b.parent = g
	return nil
}

// Command declares a subcommand and attaches it.
func (g *Group) Command(spec CommandSpec) (*Command, error) {
	c, err := NewCommand(spec)
	if err != nil {
		return nil, err
	}
	if err := g.AddCommand(c, false); err != nil {
		return nil, err
	}
	return c, nil
}

// Subgroup declares a nested group and attaches it.
func (g *Group) Subgroup(spec GroupSpec) (*Group, error) {
	sub, err := NewGroup(spec)
	if err != nil {
		return nil, err
	}
	if err := g.AddCommand(sub, false); err != nil {
		return nil, err
	}
	return sub, nil
}

// RemoveCommand detaches and returns the named child, or nil.
func (g *Group) RemoveCommand(name string) Node {
	g.mu.Lock()
	defer g.mu.Unlock()
	n, ok := g.children[name]
	if !ok {
		return nil
	}
	delete(g.children, name)
	g.order = slices.DeleteFunc(g.order, func(s string) bool { return s == name })
	links.Lock()
	n.base().parent = nil
	links.Unlock()
	return n
}

// GetCommand returns the named child, or nil.
func (g *Group) GetCommand(name string) Node {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.children[name]
}

// Commands returns the direct children in insertion order.
func (g *Group) Commands() []Node {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]Node, 0, len(g.order))
	for _, name := range g.order {
		out = append(out, g.children[name])
	}
	return out
}

// Walk yields every descendant depth first, parents before children.
func (g *Group) Walk() iter.Seq[Node] {
	return func(yield func(Node) bool) {
		walkChildren(g, yield)
	}
}

func walkChildren(g *Group, yield func(Node) bool) bool {
	for _, child := range g.Commands() {
		if !yield(child) {
			return false
		}
		if sub, ok := child.(*Group); ok {
			if !walkChildren(sub, yield) {
				return false
			}
		}
	}
	return true
}

func (g *Group) hasSubgroups() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, child := range g.children {
		if _, ok := child.(*Group); ok {
			return true
		}
	}
	return false
}

// Bind returns a detached deep copy of g with every callback bound to recv.
// Changes to the copy's children never affect g.
func (g *Group) Bind(recv any) *Group {
	return g.clone(recv, nil).(*Group)
}

func (g *Group) clone(recv any, parent *Group) Node {
	cp := &Group{}
	g.node.copyInto(&cp.node, parent)

	g.mu.RLock()
	defer g.mu.RUnlock()
	cp.order = slices.Clone(g.order)
	cp.children = make(map[string]Node, len(g.children))
	for name, child := range g.children {
		cp.children[name] = child.clone(recv, cp)
	}
	return cp
}

func (g *Group) wireChildren() []*discordgo.ApplicationCommandOption {
	children := g.Commands()
	out := make([]*discordgo.ApplicationCommandOption, len(children))
	for i, child := range children {
		out[i] = child.WireOption()
	}
	return out
}

func (g *Group) ToWire() *discordgo.ApplicationCommand {
	return g.wireCommand(g.wireChildren())
}

func (g *Group) WireOption() *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:                     discordgo.ApplicationCommandOptionSubCommandGroup,
		Name:                     g.name,
		Description:              g.description,
		Options:                  g.wireChildren(),
		NameLocalizations:        maps.Clone(g.nameLocalizations),
		DescriptionLocalizations: maps.Clone(g.descriptionLocalizations),
	}
}

package appcmd

import (
	"cmp"
	"context"
	"iter"
	"maps"
	"slices"
	"sync"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/keshon/commandtree/pkg/jobmgr"
	"github.com/keshon/commandtree/pkg/retrylimit"
)

// Transport is the part of *discordgo.Session the tree talks to.
type Transport interface {
	Responder
	ApplicationCommandBulkOverwrite(appID string, guildID string, commands []*discordgo.ApplicationCommand, options ...discordgo.RequestOption) ([]*discordgo.ApplicationCommand, error)
	ApplicationCommands(appID, guildID string, options ...discordgo.RequestOption) ([]*discordgo.ApplicationCommand, error)
	ApplicationCommand(appID, guildID, cmdID string, options ...discordgo.RequestOption) (*discordgo.ApplicationCommand, error)
	ApplicationCommandEdit(appID, guildID, cmdID string, cmd *discordgo.ApplicationCommand, options ...discordgo.RequestOption) (*discordgo.ApplicationCommand, error)
	ApplicationCommandDelete(appID, guildID, cmdID string, options ...discordgo.RequestOption) error
	ApplicationCommandPermissions(appID, guildID, cmdID string, options ...discordgo.RequestOption) (*discordgo.GuildApplicationCommandPermissions, error)
}

var _ Transport = (*discordgo.Session)(nil)

// owners maps a Transport to the tree attached to it.
var owners sync.Map

// CompletionHandler is notified after a command finished without error.
type CompletionHandler func(ctx context.Context, it *Interaction, cmd AppCommand)

type menuKey struct {
	name  string
	guild string
	typ   discordgo.ApplicationCommandType
}

// Tree stores commands per scope and dispatches interactions to them. A
// scope is a guild id; "" is the global scope.
type Tree struct {
	client     Transport
	logger     *zap.Logger
	fallback   bool
	translator Translator
	locales    []discordgo.Locale
	limiter    *retrylimit.AdaptiveLimiter
	retry      retrylimit.RetryConfig
	middleware []Middleware
	jobs       *jobmgr.Manager
	cancel     context.CancelFunc

	mu     sync.RWMutex
	appID  string
	global map[string]Node
	guilds map[string]map[string]Node
	menus  map[menuKey]*ContextMenu

	hookMu       sync.RWMutex
	onError      ErrorHandler
	onCompletion CompletionHandler
	check        Check
}

type treeConfig struct {
	logger     *zap.Logger
	appID      string
	fallback   bool
	translator Translator
	locales    []discordgo.Locale
	limiter    *retrylimit.AdaptiveLimiter
	retry      *retrylimit.RetryConfig
	middleware []Middleware
	base       context.Context
}

// TreeOption configures NewTree.
type TreeOption func(*treeConfig)

// WithLogger sets the logger. The default is a no-op logger.
func WithLogger(l *zap.Logger) TreeOption {
	return func(c *treeConfig) { c.logger = l }
}

// WithApplicationID sets the application id used by remote operations.
func WithApplicationID(id string) TreeOption {
	return func(c *treeConfig) { c.appID = id }
}

// WithFallbackToGlobal makes guild interactions fall back to global commands
// when the guild scope has no match.
func WithFallbackToGlobal(enabled bool) TreeOption {
	return func(c *treeConfig) { c.fallback = enabled }
}

// WithTranslator localizes payloads during Payload and Sync.
func WithTranslator(t Translator) TreeOption {
	return func(c *treeConfig) { c.translator = t }
}

// WithLocales restricts translation to the given locales.
func WithLocales(locales ...discordgo.Locale) TreeOption {
	return func(c *treeConfig) { c.locales = locales }
}

// WithRetry sets the limiter and retry policy for REST calls.
func WithRetry(lim *retrylimit.AdaptiveLimiter, cfg retrylimit.RetryConfig) TreeOption {
	return func(c *treeConfig) {
		c.limiter = lim
		c.retry = &cfg
	}
}

// WithMiddleware wraps every command and context menu handler.
func WithMiddleware(mws ...Middleware) TreeOption {
	return func(c *treeConfig) { c.middleware = append(c.middleware, mws...) }
}

// WithBaseContext sets the parent context of dispatches started by Handle.
func WithBaseContext(ctx context.Context) TreeOption {
	return func(c *treeConfig) { c.base = ctx }
}

// NewTree attaches a tree to client. A client can own only one tree at a
// time; a second call fails with ErrTreeExists until Close.
func NewTree(client Transport, opts ...TreeOption) (*Tree, error) {
	if client == nil {
		return nil, configErr("new tree", "", "client is nil")
	}
	cfg := treeConfig{
		logger:  zap.NewNop(),
		limiter: retrylimit.NewAdaptiveLimiter(5, 1, 20, 1, 0.5),
		base:    context.Background(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = zap.NewNop()
	}
	retry := retrylimit.DefaultRetryConfig()
	if cfg.retry != nil {
		retry = *cfg.retry
	}
	if retry.Logger == nil || cfg.retry == nil {
		retry.Logger = cfg.logger.Named("retry")
	}
	if cfg.locales == nil {
		cfg.locales = defaultLocales()
	}

	t := &Tree{
		client:     client,
		logger:     cfg.logger,
		fallback:   cfg.fallback,
		translator: cfg.translator,
		locales:    cfg.locales,
		limiter:    cfg.limiter,
		retry:      retry,
		middleware: cfg.middleware,
		appID:      cfg.appID,
		global:     make(map[string]Node),
		guilds:     make(map[string]map[string]Node),
		menus:      make(map[menuKey]*ContextMenu),
	}
	if _, loaded := owners.LoadOrStore(client, t); loaded {
		return nil, ErrTreeExists
	}

	base, cancel := context.WithCancel(cfg.base)
	t.cancel = cancel
	jobLog := cfg.logger.Named("jobs")
	t.jobs = jobmgr.NewManager(base, func(ev jobmgr.Event) {
		if ev.Kind == jobmgr.EventError {
			jobLog.Error("interaction job failed", zap.String("job", ev.Name), zap.Error(ev.Err))
			return
		}
		jobLog.Debug("interaction job", zap.Stringer("event", ev))
	})
	return t, nil
}

// Close cancels in-flight dispatches, waits for them and releases the client.
func (t *Tree) Close() {
	t.cancel()
	t.jobs.StopAll()
	t.jobs.Wait()
	owners.CompareAndDelete(t.client, t)
}

// Client returns the transport the tree was created with.
func (t *Tree) Client() Transport { return t.client }

// SetApplicationID sets the id used by remote operations, typically from the
// ready event.
func (t *Tree) SetApplicationID(id string) {
	t.mu.Lock()
	t.appID = id
	t.mu.Unlock()
}

// ApplicationID returns the configured application id.
func (t *Tree) ApplicationID() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.appID
}

type addConfig struct {
	guilds   []string
	override bool
}

// AddOption configures Tree.Add.
type AddOption func(*addConfig)

// Guilds registers the command in the given guild scopes instead of globally.
func Guilds(ids ...string) AddOption {
	return func(c *addConfig) { c.guilds = append(c.guilds, ids...) }
}

// Override replaces a command of the same name instead of failing.
func Override() AddOption {
	return func(c *addConfig) { c.override = true }
}

// Add registers cmd in one or more scopes. A subcommand registers its root.
// Every scope is validated before any is changed, so a failure leaves the
// tree untouched.
func (t *Tree) Add(cmd AppCommand, opts ...AddOption) error {
	var cfg addConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	scopes := slices.Compact(slices.Sorted(slices.Values(cfg.guilds)))
	if len(scopes) == 0 {
		scopes = []string{""}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	switch c := cmd.(type) {
	case *ContextMenu:
		for _, scope := range scopes {
			key := menuKey{name: c.Name(), guild: scope, typ: c.typ}
			_, exists := t.menus[key]
			if exists && !cfg.override {
				return &CommandAlreadyRegisteredError{Name: c.Name(), GuildID: scope}
			}
			if !exists && t.countMenus(scope, c.typ) >= MaxContextMenus {
				return &CommandLimitReachedError{GuildID: scope, Type: c.typ, Limit: MaxContextMenus}
			}
		}
		for _, scope := range scopes {
			t.menus[menuKey{name: c.Name(), guild: scope, typ: c.typ}] = c
		}
		return nil
	case Node:
		root := rootOf(c)
		name := root.Name()
		for _, scope := range scopes {
			m := t.scopeLocked(scope)
			_, exists := m[name]
			if exists && !cfg.override {
				return &CommandAlreadyRegisteredError{Name: name, GuildID: scope}
			}
			if !exists && len(m) >= MaxChatInputCommands {
				return &CommandLimitReachedError{GuildID: scope, Type: discordgo.ChatApplicationCommand, Limit: MaxChatInputCommands}
			}
		}
		for _, scope := range scopes {
			m := t.scopeLocked(scope)
			if m == nil {
				m = make(map[string]Node)
				t.guilds[scope] = m
			}
			m[name] = root
		}
		return nil
	}
	return configErr("add command", cmd.Name(), "unsupported command type %T", cmd)
}

// scopeLocked returns the chat input map of a scope; nil for a guild with no
// commands yet.
func (t *Tree) scopeLocked(guildID string) map[string]Node {
	if guildID == "" {
		return t.global
	}
	return t.guilds[guildID]
}

func (t *Tree) countMenus(guildID string, typ discordgo.ApplicationCommandType) int {
	n := 0
	for k := range t.menus {
		if k.guild == guildID && k.typ == typ {
			n++
		}
	}
	return n
}

// Remove unregisters and returns a command, or nil if it is not registered.
func (t *Tree) Remove(name, guildID string, typ discordgo.ApplicationCommandType) AppCommand {
	t.mu.Lock()
	defer t.mu.Unlock()
	if typ == discordgo.ChatApplicationCommand {
		m := t.scopeLocked(guildID)
		n, ok := m[name]
		if !ok {
			return nil
		}
		delete(m, name)
		return n
	}
	key := menuKey{name: name, guild: guildID, typ: typ}
	menu, ok := t.menus[key]
	if !ok {
		return nil
	}
	delete(t.menus, key)
	return menu
}

// Get returns a registered command, or nil.
func (t *Tree) Get(name, guildID string, typ discordgo.ApplicationCommandType) AppCommand {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.getLocked(name, guildID, typ)
}

func (t *Tree) getLocked(name, guildID string, typ discordgo.ApplicationCommandType) AppCommand {
	if typ == discordgo.ChatApplicationCommand {
		if n, ok := t.scopeLocked(guildID)[name]; ok {
			return n
		}
		return nil
	}
	if menu, ok := t.menus[menuKey{name: name, guild: guildID, typ: typ}]; ok {
		return menu
	}
	return nil
}

// Commands returns the top-level commands of a scope sorted by type then
// name. A zero typ returns every type.
func (t *Tree) Commands(guildID string, typ discordgo.ApplicationCommandType) []AppCommand {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.commandsLocked(guildID, typ)
}

func (t *Tree) commandsLocked(guildID string, typ discordgo.ApplicationCommandType) []AppCommand {
	var out []AppCommand
	if typ == 0 || typ == discordgo.ChatApplicationCommand {
		for _, n := range t.scopeLocked(guildID) {
			out = append(out, n)
		}
	}
	for k, menu := range t.menus {
		if k.guild == guildID && (typ == 0 || typ == k.typ) {
			out = append(out, menu)
		}
	}
	slices.SortFunc(out, func(a, b AppCommand) int {
		return cmp.Or(cmp.Compare(a.Type(), b.Type()), cmp.Compare(a.Name(), b.Name()))
	})
	return out
}

// Walk yields every command and group of a scope at every depth, parents
// before children. Each iteration takes a fresh snapshot.
func (t *Tree) Walk(guildID string, typ discordgo.ApplicationCommandType) iter.Seq[AppCommand] {
	return func(yield func(AppCommand) bool) {
		for _, cmd := range t.Commands(guildID, typ) {
			if !yield(cmd) {
				return
			}
			g, ok := cmd.(*Group)
			if !ok {
				continue
			}
			for n := range g.Walk() {
				if !yield(n) {
					return
				}
			}
		}
	}
}

// Clear removes every command of typ from a scope; a zero typ clears all.
func (t *Tree) Clear(guildID string, typ discordgo.ApplicationCommandType) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if typ == 0 || typ == discordgo.ChatApplicationCommand {
		if guildID == "" {
			clear(t.global)
		} else {
			delete(t.guilds, guildID)
		}
	}
	maps.DeleteFunc(t.menus, func(k menuKey, _ *ContextMenu) bool {
		return k.guild == guildID && (typ == 0 || typ == k.typ)
	})
}

// CopyGlobalTo copies the global commands into a guild scope so they can be
// synced there for faster iteration. Guild commands win name collisions.
func (t *Tree) CopyGlobalTo(guildID string) error {
	if guildID == "" {
		return configErr("copy global commands", "", "target guild id is empty")
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	merged := maps.Clone(t.global)
	maps.Copy(merged, t.guilds[guildID])
	if len(merged) > MaxChatInputCommands {
		return &CommandLimitReachedError{GuildID: guildID, Type: discordgo.ChatApplicationCommand, Limit: MaxChatInputCommands}
	}

	menus := make(map[menuKey]*ContextMenu)
	counts := make(map[discordgo.ApplicationCommandType]int)
	for k, menu := range t.menus {
		if k.guild == "" {
			menus[menuKey{name: k.name, guild: guildID, typ: k.typ}] = menu
		}
	}
	for k, menu := range t.menus {
		if k.guild == guildID {
			menus[k] = menu
		}
	}
	for k := range menus {
		counts[k.typ]++
		if counts[k.typ] > MaxContextMenus {
			return &CommandLimitReachedError{GuildID: guildID, Type: k.typ, Limit: MaxContextMenus}
		}
	}

	t.guilds[guildID] = merged
	maps.Copy(t.menus, menus)
	return nil
}

// OnError sets the tree-wide error hook used when no command or group hook
// handles an error. The default logs the error.
func (t *Tree) OnError(h ErrorHandler) {
	t.hookMu.Lock()
	t.onError = h
	t.hookMu.Unlock()
}

// OnCompletion sets the hook called after every successful invocation.
func (t *Tree) OnCompletion(h CompletionHandler) {
	t.hookMu.Lock()
	t.onCompletion = h
	t.hookMu.Unlock()
}

// SetInteractionCheck sets a check that runs before every command and
// context menu, ahead of their own checks.
func (t *Tree) SetInteractionCheck(c Check) {
	t.hookMu.Lock()
	t.check = c
	t.hookMu.Unlock()
}

func (t *Tree) hooks() (ErrorHandler, CompletionHandler, Check) {
	t.hookMu.RLock()
	defer t.hookMu.RUnlock()
	return t.onError, t.onCompletion, t.check
}

func (t *Tree) withRetry(ctx context.Context, fn func(context.Context) error) error {
	return retrylimit.WithRetryConfig(ctx, fn, t.limiter, t.retry)
}

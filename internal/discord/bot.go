// Package discord connects the command tree to a Discord gateway session.
package discord

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/keshon/commandtree/internal/commands"
	"github.com/keshon/commandtree/internal/config"
	"github.com/keshon/commandtree/internal/i18n"
	"github.com/keshon/commandtree/internal/middleware"
	"github.com/keshon/commandtree/internal/storage"
	"github.com/keshon/commandtree/pkg/appcmd"
	"github.com/keshon/commandtree/pkg/jobmgr"
	"github.com/keshon/commandtree/pkg/retrylimit"
)

const (
	syncJobName       = "sync-commands"
	cleanerJobName    = "task-cleaner"
	taskCleanInterval = time.Hour
	taskRetention     = 7 * 24 * time.Hour
)

// Bot is a Discord bot
type Bot struct {
	cfg    *config.Config
	store  *storage.Storage
	logger *zap.Logger

	dg   *discordgo.Session
	tree *appcmd.Tree
	jobs *jobmgr.Manager

	mu     sync.RWMutex
	guilds map[string]string
}

// NewBot creates a bot; nothing connects until Run.
func NewBot(cfg *config.Config, store *storage.Storage, logger *zap.Logger) *Bot {
	return &Bot{
		cfg:    cfg,
		store:  store,
		logger: logger,
		guilds: make(map[string]string),
	}
}

// Run opens the gateway session and serves interactions until ctx is done.
func (b *Bot) Run(ctx context.Context) error {
	dg, err := discordgo.New("Bot " + b.cfg.DiscordToken)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	b.dg = dg
	dg.Identify.Intents = discordgo.IntentsGuilds

	tree, err := b.buildTree(ctx, dg, dg.HeartbeatLatency)
	if err != nil {
		return err
	}
	defer tree.Close()
	b.tree = tree

	b.jobs = jobmgr.NewManager(ctx, b.reportJob)
	defer func() {
		b.jobs.StopAll()
		b.jobs.Wait()
	}()

	dg.AddHandler(b.onReady)
	dg.AddHandler(b.onGuildCreate)
	dg.AddHandler(b.onGuildDelete)
	dg.AddHandler(tree.InteractionHandler())

	if err := dg.Open(); err != nil {
		return fmt.Errorf("failed to open Discord session: %w", err)
	}
	defer dg.Close()

	err = b.jobs.StartAsync(cleanerJobName, func(ctx context.Context) error {
		storage.RunTaskCleaner(ctx, b.store, b.guildIDs, taskCleanInterval, taskRetention, b.logger.Named("tasks"))
		return nil
	})
	if err != nil {
		return fmt.Errorf("start task cleaner: %w", err)
	}

	<-ctx.Done()
	b.logger.Info("shutdown signal received, cleaning up", zap.String("jobs", b.jobs.Status()))
	return nil
}

func (b *Bot) buildTree(ctx context.Context, client appcmd.Transport, latency func() time.Duration) (*appcmd.Tree, error) {
	return NewCommandTree(ctx, client, b.cfg, b.store, b.logger, latency)
}

// NewCommandTree creates the command tree on client with every bot command
// registered, localized when cfg.LocalesDir is set.
func NewCommandTree(ctx context.Context, client appcmd.Transport, cfg *config.Config, store *storage.Storage, logger *zap.Logger, latency func() time.Duration) (*appcmd.Tree, error) {
	retry := retrylimit.DefaultRetryConfig()
	retry.Logger = logger.Named("retry")

	opts := []appcmd.TreeOption{
		appcmd.WithLogger(logger.Named("tree")),
		appcmd.WithFallbackToGlobal(cfg.FallbackToGlobal),
		appcmd.WithBaseContext(ctx),
		appcmd.WithRetry(retrylimit.NewAdaptiveLimiter(5, 1, 20, 1, 0.5), retry),
		appcmd.WithMiddleware(middleware.WithCommandLogger(store, logger.Named("history"))),
	}
	if cfg.LocalesDir != "" {
		tr, err := i18n.LoadDir(cfg.LocalesDir)
		if err != nil {
			return nil, fmt.Errorf("load locales: %w", err)
		}
		opts = append(opts, appcmd.WithTranslator(tr), appcmd.WithLocales(tr.Locales()...))
	}

	tree, err := appcmd.NewTree(client, opts...)
	if err != nil {
		return nil, fmt.Errorf("create command tree: %w", err)
	}
	tree.OnError(commands.ErrorReplier(logger.Named("commands")))
	tree.OnCompletion(func(_ context.Context, it *appcmd.Interaction, cmd appcmd.AppCommand) {
		logger.Debug("command completed",
			zap.String("command", cmd.Name()),
			zap.String("guild", it.GuildID),
			zap.String("correlation_id", it.CorrelationID),
		)
	})

	deps := commands.Deps{Store: store, Logger: logger, Latency: latency}
	if err := commands.Register(tree, deps, cfg.GuildIDs...); err != nil {
		tree.Close()
		return nil, err
	}
	return tree, nil
}

// scopes lists what to sync: the configured guilds, plus the global scope
// when enabled. Syncing an empty global scope clears stale global commands.
func (b *Bot) scopes() []string {
	out := slices.Clone(b.cfg.GuildIDs)
	if b.cfg.SyncGlobal {
		out = append(out, "")
	}
	return out
}

// onReady is called when the bot is ready
func (b *Bot) onReady(_ *discordgo.Session, r *discordgo.Ready) {
	appID := r.User.ID
	if r.Application != nil && r.Application.ID != "" {
		appID = r.Application.ID
	}
	b.tree.SetApplicationID(appID)

	b.mu.Lock()
	for _, g := range r.Guilds {
		b.guilds[g.ID] = g.Name
	}
	b.mu.Unlock()

	err := b.jobs.StartAsync(syncJobName, func(ctx context.Context) error {
		return SyncScopes(ctx, b.tree, b.store, b.scopes(), b.cfg.SyncWorkers, b.logger.Named("sync"))
	})
	if err != nil {
		b.logger.Debug("command sync already running", zap.Error(err))
	}

	b.logger.Info("discord bot is running",
		zap.String("user", r.User.Username),
		zap.Int("guilds", len(r.Guilds)),
	)
}

// onGuildCreate is called when a guild becomes available or the bot joins one
func (b *Bot) onGuildCreate(_ *discordgo.Session, g *discordgo.GuildCreate) {
	b.mu.Lock()
	_, known := b.guilds[g.ID]
	b.guilds[g.ID] = g.Name
	b.mu.Unlock()
	if !known {
		b.logger.Info("bot added to guild", zap.String("guild", g.ID), zap.String("name", g.Name))
	}
}

func (b *Bot) onGuildDelete(_ *discordgo.Session, g *discordgo.GuildDelete) {
	if g.Unavailable {
		return
	}
	b.mu.Lock()
	delete(b.guilds, g.ID)
	b.mu.Unlock()
	b.logger.Info("bot removed from guild", zap.String("guild", g.ID))
}

func (b *Bot) guildIDs() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	ids := make([]string, 0, len(b.guilds))
	for id := range b.guilds {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (b *Bot) reportJob(ev jobmgr.Event) {
	if ev.Kind == jobmgr.EventError {
		b.logger.Error("background job failed", zap.String("job", ev.Name), zap.Error(ev.Err))
		return
	}
	b.logger.Debug("background job", zap.Stringer("event", ev))
}

// Package commands declares the bot's application commands and registers
// them on a command tree.
package commands

import (
	"fmt"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"

	"github.com/keshon/commandtree/internal/storage"
	"github.com/keshon/commandtree/pkg/appcmd"
)

const (
	discordMaxMessageLength = 2000
	codeLeftBlockWrapper    = "```md\n"
	codeRightBlockWrapper   = "```"
)

var maxContentLength = discordMaxMessageLength - len(codeLeftBlockWrapper) - len(codeRightBlockWrapper)

// Deps are the services commands run against. Zero fields get defaults.
type Deps struct {
	Store  *storage.Storage
	Logger *zap.Logger
	// Latency reports the gateway heartbeat latency.
	Latency func() time.Duration
	Now     func() time.Time
	// Rand returns a number in [0, n).
	Rand func(n int) int
}

func (d *Deps) defaults() {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Latency == nil {
		d.Latency = func() time.Duration { return 0 }
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Rand == nil {
		d.Rand = rand.IntN
	}
}

// Register adds every bot command to tree, globally or, when guildIDs is
// non-empty, to those guilds only.
func Register(tree *appcmd.Tree, deps Deps, guildIDs ...string) error {
	if deps.Store == nil {
		return fmt.Errorf("register commands: storage is required")
	}
	deps.defaults()

	board := &TaskBoard{store: deps.Store, now: deps.Now}
	all := []appcmd.AppCommand{
		pingCommand(deps.Latency),
		rollCommand(deps.Rand),
		helpCommand(tree),
		historyCommand(deps.Store),
		tasksGroup(board),
		showTasksMenu(board),
		announceMenu(),
	}

	var opts []appcmd.AddOption
	if len(guildIDs) > 0 {
		opts = append(opts, appcmd.Guilds(guildIDs...))
	}
	for _, cmd := range all {
		if err := tree.Add(cmd, opts...); err != nil {
			return fmt.Errorf("register %s: %w", cmd.Name(), err)
		}
	}
	deps.Logger.Debug("registered commands", zap.Int("count", len(all)), zap.Strings("guilds", guildIDs))
	return nil
}

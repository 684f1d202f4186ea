// Command cli inspects and syncs the bot's application commands without
// connecting to the gateway.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/bwmarrin/discordgo"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/keshon/commandtree/internal/config"
	"github.com/keshon/commandtree/internal/discord"
	"github.com/keshon/commandtree/internal/docs"
	"github.com/keshon/commandtree/internal/storage"
	"github.com/keshon/commandtree/pkg/appcmd"
)

var (
	envFile string
	guildID string
	appID   string
	verbose bool
	force   bool

	readmeTemplate string
	readmeOut      string
)

// env is what every subcommand works against; close releases it.
type env struct {
	cfg    *config.Config
	store  *storage.Storage
	tree   *appcmd.Tree
	logger *zap.Logger
}

func (e *env) close() {
	e.tree.Close()
	if err := e.store.Close(); err != nil {
		e.logger.Warn("failed to close storage", zap.Error(err))
	}
	_ = e.logger.Sync()
}

var rootCmd = &cobra.Command{
	Use:   "commandtree",
	Short: "Inspect and sync the bot's application commands",
	Long: `commandtree builds the same command tree the bot serves and talks to
the Discord REST API directly, so payloads can be checked and pushed
without starting the bot.`,
	SilenceUsage: true,
}

var payloadCmd = &cobra.Command{
	Use:   "payload",
	Short: "Print the JSON payload a sync would upload",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		e, err := setup(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer e.close()
		return printPayload(cmd.Context(), cmd.OutOrStdout(), e.tree, guildID)
	},
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Upload the command payload of a scope",
	Long: `sync uploads the payload of the scope selected by --guild (global when
empty). Unless --force is given the upload is skipped when the payload
matches the last one synced from this storage file.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		e, err := setup(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer e.close()
		return runSync(cmd.Context(), cmd.OutOrStdout(), e, guildID, force)
	},
}

var remoteCmd = &cobra.Command{
	Use:   "remote",
	Short: "List the commands Discord currently has for a scope",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		e, err := setup(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer e.close()
		return printRemote(cmd.Context(), cmd.OutOrStdout(), e.tree, guildID)
	},
}

var docsCmd = &cobra.Command{
	Use:   "docs",
	Short: "Render the command reference into the README",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		e, err := setup(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer e.close()
		if err := docs.UpdateReadme(e.tree, guildID, readmeTemplate, readmeOut); err != nil {
			return err
		}
		e.logger.Info("README updated with current commands", zap.String("path", readmeOut))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "file loaded into the environment before parsing config")
	rootCmd.PersistentFlags().StringVarP(&guildID, "guild", "g", "", "guild scope (global when empty)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log at debug level")
	rootCmd.PersistentFlags().StringVar(&appID, "app-id", "", "application ID (looked up from the token when empty)")
	syncCmd.Flags().BoolVar(&force, "force", false, "upload even when the payload is unchanged")

	docsCmd.Flags().StringVar(&readmeTemplate, "template", "README.md.tmpl", "template with a {{.CommandSections}} placeholder")
	docsCmd.Flags().StringVarP(&readmeOut, "out", "o", "README.md", "file to write")

	rootCmd.AddCommand(payloadCmd, syncCmd, remoteCmd, docsCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// setup loads config and storage and builds the command tree on a REST-only
// session. needApp resolves the application ID for calls that need it.
func setup(ctx context.Context, needApp bool) (*env, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, err
	}

	zcfg := zap.NewProductionConfig()
	if verbose {
		zcfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	} else if zcfg.Level, err = zap.ParseAtomicLevel(cfg.LogLevel); err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}
	logger, err := zcfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	store, err := storage.New(cfg.StoragePath)
	if err != nil {
		return nil, err
	}

	dg, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	tree, err := discord.NewCommandTree(ctx, dg, cfg, store, logger, nil)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	e := &env{cfg: cfg, store: store, tree: tree, logger: logger}

	if needApp {
		id := appID
		if id == "" {
			app, err := dg.Application("@me")
			if err != nil {
				e.close()
				return nil, fmt.Errorf("look up application: %w", err)
			}
			id = app.ID
		}
		tree.SetApplicationID(id)
	}
	return e, nil
}

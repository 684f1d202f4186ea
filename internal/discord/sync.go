package discord

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/keshon/commandtree/internal/storage"
	"github.com/keshon/commandtree/pkg/appcmd"
	"github.com/keshon/commandtree/pkg/util"
)

// FingerprintStore remembers the last payload synced per scope.
type FingerprintStore interface {
	Fingerprint(scope string) (string, error)
	SetFingerprint(scope, hash string) error
}

var _ FingerprintStore = (*storage.Storage)(nil)

// SyncScopes pushes the payload of every scope whose fingerprint changed since
// the last successful sync, at most workers at a time. "" is the global
// scope.
func SyncScopes(ctx context.Context, tree *appcmd.Tree, store FingerprintStore, scopes []string, workers int, logger *zap.Logger) error {
	return util.Parallel(ctx, scopes, workers, func(ctx context.Context, scope string) error {
		log := logger.With(zap.String("scope", scopeName(scope)))

		payload, err := tree.Payload(ctx, scope)
		if err != nil {
			return fmt.Errorf("build payload for %s: %w", scopeName(scope), err)
		}
		hash := Fingerprint(payload)
		old, err := store.Fingerprint(scope)
		if err != nil {
			log.Warn("failed to read command fingerprint", zap.Error(err))
		}
		if old == hash {
			log.Info("commands unchanged, skipping sync", zap.Int("count", len(payload)))
			return nil
		}

		if _, err := tree.Sync(ctx, scope); err != nil {
			return fmt.Errorf("sync %s: %w", scopeName(scope), err)
		}
		if err := store.SetFingerprint(scope, hash); err != nil {
			log.Warn("failed to store command fingerprint", zap.Error(err))
		}
		return nil
	})
}

func scopeName(scope string) string {
	if scope == "" {
		return storage.GlobalScope
	}
	return "guild " + scope
}

package catalog

import (
	"context"
	"fmt"

	"github.com/glorpus-work/appcat/internal/logger"
	"github.com/glorpus-work/appcat/pkg/model"
)

// Reconcile makes the stored repository list match configured and returns the stored
// records in configured order. Configuration owns name, trust material, priority and the
// enabled flag; the store keeps sync state (etag, announced metadata, escalated public key).
// A changed fingerprint, or a configured key that changed or was cleared, resets the
// stored key and etag so the index is fetched and verified afresh. Stored repositories missing from configured are removed.
func Reconcile(ctx context.Context, store Store, configured []*model.Repository) ([]*model.Repository, error) {
	existing, err := store.ListRepositories(ctx)
	if err != nil {
		return nil, err
	}
	byAddress := make(map[string]*model.Repository, len(existing))
	for _, repo := range existing {
		byAddress[repo.Address] = repo
	}

	out := make([]*model.Repository, 0, len(configured))
	for _, want := range configured {
		stored, ok := byAddress[want.Address]
		if !ok {
			repo := *want
			repo.ConfiguredPubKey = want.PubKey
			if err := store.AddRepository(ctx, &repo); err != nil {
				return nil, err
			}
			logger.Debug("Repository added to catalog", logger.Fields{"repo": repo.DisplayName()})
			out = append(out, &repo)
			continue
		}
		delete(byAddress, want.Address)

		updated := *stored
		updated.Name = want.Name
		updated.Priority = want.Priority
		updated.Enabled = want.Enabled
		if updated.Fingerprint != want.Fingerprint || updated.ConfiguredPubKey != want.PubKey {
			updated.Fingerprint = want.Fingerprint
			updated.PubKey = want.PubKey
			updated.ConfiguredPubKey = want.PubKey
			updated.ETag = ""
		}
		if updated != *stored {
			if err := store.UpdateRepository(ctx, &updated); err != nil {
				return nil, err
			}
		}
		out = append(out, &updated)
	}

	for _, stale := range byAddress {
		if err := store.RemoveRepository(ctx, stale.ID); err != nil {
			return nil, fmt.Errorf("failed to remove unconfigured repository %s: %w", stale.Address, err)
		}
		logger.Info("Removed repository no longer configured", logger.Fields{"repo": stale.DisplayName()})
	}
	return out, nil
}

package app

import (
	"context"
	"errors"
	"fmt"

	"staffline/internal/config"
	"staffline/internal/repo"
)

const defaultOrgID = "default"

// ResolveConfig loads the org config from the DB, seeding defaults when the
// workspace is fresh. An explicit override wins over the stored default org.
func ResolveConfig(ctx context.Context, orgOverride string, r repo.Repo) (*config.Config, error) {
	orgID := orgOverride
	if orgID == "" {
		orgID = defaultOrgID
	}
	cfg, err := r.GetOrgConfig(ctx, orgID)
	if err != nil {
		if !errors.Is(err, repo.ErrNotFound) {
			return nil, err
		}
		cfg = config.Default(orgID)
		if err := r.UpsertOrgConfig(ctx, orgID, cfg); err != nil {
			return nil, fmt.Errorf("seed org config: %w", err)
		}
	}
	cfg.Org.ID = orgID
	return cfg, nil
}

package catalog

import (
	"context"
	"database/sql"
	"fmt"

	pkgerrors "github.com/glorpus-work/appcat/pkg/errors"
	"github.com/glorpus-work/appcat/pkg/model"
)

type sqlTx struct {
	tx *sql.Tx
}

func (t *sqlTx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

func (t *sqlTx) Rollback() error {
	if err := t.tx.Rollback(); err != nil && err != sql.ErrTxDone {
		return fmt.Errorf("failed to roll back: %w", err)
	}
	return nil
}

func (t *sqlTx) LoadApps(ctx context.Context, repoID int64) (map[string]*model.App, error) {
	apps, err := queryApps(ctx, t.tx, `SELECT `+appColumns+` FROM apps a WHERE a.repo_id = ?`, repoID)
	if err != nil {
		return nil, err
	}
	pkgs, err := queryPackages(ctx, t.tx, `SELECT `+packageColumns+` FROM packages p
		WHERE p.repo_id = ? ORDER BY p.app_id, p.version_code DESC`, repoID)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*model.App, len(apps))
	for _, app := range apps {
		byID[app.ID] = app
	}
	for _, pkg := range pkgs {
		if app, ok := byID[pkg.AppID]; ok {
			app.Packages = append(app.Packages, pkg)
		}
	}
	return byID, nil
}

func (t *sqlTx) InsertApp(ctx context.Context, app *model.App) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO apps (
			repo_id, id, name, summary, icon, description, license, categories,
			web_url, source_url, tracker_url, donate_url, added, last_updated,
			anti_features, requirements, suggested_version_name, suggested_version_code
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		app.RepoID, app.ID, app.Name, app.Summary, app.Icon, app.Description, app.License, joinList(app.Categories),
		app.WebURL, app.SourceURL, app.TrackerURL, app.DonateURL, toUnix(app.Added), toUnix(app.LastUpdated),
		joinList(app.AntiFeatures), joinList(app.Requirements), app.SuggestedVersionName, app.SuggestedVersionCode,
	)
	if err != nil {
		return fmt.Errorf("failed to insert app %s: %w", app.ID, err)
	}
	return nil
}

func (t *sqlTx) UpdateApp(ctx context.Context, app *model.App) error {
	result, err := t.tx.ExecContext(ctx, `
		UPDATE apps
		SET name = ?, summary = ?, icon = ?, description = ?, license = ?, categories = ?,
			web_url = ?, source_url = ?, tracker_url = ?, donate_url = ?, added = ?, last_updated = ?,
			anti_features = ?, requirements = ?, suggested_version_name = ?, suggested_version_code = ?
		WHERE repo_id = ? AND id = ?
	`,
		app.Name, app.Summary, app.Icon, app.Description, app.License, joinList(app.Categories),
		app.WebURL, app.SourceURL, app.TrackerURL, app.DonateURL, toUnix(app.Added), toUnix(app.LastUpdated),
		joinList(app.AntiFeatures), joinList(app.Requirements), app.SuggestedVersionName, app.SuggestedVersionCode,
		app.RepoID, app.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update app %s: %w", app.ID, err)
	}
	return expectRows(result, fmt.Errorf("app not found: %s", app.ID))
}

func (t *sqlTx) DeleteApp(ctx context.Context, repoID int64, appID string) error {
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM apps WHERE repo_id = ? AND id = ?`, repoID, appID); err != nil {
		return fmt.Errorf("failed to delete app %s: %w", appID, err)
	}
	return nil
}

func (t *sqlTx) InsertPackage(ctx context.Context, pkg *model.Package) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO packages (
			repo_id, app_id, version_code, version, apk_name, src_name, hash, hash_type, size, sig,
			min_sdk, max_sdk, target_sdk, added, permissions, features, native_code,
			compatible, incompatible_reason
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		pkg.RepoID, pkg.AppID, pkg.VersionCode, pkg.Version, pkg.ApkName, pkg.SrcName, pkg.Hash, pkg.HashType, pkg.Size, pkg.Sig,
		pkg.MinSDK, pkg.MaxSDK, pkg.TargetSDK, toUnix(pkg.Added), joinList(pkg.Permissions), joinList(pkg.Features), joinList(pkg.NativeCode),
		pkg.Compatible, string(pkg.IncompatibleReason),
	)
	if err != nil {
		return fmt.Errorf("failed to insert package %s/%d: %w", pkg.AppID, pkg.VersionCode, err)
	}
	return nil
}

func (t *sqlTx) UpdatePackage(ctx context.Context, pkg *model.Package) error {
	result, err := t.tx.ExecContext(ctx, `
		UPDATE packages
		SET version = ?, apk_name = ?, src_name = ?, hash = ?, hash_type = ?, size = ?, sig = ?,
			min_sdk = ?, max_sdk = ?, target_sdk = ?, added = ?, permissions = ?, features = ?, native_code = ?,
			compatible = ?, incompatible_reason = ?
		WHERE repo_id = ? AND app_id = ? AND version_code = ?
	`,
		pkg.Version, pkg.ApkName, pkg.SrcName, pkg.Hash, pkg.HashType, pkg.Size, pkg.Sig,
		pkg.MinSDK, pkg.MaxSDK, pkg.TargetSDK, toUnix(pkg.Added), joinList(pkg.Permissions), joinList(pkg.Features), joinList(pkg.NativeCode),
		pkg.Compatible, string(pkg.IncompatibleReason),
		pkg.RepoID, pkg.AppID, pkg.VersionCode,
	)
	if err != nil {
		return fmt.Errorf("failed to update package %s/%d: %w", pkg.AppID, pkg.VersionCode, err)
	}
	return expectRows(result, fmt.Errorf("package not found: %s/%d", pkg.AppID, pkg.VersionCode))
}

func (t *sqlTx) DeletePackage(ctx context.Context, repoID int64, key model.PackageKey) error {
	_, err := t.tx.ExecContext(ctx, `DELETE FROM packages WHERE repo_id = ? AND app_id = ? AND version_code = ?`,
		repoID, key.AppID, key.VersionCode)
	if err != nil {
		return fmt.Errorf("failed to delete package %s/%d: %w", key.AppID, key.VersionCode, err)
	}
	return nil
}

// UpdateRepoMetadata records sync state. The announced name only fills an empty configured name.
// Undeclared description, max age and version keep their stored values, and the version never decreases.
func (t *sqlTx) UpdateRepoMetadata(ctx context.Context, repoID int64, u model.RepoUpdate) error {
	result, err := t.tx.ExecContext(ctx, `
		UPDATE repos
		SET etag = ?, pubkey = ?, name = CASE WHEN name = '' THEN ? ELSE name END,
			description = COALESCE(?, description), maxage = COALESCE(?, maxage),
			version = MAX(version, COALESCE(?, version)),
			timestamp = ?, last_updated = ?
		WHERE id = ?
	`, u.ETag, u.PubKey, u.Name, nullString(u.Description), nullInt(u.MaxAge), nullInt(u.Version),
		u.Timestamp, toUnix(u.LastUpdated), repoID)
	if err != nil {
		return fmt.Errorf("failed to update repository metadata: %w", err)
	}
	return expectRows(result, pkgerrors.ErrRepositoryNotFoundWithName(fmt.Sprint(repoID)))
}

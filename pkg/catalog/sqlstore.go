package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"

	"github.com/glorpus-work/appcat/internal/logger"
	pkgerrors "github.com/glorpus-work/appcat/pkg/errors"
	"github.com/glorpus-work/appcat/pkg/fsutil"
	"github.com/glorpus-work/appcat/pkg/model"
	"github.com/glorpus-work/appcat/pkg/platform"
)

const (
	driverSQLite = "sqlite"
	driverLibSQL = "libsql"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// SQLStore implements Store on database/sql.
type SQLStore struct {
	db     *sql.DB
	driver string
}

var _ Store = (*SQLStore)(nil)

// Open opens the catalog at dsn and creates the schema. Remote libsql databases are
// addressed with libsql://, http(s):// or ws(s):// URLs; anything else is a local
// SQLite file, optionally prefixed with file:.
func Open(ctx context.Context, dsn string) (*SQLStore, error) {
	driver, source, err := resolveDSN(dsn)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driver, source)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if driver == driverSQLite {
		// One connection serializes writers on the local file.
		db.SetMaxOpenConns(1)
	}

	s := &SQLStore{db: db, driver: driver}
	if err := s.Initialize(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	logger.Debug("Catalog opened", logger.Fields{"driver": driver})
	return s, nil
}

func resolveDSN(dsn string) (driver, source string, err error) {
	if dsn == "" {
		return "", "", fmt.Errorf("%w: empty database location", pkgerrors.ErrInvalidPath)
	}
	for _, scheme := range []string{"libsql://", "http://", "https://", "ws://", "wss://"} {
		if strings.HasPrefix(dsn, scheme) {
			return driverLibSQL, dsn, nil
		}
	}

	path := strings.TrimPrefix(dsn, "file:")
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), fsutil.DirModeSecure); err != nil {
			return "", "", fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	return driverSQLite, path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", nil
}

// Initialize creates the database schema.
func (s *SQLStore) Initialize(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	for _, add := range columnAdditions {
		var present int
		err := s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`, add.table, add.column).Scan(&present)
		if err != nil {
			return fmt.Errorf("failed to inspect table %s: %w", add.table, err)
		}
		if present > 0 {
			continue
		}
		if _, err := s.db.ExecContext(ctx, add.ddl); err != nil {
			return fmt.Errorf("failed to add column %s.%s: %w", add.table, add.column, err)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// Begin starts a write transaction.
func (s *SQLStore) Begin(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &sqlTx{tx: tx}, nil
}

const repoColumns = `id, name, address, fingerprint, pubkey, etag, maxage, version,
	description, timestamp, priority, enabled, last_updated, configured_pubkey`

func scanRepo(row scanner) (*model.Repository, error) {
	repo := &model.Repository{}
	var lastUpdated int64
	err := row.Scan(&repo.ID, &repo.Name, &repo.Address, &repo.Fingerprint, &repo.PubKey, &repo.ETag,
		&repo.MaxAge, &repo.Version, &repo.Description, &repo.Timestamp, &repo.Priority, &repo.Enabled, &lastUpdated,
		&repo.ConfiguredPubKey)
	if err != nil {
		return nil, err
	}
	repo.LastUpdated = fromUnix(lastUpdated)
	return repo, nil
}

// AddRepository inserts repo and sets its ID.
func (s *SQLStore) AddRepository(ctx context.Context, repo *model.Repository) error {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO repos (
			name, address, fingerprint, pubkey, etag, maxage, version,
			description, timestamp, priority, enabled, last_updated, configured_pubkey
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		repo.Name, repo.Address, repo.Fingerprint, repo.PubKey, repo.ETag, repo.MaxAge, repo.Version,
		repo.Description, repo.Timestamp, repo.Priority, repo.Enabled, toUnix(repo.LastUpdated),
		repo.ConfiguredPubKey,
	)
	if err != nil {
		return fmt.Errorf("failed to insert repository %s: %w", repo.Address, err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get repository id: %w", err)
	}
	repo.ID = id
	return nil
}

// UpdateRepository rewrites every column of an existing repository.
func (s *SQLStore) UpdateRepository(ctx context.Context, repo *model.Repository) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE repos
		SET name = ?, address = ?, fingerprint = ?, pubkey = ?, etag = ?, maxage = ?, version = ?,
			description = ?, timestamp = ?, priority = ?, enabled = ?, last_updated = ?,
			configured_pubkey = ?
		WHERE id = ?
	`,
		repo.Name, repo.Address, repo.Fingerprint, repo.PubKey, repo.ETag, repo.MaxAge, repo.Version,
		repo.Description, repo.Timestamp, repo.Priority, repo.Enabled, toUnix(repo.LastUpdated),
		repo.ConfiguredPubKey, repo.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update repository %s: %w", repo.Address, err)
	}
	return expectRows(result, pkgerrors.ErrRepositoryNotFoundWithName(repo.Address))
}

// GetRepository returns the repository stored under address, or nil.
func (s *SQLStore) GetRepository(ctx context.Context, address string) (*model.Repository, error) {
	repo, err := scanRepo(s.db.QueryRowContext(ctx, `SELECT `+repoColumns+` FROM repos WHERE address = ?`, address))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get repository: %w", err)
	}
	return repo, nil
}

// ListRepositories lists repositories by priority, then id.
func (s *SQLStore) ListRepositories(ctx context.Context) ([]*model.Repository, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+repoColumns+` FROM repos ORDER BY priority, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list repositories: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var repos []*model.Repository
	for rows.Next() {
		repo, err := scanRepo(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan repository: %w", err)
		}
		repos = append(repos, repo)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate repositories: %w", err)
	}
	return repos, nil
}

// RemoveRepository deletes a repository and everything it contributed.
func (s *SQLStore) RemoveRepository(ctx context.Context, id int64) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, stmt := range []string{
		`DELETE FROM packages WHERE repo_id = ?`,
		`DELETE FROM apps WHERE repo_id = ?`,
	} {
		if _, err = tx.ExecContext(ctx, stmt, id); err != nil {
			return fmt.Errorf("failed to remove repository contents: %w", err)
		}
	}
	result, err := tx.ExecContext(ctx, `DELETE FROM repos WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to remove repository: %w", err)
	}
	if err = expectRows(result, pkgerrors.ErrRepositoryNotFoundWithName(fmt.Sprint(id))); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

const appColumns = `a.repo_id, a.id, a.name, a.summary, a.icon, a.description, a.license, a.categories,
	a.web_url, a.source_url, a.tracker_url, a.donate_url, a.added, a.last_updated,
	a.anti_features, a.requirements, a.suggested_version_name, a.suggested_version_code`

func scanApp(row scanner) (*model.App, error) {
	app := &model.App{}
	var categories, antiFeatures, requirements string
	var added, lastUpdated int64
	err := row.Scan(&app.RepoID, &app.ID, &app.Name, &app.Summary, &app.Icon, &app.Description, &app.License,
		&categories, &app.WebURL, &app.SourceURL, &app.TrackerURL, &app.DonateURL, &added, &lastUpdated,
		&antiFeatures, &requirements, &app.SuggestedVersionName, &app.SuggestedVersionCode)
	if err != nil {
		return nil, err
	}
	app.Categories = splitList(categories)
	app.AntiFeatures = splitList(antiFeatures)
	app.Requirements = splitList(requirements)
	app.Added = fromUnix(added)
	app.LastUpdated = fromUnix(lastUpdated)
	return app, nil
}

const packageColumns = `p.repo_id, p.app_id, p.version_code, p.version, p.apk_name, p.src_name, p.hash,
	p.hash_type, p.size, p.sig, p.min_sdk, p.max_sdk, p.target_sdk, p.added, p.permissions,
	p.features, p.native_code, p.compatible, p.incompatible_reason`

func scanPackage(row scanner) (*model.Package, error) {
	pkg := &model.Package{}
	var permissions, features, nativeCode, reason string
	var added int64
	err := row.Scan(&pkg.RepoID, &pkg.AppID, &pkg.VersionCode, &pkg.Version, &pkg.ApkName, &pkg.SrcName, &pkg.Hash,
		&pkg.HashType, &pkg.Size, &pkg.Sig, &pkg.MinSDK, &pkg.MaxSDK, &pkg.TargetSDK, &added, &permissions,
		&features, &nativeCode, &pkg.Compatible, &reason)
	if err != nil {
		return nil, err
	}
	pkg.Permissions = splitList(permissions)
	pkg.Features = splitList(features)
	pkg.NativeCode = splitList(nativeCode)
	pkg.Added = fromUnix(added)
	pkg.IncompatibleReason = model.Reason(reason)
	return pkg, nil
}

func queryApps(ctx context.Context, q querier, query string, args ...any) ([]*model.App, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list apps: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var apps []*model.App
	for rows.Next() {
		app, err := scanApp(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan app: %w", err)
		}
		apps = append(apps, app)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate apps: %w", err)
	}
	return apps, nil
}

func queryPackages(ctx context.Context, q querier, query string, args ...any) ([]*model.Package, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list packages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var pkgs []*model.Package
	for rows.Next() {
		pkg, err := scanPackage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan package: %w", err)
		}
		pkgs = append(pkgs, pkg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate packages: %w", err)
	}
	return pkgs, nil
}

// ListApps lists applications ordered by name. Packages are not attached.
func (s *SQLStore) ListApps(ctx context.Context, filter AppFilter) ([]*model.App, error) {
	var where []string
	var args []any
	if filter.RepoID != 0 {
		where = append(where, "a.repo_id = ?")
		args = append(args, filter.RepoID)
	}
	if filter.AppID != "" {
		where = append(where, "a.id = ?")
		args = append(args, filter.AppID)
	}
	if filter.CompatibleOnly {
		where = append(where, `EXISTS (SELECT 1 FROM packages p
			WHERE p.repo_id = a.repo_id AND p.app_id = a.id AND p.compatible)`)
	}

	query := `SELECT ` + appColumns + ` FROM apps a
		JOIN repos r ON r.id = a.repo_id AND r.enabled`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY lower(a.name), a.id, r.priority"
	return queryApps(ctx, s.db, query, args...)
}

// GetApp returns one application with its packages, newest first, or nil.
func (s *SQLStore) GetApp(ctx context.Context, repoID int64, appID string) (*model.App, error) {
	app, err := scanApp(s.db.QueryRowContext(ctx,
		`SELECT `+appColumns+` FROM apps a WHERE a.repo_id = ? AND a.id = ?`, repoID, appID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get app: %w", err)
	}
	if app.Packages, err = s.ListPackages(ctx, repoID, appID); err != nil {
		return nil, err
	}
	return app, nil
}

// ListPackages lists one application's packages in a repository, newest first.
func (s *SQLStore) ListPackages(ctx context.Context, repoID int64, appID string) ([]*model.Package, error) {
	return queryPackages(ctx, s.db, `SELECT `+packageColumns+` FROM packages p
		WHERE p.repo_id = ? AND p.app_id = ? ORDER BY p.version_code DESC`, repoID, appID)
}

// SuggestedPackage returns the compatible package with the highest version code across
// enabled repositories. Equal version codes are ordered by version name, then by
// repository priority.
func (s *SQLStore) SuggestedPackage(ctx context.Context, appID string) (*model.Package, error) {
	pkgs, err := queryPackages(ctx, s.db, `SELECT `+packageColumns+` FROM packages p
		JOIN repos r ON r.id = p.repo_id AND r.enabled
		WHERE p.app_id = ? AND p.compatible
		ORDER BY p.version_code DESC, r.priority, r.id`, appID)
	if err != nil {
		return nil, err
	}
	return pickSuggested(pkgs), nil
}

// RecomputeCompatibility re-evaluates stored verdicts against device in one transaction.
func (s *SQLStore) RecomputeCompatibility(ctx context.Context, device platform.Device) (changed int, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	pkgs, err := queryPackages(ctx, tx, `SELECT `+packageColumns+` FROM packages p`)
	if err != nil {
		return 0, err
	}

	device = device.Normalize()
	for _, pkg := range pkgs {
		ok, reason := platform.Check(device, pkg)
		if ok == pkg.Compatible && reason == pkg.IncompatibleReason {
			continue
		}
		if _, err = tx.ExecContext(ctx, `
			UPDATE packages SET compatible = ?, incompatible_reason = ?
			WHERE repo_id = ? AND app_id = ? AND version_code = ?
		`, ok, string(reason), pkg.RepoID, pkg.AppID, pkg.VersionCode); err != nil {
			return 0, fmt.Errorf("failed to update compatibility of %s: %w", pkg.AppID, err)
		}
		changed++
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit: %w", err)
	}
	return changed, nil
}

func expectRows(result sql.Result, notFound error) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return notFound
	}
	return nil
}

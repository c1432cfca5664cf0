package catalog

var schema = []string{
	`CREATE TABLE IF NOT EXISTS repos (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		address TEXT NOT NULL UNIQUE,
		fingerprint TEXT NOT NULL DEFAULT '',
		pubkey TEXT NOT NULL DEFAULT '',
		etag TEXT NOT NULL DEFAULT '',
		maxage INTEGER NOT NULL DEFAULT 0,
		version INTEGER NOT NULL DEFAULT 0,
		description TEXT NOT NULL DEFAULT '',
		timestamp INTEGER NOT NULL DEFAULT 0,
		priority INTEGER NOT NULL DEFAULT 0,
		enabled BOOLEAN NOT NULL DEFAULT 1,
		last_updated INTEGER NOT NULL DEFAULT 0,
		configured_pubkey TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS apps (
		repo_id INTEGER NOT NULL,
		id TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		summary TEXT NOT NULL DEFAULT '',
		icon TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		license TEXT NOT NULL DEFAULT '',
		categories TEXT NOT NULL DEFAULT '',
		web_url TEXT NOT NULL DEFAULT '',
		source_url TEXT NOT NULL DEFAULT '',
		tracker_url TEXT NOT NULL DEFAULT '',
		donate_url TEXT NOT NULL DEFAULT '',
		added INTEGER NOT NULL DEFAULT 0,
		last_updated INTEGER NOT NULL DEFAULT 0,
		anti_features TEXT NOT NULL DEFAULT '',
		requirements TEXT NOT NULL DEFAULT '',
		suggested_version_name TEXT NOT NULL DEFAULT '',
		suggested_version_code INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (repo_id, id)
	)`,
	`CREATE TABLE IF NOT EXISTS packages (
		repo_id INTEGER NOT NULL,
		app_id TEXT NOT NULL,
		version_code INTEGER NOT NULL,
		version TEXT NOT NULL DEFAULT '',
		apk_name TEXT NOT NULL DEFAULT '',
		src_name TEXT NOT NULL DEFAULT '',
		hash TEXT NOT NULL DEFAULT '',
		hash_type TEXT NOT NULL DEFAULT '',
		size INTEGER NOT NULL DEFAULT 0,
		sig TEXT NOT NULL DEFAULT '',
		min_sdk INTEGER NOT NULL DEFAULT 0,
		max_sdk INTEGER NOT NULL DEFAULT 0,
		target_sdk INTEGER NOT NULL DEFAULT 0,
		added INTEGER NOT NULL DEFAULT 0,
		permissions TEXT NOT NULL DEFAULT '',
		features TEXT NOT NULL DEFAULT '',
		native_code TEXT NOT NULL DEFAULT '',
		compatible BOOLEAN NOT NULL DEFAULT 0,
		incompatible_reason TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (repo_id, app_id, version_code)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_packages_app ON packages (app_id)`,
}

// columnAdditions upgrades catalogs created before a column existed.
var columnAdditions = []struct{ table, column, ddl string }{
	{"repos", "configured_pubkey", `ALTER TABLE repos ADD COLUMN configured_pubkey TEXT NOT NULL DEFAULT ''`},
}

package hook

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/glorpus-work/appcat/pkg/errors"
	"github.com/glorpus-work/appcat/pkg/fsutil"
)

// HookFileExtension is the extension of hook script files.
const HookFileExtension = ".tengo"

// LoadHooksFromDir registers every <event>.tengo script found in dir.
// A missing directory yields no hooks; files named after unknown events are ignored.
func LoadHooksFromDir(manager HookManager, dir string) error {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errors.Wrapf(errors.ErrHookLoad, "failed to read hooks directory %s: %v", dir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != HookFileExtension {
			continue
		}
		event := Event(strings.TrimSuffix(entry.Name(), HookFileExtension))
		if !slices.Contains(Events, event) {
			continue
		}

		content, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return errors.Wrapf(errors.ErrHookLoad, "error reading hook file %s: %v", entry.Name(), err)
		}
		if err := manager.AddHook(Hook{Event: event, Content: string(content)}); err != nil {
			return fmt.Errorf("error adding hook %s: %w", event, err)
		}
	}
	return nil
}

// WriteTemplates writes a commented template for every event into dir, leaving
// existing scripts alone. It returns the paths it created.
func WriteTemplates(dir string) ([]string, error) {
	if err := os.MkdirAll(dir, fsutil.DirModeDefault); err != nil {
		return nil, fmt.Errorf("failed to create hooks directory: %w", err)
	}
	var created []string
	for _, event := range Events {
		path := filepath.Join(dir, string(event)+HookFileExtension)
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, fsutil.FileModeDefault)
		if os.IsExist(err) {
			continue
		}
		if err != nil {
			return created, fmt.Errorf("failed to create %s: %w", path, err)
		}
		_, werr := f.WriteString(HookTemplate(event))
		cerr := f.Close()
		if werr != nil || cerr != nil {
			return created, fmt.Errorf("failed to write %s: %w", path, errors.Join(werr, cerr))
		}
		created = append(created, path)
	}
	return created, nil
}

// HookTemplate generates a template for a hook script.
func HookTemplate(event Event) string {
	switch event {
	case CatalogChanged:
		return `// catalog-changed hook
// Runs after a sync committed changes for at least one repository.
// Available variables:
// - event: string - "catalog-changed"
// - success: bool - false when some repository failed
// - repos: array of maps with name, address, status, changes and error
// Define err := "reason" to report a failure.

/*
fmt := import("fmt")
for r in repos {
    if r.status == "committed" {
        fmt.println(r.name + ": " + r.changes)
    }
}
*/
`
	case SyncFailed:
		return `// sync-failed hook
// Runs once for every repository whose sync failed.
// Available variables:
// - event: string - "sync-failed"
// - repo: string - repository name
// - address: string - repository address
// - kind: string - fetch, signature, parse or merge
// - message: string - error text

/*
os := import("os")
os.exec("notify-send", "appcat", repo + ": " + message).run()
*/
`
	default:
		return "// Unknown hook event: " + string(event) + "\n"
	}
}

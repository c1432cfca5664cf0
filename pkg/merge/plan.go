package merge

import (
	"slices"
	"strings"

	"github.com/glorpus-work/appcat/pkg/model"
)

// Plan is the set of writes that turns a repository's stored catalog into its parsed index.
type Plan struct {
	InsertApps     []*model.App
	UpdateApps     []*model.App
	DeleteApps     []*model.App
	InsertPackages []*model.Package
	UpdatePackages []*model.Package
	DeletePackages []*model.Package // includes every package of a deleted app
}

// Empty reports whether applying the plan writes nothing.
func (p Plan) Empty() bool {
	return p.Stats().Writes() == 0
}

// Stats counts the plan's writes.
func (p Plan) Stats() model.MergeStats {
	return model.MergeStats{
		AppsAdded:       len(p.InsertApps),
		AppsUpdated:     len(p.UpdateApps),
		AppsRemoved:     len(p.DeleteApps),
		PackagesAdded:   len(p.InsertPackages),
		PackagesUpdated: len(p.UpdatePackages),
		PackagesRemoved: len(p.DeletePackages),
	}
}

// Compute derives the plan for repoID from the stored applications (keyed by id, packages
// attached) and the parsed ones. Parsed records are stamped with repoID. When the index
// lists an application or a version code twice, the first occurrence wins.
//
// Apps and packages present on both sides are updated only when a stored field differs.
func Compute(repoID int64, existing map[string]*model.App, parsed []*model.App) Plan {
	var plan Plan
	seenApps := make(map[string]bool, len(parsed))

	for _, app := range parsed {
		if seenApps[app.ID] {
			continue
		}
		seenApps[app.ID] = true
		app.RepoID = repoID

		stored, ok := existing[app.ID]
		if !ok {
			plan.InsertApps = append(plan.InsertApps, app)
			for _, pkg := range uniquePackages(app) {
				plan.InsertPackages = append(plan.InsertPackages, pkg)
			}
			continue
		}
		if !stored.SameFields(app) {
			plan.UpdateApps = append(plan.UpdateApps, app)
		}

		storedPkgs := make(map[model.PackageKey]*model.Package, len(stored.Packages))
		for _, pkg := range stored.Packages {
			storedPkgs[pkg.Key()] = pkg
		}
		for _, pkg := range uniquePackages(app) {
			old, ok := storedPkgs[pkg.Key()]
			switch {
			case !ok:
				plan.InsertPackages = append(plan.InsertPackages, pkg)
			case !old.SameFields(pkg):
				plan.UpdatePackages = append(plan.UpdatePackages, pkg)
			}
			delete(storedPkgs, pkg.Key())
		}
		for _, withdrawn := range storedPkgs {
			plan.DeletePackages = append(plan.DeletePackages, withdrawn)
		}
	}

	for id, stored := range existing {
		if seenApps[id] {
			continue
		}
		plan.DeleteApps = append(plan.DeleteApps, stored)
		plan.DeletePackages = append(plan.DeletePackages, stored.Packages...)
	}

	plan.sort()
	return plan
}

func uniquePackages(app *model.App) []*model.Package {
	seen := make(map[int]bool, len(app.Packages))
	out := make([]*model.Package, 0, len(app.Packages))
	for _, pkg := range app.Packages {
		if seen[pkg.VersionCode] {
			continue
		}
		seen[pkg.VersionCode] = true
		pkg.RepoID = app.RepoID
		pkg.AppID = app.ID
		out = append(out, pkg)
	}
	return out
}

// sort orders the map-derived slices so plans are reproducible.
func (p *Plan) sort() {
	byApp := func(a, b *model.App) int { return strings.Compare(a.ID, b.ID) }
	byKey := func(a, b *model.Package) int {
		if c := strings.Compare(a.AppID, b.AppID); c != 0 {
			return c
		}
		return a.VersionCode - b.VersionCode
	}
	slices.SortFunc(p.DeleteApps, byApp)
	slices.SortFunc(p.DeletePackages, byKey)
}

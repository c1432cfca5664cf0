package catalog

import (
	"github.com/hashicorp/go-version"

	"github.com/glorpus-work/appcat/pkg/model"
)

// pickSuggested selects from candidates sorted by version code descending (then repository
// priority) the first package among those sharing the top code whose version name is highest.
// Unparseable names rank below parseable ones.
func pickSuggested(candidates []*model.Package) *model.Package {
	if len(candidates) == 0 {
		return nil
	}
	best := candidates[0]
	bestVer, _ := version.NewVersion(best.Version)
	for _, pkg := range candidates[1:] {
		if pkg.VersionCode != best.VersionCode {
			break
		}
		v, err := version.NewVersion(pkg.Version)
		if err != nil {
			continue
		}
		if bestVer == nil || v.GreaterThan(bestVer) {
			best, bestVer = pkg, v
		}
	}
	return best
}

package orchestrator

import (
	"context"

	pkgerrors "github.com/glorpus-work/appcat/pkg/errors"
	"github.com/glorpus-work/appcat/pkg/index"
	"github.com/glorpus-work/appcat/pkg/model"
)

// XMLParser is the IndexParser for index.xml documents.
type XMLParser struct{}

// Parse parses the document at path for repo.
func (XMLParser) Parse(_ context.Context, repo *model.Repository, path string, onApp func(*model.App)) (*index.Index, error) {
	p := &index.Parser{RepoID: repo.ID, RepoName: repo.DisplayName(), OnApp: onApp}
	idx, err := p.ParseFile(path)
	if err != nil {
		return nil, pkgerrors.ParseError(repo.DisplayName(), err)
	}
	return idx, nil
}

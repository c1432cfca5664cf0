// Package index parses repository index documents into catalog records.
package index

import (
	"bufio"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	pkgerrors "github.com/glorpus-work/appcat/pkg/errors"
	"github.com/glorpus-work/appcat/pkg/model"
)

// DateLayout is the format of added and last-updated dates in an index.
const DateLayout = "2006-01-02"

// Element names with structural meaning.
const (
	elemRepo        = "repo"
	elemApplication = "application"
	elemPackage     = "package"
)

// RepoMeta is the repository metadata announced by the index itself.
type RepoMeta struct {
	Name        string
	Description *string // nil when the index has no description element
	PubKey      string  // inline signing certificate, hex encoded
	URL         string
	MaxAge      *int // days; nil when not declared
	Version     *int // nil when not declared
	Timestamp   int64
}

// Index is a fully parsed index document.
type Index struct {
	Repo RepoMeta
	Apps []*model.App
}

// Parser streams an index document. It is not safe for concurrent use.
type Parser struct {
	RepoID   int64
	RepoName string // used in errors
	// OnApp, if set, is called for every completed application in document order.
	OnApp func(*model.App)

	idx    *Index
	app    *model.App
	pkg    *model.Package
	inRepo bool
	text   strings.Builder
}

// ParseFile parses the index stored at path.
func (p *Parser) ParseFile(path string) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, pkgerrors.ParseError(p.RepoName, fmt.Errorf("failed to open index: %w", err))
	}
	defer func() { _ = f.Close() }()
	return p.Parse(f)
}

// Parse reads the whole document from r. Malformed documents and invalid nesting
// fail with a parse error; malformed numbers only zero the affected field.
func (p *Parser) Parse(r io.Reader) (*Index, error) {
	p.idx = &Index{}
	p.app, p.pkg, p.inRepo = nil, nil, false
	p.text.Reset()

	dec := xml.NewDecoder(bufio.NewReader(r))
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, pkgerrors.ParseError(p.RepoName, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			err = p.start(t)
		case xml.EndElement:
			err = p.end(t.Name.Local)
		case xml.CharData:
			p.text.Write(t)
		}
		if err != nil {
			line, _ := dec.InputPos()
			return nil, pkgerrors.ParseError(p.RepoName, fmt.Errorf("line %d: %w", line, err))
		}
	}

	if p.app != nil {
		return nil, pkgerrors.ParseError(p.RepoName, fmt.Errorf("%w: unterminated application %q", pkgerrors.ErrUnexpectedNesting, p.app.ID))
	}
	idx := p.idx
	p.idx = nil
	return idx, nil
}

func (p *Parser) start(el xml.StartElement) error {
	p.text.Reset()
	switch el.Name.Local {
	case elemRepo:
		if p.app != nil {
			return fmt.Errorf("%w: repo inside application", pkgerrors.ErrUnexpectedNesting)
		}
		p.inRepo = true
		p.repoAttrs(el.Attr)
	case elemApplication:
		if p.app != nil {
			return fmt.Errorf("%w: application inside application %q", pkgerrors.ErrUnexpectedNesting, p.app.ID)
		}
		p.app = &model.App{RepoID: p.RepoID, ID: attr(el.Attr, "id")}
	case elemPackage:
		if p.app == nil {
			return fmt.Errorf("%w: package outside application", pkgerrors.ErrUnexpectedNesting)
		}
		if p.pkg != nil {
			return fmt.Errorf("%w: package inside package", pkgerrors.ErrUnexpectedNesting)
		}
		p.pkg = &model.Package{RepoID: p.RepoID, AppID: p.app.ID}
	case "hash":
		if p.pkg != nil {
			p.pkg.HashType = attr(el.Attr, "type")
		}
	case "uses-permission", "uses-permission-sdk-23":
		if p.pkg != nil {
			if name := attr(el.Attr, "name"); name != "" {
				p.pkg.Permissions = append(p.pkg.Permissions, name)
			}
		}
	}
	return nil
}

func (p *Parser) end(name string) error {
	value := strings.TrimSpace(p.text.String())
	p.text.Reset()

	switch {
	case name == elemRepo:
		p.inRepo = false
	case name == elemApplication && p.app != nil:
		return p.finishApp()
	case name == elemPackage && p.pkg != nil:
		p.app.Packages = append(p.app.Packages, p.pkg)
		p.pkg = nil
	case p.pkg != nil:
		p.packageField(name, value)
	case p.app != nil:
		p.appField(name, value)
	case p.inRepo && name == "description":
		p.idx.Repo.Description = &value
	}
	return nil
}

func (p *Parser) finishApp() error {
	app := p.app
	p.app = nil
	if app.ID == "" {
		return pkgerrors.ErrMissingAppID
	}
	for _, pkg := range app.Packages {
		pkg.AppID = app.ID
	}
	p.idx.Apps = append(p.idx.Apps, app)
	if p.OnApp != nil {
		p.OnApp(app)
	}
	return nil
}

func (p *Parser) repoAttrs(attrs []xml.Attr) {
	meta := &p.idx.Repo
	for _, a := range attrs {
		switch a.Name.Local {
		case "name":
			meta.Name = a.Value
		case "pubkey":
			meta.PubKey = strings.ToLower(strings.TrimSpace(a.Value))
		case "url":
			meta.URL = a.Value
		case "maxage":
			meta.MaxAge = declaredInt(a.Value)
		case "version":
			meta.Version = declaredInt(a.Value)
		case "timestamp":
			meta.Timestamp, _ = strconv.ParseInt(strings.TrimSpace(a.Value), 10, 64)
		}
	}
}

func (p *Parser) appField(name, value string) {
	app := p.app
	switch name {
	case "id":
		app.ID = value
	case "name":
		app.Name = value
	case "summary":
		app.Summary = value
	case "icon":
		app.Icon = value
	case "desc", "description":
		app.Description = value
	case "license":
		app.License = value
	case "categories":
		app.Categories = splitList(value)
	case "category":
		if value != "" && !slices.Contains(app.Categories, value) {
			app.Categories = append(app.Categories, value)
		}
	case "web":
		app.WebURL = value
	case "source":
		app.SourceURL = value
	case "tracker":
		app.TrackerURL = value
	case "donate":
		app.DonateURL = value
	case "added":
		app.Added = parseDate(value)
	case "lastupdated":
		app.LastUpdated = parseDate(value)
	case "antifeatures":
		app.AntiFeatures = splitList(value)
	case "requirements":
		app.Requirements = splitList(value)
	case "marketversion":
		app.SuggestedVersionName = value
	case "marketvercode":
		app.SuggestedVersionCode = atoi(value)
	}
}

func (p *Parser) packageField(name, value string) {
	pkg := p.pkg
	switch name {
	case "version":
		pkg.Version = value
	case "versioncode":
		pkg.VersionCode = atoi(value)
	case "apkname":
		pkg.ApkName = value
	case "srcname":
		pkg.SrcName = value
	case "hash":
		pkg.Hash = strings.ToLower(value)
	case "sig":
		pkg.Sig = value
	case "size":
		pkg.Size, _ = strconv.ParseInt(value, 10, 64)
	case "sdkver":
		pkg.MinSDK = atoi(value)
	case "maxsdkver":
		pkg.MaxSDK = atoi(value)
	case "targetSdkVersion":
		pkg.TargetSDK = atoi(value)
	case "added":
		pkg.Added = parseDate(value)
	case "permissions":
		pkg.Permissions = append(pkg.Permissions, splitList(value)...)
	case "features":
		pkg.Features = splitList(value)
	case "nativecode":
		pkg.NativeCode = splitList(value)
	}
}

func attr(attrs []xml.Attr, name string) string {
	for _, a := range attrs {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}

// atoi parses a decimal integer, yielding 0 for malformed input.
func atoi(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}

// declaredInt returns nil for values that are not integers.
func declaredInt(s string) *int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return nil
	}
	return &n
}

func parseDate(s string) time.Time {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

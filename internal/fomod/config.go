// Package fomod reads FOMOD installer descriptions and runs them interactively.
package fomod

import (
	"cmp"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/beevik/etree"
)

const (
	InfoFile   = "fomod/info.xml"
	ConfigFile = "fomod/moduleconfig.xml"
)

// GroupType decides how many plugins of a group may be chosen
type GroupType int

const (
	SelectAny GroupType = iota
	SelectAll
	SelectExactlyOne
	SelectAtMostOne
	SelectAtLeastOne
)

func (g GroupType) String() string {
	switch g {
	case SelectAll:
		return "SelectAll"
	case SelectExactlyOne:
		return "SelectExactlyOne"
	case SelectAtMostOne:
		return "SelectAtMostOne"
	case SelectAtLeastOne:
		return "SelectAtLeastOne"
	default:
		return "SelectAny"
	}
}

// ParseGroupType converts the XML type attribute; unknown values select any
func ParseGroupType(s string) GroupType {
	switch strings.ToLower(s) {
	case "selectall":
		return SelectAll
	case "selectexactlyone":
		return SelectExactlyOne
	case "selectatmostone":
		return SelectAtMostOne
	case "selectatleastone":
		return SelectAtLeastOne
	default:
		return SelectAny
	}
}

// DirectiveKind distinguishes single files from whole folders
type DirectiveKind int

const (
	DirectiveFile DirectiveKind = iota
	DirectiveFolder
)

// Directive is a <file> or <folder> element
type Directive struct {
	Kind        DirectiveKind
	Source      string
	Destination string
	Priority    int
}

// Flag is a condition flag set by a chosen plugin
type Flag struct {
	Name  string
	Value string
}

// Info is the content of fomod/info.xml
type Info struct {
	Name    string
	Version string
	Author  string
	Website string
}

// Plugin is one selectable option inside a group
type Plugin struct {
	Name        string
	Description string
	Type        string
	Flags       []Flag
	Files       []Directive
}

// Group is a set of plugins with a selection rule
type Group struct {
	Name    string
	Type    GroupType
	Plugins []Plugin
}

// Step is a page of the installer
type Step struct {
	Name    string
	Visible Dependency
	Groups  []Group
}

// ConditionalInstall adds files when its dependency holds after all steps
type ConditionalInstall struct {
	Dependency Dependency
	Files      []Directive
}

// Config is the content of fomod/moduleconfig.xml
type Config struct {
	Name                string
	Dependencies        Dependency
	RequiredFiles       []Directive
	Steps               []Step
	ConditionalInstalls []ConditionalInstall
}

// HasInstaller reports whether dir holds both FOMOD description files
func HasInstaller(dir string) bool {
	for _, f := range []string{InfoFile, ConfigFile} {
		info, err := os.Stat(filepath.Join(dir, f))
		if err != nil || info.IsDir() {
			return false
		}
	}
	return true
}

// ReadInfo parses fomod/info.xml below dir
func ReadInfo(dir string) (*Info, error) {
	root, err := readRoot(filepath.Join(dir, InfoFile))
	if err != nil {
		return nil, err
	}
	return &Info{
		Name:    childText(root, "Name"),
		Version: childText(root, "Version"),
		Author:  childText(root, "Author"),
		Website: childText(root, "Website"),
	}, nil
}

// ReadConfig parses fomod/moduleconfig.xml below dir
func ReadConfig(dir string) (*Config, error) {
	path := filepath.Join(dir, ConfigFile)
	root, err := readRoot(path)
	if err != nil {
		return nil, err
	}
	return parseConfig(root)
}

func readRoot(path string) (*etree.Element, error) {
	data, err := decodeFile(path)
	if err != nil {
		return nil, err
	}

	doc := etree.NewDocument()
	doc.ReadSettings.CharsetReader = passthroughCharset
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	root := doc.Root()
	if root == nil {
		return nil, fmt.Errorf("parsing %s: no root element", path)
	}
	return root, nil
}

func parseConfig(root *etree.Element) (*Config, error) {
	cfg := &Config{Name: childText(root, "moduleName")}

	if deps := child(root, "moduleDependencies"); deps != nil {
		d, err := parseComposite(deps)
		if err != nil {
			return nil, err
		}
		cfg.Dependencies = d
	}

	if req := child(root, "requiredInstallFiles"); req != nil {
		cfg.RequiredFiles = parseDirectives(req)
	}

	if steps := child(root, "installSteps"); steps != nil {
		for _, se := range ordered(steps, "installStep") {
			step, err := parseStep(se)
			if err != nil {
				return nil, err
			}
			cfg.Steps = append(cfg.Steps, step)
		}
	}

	if cond := child(root, "conditionalFileInstalls"); cond != nil {
		if patterns := child(cond, "patterns"); patterns != nil {
			for _, pe := range children(patterns, "pattern") {
				ci := ConditionalInstall{}
				if deps := child(pe, "dependencies"); deps != nil {
					d, err := parseComposite(deps)
					if err != nil {
						return nil, err
					}
					ci.Dependency = d
				}
				if files := child(pe, "files"); files != nil {
					ci.Files = parseDirectives(files)
				}
				cfg.ConditionalInstalls = append(cfg.ConditionalInstalls, ci)
			}
		}
	}

	return cfg, nil
}

func parseStep(se *etree.Element) (Step, error) {
	step := Step{Name: attr(se, "name")}

	if vis := child(se, "visible"); vis != nil {
		d, err := parseVisible(vis)
		if err != nil {
			return step, err
		}
		step.Visible = d
	}

	groups := child(se, "optionalFileGroups")
	if groups == nil {
		return step, nil
	}
	for _, ge := range ordered(groups, "group") {
		g := Group{Name: attr(ge, "name"), Type: ParseGroupType(attr(ge, "type"))}
		if plugins := child(ge, "plugins"); plugins != nil {
			for _, pe := range ordered(plugins, "plugin") {
				g.Plugins = append(g.Plugins, parsePlugin(pe))
			}
		}
		step.Groups = append(step.Groups, g)
	}
	return step, nil
}

// parseVisible accepts both <visible><dependencies/></visible> and the older
// form with flag dependencies directly inside <visible>.
func parseVisible(vis *etree.Element) (Dependency, error) {
	if deps := child(vis, "dependencies"); deps != nil {
		return parseComposite(deps)
	}
	return parseComposite(vis)
}

func parsePlugin(pe *etree.Element) Plugin {
	p := Plugin{
		Name:        attr(pe, "name"),
		Description: strings.TrimSpace(childText(pe, "description")),
	}
	if td := child(pe, "typeDescriptor"); td != nil {
		if t := child(td, "type"); t != nil {
			p.Type = attr(t, "name")
		} else if dt := child(td, "dependencyType"); dt != nil {
			if def := child(dt, "defaultType"); def != nil {
				p.Type = attr(def, "name")
			}
		}
	}
	if flags := child(pe, "conditionFlags"); flags != nil {
		for _, fe := range children(flags, "flag") {
			p.Flags = append(p.Flags, Flag{Name: attr(fe, "name"), Value: strings.TrimSpace(fe.Text())})
		}
	}
	if files := child(pe, "files"); files != nil {
		p.Files = parseDirectives(files)
	}
	return p
}

func parseDirectives(e *etree.Element) []Directive {
	var out []Directive
	for _, fe := range e.ChildElements() {
		var kind DirectiveKind
		switch {
		case strings.EqualFold(fe.Tag, "file"):
			kind = DirectiveFile
		case strings.EqualFold(fe.Tag, "folder"):
			kind = DirectiveFolder
		default:
			continue
		}
		prio, _ := strconv.Atoi(attr(fe, "priority"))
		out = append(out, Directive{
			Kind:        kind,
			Source:      attr(fe, "source"),
			Destination: attr(fe, "destination"),
			Priority:    prio,
		})
	}
	return out
}

// ordered returns the named children sorted by the parent's order attribute.
// Ascending is the FOMOD default; Explicit keeps document order.
func ordered(parent *etree.Element, name string) []*etree.Element {
	elems := children(parent, name)
	switch strings.ToLower(attr(parent, "order")) {
	case "explicit":
	case "descending":
		slices.SortStableFunc(elems, func(a, b *etree.Element) int {
			return cmp.Compare(attr(b, "name"), attr(a, "name"))
		})
	default:
		slices.SortStableFunc(elems, func(a, b *etree.Element) int {
			return cmp.Compare(attr(a, "name"), attr(b, "name"))
		})
	}
	return elems
}

func child(e *etree.Element, name string) *etree.Element {
	for _, c := range e.ChildElements() {
		if strings.EqualFold(c.Tag, name) {
			return c
		}
	}
	return nil
}

func children(e *etree.Element, name string) []*etree.Element {
	var out []*etree.Element
	for _, c := range e.ChildElements() {
		if strings.EqualFold(c.Tag, name) {
			out = append(out, c)
		}
	}
	return out
}

func childText(e *etree.Element, name string) string {
	if c := child(e, name); c != nil {
		return strings.TrimSpace(c.Text())
	}
	return ""
}

func attr(e *etree.Element, name string) string {
	for _, a := range e.Attr {
		if strings.EqualFold(a.Key, name) {
			return a.Value
		}
	}
	return ""
}

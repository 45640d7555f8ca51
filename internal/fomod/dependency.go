package fomod

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/beevik/etree"
)

// Dependency is a condition over flags and installed files
type Dependency interface {
	Satisfied(env *Env) bool
}

// Env is what dependencies are evaluated against
type Env struct {
	Flags map[Flag]struct{}
	// DataDir is the game's data directory; file dependencies are
	// considered satisfied when it is empty.
	DataDir string
}

// NewEnv returns an empty environment
func NewEnv(dataDir string) *Env {
	return &Env{Flags: make(map[Flag]struct{}), DataDir: dataDir}
}

// Set records a condition flag
func (e *Env) Set(f Flag) {
	e.Flags[f] = struct{}{}
}

// FlagDependency holds when the flag was set with the given value
type FlagDependency struct {
	Flag Flag
}

func (d FlagDependency) Satisfied(env *Env) bool {
	_, ok := env.Flags[d.Flag]
	return ok
}

// FileDependency checks the state of a plugin file in the game data dir
type FileDependency struct {
	File  string
	State string // Active, Inactive or Missing
}

func (d FileDependency) Satisfied(env *Env) bool {
	if env.DataDir == "" {
		return true
	}
	_, err := os.Lstat(filepath.Join(env.DataDir, strings.ToLower(d.File)))
	present := err == nil
	if strings.EqualFold(d.State, "missing") {
		return !present
	}
	return present
}

// Operator joins the children of a composite dependency
type Operator int

const (
	OpAnd Operator = iota
	OpOr
)

// CompositeDependency is an And/Or over nested dependencies
type CompositeDependency struct {
	Operator Operator
	Children []Dependency
}

func (d CompositeDependency) Satisfied(env *Env) bool {
	if d.Operator == OpOr {
		for _, c := range d.Children {
			if c.Satisfied(env) {
				return true
			}
		}
		return len(d.Children) == 0
	}
	for _, c := range d.Children {
		if !c.Satisfied(env) {
			return false
		}
	}
	return true
}

// satisfied treats a missing dependency as always true
func satisfied(d Dependency, env *Env) bool {
	return d == nil || d.Satisfied(env)
}

func parseComposite(e *etree.Element) (Dependency, error) {
	comp := CompositeDependency{}
	switch strings.ToLower(attr(e, "operator")) {
	case "", "and":
		comp.Operator = OpAnd
	case "or":
		comp.Operator = OpOr
	default:
		return nil, fmt.Errorf("unknown dependency operator %q", attr(e, "operator"))
	}

	for _, c := range e.ChildElements() {
		switch strings.ToLower(c.Tag) {
		case "flagdependency":
			comp.Children = append(comp.Children, FlagDependency{Flag: Flag{Name: attr(c, "flag"), Value: attr(c, "value")}})
		case "filedependency":
			comp.Children = append(comp.Children, FileDependency{File: attr(c, "file"), State: attr(c, "state")})
		case "dependencies":
			nested, err := parseComposite(c)
			if err != nil {
				return nil, err
			}
			comp.Children = append(comp.Children, nested)
		}
	}

	// A lone flag reads better than a one-element conjunction
	if len(comp.Children) == 1 {
		return comp.Children[0], nil
	}
	return comp, nil
}

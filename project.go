package knot

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"

	"github.com/pelletier/go-toml/v2"

	"github.com/jward/knot/internal/diag"
	"github.com/jward/knot/internal/program"
)

// ErrNotADirectory is returned when project discovery starts from a file.
var ErrNotADirectory = errors.New("not a directory")

// Project describes the code base being checked: where it lives, which
// directories hold first-party modules, and how lints are configured.
type Project struct {
	Name string
	Root string
	// ConfigPath is the pyproject.toml the project was loaded from. Empty
	// for a virtual project.
	ConfigPath string
	// HasKnotSection reports whether the config carries a [tool.knot] table.
	HasKnotSection bool
	// UserConfigPath is the user-level config merged under the project's
	// options, if one was applied.
	UserConfigPath string
	// ExtraPaths are searched before first-party roots.
	ExtraPaths []string
	// Src are the first-party roots, absolute.
	Src   []string
	Rules diag.Rules

	// options are the layered settings the fields above derive from, with
	// paths already absolute.
	options Options
}

type pyProject struct {
	Project *struct {
		Name string `toml:"name"`
	} `toml:"project"`
	Tool *struct {
		Knot *Options `toml:"knot"`
	} `toml:"tool"`
}

// Options are the settings one configuration layer may set: the
// [tool.knot] table, the user config file, or command-line flags.
type Options struct {
	ExtraPaths []string          `toml:"extra-paths"`
	Src        []string          `toml:"src"`
	Rules      map[string]string `toml:"rules"`
}

// Combine layers o over lower. Paths of o are searched first and rules
// set in o override those of lower.
func (o Options) Combine(lower Options) Options {
	out := Options{
		ExtraPaths: appendUnique(slices.Clone(o.ExtraPaths), lower.ExtraPaths),
		Src:        appendUnique(slices.Clone(o.Src), lower.Src),
	}
	if len(o.Rules)+len(lower.Rules) > 0 {
		out.Rules = maps.Clone(lower.Rules)
		if out.Rules == nil {
			out.Rules = make(map[string]string, len(o.Rules))
		}
		maps.Copy(out.Rules, o.Rules)
	}
	return out
}

func appendUnique(dst, src []string) []string {
	for _, s := range src {
		if !slices.Contains(dst, s) {
			dst = append(dst, s)
		}
	}
	return dst
}

// absolute resolves relative paths against dir.
func (o Options) absolute(dir string) Options {
	abs := func(paths []string) []string {
		var out []string
		for _, p := range paths {
			if filepath.IsAbs(p) {
				out = append(out, filepath.Clean(p))
			} else {
				out = append(out, filepath.Join(dir, p))
			}
		}
		return out
	}
	return Options{ExtraPaths: abs(o.ExtraPaths), Src: abs(o.Src), Rules: o.Rules}
}

func (p *pyProject) knot() *Options {
	if p.Tool == nil {
		return nil
	}
	return p.Tool.Knot
}

// DiscoverProject finds the project enclosing dir. Ancestors are searched
// for pyproject.toml: the closest one with a [tool.knot] table wins, then
// the closest one at all, and otherwise dir itself becomes a virtual
// project with default settings.
func DiscoverProject(dir string) (*Project, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("discover project %s: %w", dir, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("discover project: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("discover project %s: %w", abs, ErrNotADirectory)
	}
	slog.Debug("searching for a project", "path", abs)

	var closest *Project
	for ancestor := abs; ; {
		configPath := filepath.Join(ancestor, "pyproject.toml")
		data, err := os.ReadFile(configPath)
		if err == nil {
			var py pyProject
			if err := toml.Unmarshal(data, &py); err != nil {
				return nil, fmt.Errorf("%s is not a valid pyproject.toml: %w", configPath, err)
			}
			p, err := projectFromPyProject(&py, ancestor, configPath)
			if err != nil {
				return nil, err
			}
			if p.HasKnotSection {
				slog.Debug("found project", "root", ancestor)
				return p, nil
			}
			if closest == nil {
				closest = p
			}
		}
		parent := filepath.Dir(ancestor)
		if parent == ancestor {
			break
		}
		ancestor = parent
	}

	if closest != nil {
		slog.Debug("project without tool.knot section", "root", closest.Root)
		return closest, nil
	}
	slog.Debug("no pyproject.toml in ancestors, using a virtual project", "root", abs)
	return projectFromOptions(filepath.Base(abs), abs, "", nil)
}

func projectFromPyProject(py *pyProject, root, configPath string) (*Project, error) {
	name := ""
	if py.Project != nil {
		name = py.Project.Name
	}
	if name == "" {
		name = filepath.Base(root)
	}
	return projectFromOptions(name, root, configPath, py.knot())
}

func projectFromOptions(name, root, configPath string, opts *Options) (*Project, error) {
	p := &Project{
		Name:           name,
		Root:           root,
		ConfigPath:     configPath,
		HasKnotSection: opts != nil,
	}
	if opts != nil {
		p.options = opts.absolute(root)
	}
	if err := p.resolve(); err != nil {
		source := configPath
		if source == "" {
			source = root
		}
		return nil, fmt.Errorf("%s: %w", source, err)
	}
	return p, nil
}

// resolve derives the search roots and rules from the layered options.
func (p *Project) resolve() error {
	rules, err := diag.ParseRules(p.options.Rules)
	if err != nil {
		return err
	}
	p.ExtraPaths = slices.Clone(p.options.ExtraPaths)
	p.Src = slices.Clone(p.options.Src)
	if len(p.Src) == 0 {
		// A src layout resolves before the root so src/pkg is "pkg".
		if info, err := os.Stat(filepath.Join(p.Root, "src")); err == nil && info.IsDir() {
			p.Src = append(p.Src, filepath.Join(p.Root, "src"))
		}
		p.Src = append(p.Src, p.Root)
	}
	p.Rules = rules
	return nil
}

// ApplyCLIOptions layers command-line options over the project's. Relative
// paths in cli resolve against the working directory.
func (p *Project) ApplyCLIOptions(cli Options) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("apply cli options: %w", err)
	}
	return p.layer(cli.absolute(cwd).Combine(p.options), "command line")
}

// ApplyUserOptions layers the project's options over user-level ones.
// Relative paths in user resolve against dir, the directory of the user
// config file.
func (p *Project) ApplyUserOptions(user Options, dir string) error {
	return p.layer(p.options.Combine(user.absolute(dir)), "user config")
}

func (p *Project) layer(combined Options, source string) error {
	prev := p.options
	p.options = combined
	if err := p.resolve(); err != nil {
		p.options = prev
		return fmt.Errorf("%s: %w", source, err)
	}
	return nil
}

// UserConfigPath is the user-level config file: $KNOT_CONFIG if set,
// otherwise knot/knot.toml under the user config directory.
func UserConfigPath() (string, error) {
	if path := os.Getenv("KNOT_CONFIG"); path != "" {
		return path, nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "knot", "knot.toml"), nil
}

// LoadUserOptions reads a user config file holding the same keys as the
// [tool.knot] table. A missing file yields nil options and no error.
func LoadUserOptions(path string) (*Options, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read user config: %w", err)
	}
	var opts Options
	if err := toml.Unmarshal(data, &opts); err != nil {
		return nil, fmt.Errorf("%s is not a valid knot.toml: %w", path, err)
	}
	return &opts, nil
}

// ApplyUserConfig loads the user config file, if any, and merges it under
// the project's options.
func (p *Project) ApplyUserConfig(path string) error {
	opts, err := LoadUserOptions(path)
	if err != nil || opts == nil {
		return err
	}
	if err := p.ApplyUserOptions(*opts, filepath.Dir(path)); err != nil {
		return err
	}
	p.UserConfigPath = path
	return nil
}

// SearchPaths returns the module search paths for the project: extra
// paths first, then first-party roots.
func (p *Project) SearchPaths() ([]program.SearchPath, error) {
	var out []program.SearchPath
	add := func(kind program.SearchPathKind, dirs []string) error {
		for _, dir := range dirs {
			sp, err := program.DirSearchPath(kind, dir)
			if err != nil {
				return err
			}
			out = append(out, sp)
		}
		return nil
	}
	if err := add(program.Extra, p.ExtraPaths); err != nil {
		return nil, err
	}
	if err := add(program.FirstParty, p.Src); err != nil {
		return nil, err
	}
	return out, nil
}

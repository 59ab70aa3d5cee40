package knot

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/knot/internal/diag"
	"github.com/jward/knot/internal/program"
)

func TestDiscoverProject_Virtual(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"foo.py": "", "bar.py": ""})

	p, err := DiscoverProject(root)
	require.NoError(t, err)
	assert.Equal(t, root, p.Root)
	assert.Equal(t, filepath.Base(root), p.Name)
	assert.Empty(t, p.ConfigPath)
	assert.False(t, p.HasKnotSection)
	assert.Equal(t, []string{root}, p.Src)
	assert.Empty(t, p.Rules)
}

func TestDiscoverProject_PyProject(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"pyproject.toml": `
[project]
name = "backend"
`})

	p, err := DiscoverProject(root)
	require.NoError(t, err)
	assert.Equal(t, "backend", p.Name)
	assert.Equal(t, filepath.Join(root, "pyproject.toml"), p.ConfigPath)
	assert.False(t, p.HasKnotSection)
}

func TestDiscoverProject_NameFallsBackToDirectory(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"pyproject.toml": "[project]\nversion = \"1.0\"\n"})

	p, err := DiscoverProject(root)
	require.NoError(t, err)
	assert.Equal(t, filepath.Base(root), p.Name)
}

func TestDiscoverProject_KnotSectionWins(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"pyproject.toml": `
[project]
name = "outer"

[tool.knot]
extra-paths = ["vendor"]
`,
		"packages/inner/pyproject.toml": `
[project]
name = "inner"
`,
	})

	p, err := DiscoverProject(filepath.Join(root, "packages", "inner"))
	require.NoError(t, err)
	assert.Equal(t, "outer", p.Name)
	assert.Equal(t, root, p.Root)
	assert.True(t, p.HasKnotSection)
	assert.Equal(t, []string{filepath.Join(root, "vendor")}, p.ExtraPaths)
}

func TestDiscoverProject_ClosestPyProjectWithoutKnot(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"pyproject.toml":                "[project]\nname = \"outer\"\n",
		"packages/inner/pyproject.toml": "[project]\nname = \"inner\"\n",
	})

	p, err := DiscoverProject(filepath.Join(root, "packages", "inner"))
	require.NoError(t, err)
	assert.Equal(t, "inner", p.Name)
	assert.Equal(t, filepath.Join(root, "packages", "inner"), p.Root)
}

func TestDiscoverProject_Options(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	abs := t.TempDir()
	writeFiles(t, root, map[string]string{"pyproject.toml": `
[tool.knot]
extra-paths = ["stubs", "` + filepath.ToSlash(abs) + `"]
src = ["lib"]

[tool.knot.rules]
unresolved-import = "ignore"
possibly-unresolved-reference = "error"
`})

	p, err := DiscoverProject(root)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(root, "stubs"), abs}, p.ExtraPaths)
	assert.Equal(t, []string{filepath.Join(root, "lib")}, p.Src)
	assert.Equal(t, diag.Ignore, p.Rules.Severity(diag.UnresolvedImport))
	assert.Equal(t, diag.Error, p.Rules.Severity(diag.PossiblyUnresolvedReference))
	assert.Equal(t, diag.Error, p.Rules.Severity(diag.UnresolvedReference))
}

func TestDiscoverProject_SrcLayout(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"src/app/__init__.py": ""})

	p, err := DiscoverProject(root)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(root, "src"), root}, p.Src)

	paths, err := p.SearchPaths()
	require.NoError(t, err)
	require.Len(t, paths, 2)
	prog := program.New(paths...)
	f, err := prog.Resolve("app")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "src", "app", "__init__.py"), f.Path)
}

func TestDiscoverProject_SearchPathOrder(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"pyproject.toml": "[tool.knot]\nextra-paths = [\"extra\"]\n",
		"extra/dup.py":   "x = 1\n",
		"dup.py":         "x = 2\n",
	})

	p, err := DiscoverProject(root)
	require.NoError(t, err)
	paths, err := p.SearchPaths()
	require.NoError(t, err)
	require.Len(t, paths, 2)
	assert.Equal(t, program.Extra, paths[0].Kind)
	assert.Equal(t, program.FirstParty, paths[1].Kind)

	f, err := program.New(paths...).Resolve("dup")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "extra", "dup.py"), f.Path)
}

func TestDiscoverProject_Errors(t *testing.T) {
	t.Parallel()

	t.Run("invalid toml", func(t *testing.T) {
		root := t.TempDir()
		writeFiles(t, root, map[string]string{"pyproject.toml": "[project\nname = 1"})
		_, err := DiscoverProject(root)
		require.Error(t, err)
		assert.Contains(t, err.Error(), filepath.Join(root, "pyproject.toml"))
	})

	t.Run("unknown rule", func(t *testing.T) {
		root := t.TempDir()
		writeFiles(t, root, map[string]string{"pyproject.toml": "[tool.knot.rules]\nno-such-rule = \"error\"\n"})
		_, err := DiscoverProject(root)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no-such-rule")
	})

	t.Run("unknown level", func(t *testing.T) {
		root := t.TempDir()
		writeFiles(t, root, map[string]string{"pyproject.toml": "[tool.knot.rules]\nunresolved-import = \"loud\"\n"})
		_, err := DiscoverProject(root)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "loud")
	})

	t.Run("not a directory", func(t *testing.T) {
		root := t.TempDir()
		path := filepath.Join(root, "main.py")
		require.NoError(t, os.WriteFile(path, nil, 0o644))
		_, err := DiscoverProject(path)
		assert.ErrorIs(t, err, ErrNotADirectory)
	})

	t.Run("missing", func(t *testing.T) {
		_, err := DiscoverProject(filepath.Join(t.TempDir(), "nope"))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})
}

func TestOptions_Combine(t *testing.T) {
	t.Parallel()
	higher := Options{
		ExtraPaths: []string{"/cli/stubs"},
		Rules:      map[string]string{"unresolved-import": "warn"},
	}
	lower := Options{
		ExtraPaths: []string{"/proj/stubs", "/cli/stubs"},
		Src:        []string{"/proj/lib"},
		Rules:      map[string]string{"unresolved-import": "ignore", "unresolved-reference": "warn"},
	}

	got := higher.Combine(lower)
	assert.Equal(t, []string{"/cli/stubs", "/proj/stubs"}, got.ExtraPaths)
	assert.Equal(t, []string{"/proj/lib"}, got.Src)
	assert.Equal(t, map[string]string{"unresolved-import": "warn", "unresolved-reference": "warn"}, got.Rules)
	assert.Equal(t, "ignore", lower.Rules["unresolved-import"], "inputs are not modified")

	assert.Equal(t, Options{}, Options{}.Combine(Options{}))
}

func TestProject_ApplyCLIOptions(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	cliStubs := t.TempDir()
	writeFiles(t, root, map[string]string{"pyproject.toml": `
[tool.knot]
extra-paths = ["stubs"]

[tool.knot.rules]
unresolved-import = "ignore"
possibly-unresolved-reference = "error"
`})
	p, err := DiscoverProject(root)
	require.NoError(t, err)

	err = p.ApplyCLIOptions(Options{
		ExtraPaths: []string{cliStubs},
		Src:        []string{filepath.Join(root, "lib")},
		Rules:      map[string]string{"unresolved-import": "warn"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{cliStubs, filepath.Join(root, "stubs")}, p.ExtraPaths, "command-line paths are searched first")
	assert.Equal(t, []string{filepath.Join(root, "lib")}, p.Src)
	assert.Equal(t, diag.Warning, p.Rules.Severity(diag.UnresolvedImport), "command line overrides the project")
	assert.Equal(t, diag.Error, p.Rules.Severity(diag.PossiblyUnresolvedReference))

	t.Run("invalid rule leaves the project unchanged", func(t *testing.T) {
		err := p.ApplyCLIOptions(Options{Rules: map[string]string{"no-such-rule": "error"}})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "command line")
		assert.Contains(t, err.Error(), "no-such-rule")
		assert.Equal(t, diag.Warning, p.Rules.Severity(diag.UnresolvedImport))
		assert.Equal(t, []string{cliStubs, filepath.Join(root, "stubs")}, p.ExtraPaths)
	})
}

func TestProject_ApplyUserConfig(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	userDir := t.TempDir()
	writeFiles(t, root, map[string]string{"pyproject.toml": `
[tool.knot]
extra-paths = ["stubs"]

[tool.knot.rules]
unresolved-import = "ignore"
`})
	writeFiles(t, userDir, map[string]string{"knot.toml": `
extra-paths = ["user-stubs"]

[rules]
unresolved-import = "error"
unresolved-reference = "warn"
`})
	userConfig := filepath.Join(userDir, "knot.toml")

	p, err := DiscoverProject(root)
	require.NoError(t, err)
	require.NoError(t, p.ApplyUserConfig(userConfig))

	assert.Equal(t, userConfig, p.UserConfigPath)
	assert.Equal(t, []string{filepath.Join(root, "stubs"), filepath.Join(userDir, "user-stubs")}, p.ExtraPaths)
	assert.Equal(t, diag.Ignore, p.Rules.Severity(diag.UnresolvedImport), "the project overrides the user config")
	assert.Equal(t, diag.Warning, p.Rules.Severity(diag.UnresolvedReference))
	assert.Equal(t, []string{root}, p.Src)

	// The command line sits above both layers.
	require.NoError(t, p.ApplyCLIOptions(Options{Rules: map[string]string{"unresolved-import": "info", "unresolved-reference": "error"}}))
	assert.Equal(t, diag.Info, p.Rules.Severity(diag.UnresolvedImport))
	assert.Equal(t, diag.Error, p.Rules.Severity(diag.UnresolvedReference))
	assert.Equal(t, []string{filepath.Join(root, "stubs"), filepath.Join(userDir, "user-stubs")}, p.ExtraPaths)

	t.Run("missing file", func(t *testing.T) {
		p, err := DiscoverProject(root)
		require.NoError(t, err)
		require.NoError(t, p.ApplyUserConfig(filepath.Join(userDir, "absent.toml")))
		assert.Empty(t, p.UserConfigPath)
		assert.Equal(t, []string{filepath.Join(root, "stubs")}, p.ExtraPaths)
	})
	t.Run("invalid file", func(t *testing.T) {
		dir := t.TempDir()
		writeFiles(t, dir, map[string]string{"knot.toml": "rules = 3\n"})
		p, err := DiscoverProject(root)
		require.NoError(t, err)
		err = p.ApplyUserConfig(filepath.Join(dir, "knot.toml"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "knot.toml")
	})
}

func TestUserConfigPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.toml")
	t.Setenv("KNOT_CONFIG", path)
	got, err := UserConfigPath()
	require.NoError(t, err)
	assert.Equal(t, path, got)

	t.Setenv("KNOT_CONFIG", "")
	t.Setenv("XDG_CONFIG_HOME", "/xdg")
	if got, err := UserConfigPath(); err == nil {
		assert.Equal(t, "knot.toml", filepath.Base(got))
		assert.Equal(t, "knot", filepath.Base(filepath.Dir(got)))
	}
}

package host

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"plugup/internal/debug"
	"plugup/internal/domain"
	appErrors "plugup/internal/errors"
)

const versionFile = "version.php"

var (
	coreVersionRegex = regexp.MustCompile(`\$version\s*=\s*([0-9]+(?:\.[0-9]+)?)\s*;`)
	coreBranchRegex  = regexp.MustCompile(`\$branch\s*=\s*['"]?([0-9]+)['"]?\s*;`)
	coreReleaseRegex = regexp.MustCompile(`\$release\s*=\s*['"]([^'"]*)['"]\s*;`)

	pluginVersionRegex   = regexp.MustCompile(`\$(?:plugin|module)->version\s*=\s*['"]?([0-9]+(?:\.[0-9]+)?)['"]?\s*;`)
	pluginReleaseRegex   = regexp.MustCompile(`\$(?:plugin|module)->release\s*=\s*['"]([^'"]*)['"]\s*;`)
	pluginComponentRegex = regexp.MustCompile(`\$(?:plugin|module)->component\s*=\s*['"]([a-z0-9_]+)['"]\s*;`)

	pluginNameStringRegex = regexp.MustCompile(`\$string\[\s*['"]pluginname['"]\s*\]\s*=\s*(?:'((?:[^'\\]|\\.)*)'|"((?:[^"\\]|\\.)*)")\s*;`)
)

var log = debug.L("host")

// Options controls a scan. Version and Branch, when set, take precedence
// over the values found in the root version.php.
type Options struct {
	Root        string
	PluginTypes []string
	Version     string
	Branch      string
}

// Scan reads the installation at opts.Root.
func Scan(ctx context.Context, opts Options) (*Installation, error) {
	root, err := filepath.Abs(strings.TrimSpace(opts.Root))
	if err != nil {
		return nil, appErrors.New(appErrors.CodeHostInvalid, fmt.Sprintf("invalid host root %q", opts.Root), err)
	}
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		if err == nil {
			err = fmt.Errorf("not a directory")
		}
		return nil, appErrors.New(appErrors.CodeHostInvalid, fmt.Sprintf("host root %s is not accessible", root), err)
	}

	types, err := ParsePluginTypes(root, opts.PluginTypes)
	if err != nil {
		return nil, appErrors.New(appErrors.CodeConfigurationError, err.Error(), err)
	}

	inst := &Installation{Root: root, types: types, index: make(map[string]int)}
	if err := readCore(inst, opts); err != nil {
		return nil, err
	}

	for _, t := range types {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		plugins, err := scanType(t)
		if err != nil {
			return nil, appErrors.New(appErrors.CodeHostInvalid, fmt.Sprintf("scan %s plugins", t.Name), err)
		}
		for _, p := range plugins {
			if _, dup := inst.index[p.Component]; dup {
				log.Warn("duplicate component, keeping first", "component", p.Component, "dir", p.Dir)
				continue
			}
			inst.index[p.Component] = len(inst.plugins)
			inst.plugins = append(inst.plugins, p)
		}
	}

	log.Debug("scanned installation", "root", root, "version", inst.Version, "branch", inst.Branch, "plugins", len(inst.plugins))
	return inst, nil
}

func readCore(inst *Installation, opts Options) error {
	path := filepath.Join(inst.Root, versionFile)
	//nolint:gosec // G304: version.php path is derived from the configured root
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		src := string(data)
		if m := coreVersionRegex.FindStringSubmatch(src); m != nil {
			if v, perr := domain.ParseVersion(m[1]); perr == nil {
				inst.Version = v
			}
		}
		if m := coreBranchRegex.FindStringSubmatch(src); m != nil {
			inst.Branch = m[1]
		}
		if m := coreReleaseRegex.FindStringSubmatch(src); m != nil {
			inst.Release = m[1]
		}
	case errors.Is(err, fs.ErrNotExist):
		if strings.TrimSpace(opts.Version) == "" || strings.TrimSpace(opts.Branch) == "" {
			return appErrors.New(appErrors.CodeHostInvalid, fmt.Sprintf("%s does not look like a host installation: %s is missing", inst.Root, versionFile), err)
		}
	default:
		return appErrors.New(appErrors.CodeHostInvalid, fmt.Sprintf("read %s", path), err)
	}

	if raw := strings.TrimSpace(opts.Version); raw != "" {
		v, err := domain.ParseVersion(raw)
		if err != nil {
			return appErrors.New(appErrors.CodeConfigurationError, fmt.Sprintf("invalid host version %q", raw), err)
		}
		inst.Version = v
	}
	if b := strings.TrimSpace(opts.Branch); b != "" {
		inst.Branch = b
	}
	if inst.Version.IsZero() {
		return appErrors.New(appErrors.CodeHostInvalid, fmt.Sprintf("could not determine host version from %s", path), nil)
	}
	return nil
}

func scanType(t PluginType) ([]Plugin, error) {
	entries, err := os.ReadDir(t.Dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var plugins []Plugin
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		dir := filepath.Join(t.Dir, entry.Name())
		p, ok, err := readPlugin(t.Name, entry.Name(), dir)
		if err != nil {
			return nil, err
		}
		if ok {
			plugins = append(plugins, p)
		}
	}
	return plugins, nil
}

func readPlugin(pluginType, name, dir string) (Plugin, bool, error) {
	//nolint:gosec // G304: path is inside a configured plugin type directory
	data, err := os.ReadFile(filepath.Join(dir, versionFile))
	if errors.Is(err, fs.ErrNotExist) {
		return Plugin{}, false, nil
	}
	if err != nil {
		return Plugin{}, false, err
	}
	src := string(data)

	p := Plugin{
		Component: pluginType + "_" + name,
		Type:      pluginType,
		Name:      name,
		Dir:       dir,
	}
	if m := pluginComponentRegex.FindStringSubmatch(src); m != nil && m[1] != p.Component {
		declaredType, declaredName, err := domain.SplitComponent(m[1])
		if err == nil && declaredType == pluginType {
			p.Component, p.Name = m[1], declaredName
		} else {
			log.Warn("declared component does not match plugin type, using directory name", "declared", m[1], "dir", dir)
		}
	}
	m := pluginVersionRegex.FindStringSubmatch(src)
	if m == nil {
		log.Warn("plugin without version, skipping", "dir", dir)
		return Plugin{}, false, nil
	}
	v, err := domain.ParseVersion(m[1])
	if err != nil {
		log.Warn("plugin with unparsable version, skipping", "dir", dir, "error", err)
		return Plugin{}, false, nil
	}
	p.Version = v
	if m := pluginReleaseRegex.FindStringSubmatch(src); m != nil {
		p.Release = m[1]
	}
	p.DisplayName = displayName(dir, p.Component)
	return p, true, nil
}

// displayName reads the pluginname string from the English language pack.
// Activity modules name their language file after the bare plugin name.
func displayName(dir, component string) string {
	candidates := []string{component + ".php"}
	if pluginType, name, err := domain.SplitComponent(component); err == nil && pluginType == "mod" {
		candidates = append(candidates, name+".php")
	}
	for _, file := range candidates {
		//nolint:gosec // G304: path is inside the plugin directory
		data, err := os.ReadFile(filepath.Join(dir, "lang", "en", file))
		if err != nil {
			continue
		}
		m := pluginNameStringRegex.FindStringSubmatch(string(data))
		if m == nil {
			continue
		}
		if m[1] != "" {
			return strings.ReplaceAll(m[1], `\'`, `'`)
		}
		if m[2] != "" {
			return strings.ReplaceAll(m[2], `\"`, `"`)
		}
	}
	return component
}

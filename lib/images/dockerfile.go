package images

import (
	"fmt"
	"sort"
	"strings"
)

// Runtime describes a supported language runtime: its default pinned base
// image, the manifest filename its tooling expects, the interpreter used for
// the entrypoint, and the concrete environment variables its env flags map
// to.
type Runtime struct {
	Name         string
	DefaultBase  string
	ManifestFile string
	Interpreter  string
	InstallCmd   string
	flagEnv      map[string]map[string]string
}

// GetRuntime returns the runtime definition for the given name.
func GetRuntime(name string) (*Runtime, error) {
	switch name {
	case "python312":
		return &Runtime{
			Name:         "python312",
			DefaultBase:  "python:3.12-slim",
			ManifestFile: "requirements.txt",
			Interpreter:  "python",
			InstallCmd:   "pip install --no-cache-dir -r requirements.txt",
			flagEnv: map[string]map[string]string{
				FlagDisableBytecodeCache: {"PYTHONDONTWRITEBYTECODE": "1"},
				FlagForceUnbufferedIO:    {"PYTHONUNBUFFERED": "1"},
			},
		}, nil
	case "nodejs20":
		return &Runtime{
			Name:         "nodejs20",
			DefaultBase:  "node:20-alpine",
			ManifestFile: "package.json",
			Interpreter:  "node",
			InstallCmd:   "npm ci",
			flagEnv: map[string]map[string]string{
				FlagDisableBytecodeCache: {"NODE_COMPILE_CACHE": ""},
				// Node flushes stdout itself when not connected to a TTY
				// pipe pool; nothing to set.
				FlagForceUnbufferedIO: {},
			},
		}, nil
	default:
		return nil, fmt.Errorf("unsupported runtime: %s", name)
	}
}

// EnvForFlags maps the recognized environment flags onto the runtime's
// concrete variables. Unknown flags abort the build.
func (r *Runtime) EnvForFlags(flags []string) (map[string]string, error) {
	if flags == nil {
		flags = []string{FlagDisableBytecodeCache, FlagForceUnbufferedIO}
	}

	env := map[string]string{}
	for _, f := range flags {
		vars, ok := r.flagEnv[f]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownFlag, f)
		}
		for k, v := range vars {
			env[k] = v
		}
	}
	return env, nil
}

// Dockerfile renders the build contract as a Dockerfile for the given entry
// script and resolved environment (see EnvForFlags). The dependency manifest
// is copied and installed strictly before the source copy so source-only
// changes keep the install layer cached.
func (r *Runtime) Dockerfile(base, entryScript string, env map[string]string) string {
	if base == "" {
		base = r.DefaultBase
	}

	var b strings.Builder
	fmt.Fprintf(&b, "FROM %s\n\n", base)

	if len(env) > 0 {
		keys := make([]string, 0, len(env))
		for k := range env {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "ENV %s=%s\n", k, env[k])
		}
		b.WriteString("\n")
	}

	b.WriteString("WORKDIR /app\n\n")

	fmt.Fprintf(&b, "# Dependency manifest first (cache layer)\nCOPY %s ./\n\n", r.ManifestFile)
	fmt.Fprintf(&b, "RUN %s\n\n", r.InstallCmd)
	b.WriteString("# Application source\nCOPY . .\n\n")
	fmt.Fprintf(&b, "ENTRYPOINT [\"%s\", \"%s\"]\n", r.Interpreter, entryScript)

	return b.String()
}

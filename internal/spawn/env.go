package spawn

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// nonInteractiveDefaults are overlaid on the caller's environment so
// common tools skip their own interactive confirmation paths before the
// detector ever has to answer anything. Color output stays on: colorized
// writers are fine as long as they do not block.
func nonInteractiveDefaults() map[string]string {
	tmp := os.TempDir()
	return map[string]string{
		"DEBIAN_FRONTEND":               "noninteractive",
		"CI":                            "true",
		"FORCE_COLOR":                   "1",
		"CLICOLOR_FORCE":                "1",
		"TERM":                          "xterm-256color",
		"GIT_TERMINAL_PROMPT":           "0",
		"NPM_CONFIG_YES":                "true",
		"NPM_CONFIG_FUND":               "false",
		"NPM_CONFIG_AUDIT":              "false",
		"NPM_CONFIG_CACHE":              filepath.Join(tmp, "headlessrun-npm-cache"),
		"PIP_NO_INPUT":                  "1",
		"PIP_DISABLE_PIP_VERSION_CHECK": "1",
		"PIP_CACHE_DIR":                 filepath.Join(tmp, "headlessrun-pip-cache"),
		"COMPOSER_NO_INTERACTION":       "1",
		"YARN_ENABLE_PROGRESS_BARS":     "false",
	}
}

// BuildEnv merges, in increasing precedence: the base environment, the
// non-interactive defaults, and the command's own overlay.
func BuildEnv(base []string, overlay map[string]string) []string {
	merged := map[string]string{}
	for _, kv := range base {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}
		merged[k] = v
	}
	for k, v := range nonInteractiveDefaults() {
		merged[k] = v
	}
	for k, v := range overlay {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		merged[k] = v
	}

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+merged[k])
	}
	return out
}

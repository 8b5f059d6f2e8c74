package output

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/tdh8316/rbxsniper/internal/checker"
	"github.com/tdh8316/rbxsniper/internal/sniper"
)

const DefaultExportFile = "valid_usernames.txt"

// ValidUsernames keeps result order.
func ValidUsernames(results []sniper.Result) []string {
	out := make([]string, 0, len(results))
	for _, r := range results {
		if r.Status == checker.StatusValid {
			out = append(out, r.Username)
		}
	}
	return out
}

// ExportText joins valid usernames with newlines.
func ExportText(results []sniper.Result) string {
	return strings.Join(ValidUsernames(results), "\n")
}

// WriteExport writes the export atomically and returns the number of names.
func WriteExport(path string, results []sniper.Result) (int, error) {
	names := ValidUsernames(results)
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return 0, err
		}
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(strings.Join(names, "\n")), 0o600); err != nil {
		return 0, err
	}
	if err := os.Rename(tmp, path); err != nil {
		return 0, err
	}
	return len(names), nil
}

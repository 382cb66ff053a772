package migrations

import (
	"embed"
	"fmt"
	"io/fs"
	"sort"
)

//go:embed sql/*.sql
var files embed.FS

// GetInitialSchema returns the initial database schema
func GetInitialSchema() (string, error) {
	content, err := files.ReadFile("sql/001_initial_schema.sql")
	if err != nil {
		return "", fmt.Errorf("could not read initial schema: %w", err)
	}
	return string(content), nil
}

// All returns every schema script in apply order.
func All() ([]string, error) {
	names, err := fs.Glob(files, "sql/*.sql")
	if err != nil {
		return nil, err
	}
	sort.Strings(names)

	scripts := make([]string, 0, len(names))
	for _, name := range names {
		content, err := files.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("could not read %s: %w", name, err)
		}
		scripts = append(scripts, string(content))
	}
	return scripts, nil
}

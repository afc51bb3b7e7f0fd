package migrate

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var migrationFileRe = regexp.MustCompile(`^(\d{14})_([a-z0-9_]+)\.sql$`)

const (
	directiveUp    = "-- +goose Up"
	directiveDown  = "-- +goose Down"
	directiveBegin = "-- +goose StatementBegin"
	directiveEnd   = "-- +goose StatementEnd"
)

// Migration is one goose SQL file, identified by its YYYYMMDDHHMMSS version prefix.
type Migration struct {
	Version int64
	Name    string
	Path    string
}

// Scan lists the SQL migrations in dir in version order. Non-SQL files are ignored;
// misnamed SQL files and duplicate versions are errors.
func Scan(dir string) ([]Migration, error) {
	if dir == "" {
		return nil, fmt.Errorf("dir is required")
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir %q: %w", dir, err)
	}

	var out []Migration
	byVersion := map[int64]string{}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		m := migrationFileRe.FindStringSubmatch(e.Name())
		if m == nil {
			return nil, fmt.Errorf("invalid migration filename %q (expected YYYYMMDDHHMMSS_name.sql)", e.Name())
		}
		version, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("migration %q: %w", e.Name(), err)
		}
		if prev, ok := byVersion[version]; ok {
			return nil, fmt.Errorf("duplicate migration version %d in %q and %q", version, prev, e.Name())
		}
		byVersion[version] = e.Name()
		out = append(out, Migration{Version: version, Name: m[2], Path: filepath.Join(dir, e.Name())})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

// ValidateDir scans dir and checks the goose directives of every migration: exactly one
// Up section ahead of exactly one Down section, with StatementBegin/End blocks paired
// inside them.
func ValidateDir(dir string) error {
	migrations, err := Scan(dir)
	if err != nil {
		return err
	}
	for _, m := range migrations {
		if err := checkDirectives(m.Path); err != nil {
			return fmt.Errorf("migration %q: %w", filepath.Base(m.Path), err)
		}
	}
	return nil
}

func checkDirectives(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var (
		section string
		inBlock bool
		ups     int
		downs   int
	)
	scanner := bufio.NewScanner(f)
	for line := 1; scanner.Scan(); line++ {
		switch strings.TrimSpace(scanner.Text()) {
		case directiveUp:
			if section != "" || inBlock {
				return fmt.Errorf("line %d: unexpected Up section", line)
			}
			section = "up"
			ups++
		case directiveDown:
			if section != "up" || inBlock {
				return fmt.Errorf("line %d: Down section must follow a closed Up section", line)
			}
			section = "down"
			downs++
		case directiveBegin:
			if section == "" || inBlock {
				return fmt.Errorf("line %d: unexpected StatementBegin", line)
			}
			inBlock = true
		case directiveEnd:
			if !inBlock {
				return fmt.Errorf("line %d: StatementEnd without StatementBegin", line)
			}
			inBlock = false
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	switch {
	case inBlock:
		return fmt.Errorf("unterminated StatementBegin")
	case ups != 1:
		return fmt.Errorf("missing %q", directiveUp)
	case downs != 1:
		return fmt.Errorf("missing %q", directiveDown)
	}
	return nil
}

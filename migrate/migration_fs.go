package migrate

import (
	"bufio"
	"bytes"
	"cmp"
	"crypto/sha256"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

const (
	markerUp   = "-- +migrate Up"
	markerDown = "-- +migrate Down"
)

var filenamePattern = regexp.MustCompile(`^(\d+)_([a-zA-Z0-9_-]+)\.sql$`)

var (
	errMissingUpSection = errors.New("missing or empty Up section")
	errInvalidFilename  = errors.New("filename must look like NNNN_name.sql")
	errReservedVersion  = errors.New("version 0 is reserved for the empty schema")
	errDuplicateVersion = errors.New("duplicate migration version")
)

// ParseMigrations parses SQL migration files from an fs.FS.
// Files must be named NNNN_name.sql; the numeric prefix is the migration
// version and orders the result, the rest names it. Each file contains a
// -- +migrate Up section and an optional -- +migrate Down section.
// Files without a .sql extension are ignored.
func ParseMigrations(fsys fs.FS) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var migrations []Migration
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if filepath.Ext(entry.Name()) != ".sql" {
			continue
		}

		migration, err := parseMigrationFile(fsys, entry.Name())
		if err != nil {
			return nil, fmt.Errorf("failed to parse migration %s: %w", entry.Name(), err)
		}
		migrations = append(migrations, migration)
	}

	slices.SortFunc(migrations, func(a, b Migration) int {
		return cmp.Compare(a.Version, b.Version)
	})

	for i := 1; i < len(migrations); i++ {
		if migrations[i].Version == migrations[i-1].Version {
			return nil, fmt.Errorf("failed to validate migration %d: %w", migrations[i].Version, errDuplicateVersion)
		}
	}

	return migrations, nil
}

func parseMigrationFile(fsys fs.FS, filename string) (Migration, error) {
	matches := filenamePattern.FindStringSubmatch(filename)
	if matches == nil {
		return Migration{}, errInvalidFilename
	}

	number, err := strconv.ParseInt(matches[1], 10, 64)
	if err != nil {
		return Migration{}, fmt.Errorf("failed to parse version prefix: %w", err)
	}
	if number == 0 {
		return Migration{}, errReservedVersion
	}

	content, err := fs.ReadFile(fsys, filename)
	if err != nil {
		return Migration{}, fmt.Errorf("failed to read file: %w", err)
	}

	var upBuilder, downBuilder strings.Builder
	var currentSection *strings.Builder

	scanner := bufio.NewScanner(bytes.NewReader(content))
	for scanner.Scan() {
		line := scanner.Text()

		switch strings.TrimSpace(line) {
		case markerUp:
			currentSection = &upBuilder
			continue
		case markerDown:
			currentSection = &downBuilder
			continue
		}

		if currentSection != nil {
			currentSection.WriteString(line)
			currentSection.WriteString("\n")
		}
	}

	if err := scanner.Err(); err != nil {
		return Migration{}, fmt.Errorf("failed to read file: %w", err)
	}

	up := strings.TrimSpace(upBuilder.String())
	if up == "" {
		return Migration{}, errMissingUpSection
	}

	return Migration{
		Version:  number,
		Name:     matches[2],
		Up:       up,
		Down:     strings.TrimSpace(downBuilder.String()),
		Checksum: fmt.Sprintf("%x", sha256.Sum256(content)),
	}, nil
}

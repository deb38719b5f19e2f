// Package db embeds the catalog schema migrations.
package db

import (
	"embed"
	"io/fs"
	"path"
	"slices"

	"github.com/go-faster/errors"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Migration is a single idempotent DDL script.
type Migration struct {
	Name string
	SQL  string
}

// Migrations returns the embedded scripts ordered by file name. Names carry
// a numeric prefix, so lexical order is apply order.
func Migrations() ([]Migration, error) {
	names, err := fs.Glob(migrations, "migrations/*.sql")
	if err != nil {
		return nil, errors.Wrap(err, "list migrations")
	}
	slices.Sort(names)

	out := make([]Migration, 0, len(names))
	for _, name := range names {
		data, err := migrations.ReadFile(name)
		if err != nil {
			return nil, errors.Wrapf(err, "read %s", name)
		}
		out = append(out, Migration{Name: path.Base(name), SQL: string(data)})
	}
	return out, nil
}

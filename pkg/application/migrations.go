package application

import (
	"context"
	"embed"
	"io/fs"
	"slices"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// MigrationManager collects the schema files modules embed and applies them
// at startup. The DDL is idempotent, so a restart against an initialized
// database is a no-op.
type MigrationManager interface {
	RegisterSchema(files *embed.FS)
	CollectSchema() ([]string, error)
	Run(ctx context.Context) error
}

func NewMigrationManager(pool *pgxpool.Pool) MigrationManager {
	return &migrationManager{pool: pool}
}

type migrationManager struct {
	pool    *pgxpool.Pool
	schemas []*embed.FS
}

func (m *migrationManager) RegisterSchema(files *embed.FS) {
	m.schemas = append(m.schemas, files)
}

// CollectSchema returns the registered DDL in registration order, files
// sorted by path within each module.
func (m *migrationManager) CollectSchema() ([]string, error) {
	var out []string
	for _, schema := range m.schemas {
		var paths []string
		err := fs.WalkDir(schema, ".", func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && strings.HasSuffix(path, ".sql") {
				paths = append(paths, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		slices.Sort(paths)
		for _, path := range paths {
			content, err := schema.ReadFile(path)
			if err != nil {
				return nil, err
			}
			out = append(out, string(content))
		}
	}
	return out, nil
}

func (m *migrationManager) Run(ctx context.Context) error {
	ddl, err := m.CollectSchema()
	if err != nil {
		return err
	}
	for _, stmt := range ddl {
		if _, err := m.pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

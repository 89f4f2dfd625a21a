// Package migrate applies the embedded schema with golang-migrate.
package migrate

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"

	"chancafe-q/backend/internal/db"
)

// ErrNoChange is returned by golang-migrate when the schema is already at the target version.
// Run swallows it.
var ErrNoChange = migrate.ErrNoChange

// Direction is the migration direction accepted by Run.
type Direction string

const (
	Up   Direction = "up"
	Down Direction = "down"
)

// ParseDirection accepts "up" or "down" exactly.
func ParseDirection(s string) (Direction, error) {
	switch Direction(s) {
	case Up, Down:
		return Direction(s), nil
	}
	return "", fmt.Errorf("direction must be up or down, got %q", s)
}

// Run applies every pending migration (Up) or rolls all of them back (Down).
// Already being at the target version is not an error.
func Run(dsn string, direction string, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}
	if strings.TrimSpace(dsn) == "" {
		return errors.New("DATABASE_URL is not set")
	}
	dir, err := ParseDirection(direction)
	if err != nil {
		return err
	}

	m, err := open(dsn)
	if err != nil {
		return err
	}
	defer func() { _, _ = m.Close() }()

	switch dir {
	case Up:
		err = m.Up()
	case Down:
		err = m.Down()
	}
	if errors.Is(err, migrate.ErrNoChange) {
		log.Info("schema already at target version", zap.String("direction", string(dir)))
		return nil
	}
	if err != nil {
		return err
	}
	if v, dirty, verr := m.Version(); verr == nil {
		log.Info("migrations applied", zap.String("direction", string(dir)), zap.Uint("version", v), zap.Bool("dirty", dirty))
	} else {
		log.Info("migrations applied", zap.String("direction", string(dir)))
	}
	return nil
}

func open(dsn string) (*migrate.Migrate, error) {
	source, err := iofs.New(db.MigrationFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("migrate source: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", source, dsn)
	if err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return m, nil
}

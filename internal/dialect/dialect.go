package dialect

import (
	"fmt"
	"strings"
)

// Dialect abstracts the SQL differences between the supported target engines.
// Identifiers cannot be bound as parameters, so they are validated and quoted
// before being interpolated into statements.
type Dialect interface {
	// Name returns the driver name this dialect is registered for.
	Name() string

	// QuoteIdent quotes a validated identifier for use in SQL text.
	QuoteIdent(name string) string

	// Placeholder returns the 1-indexed bind marker for position n.
	Placeholder(n int) string

	// MaxParams returns the engine's bound-parameter ceiling per statement.
	MaxParams() int

	// TruncateStmt returns the fastest delete-all statement for a table.
	TruncateStmt(table string) string
}

// SQLite uses positional `?` markers and has no TRUNCATE.
type SQLite struct{}

func (SQLite) Name() string { return "sqlite3" }

func (SQLite) QuoteIdent(name string) string { return `"` + name + `"` }

func (SQLite) Placeholder(n int) string { return "?" }

// SQLITE_MAX_VARIABLE_NUMBER default since 3.32
func (SQLite) MaxParams() int { return 32766 }

func (d SQLite) TruncateStmt(table string) string {
	return "DELETE FROM " + d.QuoteIdent(table)
}

// Postgres uses numbered `$N` markers.
type Postgres struct{}

func (Postgres) Name() string { return "pgx" }

func (Postgres) QuoteIdent(name string) string { return `"` + name + `"` }

func (Postgres) Placeholder(n int) string { return fmt.Sprintf("$%d", n) }

// wire protocol limit on bind parameters
func (Postgres) MaxParams() int { return 65535 }

func (d Postgres) TruncateStmt(table string) string {
	return "TRUNCATE TABLE " + d.QuoteIdent(table)
}

// ForDriver returns the dialect for a database driver name.
func ForDriver(driver string) (Dialect, error) {
	switch driver {
	case "sqlite3", "sqlite":
		return SQLite{}, nil
	case "pgx", "postgres", "postgresql":
		return Postgres{}, nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

// ValuesClause builds a multi-row VALUES clause: (..),(..) with dialect
// placeholders, starting the parameter numbering at 1.
func ValuesClause(d Dialect, rows, cols int) string {
	var sb strings.Builder
	n := 1
	for r := 0; r < rows; r++ {
		if r > 0 {
			sb.WriteString(",")
		}
		sb.WriteString("(")
		for c := 0; c < cols; c++ {
			if c > 0 {
				sb.WriteString(",")
			}
			sb.WriteString(d.Placeholder(n))
			n++
		}
		sb.WriteString(")")
	}
	return sb.String()
}

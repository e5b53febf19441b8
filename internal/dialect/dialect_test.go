package dialect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForDriver(t *testing.T) {
	d, err := ForDriver("sqlite3")
	require.NoError(t, err)
	assert.Equal(t, "sqlite3", d.Name())

	d, err = ForDriver("postgres")
	require.NoError(t, err)
	assert.Equal(t, "pgx", d.Name())

	_, err = ForDriver("oracle")
	assert.Error(t, err)
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, "?", SQLite{}.Placeholder(1))
	assert.Equal(t, "?", SQLite{}.Placeholder(42))
	assert.Equal(t, "$1", Postgres{}.Placeholder(1))
	assert.Equal(t, "$42", Postgres{}.Placeholder(42))
}

func TestTruncateStmt(t *testing.T) {
	assert.Equal(t, `DELETE FROM "users"`, SQLite{}.TruncateStmt("users"))
	assert.Equal(t, `TRUNCATE TABLE "users"`, Postgres{}.TruncateStmt("users"))
}

func TestValuesClause(t *testing.T) {
	assert.Equal(t, "(?,?),(?,?)", ValuesClause(SQLite{}, 2, 2))
	assert.Equal(t, "($1,$2,$3),($4,$5,$6)", ValuesClause(Postgres{}, 2, 3))
	assert.Equal(t, "($1)", ValuesClause(Postgres{}, 1, 1))
}

func TestValidateIdent(t *testing.T) {
	valid := []string{"users", "order_items", "_tmp", "Col9"}
	for _, name := range valid {
		assert.NoError(t, ValidateIdent(name), name)
	}

	invalid := []string{"", "9col", "drop table", `x";--`, "a.b", "café"}
	for _, name := range invalid {
		assert.Error(t, ValidateIdent(name), name)
	}
}

func TestNormalizeIdent(t *testing.T) {
	cases := map[string]string{
		"First Name":        "first_name",
		"  Total (USD)  ":   "total_usd",
		"2024 Revenue":      "c_2024_revenue",
		"order-date":        "order_date",
		"a/b.c":             "a_b_c",
		"!!!":               "",
		"already_snake":     "already_snake",
		"Mixed CASE Header": "mixed_case_header",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeIdent(in), in)
	}

	// normalized output always passes validation
	for in, want := range cases {
		if want == "" {
			continue
		}
		assert.NoError(t, ValidateIdent(NormalizeIdent(in)))
	}
}

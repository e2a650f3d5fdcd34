package ledger

import (
	"fmt"
	"strconv"
	"strings"
)

// Driver names accepted by Open.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type dialect struct {
	name       string
	sqlDriver  string
	idColumn   string
	intType    string
	textType   string
	numbered   bool
	appendOnly func(table string) string
}

var sqliteDialect = dialect{
	name:      DriverSQLite,
	sqlDriver: "sqlite",
	idColumn:  "id INTEGER PRIMARY KEY",
	intType:   "INTEGER",
	textType:  "TEXT",
	appendOnly: func(table string) string {
		return fmt.Sprintf(`
CREATE TRIGGER IF NOT EXISTS %[1]s_no_update BEFORE UPDATE ON %[1]s
BEGIN
  SELECT RAISE(ABORT, '%[1]s is append-only');
END;
CREATE TRIGGER IF NOT EXISTS %[1]s_no_delete BEFORE DELETE ON %[1]s
BEGIN
  SELECT RAISE(ABORT, '%[1]s is append-only');
END;
`, table)
	},
}

var postgresDialect = dialect{
	name:      DriverPostgres,
	sqlDriver: "pgx",
	idColumn:  "id BIGSERIAL PRIMARY KEY",
	intType:   "BIGINT",
	textType:  "TEXT",
	numbered:  true,
	appendOnly: func(table string) string {
		return fmt.Sprintf(`
CREATE TRIGGER %[1]s_append_only BEFORE UPDATE OR DELETE ON %[1]s
  FOR EACH ROW EXECUTE FUNCTION chronicle_append_only();
`, table)
	},
}

const postgresAppendOnlyFunc = `
CREATE OR REPLACE FUNCTION chronicle_append_only() RETURNS trigger AS $$
BEGIN
  RAISE EXCEPTION '% is append-only', TG_TABLE_NAME;
END;
$$ LANGUAGE plpgsql;
`

func dialectFor(driver string) (dialect, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", DriverSQLite, "sqlite3":
		return sqliteDialect, nil
	case DriverPostgres, "postgresql", "pgx":
		return postgresDialect, nil
	default:
		return dialect{}, fmt.Errorf("unknown ledger driver %q", driver)
	}
}

// rebind rewrites ? placeholders into $n for dialects with numbered parameters.
func (d dialect) rebind(query string) string {
	if !d.numbered || !strings.Contains(query, "?") {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

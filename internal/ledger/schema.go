package ledger

import (
	"fmt"
	"strings"

	"chronicle/internal/models"
)

func kindTableSQL(d dialect, kind models.Kind) string {
	cols := []string{d.idColumn}
	if !kind.Singleton() {
		cols = append(cols, fmt.Sprintf("%s %s", kind.KeyColumn, keyColumnType(d, kind)))
	}
	cols = append(cols, fmt.Sprintf("date %s NOT NULL", d.intType))
	if kind.PayloadColumn != "" {
		cols = append(cols, fmt.Sprintf("%s %s", kind.PayloadColumn, d.textType))
	}
	for _, attr := range kind.Attrs {
		cols = append(cols, fmt.Sprintf("%s %s", attr, d.textType))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n  %s\n);\n", kind.Table, strings.Join(cols, ",\n  "))
	if !kind.Singleton() {
		fmt.Fprintf(&b, "CREATE INDEX IF NOT EXISTS idx_%[1]s_%[2]s ON %[1]s(%[2]s, id);\n", kind.Table, kind.KeyColumn)
	}
	return b.String()
}

func keyColumnType(d dialect, kind models.Kind) string {
	if kind.KeyType == models.KeyInteger {
		return d.intType
	}
	return d.textType
}

func schemaSQL(d dialect, kinds []models.Kind) string {
	var b strings.Builder
	for _, kind := range kinds {
		b.WriteString(kindTableSQL(d, kind))
	}
	return b.String()
}

func appendOnlySQL(d dialect, kinds []models.Kind) string {
	var b strings.Builder
	if d.name == DriverPostgres {
		b.WriteString(postgresAppendOnlyFunc)
	}
	for _, kind := range kinds {
		b.WriteString(d.appendOnly(kind.Table))
	}
	return b.String()
}

func rowColumns(kind models.Kind) []string {
	cols := []string{"id"}
	if !kind.Singleton() {
		cols = append(cols, kind.KeyColumn)
	}
	cols = append(cols, "date")
	if kind.PayloadColumn != "" {
		cols = append(cols, kind.PayloadColumn)
	}
	return append(cols, kind.Attrs...)
}

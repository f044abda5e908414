package sqlstore

import (
	"strconv"
	"strings"
)

// dialect covers the differences between the supported drivers
type dialect struct {
	name        string
	placeholder func(n int) string
}

var (
	sqliteDialect = dialect{
		name:        DriverSQLite,
		placeholder: func(int) string { return "?" },
	}
	postgresDialect = dialect{
		name:        DriverPostgres,
		placeholder: func(n int) string { return "$" + strconv.Itoa(n) },
	}
)

func dialectFor(driver string) dialect {
	if driver == DriverPostgres {
		return postgresDialect
	}
	return sqliteDialect
}

// rebind rewrites ? placeholders into the dialect's form.
// Queries in this package never contain a literal question mark.
func (d dialect) rebind(query string) string {
	if d.name == DriverSQLite {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString(d.placeholder(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

package store

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// timeLayout is fixed-width UTC so lexical order matches chronological order
// on every backend.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// dialect captures the SQL differences between the supported backends.
type dialect struct {
	name        string
	dollarBinds bool
}

func dialectFor(driver string) (dialect, error) {
	switch driver {
	case DriverSQLite:
		return dialect{name: DriverSQLite}, nil
	case DriverPostgres:
		return dialect{name: DriverPostgres, dollarBinds: true}, nil
	}
	return dialect{}, fmt.Errorf("unsupported store driver %q", driver)
}

// rebind rewrites '?' placeholders to $1..$n for PostgreSQL. Queries in this
// package never contain '?' inside string literals.
func (d dialect) rebind(query string) string {
	if !d.dollarBinds || !strings.Contains(query, "?") {
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

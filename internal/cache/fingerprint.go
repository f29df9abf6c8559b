package cache

import (
	"encoding/hex"
	"sort"
	"strings"

	"github.com/spaolacci/murmur3"

	"github.com/irouter/irouter/pkg/types"
)

// Fingerprint derives a stable cache key from the query text, the backend
// that will execute it, and the schema it runs against. Whitespace runs in
// the SQL collapse to a single space so formatting differences share an
// entry; schema or backend changes produce a different key.
func Fingerprint(sql string, backend types.BackendKind, schema types.Schema) string {
	h := murmur3.New128()
	h.Write([]byte(normalizeSQL(sql)))
	h.Write([]byte{0})
	h.Write([]byte(backend))
	h.Write([]byte{0})
	h.Write([]byte(canonicalSchema(schema)))
	sum := h.Sum(nil)
	return hex.EncodeToString(sum)
}

// normalizeSQL collapses whitespace runs to single spaces and trims the
// ends. Case is preserved: string literals make case folding unsafe.
func normalizeSQL(sql string) string {
	return strings.Join(strings.Fields(sql), " ")
}

// canonicalSchema renders a schema with sorted tables and columns so map
// iteration order never changes the fingerprint.
func canonicalSchema(schema types.Schema) string {
	tables := make([]string, 0, len(schema))
	for t := range schema {
		tables = append(tables, t)
	}
	sort.Strings(tables)

	var sb strings.Builder
	for _, t := range tables {
		cols := schema[t]
		names := make([]string, 0, len(cols))
		for c := range cols {
			names = append(names, c)
		}
		sort.Strings(names)
		sb.WriteString(t)
		sb.WriteString("(")
		for i, c := range names {
			if i > 0 {
				sb.WriteString(",")
			}
			sb.WriteString(c)
			sb.WriteString(":")
			sb.WriteString(cols[c])
		}
		sb.WriteString(");")
	}
	return sb.String()
}

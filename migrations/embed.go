// Package migrations holds the ordered SQL schema files applied at startup.
package migrations

import "embed"

// FS contains every *.sql migration, applied in lexical order.
//
//go:embed *.sql
var FS embed.FS

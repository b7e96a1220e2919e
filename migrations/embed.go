// Package migrations holds the SQL schema, compiled into the server binary.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS

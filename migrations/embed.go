// Package migrations embeds the node's SQL schema so the binary can create
// its preference store without files on disk.
package migrations

import "embed"

// FS holds every *.sql file in this directory.
//
//go:embed *.sql
var FS embed.FS

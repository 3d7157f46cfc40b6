// Package db embute as migrations e seeds SQL no binário.
package db

import "embed"

//go:embed migrations seeds
var FS embed.FS

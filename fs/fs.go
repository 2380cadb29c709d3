// Package appfs embeds the app's static files: migrations, email templates and prompts.
package appfs

import "embed"

//go:embed migrations all:templates prompts
var FS embed.FS

const (
	PostgresMigrationsDir = "migrations/postgres"
	SQLiteMigrationsDir   = "migrations/sqlite"
	EmailTemplatesDir     = "templates/email"
	PromptsDir            = "prompts"
)

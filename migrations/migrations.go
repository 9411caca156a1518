// Package migrations embeds the SQL applied by db.Migrate. Each directory is
// one migration; its .sql files run in lexical order inside one transaction.
package migrations

import "embed"

//go:embed */*.sql
var FS embed.FS

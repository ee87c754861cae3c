// Package repositories holds the raw-SQL persistence layer. Every query
// runs through database.MapPostgresError so callers only see the model
// sentinel errors.
package repositories

// rowScanner abstracts pgx.Row and pgx.Rows for shared scan helpers.
type rowScanner interface {
	Scan(dest ...any) error
}

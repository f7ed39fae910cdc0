// Package sqlerr turns database driver errors into the service's error
// shapes.
//
// Raw *pgconn.PgError values are normalized into Error (a small enum of
// the SQLSTATE classes the service cares about), then HandleError maps
// them, together with the annotation store's domain kinds, onto
// errs.HTTPError responses.
package sqlerr

// Package access describes who is asking.
//
// A Scope is the caller's identity plus the access ids it may see. The
// store never reads session state on its own: every operation receives a
// Scope, and Scope.Predicate renders the visibility rule into the SQL
// WHERE clause so LIMIT and OFFSET apply to visible rows only.
package access

import (
	"context"
	"slices"

	sq "github.com/Masterminds/squirrel"

	"github.com/deppfellow/annotations/internal/model"
)

// Scope is the read-only identity of one caller.
type Scope struct {
	// UserID is the caller's entity GUID, 0 for anonymous callers.
	UserID int64

	// AccessIDs is the set of access ids visible to the caller.
	AccessIDs []int64
}

// Anonymous is the scope of an unauthenticated caller.
func Anonymous() Scope {
	return Scope{AccessIDs: []int64{model.AccessPublic}}
}

// IsAnonymous reports whether the scope has no user behind it.
func (s Scope) IsAnonymous() bool {
	return s.UserID == 0
}

// Visible reports whether a row with the given access id and owner is
// visible in this scope. It is the in-memory twin of Predicate.
func (s Scope) Visible(accessID, ownerGUID int64) bool {
	if slices.Contains(s.AccessIDs, accessID) {
		return true
	}
	return s.UserID != 0 && accessID == model.AccessPrivate && ownerGUID == s.UserID
}

// Predicate renders the visibility rule for a table whose columns are
// qualified with prefix ("" for unqualified columns):
//
//	(access_id IN (...) OR (access_id = 0 AND owner_guid = <caller>))
//
// Anonymous callers own nothing, so the private branch is omitted for them.
func (s Scope) Predicate(prefix string) sq.Sqlizer {
	accessCol := column(prefix, "access_id")
	ownerCol := column(prefix, "owner_guid")

	ids := s.AccessIDs
	if ids == nil {
		ids = []int64{}
	}

	if s.IsAnonymous() {
		return sq.Or{sq.Eq{accessCol: ids}}
	}

	return sq.Or{
		sq.Eq{accessCol: ids},
		sq.And{
			sq.Eq{accessCol: model.AccessPrivate},
			sq.Eq{ownerCol: s.UserID},
		},
	}
}

func column(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}

// Controller resolves the scope of a caller identified by its user GUID.
type Controller interface {
	Scope(ctx context.Context, userGUID int64) (Scope, error)
}

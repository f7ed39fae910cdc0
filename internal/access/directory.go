package access

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/deppfellow/annotations/internal/database"
	"github.com/deppfellow/annotations/internal/model"
)

const membershipQuery = `SELECT access_collection_id FROM access_collection_members WHERE user_guid = $1 ORDER BY access_collection_id`

// DirectoryController builds scopes from the access collections a user
// belongs to. Every authenticated user also sees logged-in and public rows.
type DirectoryController struct {
	db database.Querier
}

func NewDirectoryController(db database.Querier) *DirectoryController {
	return &DirectoryController{db: db}
}

func (d *DirectoryController) Scope(ctx context.Context, userGUID int64) (Scope, error) {
	if userGUID <= 0 {
		return Anonymous(), nil
	}

	rows, err := d.db.Query(ctx, membershipQuery, userGUID)
	if err != nil {
		return Scope{}, fmt.Errorf("loading access collections for %d: %w", userGUID, err)
	}

	collections, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return Scope{}, fmt.Errorf("reading access collections for %d: %w", userGUID, err)
	}

	ids := append([]int64{model.AccessLoggedIn, model.AccessPublic}, collections...)

	return Scope{UserID: userGUID, AccessIDs: ids}, nil
}

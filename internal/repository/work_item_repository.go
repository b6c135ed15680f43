package repository

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/guregu/null/v5"

	"github.com/openhistory/journalkit/internal/domain"
)

// WorkItemRepository loads the built-in journable type. The journaling
// engine itself never needs it; it backs the HTTP surface, which has to
// resolve a (type, id) pair into a live journable.
type WorkItemRepository interface {
	GetByID(ctx context.Context, id int64) (domain.WorkItem, error)
}

type workItemRepository struct {
	q Querier
}

// NewWorkItemRepository creates a new work item repository.
func NewWorkItemRepository(q Querier) WorkItemRepository {
	return &workItemRepository{q: q}
}

func (r *workItemRepository) GetByID(ctx context.Context, id int64) (domain.WorkItem, error) {
	query, args, err := newQueryBuilder().
		Select("id", "subject", "description", "status_id", "author_id", "assigned_to_id", "responsible_id", "updated_at").
		From("work_items").
		Where(sq.Eq{"id": id, "deleted_at": nil}).
		ToSql()
	if err != nil {
		return domain.WorkItem{}, fmt.Errorf("failed to build work item query: %w", err)
	}

	var (
		item          domain.WorkItem
		description   null.String
		assignedToID  null.Int
		responsibleID null.Int
		updatedAt     null.Time
	)
	err = r.q.QueryRow(ctx, query, args...).Scan(
		&item.ID,
		&item.Subject,
		&description,
		&item.StatusID,
		&item.AuthorID,
		&assignedToID,
		&responsibleID,
		&updatedAt,
	)
	if err != nil {
		return domain.WorkItem{}, fmt.Errorf("failed to get work item #%d: %w", id, err)
	}

	item.Description = description.String
	if assignedToID.Valid {
		item.AssignedToID = &assignedToID.Int64
	}
	if responsibleID.Valid {
		item.ResponsibleID = &responsibleID.Int64
	}
	if updatedAt.Valid {
		item.UpdatedAt = &updatedAt.Time
	}

	return item, nil
}

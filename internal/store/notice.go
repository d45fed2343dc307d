package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"noticeboard/internal/utils"
	"noticeboard/pkg/types"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/sqlscan"
)

const noticeTableName = "notices"

var noticeColumns = utils.StructTagValues(types.Notice{})

type NoticeRepository struct {
	db *sql.DB
}

func NewNoticeRepository(db *sql.DB) *NoticeRepository {
	return &NoticeRepository{db: db}
}

// Notices returns every notice, newest first. The id tiebreak keeps
// same-second inserts in reverse insertion order.
func (r *NoticeRepository) Notices(ctx context.Context) ([]*types.Notice, error) {

	query, args, err := qb().Select(noticeColumns...).From(noticeTableName).
		OrderBy("timestamp DESC", "id DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate list notices query: %w", err)
	}

	var notices = make([]*types.Notice, 0)
	err = sqlscan.Select(ctx, r.db, &notices, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch notices: %w", err)
	}

	return notices, nil
}

func (r *NoticeRepository) Notice(ctx context.Context, noticeID int64) (*types.Notice, error) {

	query, args, err := qb().Select(noticeColumns...).From(noticeTableName).
		Where(sq.Eq{"id": noticeID}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate notice query: %w", err)
	}

	var notice = new(types.Notice)
	err = sqlscan.Get(ctx, r.db, notice, query, args...)
	if err != nil {
		if sqlscan.NotFound(err) {
			return nil, types.ErrNoticeNotFound
		}
		return nil, fmt.Errorf("failed to fetch notice %d: %w", noticeID, err)
	}

	return notice, nil
}

// CreateNotice inserts the notice, assigning its id and timestamp.
func (r *NoticeRepository) CreateNotice(ctx context.Context, notice *types.Notice) error {

	notice.Timestamp = time.Now().UTC()

	query, args, err := qb().Insert(noticeTableName).
		Columns("title", "content", "file_path", "file_type", "timestamp").
		Values(notice.Title, notice.Content, notice.FilePath, notice.FileType, notice.Timestamp).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate insert notice query: %w", err)
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to create notice: %w", err)
	}

	notice.ID, err = result.LastInsertId()

	return utils.ErrorWrapOrNil(err, "failed to read new notice id")

}

func (r *NoticeRepository) DeleteNotice(ctx context.Context, noticeID int64) error {

	query, args, err := qb().Delete(noticeTableName).Where(sq.Eq{"id": noticeID}).ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate delete notice query for notice %d: %w", noticeID, err)
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to delete notice %d: %w", noticeID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read delete result for notice %d: %w", noticeID, err)
	}

	if affected == 0 {
		return types.ErrNoticeNotFound
	}

	return nil
}

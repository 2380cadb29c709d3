package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/memoraid/memoraid/core"
	"github.com/memoraid/memoraid/core/delivery"
)

const emailColumns = `id, user_id, plan_id, plan_kind, position, title, topic, html_content, sent, send_date, sent_at`

type emailRow struct {
	ID          int64       `db:"id"`
	UserID      int64       `db:"user_id"`
	PlanID      int64       `db:"plan_id"`
	PlanKind    string      `db:"plan_kind"`
	Position    int         `db:"position"`
	Title       string      `db:"title"`
	Topic       string      `db:"topic"`
	HTMLContent null.String `db:"html_content"`
	Sent        bool        `db:"sent"`
	SendDate    time.Time   `db:"send_date"`
	SentAt      null.Time   `db:"sent_at"`
}

func (r emailRow) toEmail() delivery.Email {
	return delivery.Email{
		ID:          r.ID,
		UserID:      r.UserID,
		PlanID:      r.PlanID,
		PlanKind:    r.PlanKind,
		Position:    r.Position,
		Title:       r.Title,
		Topic:       r.Topic,
		HTMLContent: r.HTMLContent,
		Sent:        r.Sent,
		SendDate:    utc(r.SendDate),
		SentAt:      nullUTC(r.SentAt),
	}
}

func toEmails(rows []emailRow) []delivery.Email {
	out := make([]delivery.Email, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toEmail())
	}
	return out
}

type pastContentRow struct {
	ID        int64     `db:"id"`
	UserID    int64     `db:"user_id"`
	PlanID    int64     `db:"plan_id"`
	PlanKind  string    `db:"plan_kind"`
	Content   string    `db:"content"`
	CreatedAt time.Time `db:"created_at"`
}

type deliveryRepository struct {
	db core.DBExecutor
}

var _ delivery.Repository = (*deliveryRepository)(nil)

func NewDeliveryRepository(db *sqlx.DB) delivery.Repository {
	return &deliveryRepository{db: db}
}

func (repo *deliveryRepository) CreateEmails(ctx context.Context, emails []delivery.Email, exec ...core.DBExecutor) ([]delivery.Email, error) {
	db := core.GetExec(repo.db, exec)
	q := db.Rebind(`INSERT INTO emails (user_id, plan_id, plan_kind, position, title, topic, html_content, sent,
		send_date, sent_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`)

	out := make([]delivery.Email, 0, len(emails))
	for _, e := range emails {
		err := db.QueryRowxContext(ctx, q,
			e.UserID, e.PlanID, e.PlanKind, e.Position, e.Title, e.Topic, e.HTMLContent, e.Sent,
			utc(e.SendDate), nullUTC(e.SentAt),
		).Scan(&e.ID)
		if err != nil {
			return nil, errors.Wrap(err, "inserting email")
		}
		out = append(out, e)
	}
	return out, nil
}

func (repo *deliveryRepository) GetEmail(ctx context.Context, id int64, exec ...core.DBExecutor) (delivery.Email, error) {
	db := core.GetExec(repo.db, exec)
	var row emailRow
	err := sqlx.GetContext(ctx, db, &row, db.Rebind(`SELECT `+emailColumns+` FROM emails WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return delivery.Email{}, delivery.ErrNotFound
	}
	if err != nil {
		return delivery.Email{}, errors.Wrap(err, "getting email")
	}
	return row.toEmail(), nil
}

func (repo *deliveryRepository) QueryDueEmails(ctx context.Context, now time.Time, exec ...core.DBExecutor) ([]delivery.Email, error) {
	db := core.GetExec(repo.db, exec)
	var rows []emailRow
	q := db.Rebind(`SELECT ` + emailColumns + ` FROM emails WHERE sent = FALSE AND send_date <= ? ORDER BY send_date, id`)
	if err := sqlx.SelectContext(ctx, db, &rows, q, utc(now)); err != nil {
		return nil, errors.Wrap(err, "querying due emails")
	}
	return toEmails(rows), nil
}

func (repo *deliveryRepository) QueryPlanEmails(ctx context.Context, kind string, planID int64, exec ...core.DBExecutor) ([]delivery.Email, error) {
	db := core.GetExec(repo.db, exec)
	var rows []emailRow
	q := db.Rebind(`SELECT ` + emailColumns + ` FROM emails WHERE plan_kind = ? AND plan_id = ? ORDER BY position, id`)
	if err := sqlx.SelectContext(ctx, db, &rows, q, kind, planID); err != nil {
		return nil, errors.Wrap(err, "querying plan emails")
	}
	return toEmails(rows), nil
}

func (repo *deliveryRepository) CountPlanEmails(ctx context.Context, kind string, planID int64, exec ...core.DBExecutor) (total, sent int, err error) {
	db := core.GetExec(repo.db, exec)
	var counts struct {
		Total int           `db:"total"`
		Sent  sql.NullInt64 `db:"sent"`
	}
	q := db.Rebind(`SELECT COUNT(*) AS total, SUM(CASE WHEN sent THEN 1 ELSE 0 END) AS sent
		FROM emails WHERE plan_kind = ? AND plan_id = ?`)
	if err = sqlx.GetContext(ctx, db, &counts, q, kind, planID); err != nil {
		return 0, 0, errors.Wrap(err, "counting plan emails")
	}
	return counts.Total, int(counts.Sent.Int64), nil
}

func (repo *deliveryRepository) MarkEmailSent(ctx context.Context, email delivery.Email, exec ...core.DBExecutor) (bool, error) {
	db := core.GetExec(repo.db, exec)
	q := db.Rebind(`UPDATE emails SET sent = TRUE, sent_at = ?, html_content = ?, title = ? WHERE id = ? AND sent = FALSE`)
	res, err := db.ExecContext(ctx, q, nullUTC(email.SentAt), email.HTMLContent, email.Title, email.ID)
	if err != nil {
		return false, errors.Wrap(err, "marking email sent")
	}
	n, err := rowsAffected(res)
	return n == 1, err
}

func (repo *deliveryRepository) UpdateSendDate(ctx context.Context, id int64, sendDate time.Time, exec ...core.DBExecutor) error {
	db := core.GetExec(repo.db, exec)
	_, err := db.ExecContext(ctx, db.Rebind(`UPDATE emails SET send_date = ? WHERE id = ?`), utc(sendDate), id)
	return errors.Wrap(err, "updating send date")
}

func (repo *deliveryRepository) DeleteUnsentPlanEmails(ctx context.Context, kind string, planID int64, exec ...core.DBExecutor) error {
	db := core.GetExec(repo.db, exec)
	q := db.Rebind(`DELETE FROM emails WHERE plan_kind = ? AND plan_id = ? AND sent = FALSE`)
	_, err := db.ExecContext(ctx, q, kind, planID)
	return errors.Wrap(err, "deleting unsent emails")
}

func (repo *deliveryRepository) CreatePastContent(ctx context.Context, pc delivery.PastContent, exec ...core.DBExecutor) (delivery.PastContent, error) {
	db := core.GetExec(repo.db, exec)
	q := db.Rebind(`INSERT INTO past_content (user_id, plan_id, plan_kind, content, created_at)
		VALUES (?, ?, ?, ?, ?) RETURNING id`)
	err := db.QueryRowxContext(ctx, q, pc.UserID, pc.PlanID, pc.PlanKind, pc.Content, utc(pc.CreatedAt)).Scan(&pc.ID)
	if err != nil {
		return delivery.PastContent{}, errors.Wrap(err, "inserting past content")
	}
	return pc, nil
}

func (repo *deliveryRepository) QueryRecentPastContent(ctx context.Context, userID int64, kind string, limit int, exec ...core.DBExecutor) ([]delivery.PastContent, error) {
	db := core.GetExec(repo.db, exec)
	var rows []pastContentRow
	q := db.Rebind(`SELECT id, user_id, plan_id, plan_kind, content, created_at FROM past_content
		WHERE user_id = ? AND plan_kind = ? ORDER BY created_at DESC, id DESC LIMIT ?`)
	if err := sqlx.SelectContext(ctx, db, &rows, q, userID, kind, limit); err != nil {
		return nil, errors.Wrap(err, "querying past content")
	}
	out := make([]delivery.PastContent, 0, len(rows))
	for _, r := range rows {
		out = append(out, delivery.PastContent{
			ID:        r.ID,
			UserID:    r.UserID,
			PlanID:    r.PlanID,
			PlanKind:  r.PlanKind,
			Content:   r.Content,
			CreatedAt: utc(r.CreatedAt),
		})
	}
	return out, nil
}

package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/memoraid/memoraid/core"
	"github.com/memoraid/memoraid/core/newsletter"
)

const newsletterColumns = `id, user_id, email, topic, demographic, tone, frequency, plan_title, section_titles, summary,
	next_send_time, is_active, created_at`

type newsletterRow struct {
	ID            int64      `db:"id"`
	UserID        int64      `db:"user_id"`
	Email         string     `db:"email"`
	Topic         string     `db:"topic"`
	Demographic   string     `db:"demographic"`
	Tone          string     `db:"tone"`
	Frequency     string     `db:"frequency"`
	PlanTitle     string     `db:"plan_title"`
	SectionTitles stringList `db:"section_titles"`
	Summary       string     `db:"summary"`
	NextSendTime  null.Time  `db:"next_send_time"`
	IsActive      bool       `db:"is_active"`
	CreatedAt     time.Time  `db:"created_at"`
}

func (r newsletterRow) toNewsletter() newsletter.Newsletter {
	return newsletter.Newsletter{
		ID:            r.ID,
		UserID:        r.UserID,
		Email:         r.Email,
		Topic:         r.Topic,
		Demographic:   r.Demographic,
		Tone:          r.Tone,
		Frequency:     r.Frequency,
		PlanTitle:     r.PlanTitle,
		SectionTitles: []string(r.SectionTitles),
		Summary:       r.Summary,
		NextSendTime:  nullUTC(r.NextSendTime),
		IsActive:      r.IsActive,
		CreatedAt:     utc(r.CreatedAt),
	}
}

type newsletterRepository struct {
	db core.DBExecutor
}

var _ newsletter.Repository = (*newsletterRepository)(nil)

func NewNewsletterRepository(db *sqlx.DB) newsletter.Repository {
	return &newsletterRepository{db: db}
}

func (repo *newsletterRepository) CreateNewsletter(ctx context.Context, nl newsletter.Newsletter, exec ...core.DBExecutor) (newsletter.Newsletter, error) {
	db := core.GetExec(repo.db, exec)
	q := db.Rebind(`INSERT INTO newsletters (user_id, email, topic, demographic, tone, frequency, plan_title,
		section_titles, summary, next_send_time, is_active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`)
	err := db.QueryRowxContext(ctx, q,
		nl.UserID, nl.Email, nl.Topic, nl.Demographic, nl.Tone, nl.Frequency, nl.PlanTitle,
		stringList(nl.SectionTitles), nl.Summary, nullUTC(nl.NextSendTime), nl.IsActive, utc(nl.CreatedAt),
	).Scan(&nl.ID)
	if err != nil {
		return newsletter.Newsletter{}, errors.Wrap(err, "inserting newsletter")
	}
	return nl, nil
}

func (repo *newsletterRepository) GetNewsletter(ctx context.Context, id int64, exec ...core.DBExecutor) (newsletter.Newsletter, error) {
	db := core.GetExec(repo.db, exec)
	var row newsletterRow
	err := sqlx.GetContext(ctx, db, &row, db.Rebind(`SELECT `+newsletterColumns+` FROM newsletters WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return newsletter.Newsletter{}, newsletter.ErrNotFound
	}
	if err != nil {
		return newsletter.Newsletter{}, errors.Wrap(err, "getting newsletter")
	}
	return row.toNewsletter(), nil
}

func (repo *newsletterRepository) QueryUserNewsletters(ctx context.Context, userID int64, exec ...core.DBExecutor) ([]newsletter.Newsletter, error) {
	db := core.GetExec(repo.db, exec)
	var rows []newsletterRow
	q := db.Rebind(`SELECT ` + newsletterColumns + ` FROM newsletters WHERE user_id = ?
		ORDER BY next_send_time IS NULL, next_send_time DESC, id DESC`)
	if err := sqlx.SelectContext(ctx, db, &rows, q, userID); err != nil {
		return nil, errors.Wrap(err, "querying newsletters")
	}
	out := make([]newsletter.Newsletter, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toNewsletter())
	}
	return out, nil
}

func (repo *newsletterRepository) CountUserNewsletters(ctx context.Context, userID int64, exec ...core.DBExecutor) (total, active int, err error) {
	db := core.GetExec(repo.db, exec)
	var counts struct {
		Total  int           `db:"total"`
		Active sql.NullInt64 `db:"active"`
	}
	q := db.Rebind(`SELECT COUNT(*) AS total, SUM(CASE WHEN is_active THEN 1 ELSE 0 END) AS active
		FROM newsletters WHERE user_id = ?`)
	if err = sqlx.GetContext(ctx, db, &counts, q, userID); err != nil {
		return 0, 0, errors.Wrap(err, "counting newsletters")
	}
	return counts.Total, int(counts.Active.Int64), nil
}

func (repo *newsletterRepository) UpdateNewsletter(ctx context.Context, nl newsletter.Newsletter, exec ...core.DBExecutor) (newsletter.Newsletter, error) {
	db := core.GetExec(repo.db, exec)
	q := db.Rebind(`UPDATE newsletters SET email = ?, topic = ?, demographic = ?, tone = ?, frequency = ?,
		plan_title = ?, section_titles = ?, summary = ?, next_send_time = ?, is_active = ? WHERE id = ?`)
	res, err := db.ExecContext(ctx, q,
		nl.Email, nl.Topic, nl.Demographic, nl.Tone, nl.Frequency, nl.PlanTitle, stringList(nl.SectionTitles),
		nl.Summary, nullUTC(nl.NextSendTime), nl.IsActive, nl.ID,
	)
	if err != nil {
		return newsletter.Newsletter{}, errors.Wrap(err, "updating newsletter")
	}
	if n, err := rowsAffected(res); err != nil {
		return newsletter.Newsletter{}, err
	} else if n == 0 {
		return newsletter.Newsletter{}, newsletter.ErrNotFound
	}
	return nl, nil
}

func (repo *newsletterRepository) DeleteNewsletter(ctx context.Context, id int64, exec ...core.DBExecutor) error {
	db := core.GetExec(repo.db, exec)
	_, err := db.ExecContext(ctx, db.Rebind(`DELETE FROM newsletters WHERE id = ?`), id)
	return errors.Wrap(err, "deleting newsletter")
}

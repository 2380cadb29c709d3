package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/memoraid/memoraid/core"
	"github.com/memoraid/memoraid/core/studyplan"
)

const studyPlanColumns = `id, user_id, email, course_name, plan_title, summary, topics, content_types, frequency,
	max_emails, next_send_time, is_active, first_pass_complete, completed_at, created_at`

type studyPlanRow struct {
	ID                int64      `db:"id"`
	UserID            int64      `db:"user_id"`
	Email             string     `db:"email"`
	CourseName        string     `db:"course_name"`
	PlanTitle         string     `db:"plan_title"`
	Summary           string     `db:"summary"`
	Topics            stringList `db:"topics"`
	ContentTypes      stringList `db:"content_types"`
	Frequency         string     `db:"frequency"`
	MaxEmails         null.Int   `db:"max_emails"`
	NextSendTime      null.Time  `db:"next_send_time"`
	IsActive          bool       `db:"is_active"`
	FirstPassComplete bool       `db:"first_pass_complete"`
	CompletedAt       null.Time  `db:"completed_at"`
	CreatedAt         time.Time  `db:"created_at"`
}

func (r studyPlanRow) toStudyPlan() studyplan.StudyPlan {
	return studyplan.StudyPlan{
		ID:                r.ID,
		UserID:            r.UserID,
		Email:             r.Email,
		CourseName:        r.CourseName,
		PlanTitle:         r.PlanTitle,
		Summary:           r.Summary,
		Topics:            []string(r.Topics),
		ContentTypes:      []string(r.ContentTypes),
		Frequency:         r.Frequency,
		MaxEmails:         r.MaxEmails,
		NextSendTime:      nullUTC(r.NextSendTime),
		IsActive:          r.IsActive,
		FirstPassComplete: r.FirstPassComplete,
		CompletedAt:       nullUTC(r.CompletedAt),
		CreatedAt:         utc(r.CreatedAt),
	}
}

type studyPlanRepository struct {
	db core.DBExecutor
}

var _ studyplan.Repository = (*studyPlanRepository)(nil)

func NewStudyPlanRepository(db *sqlx.DB) studyplan.Repository {
	return &studyPlanRepository{db: db}
}

func (repo *studyPlanRepository) CreateStudyPlan(ctx context.Context, sp studyplan.StudyPlan, exec ...core.DBExecutor) (studyplan.StudyPlan, error) {
	db := core.GetExec(repo.db, exec)
	q := db.Rebind(`INSERT INTO study_plans (user_id, email, course_name, plan_title, summary, topics, content_types,
		frequency, max_emails, next_send_time, is_active, first_pass_complete, completed_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`)
	err := db.QueryRowxContext(ctx, q,
		sp.UserID, sp.Email, sp.CourseName, sp.PlanTitle, sp.Summary, stringList(sp.Topics), stringList(sp.ContentTypes),
		sp.Frequency, sp.MaxEmails, nullUTC(sp.NextSendTime), sp.IsActive, sp.FirstPassComplete, nullUTC(sp.CompletedAt),
		utc(sp.CreatedAt),
	).Scan(&sp.ID)
	if err != nil {
		return studyplan.StudyPlan{}, errors.Wrap(err, "inserting study plan")
	}
	return sp, nil
}

func (repo *studyPlanRepository) GetStudyPlan(ctx context.Context, id int64, exec ...core.DBExecutor) (studyplan.StudyPlan, error) {
	db := core.GetExec(repo.db, exec)
	var row studyPlanRow
	err := sqlx.GetContext(ctx, db, &row, db.Rebind(`SELECT `+studyPlanColumns+` FROM study_plans WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return studyplan.StudyPlan{}, studyplan.ErrNotFound
	}
	if err != nil {
		return studyplan.StudyPlan{}, errors.Wrap(err, "getting study plan")
	}
	return row.toStudyPlan(), nil
}

func (repo *studyPlanRepository) QueryUserStudyPlans(ctx context.Context, userID int64, exec ...core.DBExecutor) ([]studyplan.StudyPlan, error) {
	db := core.GetExec(repo.db, exec)
	var rows []studyPlanRow
	q := db.Rebind(`SELECT ` + studyPlanColumns + ` FROM study_plans WHERE user_id = ? ORDER BY created_at DESC, id DESC`)
	if err := sqlx.SelectContext(ctx, db, &rows, q, userID); err != nil {
		return nil, errors.Wrap(err, "querying study plans")
	}
	out := make([]studyplan.StudyPlan, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toStudyPlan())
	}
	return out, nil
}

func (repo *studyPlanRepository) CountUserStudyPlans(ctx context.Context, userID int64, exec ...core.DBExecutor) (total, active int, err error) {
	db := core.GetExec(repo.db, exec)
	var counts struct {
		Total  int           `db:"total"`
		Active sql.NullInt64 `db:"active"`
	}
	q := db.Rebind(`SELECT COUNT(*) AS total, SUM(CASE WHEN is_active THEN 1 ELSE 0 END) AS active
		FROM study_plans WHERE user_id = ?`)
	if err = sqlx.GetContext(ctx, db, &counts, q, userID); err != nil {
		return 0, 0, errors.Wrap(err, "counting study plans")
	}
	return counts.Total, int(counts.Active.Int64), nil
}

func (repo *studyPlanRepository) UpdateStudyPlan(ctx context.Context, sp studyplan.StudyPlan, exec ...core.DBExecutor) (studyplan.StudyPlan, error) {
	db := core.GetExec(repo.db, exec)
	q := db.Rebind(`UPDATE study_plans SET email = ?, course_name = ?, plan_title = ?, summary = ?, topics = ?,
		content_types = ?, frequency = ?, max_emails = ?, next_send_time = ?, is_active = ?, first_pass_complete = ?,
		completed_at = ? WHERE id = ?`)
	res, err := db.ExecContext(ctx, q,
		sp.Email, sp.CourseName, sp.PlanTitle, sp.Summary, stringList(sp.Topics), stringList(sp.ContentTypes),
		sp.Frequency, sp.MaxEmails, nullUTC(sp.NextSendTime), sp.IsActive, sp.FirstPassComplete,
		nullUTC(sp.CompletedAt), sp.ID,
	)
	if err != nil {
		return studyplan.StudyPlan{}, errors.Wrap(err, "updating study plan")
	}
	if n, err := rowsAffected(res); err != nil {
		return studyplan.StudyPlan{}, err
	} else if n == 0 {
		return studyplan.StudyPlan{}, studyplan.ErrNotFound
	}
	return sp, nil
}

func (repo *studyPlanRepository) DeleteStudyPlan(ctx context.Context, id int64, exec ...core.DBExecutor) error {
	db := core.GetExec(repo.db, exec)
	_, err := db.ExecContext(ctx, db.Rebind(`DELETE FROM study_plans WHERE id = ?`), id)
	return errors.Wrap(err, "deleting study plan")
}

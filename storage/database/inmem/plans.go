package inmemdb

import (
	"context"
	"sort"

	"github.com/memoraid/memoraid/core"
	"github.com/memoraid/memoraid/core/newsletter"
	"github.com/memoraid/memoraid/core/studyplan"
)

type newsletterRepository struct {
	db *DB
}

var _ newsletter.Repository = (*newsletterRepository)(nil)

func NewNewsletterRepository(db *DB) newsletter.Repository {
	return &newsletterRepository{db: db}
}

func (repo *newsletterRepository) CreateNewsletter(_ context.Context, nl newsletter.Newsletter, _ ...core.DBExecutor) (newsletter.Newsletter, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	nl.ID = repo.db.nextID()
	nl.SectionTitles = cloneStrings(nl.SectionTitles)
	repo.db.newsletters[nl.ID] = nl
	return nl, nil
}

func (repo *newsletterRepository) GetNewsletter(_ context.Context, id int64, _ ...core.DBExecutor) (newsletter.Newsletter, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	nl, ok := repo.db.newsletters[id]
	if !ok {
		return newsletter.Newsletter{}, newsletter.ErrNotFound
	}
	nl.SectionTitles = cloneStrings(nl.SectionTitles)
	return nl, nil
}

func (repo *newsletterRepository) QueryUserNewsletters(_ context.Context, userID int64, _ ...core.DBExecutor) ([]newsletter.Newsletter, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	out := make([]newsletter.Newsletter, 0)
	for _, nl := range repo.db.newsletters {
		if nl.UserID == userID {
			nl.SectionTitles = cloneStrings(nl.SectionTitles)
			out = append(out, nl)
		}
	}
	// latest next send first, unscheduled last
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].NextSendTime, out[j].NextSendTime
		if a.Valid != b.Valid {
			return a.Valid
		}
		if a.Valid && !a.Time.Equal(b.Time) {
			return a.Time.After(b.Time)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (repo *newsletterRepository) CountUserNewsletters(_ context.Context, userID int64, _ ...core.DBExecutor) (total, active int, err error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, nl := range repo.db.newsletters {
		if nl.UserID == userID {
			total++
			if nl.IsActive {
				active++
			}
		}
	}
	return total, active, nil
}

func (repo *newsletterRepository) UpdateNewsletter(_ context.Context, nl newsletter.Newsletter, _ ...core.DBExecutor) (newsletter.Newsletter, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	orig, ok := repo.db.newsletters[nl.ID]
	if !ok {
		return newsletter.Newsletter{}, newsletter.ErrNotFound
	}
	nl.UserID = orig.UserID
	nl.CreatedAt = orig.CreatedAt
	nl.SectionTitles = cloneStrings(nl.SectionTitles)
	repo.db.newsletters[nl.ID] = nl
	return nl, nil
}

func (repo *newsletterRepository) DeleteNewsletter(_ context.Context, id int64, _ ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	delete(repo.db.newsletters, id)
	return nil
}

type studyPlanRepository struct {
	db *DB
}

var _ studyplan.Repository = (*studyPlanRepository)(nil)

func NewStudyPlanRepository(db *DB) studyplan.Repository {
	return &studyPlanRepository{db: db}
}

func cloneStudyPlan(sp studyplan.StudyPlan) studyplan.StudyPlan {
	sp.Topics = cloneStrings(sp.Topics)
	sp.ContentTypes = cloneStrings(sp.ContentTypes)
	return sp
}

func (repo *studyPlanRepository) CreateStudyPlan(_ context.Context, sp studyplan.StudyPlan, _ ...core.DBExecutor) (studyplan.StudyPlan, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	sp.ID = repo.db.nextID()
	sp = cloneStudyPlan(sp)
	repo.db.studyPlans[sp.ID] = sp
	return sp, nil
}

func (repo *studyPlanRepository) GetStudyPlan(_ context.Context, id int64, _ ...core.DBExecutor) (studyplan.StudyPlan, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	sp, ok := repo.db.studyPlans[id]
	if !ok {
		return studyplan.StudyPlan{}, studyplan.ErrNotFound
	}
	return cloneStudyPlan(sp), nil
}

func (repo *studyPlanRepository) QueryUserStudyPlans(_ context.Context, userID int64, _ ...core.DBExecutor) ([]studyplan.StudyPlan, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	out := make([]studyplan.StudyPlan, 0)
	for _, sp := range repo.db.studyPlans {
		if sp.UserID == userID {
			out = append(out, cloneStudyPlan(sp))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (repo *studyPlanRepository) CountUserStudyPlans(_ context.Context, userID int64, _ ...core.DBExecutor) (total, active int, err error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, sp := range repo.db.studyPlans {
		if sp.UserID == userID {
			total++
			if sp.IsActive {
				active++
			}
		}
	}
	return total, active, nil
}

func (repo *studyPlanRepository) UpdateStudyPlan(_ context.Context, sp studyplan.StudyPlan, _ ...core.DBExecutor) (studyplan.StudyPlan, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	orig, ok := repo.db.studyPlans[sp.ID]
	if !ok {
		return studyplan.StudyPlan{}, studyplan.ErrNotFound
	}
	sp.UserID = orig.UserID
	sp.CreatedAt = orig.CreatedAt
	sp = cloneStudyPlan(sp)
	repo.db.studyPlans[sp.ID] = sp
	return sp, nil
}

func (repo *studyPlanRepository) DeleteStudyPlan(_ context.Context, id int64, _ ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	delete(repo.db.studyPlans, id)
	return nil
}

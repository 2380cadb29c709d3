// Package inmemdb implements the repositories in memory, for tests and local experiments.
package inmemdb

import (
	"context"
	"sync"

	"github.com/memoraid/memoraid/core"
	"github.com/memoraid/memoraid/core/delivery"
	"github.com/memoraid/memoraid/core/newsletter"
	"github.com/memoraid/memoraid/core/review"
	"github.com/memoraid/memoraid/core/studyplan"
	"github.com/memoraid/memoraid/core/user"
)

type tables struct {
	users       map[int64]user.User
	newsletters map[int64]newsletter.Newsletter
	studyPlans  map[int64]studyplan.StudyPlan
	emails      map[int64]delivery.Email
	pastContent map[int64]delivery.PastContent
	reviews     map[int64]review.Review
}

func newTables() tables {
	return tables{
		users:       make(map[int64]user.User),
		newsletters: make(map[int64]newsletter.Newsletter),
		studyPlans:  make(map[int64]studyplan.StudyPlan),
		emails:      make(map[int64]delivery.Email),
		pastContent: make(map[int64]delivery.PastContent),
		reviews:     make(map[int64]review.Review),
	}
}

func (t tables) clone() tables {
	c := newTables()
	for k, v := range t.users {
		c.users[k] = v
	}
	for k, v := range t.newsletters {
		c.newsletters[k] = v
	}
	for k, v := range t.studyPlans {
		c.studyPlans[k] = v
	}
	for k, v := range t.emails {
		c.emails[k] = v
	}
	for k, v := range t.pastContent {
		c.pastContent[k] = v
	}
	for k, v := range t.reviews {
		c.reviews[k] = v
	}
	return c
}

// DB holds every table behind one lock. Deleting a user cascades like the SQL schema does.
type DB struct {
	mu   sync.RWMutex
	txMu sync.Mutex
	seq  int64
	tables
}

var _ core.Transactor = (*DB)(nil)

func NewDB() *DB {
	return &DB{tables: newTables()}
}

func (db *DB) nextID() int64 {
	db.seq++
	return db.seq
}

// RunInTx serializes transactions and restores the tables when fn fails or panics.
func (db *DB) RunInTx(_ context.Context, fn func(exec core.DBExecutor) error) (err error) {
	db.txMu.Lock()
	defer db.txMu.Unlock()

	db.mu.RLock()
	snapshot := db.tables.clone()
	db.mu.RUnlock()

	restore := func() {
		db.mu.Lock()
		db.tables = snapshot
		db.mu.Unlock()
	}
	defer func() {
		if p := recover(); p != nil {
			restore()
			panic(p)
		}
	}()

	if err = fn(nil); err != nil {
		restore()
	}
	return err
}

// Reset empties every table.
func (db *DB) Reset() {
	db.mu.Lock()
	db.tables = newTables()
	db.mu.Unlock()
}

func cloneStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return append([]string{}, s...)
}

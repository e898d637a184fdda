package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/tuitionbook/core/tuition"
)

type tuitionRepository struct {
	db *tuitionTable
}

var _ tuition.Repository = (*tuitionRepository)(nil) // interface compliance check

func NewTuitionRepository(db *DB) *tuitionRepository {
	return &tuitionRepository{db: db.tuition}
}

func (repo *tuitionRepository) query(keep func(t *tuition.Tuition) bool) []tuition.Tuition {
	tuitions := make([]tuition.Tuition, 0)
	for _, t := range repo.db.table {
		if keep(t) {
			tuitions = append(tuitions, *t)
		}
	}
	sort.SliceStable(tuitions, func(i, j int) bool { return tuitions[i].CreatedAt.After(tuitions[j].CreatedAt) })
	return tuitions
}

func (repo *tuitionRepository) CreateTuition(_ context.Context, t tuition.Tuition) (tuition.Tuition, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	t.ID = uuid.New().String()
	tt := t
	repo.db.table[t.ID] = &tt
	return t, nil
}

func (repo *tuitionRepository) GetTuitionByID(_ context.Context, id string) (tuition.Tuition, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if t, ok := repo.db.table[id]; ok {
		return *t, nil
	}
	return tuition.Tuition{}, tuition.ErrNotFound
}

func (repo *tuitionRepository) QueryTuitionsByTeacher(_ context.Context, teacherID string) ([]tuition.Tuition, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return repo.query(func(t *tuition.Tuition) bool { return t.TeacherID == teacherID }), nil
}

func (repo *tuitionRepository) QueryTuitionsByStudent(_ context.Context, studentID string) ([]tuition.Tuition, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return repo.query(func(t *tuition.Tuition) bool { return t.StudentID != "" && t.StudentID == studentID }), nil
}

func (repo *tuitionRepository) UpdateTuition(_ context.Context, t tuition.Tuition) (tuition.Tuition, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.table[t.ID]
	if !ok {
		return tuition.Tuition{}, tuition.ErrNotFound
	}
	orig.StudentID = t.StudentID
	orig.StudentName = t.StudentName
	orig.StudentEmail = t.StudentEmail
	orig.UpdatedAt = t.UpdatedAt
	return *orig, nil
}

func (repo *tuitionRepository) AddTakenClasses(_ context.Context, id string, delta int, at time.Time) (int, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	t, ok := repo.db.table[id]
	if !ok {
		return 0, tuition.ErrNotFound
	}
	if t.TakenClasses+delta < 0 {
		return t.TakenClasses, tuition.ErrNegativeCount
	}
	t.TakenClasses += delta
	t.UpdatedAt = at
	return t.TakenClasses, nil
}

func (repo *tuitionRepository) ResetTakenClasses(_ context.Context, id, monthYear string, at time.Time) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	t, ok := repo.db.table[id]
	if !ok {
		return tuition.ErrNotFound
	}
	t.TakenClasses = 0
	t.CurrentMonthYear = monthYear
	t.UpdatedAt = at
	return nil
}

func (repo *tuitionRepository) DeleteTuition(_ context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.table[id]; !ok {
		return tuition.ErrNotFound
	}
	delete(repo.db.table, id)
	return nil
}

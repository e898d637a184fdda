package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/tuitionbook/core/tuition"
)

type eventRepository struct {
	db *eventTable
}

var _ tuition.EventRepository = (*eventRepository)(nil) // interface compliance check

func NewEventRepository(db *DB) *eventRepository {
	return &eventRepository{db: db.event}
}

func (repo *eventRepository) query(keep func(ev *tuition.ClassEvent) bool) []tuition.ClassEvent {
	evs := make([]tuition.ClassEvent, 0)
	for _, ev := range repo.db.table {
		if keep(ev) {
			evs = append(evs, *ev)
		}
	}
	return evs
}

// sortDesc orders evs newest first by key, the latest inserted first on ties.
func (repo *eventRepository) sortDesc(evs []tuition.ClassEvent, key func(ev tuition.ClassEvent) time.Time) {
	sort.Slice(evs, func(i, j int) bool {
		ki, kj := key(evs[i]), key(evs[j])
		if !ki.Equal(kj) {
			return ki.After(kj)
		}
		return repo.db.seq[evs[i].ID] > repo.db.seq[evs[j].ID]
	})
}

func (repo *eventRepository) AppendEvent(_ context.Context, ev tuition.ClassEvent) (tuition.ClassEvent, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	ev.ID = uuid.New().String()
	e := ev
	repo.db.table[ev.ID] = &e
	repo.db.next++
	repo.db.seq[ev.ID] = repo.db.next
	return ev, nil
}

func (repo *eventRepository) GetEventByID(_ context.Context, id string) (tuition.ClassEvent, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if ev, ok := repo.db.table[id]; ok {
		return *ev, nil
	}
	return tuition.ClassEvent{}, tuition.ErrEventNotFound
}

func (repo *eventRepository) QueryEventsByTuition(_ context.Context, tuitionID string) ([]tuition.ClassEvent, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	evs := repo.query(func(ev *tuition.ClassEvent) bool { return ev.TuitionID == tuitionID })
	repo.sortDesc(evs, func(ev tuition.ClassEvent) time.Time { return ev.CreatedAt })
	return evs, nil
}

func (repo *eventRepository) QueryClassDatesByTuition(_ context.Context, tuitionID string) ([]tuition.ClassEvent, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	evs := repo.query(func(ev *tuition.ClassEvent) bool {
		return ev.TuitionID == tuitionID && ev.ActionType == tuition.ActionIncrement
	})
	repo.sortDesc(evs, tuition.ClassEvent.EffectiveDate)
	return evs, nil
}

func (repo *eventRepository) DeleteEvent(_ context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.table[id]; !ok {
		return tuition.ErrEventNotFound
	}
	delete(repo.db.table, id)
	delete(repo.db.seq, id)
	return nil
}

func (repo *eventRepository) DeleteEventsByTuition(_ context.Context, tuitionID string) (int, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	var n int
	for id, ev := range repo.db.table {
		if ev.TuitionID == tuitionID {
			delete(repo.db.table, id)
			delete(repo.db.seq, id)
			n++
		}
	}
	return n, nil
}

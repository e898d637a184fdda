package inmemdb

import (
	"sync"

	"github.com/trezcool/tuitionbook/core/tuition"
	"github.com/trezcool/tuitionbook/core/user"
)

type (
	// DB is a process local store used by tests and the "memory" database engine.
	DB struct {
		user    *userTable
		tuition *tuitionTable
		event   *eventTable
	}

	userTable struct {
		table map[string]*user.User
		mutex sync.RWMutex
	}

	tuitionTable struct {
		table map[string]*tuition.Tuition
		mutex sync.RWMutex
	}

	eventTable struct {
		table map[string]*tuition.ClassEvent
		seq   map[string]uint64 // insertion order, breaks timestamp ties
		next  uint64
		mutex sync.RWMutex
	}
)

func Open() *DB {
	return &DB{
		user:    &userTable{table: make(map[string]*user.User)},
		tuition: &tuitionTable{table: make(map[string]*tuition.Tuition)},
		event:   &eventTable{table: make(map[string]*tuition.ClassEvent), seq: make(map[string]uint64)},
	}
}

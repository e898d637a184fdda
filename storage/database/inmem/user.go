package inmemdb

import (
	"context"

	"github.com/google/uuid"

	"github.com/trezcool/tuitionbook/core/user"
)

type userRepository struct {
	db *userTable
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *DB) *userRepository {
	return &userRepository{db: db.user}
}

func copyUser(usr *user.User) user.User {
	u := *usr
	u.LinkedTuitions = append(make([]string, 0, len(usr.LinkedTuitions)), usr.LinkedTuitions...)
	return u
}

func (repo *userRepository) CreateUser(_ context.Context, usr user.User) (user.User, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, u := range repo.db.table {
		if u.Email == usr.Email {
			return user.User{}, user.ErrEmailExists
		}
	}
	usr.ID = uuid.New().String()
	if usr.LinkedTuitions == nil {
		usr.LinkedTuitions = []string{}
	}
	u := copyUser(&usr)
	repo.db.table[usr.ID] = &u
	return usr, nil
}

func (repo *userRepository) GetUserByID(_ context.Context, id string) (user.User, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if usr, ok := repo.db.table[id]; ok {
		return copyUser(usr), nil
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) GetUserByEmail(_ context.Context, email string) (user.User, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, usr := range repo.db.table {
		if usr.Email == email {
			return copyUser(usr), nil
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) UpdateUser(_ context.Context, usr user.User) (user.User, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	origUsr, ok := repo.db.table[usr.ID]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	origUsr.Name = usr.Name
	origUsr.EmailVerified = usr.EmailVerified
	if usr.PasswordHash != nil {
		origUsr.PasswordHash = usr.PasswordHash
	}
	origUsr.UpdatedAt = usr.UpdatedAt
	origUsr.LastLogin = usr.LastLogin
	return copyUser(origUsr), nil
}

func (repo *userRepository) AddLinkedTuition(_ context.Context, uid, tuitionID string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	usr, ok := repo.db.table[uid]
	if !ok {
		return user.ErrNotFound
	}
	if !usr.HasLinkedTuition(tuitionID) {
		usr.LinkedTuitions = append(usr.LinkedTuitions, tuitionID)
	}
	return nil
}

func (repo *userRepository) RemoveLinkedTuition(_ context.Context, uid, tuitionID string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	usr, ok := repo.db.table[uid]
	if !ok {
		return user.ErrNotFound
	}
	linked := usr.LinkedTuitions[:0]
	for _, id := range usr.LinkedTuitions {
		if id != tuitionID {
			linked = append(linked, id)
		}
	}
	usr.LinkedTuitions = linked
	return nil
}

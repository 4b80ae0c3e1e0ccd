package users

import (
	"context"

	"github.com/doug-martin/goqu/v9"

	"github.com/buildit-dev/buildit/common/logger"
	"github.com/buildit-dev/buildit/common/models"
	"github.com/buildit-dev/buildit/server/store"
)

type UserStore struct {
	db    *store.DB
	table *store.Table
}

func NewStore(db *store.DB, logFactory logger.LogFactory) *UserStore {
	return &UserStore{
		db:    db,
		table: store.NewTable(db, logFactory, "users", "user_id"),
	}
}

// Create a new user and return the id the database assigned to it.
func (d *UserStore) Create(ctx context.Context, txOrNil *store.Tx, user *models.User) (models.UserID, error) {
	id, err := d.table.Create(ctx, txOrNil, user)
	if err != nil {
		return 0, err
	}
	user.ID = models.UserID(id)
	return user.ID, nil
}

// Read an existing user, looking it up by id.
// Returns a NotFound error if the user does not exist.
func (d *UserStore) Read(ctx context.Context, txOrNil *store.Tx, id models.UserID) (*models.User, error) {
	user := &models.User{}
	return user, d.table.ReadByID(ctx, txOrNil, int64(id), user)
}

// ReadByChatID reads a user by their chat platform identity.
// Returns a NotFound error if the user does not exist.
func (d *UserStore) ReadByChatID(ctx context.Context, txOrNil *store.Tx, chatID string) (*models.User, error) {
	user := &models.User{}
	return user, d.table.ReadWhere(ctx, txOrNil, user, goqu.Ex{"user_chat_id": chatID})
}

// Update an existing user. Overrides all mutable columns using the supplied model.
func (d *UserStore) Update(ctx context.Context, txOrNil *store.Tx, user *models.User) error {
	return d.table.UpdateByID(ctx, txOrNil, int64(user.ID), user)
}

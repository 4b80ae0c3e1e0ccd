package models

import (
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
)

// User associates a chat-surface identity with a code-forge login. Users are
// consulted only when authorising pipeline creation; they play no part in
// scheduling.
type User struct {
	ID        UserID `json:"id" goqu:"skipinsert,skipupdate" db:"user_id"`
	CreatedAt Time   `json:"created_at" goqu:"skipupdate" db:"user_created_at"`
	// ChatID is the chat platform identity, if the user has used the bot.
	ChatID *string `json:"chat_id,omitempty" db:"user_chat_id"`
	// ForgeLogin is the linked code-forge login, if any.
	ForgeLogin *string `json:"forge_login,omitempty" db:"user_forge_login"`
	// ForgeID is the stable numeric id of the code-forge account.
	ForgeID *int64 `json:"forge_id,omitempty" db:"user_forge_id"`
}

func (m *User) Validate() error {
	var result *multierror.Error
	if m.CreatedAt.IsZero() {
		result = multierror.Append(result, errors.New("error created at must be set"))
	}
	if m.ChatID == nil && m.ForgeLogin == nil {
		result = multierror.Append(result, errors.New("error user must have a chat id or a forge login"))
	}
	return result.ErrorOrNil()
}

package models

import "time"

// User is the local cache row mirroring a user directory record.
type User struct {
	UserID     string    `db:"user_id" json:"user_id"`
	UserName   string    `db:"user_name" json:"user_name"`
	UserAvatar *string   `db:"user_avatar" json:"user_avatar,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

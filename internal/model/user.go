package model

import "time"

// User is the owner of tasks, identified by the Telegram account that talks to the bot.
type User struct {
	ID         uint  `gorm:"primaryKey"`
	TelegramID int64 `gorm:"uniqueIndex"`
	FirstName  string
	Username   string
	Timezone   string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Location resolves the user's zone, falling back to def.
func (u User) Location(def *time.Location) *time.Location {
	if u.Timezone == "" {
		return def
	}
	loc, err := time.LoadLocation(u.Timezone)
	if err != nil {
		return def
	}
	return loc
}

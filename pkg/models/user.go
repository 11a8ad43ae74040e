package models

import "time"

type User struct {
	ID       string    `json:"userId"`
	Username string    `json:"username"`
	Online   bool      `json:"online"`
	LastSeen time.Time `json:"lastSeen"`
}

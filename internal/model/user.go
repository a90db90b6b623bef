package model

import "time"

type User struct {
	Principal    Principal
	Login        string
	PasswordHash string
	CreatedAt    time.Time
}

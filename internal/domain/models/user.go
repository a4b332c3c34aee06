package models

import "time"

// User представляет покупателя магазина (или администратора бэк-офиса)
type User struct {
	ID        int64
	Email     string
	PassHash  []byte
	IsAdmin   bool
	CreatedAt time.Time
}

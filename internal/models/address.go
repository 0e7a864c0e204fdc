package models

import "time"

// Address holds a postal address referenced by students and teachers.
type Address struct {
	ID         string    `db:"id" json:"id"`
	Street     string    `db:"street" json:"street"`
	City       string    `db:"city" json:"city"`
	Province   string    `db:"province" json:"province"`
	PostalCode string    `db:"postal_code" json:"postal_code"`
	Country    string    `db:"country" json:"country"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

package models

type User struct {
	ID       int    `json:"id,omitempty" db:"id,omitempty"`
	Name     string `json:"name,omitempty" db:"name,omitempty"`
	Username string `json:"username,omitempty" db:"username,omitempty"`
	Email    string `json:"email,omitempty" db:"email,omitempty"`
}

package models

import "time"

// AccountStatus tracks the asynchronous creation of a guardian portal
// account handle.
type AccountStatus string

const (
	AccountPending    AccountStatus = "pending"
	AccountProcessing AccountStatus = "processing"
	AccountCompleted  AccountStatus = "completed"
	AccountFailed     AccountStatus = "failed"
)

// Guardian is the financial/legal representative owning one or more
// students. Uniquely identified by email.
type Guardian struct {
	ID              string        `db:"id" json:"id"`
	Surname         string        `db:"surname" json:"surname"`
	FirstName       string        `db:"firstname" json:"firstname"`
	OtherName       string        `db:"other_name" json:"other_name,omitempty"`
	Email           string        `db:"email" json:"email"`
	Phone           string        `db:"phone" json:"phone,omitempty"`
	Address         string        `db:"address" json:"address,omitempty"`
	Relationship    string        `db:"relationship" json:"relationship"`
	PhotoPath       string        `db:"photo_path" json:"photo_path,omitempty"`
	AccountUsername *string       `db:"account_username" json:"account_username,omitempty"`
	AccountStatus   AccountStatus `db:"account_status" json:"account_status"`
	CreatedAt       time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time     `db:"updated_at" json:"updated_at"`
}

// FullName joins the guardian's name parts.
func (g *Guardian) FullName() string {
	name := g.Surname
	if g.FirstName != "" {
		name += " " + g.FirstName
	}
	if g.OtherName != "" {
		name += " " + g.OtherName
	}
	return name
}

package models

import "time"

// SchoolClass is a class arm students belong to.
type SchoolClass struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// AcademicSession is a school year.
type AcademicSession struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Current   bool      `db:"current" json:"current"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// AcademicContext is the explicit session scope passed into operations that
// need "the current session". Callers resolve it once instead of querying a
// global current-session flag ad hoc.
type AcademicContext struct {
	SessionID string `json:"session_id"`
}

package models

import "time"

// CreationMethod records which pathway produced a student record.
type CreationMethod string

const (
	CreationManual    CreationMethod = "manual"
	CreationAdmission CreationMethod = "admission"
	CreationImport    CreationMethod = "import"
	CreationMigration CreationMethod = "migration"
)

// NumberPrefix returns the student-number prefix for the creation method.
func (m CreationMethod) NumberPrefix() string {
	switch m {
	case CreationManual:
		return "M"
	case CreationAdmission:
		return "A"
	case CreationImport:
		return "I"
	case CreationMigration:
		return "G"
	default:
		return "S"
	}
}

// StudentStatus captures lifecycle states for students.
type StudentStatus string

const (
	StudentActive    StudentStatus = "active"
	StudentInactive  StudentStatus = "inactive"
	StudentGraduated StudentStatus = "graduated"
	StudentWithdrawn StudentStatus = "withdrawn"
	StudentSuspended StudentStatus = "suspended"
)

// Student is a learner registered in the institution. Records are always
// created inactive; the active status is only reachable through an explicit
// activation that re-checks guardian, class, and session presence.
type Student struct {
	ID            string         `db:"id" json:"id"`
	StudentNumber string         `db:"student_number" json:"student_number"`
	Surname       string         `db:"surname" json:"surname"`
	FirstName     string         `db:"firstname" json:"firstname"`
	OtherName     string         `db:"other_name" json:"other_name,omitempty"`
	Gender        string         `db:"gender" json:"gender"`
	DateOfBirth   time.Time      `db:"date_of_birth" json:"date_of_birth"`
	Email         string         `db:"email" json:"email,omitempty"`
	MobileNumber  string         `db:"mobile_number" json:"mobile_number,omitempty"`
	Address       string         `db:"address" json:"address,omitempty"`
	MedicalNotes  string         `db:"medical_notes" json:"medical_notes,omitempty"`
	Allergies     string         `db:"allergies" json:"allergies,omitempty"`
	GuardianID    *string        `db:"guardian_id" json:"guardian_id,omitempty"`
	ClassID       *string        `db:"class_id" json:"class_id,omitempty"`
	SessionID     *string        `db:"session_id" json:"session_id,omitempty"`
	Status        StudentStatus  `db:"status" json:"status"`
	CreatedVia    CreationMethod `db:"created_via" json:"created_via"`
	ApplicationID *string        `db:"application_id" json:"application_id,omitempty"`
	AdmissionDate *time.Time     `db:"admission_date" json:"admission_date,omitempty"`
	CreatedBy     *string        `db:"created_by" json:"created_by,omitempty"`
	CreatedAt     time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at" json:"updated_at"`
}

// FullName joins the name parts, skipping a blank other name.
func (s *Student) FullName() string {
	if s.OtherName != "" {
		return s.Surname + " " + s.FirstName + " " + s.OtherName
	}
	return s.Surname + " " + s.FirstName
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	Search    string
	ClassID   string
	Status    *StudentStatus
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

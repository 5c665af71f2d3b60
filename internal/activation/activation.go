// Package activation holds the shared activation-gating policy. It is a
// pure leaf package so admissions, finance, and results can all consult it
// without import cycles.
package activation

import "github.com/schoolsuite/sms-core-api/internal/models"

// Requirement labels, reported in this fixed order.
const (
	RequirementGuardian = "Guardian"
	RequirementClass    = "Class"
	RequirementSession  = "Academic Session"
)

// Check reports whether the student counts as active, and which structural
// requirements are unmet. Missing is computed independently of the status
// flag so callers can tell "needs activation" apart from "needs data".
func Check(student *models.Student) (bool, []string) {
	var missing []string
	if student.GuardianID == nil {
		missing = append(missing, RequirementGuardian)
	}
	if student.ClassID == nil {
		missing = append(missing, RequirementClass)
	}
	if student.SessionID == nil {
		missing = append(missing, RequirementSession)
	}

	active := len(missing) == 0 && student.Status == models.StudentActive
	return active, missing
}

// Activatable reports whether all structural requirements are met,
// regardless of the current status flag.
func Activatable(student *models.Student) bool {
	_, missing := Check(student)
	return len(missing) == 0
}

// Progress returns the share of met requirements as a percentage.
func Progress(student *models.Student) int {
	_, missing := Check(student)
	met := 3 - len(missing)
	return met * 100 / 3
}

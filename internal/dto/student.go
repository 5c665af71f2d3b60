package dto

import (
	"time"

	"github.com/schoolsuite/sms-core-api/internal/models"
)

// CreateStudentRequest is the payload for registering a student manually.
// The record starts inactive regardless of how complete it is.
type CreateStudentRequest struct {
	Surname      string    `json:"surname" validate:"required"`
	FirstName    string    `json:"firstname" validate:"required"`
	OtherName    string    `json:"other_name"`
	Gender       string    `json:"gender" validate:"required,oneof=M F"`
	DateOfBirth  time.Time `json:"date_of_birth" validate:"required"`
	Email        string    `json:"email" validate:"omitempty,email"`
	MobileNumber string    `json:"mobile_number"`
	Address      string    `json:"address"`
	MedicalNotes string    `json:"medical_notes"`
	Allergies    string    `json:"allergies"`
	GuardianID   *string   `json:"guardian_id"`
	ClassID      *string   `json:"class_id"`
	SessionID    *string   `json:"session_id"`
}

// UpdateStudentRequest carries mutable profile fields.
type UpdateStudentRequest struct {
	Surname      string  `json:"surname" validate:"required"`
	FirstName    string  `json:"firstname" validate:"required"`
	OtherName    string  `json:"other_name"`
	Email        string  `json:"email" validate:"omitempty,email"`
	MobileNumber string  `json:"mobile_number"`
	Address      string  `json:"address"`
	MedicalNotes string  `json:"medical_notes"`
	Allergies    string  `json:"allergies"`
	GuardianID   *string `json:"guardian_id"`
	ClassID      *string `json:"class_id"`
	SessionID    *string `json:"session_id"`
}

// BulkIDsRequest names the students targeted by a batch operation.
type BulkIDsRequest struct {
	StudentIDs []string `json:"student_ids" validate:"required,min=1"`
}

// BulkApplicationsRequest names the approved applications to convert into
// student records.
type BulkApplicationsRequest struct {
	ApplicationIDs []string `json:"application_ids" validate:"required,min=1"`
}

// StudentResponse decorates a student with activation state.
type StudentResponse struct {
	models.Student
	FullName            string   `json:"full_name"`
	ActivationComplete  bool     `json:"activation_complete"`
	MissingRequirements []string `json:"missing_requirements"`
	ActivationProgress  int      `json:"activation_progress"`
}

package dto

import (
	"time"

	"github.com/schoolsuite/sms-core-api/internal/models"
)

// CreateApplicationRequest is the payload for submitting a new admission
// application.
type CreateApplicationRequest struct {
	SessionID            string    `json:"session_id" validate:"required"`
	ClassID              string    `json:"class_id" validate:"required"`
	Surname              string    `json:"surname" validate:"required"`
	FirstName            string    `json:"firstname" validate:"required"`
	MiddleName           string    `json:"middle_name"`
	Gender               string    `json:"gender" validate:"required,oneof=M F"`
	DateOfBirth          time.Time `json:"date_of_birth" validate:"required"`
	MedicalNotes         string    `json:"medical_notes"`
	Allergies            string    `json:"allergies"`
	GuardianName         string    `json:"guardian_name" validate:"required"`
	GuardianEmail        string    `json:"guardian_email" validate:"required,email"`
	GuardianPhone        string    `json:"guardian_phone"`
	GuardianAddress      string    `json:"guardian_address"`
	GuardianRelationship string    `json:"guardian_relationship"`
}

// ReviewRequest starts a review or records review findings.
type ReviewRequest struct {
	Notes string `json:"notes" validate:"required"`
}

// DecisionRequest approves an application.
type DecisionRequest struct {
	Notes string `json:"notes" validate:"required"`
}

// RejectRequest rejects an application with a categorized reason.
type RejectRequest struct {
	Reason models.RejectionReason `json:"reason" validate:"required"`
	Notes  string                 `json:"notes" validate:"required"`
}

// WaitlistRequest moves an application to the waitlist.
type WaitlistRequest struct {
	Notes string `json:"notes"`
}

// PaymentReferenceRequest attaches a payment reference to an application.
type PaymentReferenceRequest struct {
	Reference string  `json:"reference" validate:"required"`
	Amount    float64 `json:"amount" validate:"gte=0"`
}

// ApplicationListRequest captures list filters from query parameters.
type ApplicationListRequest struct {
	Status    []models.ApplicationStatus
	SessionID string
	ClassID   string
	Search    string
	Page      int
	PageSize  int
}

// ApplicationResponse decorates an application with its derived full name.
type ApplicationResponse struct {
	models.AdmissionApplication
	FullName string `json:"full_name"`
}

// NewApplicationResponse builds the response wrapper.
func NewApplicationResponse(app *models.AdmissionApplication) ApplicationResponse {
	return ApplicationResponse{AdmissionApplication: *app, FullName: app.FullName()}
}

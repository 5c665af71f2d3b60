package models

import (
	"regexp"
	"time"
)

// ApplicationStatus captures workflow states for admission applications.
type ApplicationStatus string

const (
	ApplicationPending     ApplicationStatus = "pending"
	ApplicationUnderReview ApplicationStatus = "under_review"
	ApplicationApproved    ApplicationStatus = "approved"
	ApplicationRejected    ApplicationStatus = "rejected"
	ApplicationWaitlisted  ApplicationStatus = "waitlisted"
	ApplicationAccepted    ApplicationStatus = "accepted"
)

// RejectionReason enumerates accepted rejection categories.
type RejectionReason string

const (
	RejectionCapacityFull        RejectionReason = "capacity_full"
	RejectionAcademic            RejectionReason = "academic_requirements"
	RejectionAge                 RejectionReason = "age_requirement"
	RejectionDocumentsIncomplete RejectionReason = "documents_incomplete"
	RejectionInterviewFailed     RejectionReason = "interview_failed"
	RejectionBehavioral          RejectionReason = "behavioral_issues"
	RejectionFinancial           RejectionReason = "financial"
	RejectionOther               RejectionReason = "other"
)

// ValidRejectionReason reports whether the reason is one of the accepted
// categories.
func ValidRejectionReason(r RejectionReason) bool {
	switch r {
	case RejectionCapacityFull, RejectionAcademic, RejectionAge,
		RejectionDocumentsIncomplete, RejectionInterviewFailed,
		RejectionBehavioral, RejectionFinancial, RejectionOther:
		return true
	default:
		return false
	}
}

// paymentRefPattern accepts RRR, bank teller, or transaction IDs.
var paymentRefPattern = regexp.MustCompile(`^[A-Za-z0-9]{6,20}$`)

// ValidPaymentReference validates the payment reference format.
func ValidPaymentReference(ref string) bool {
	return paymentRefPattern.MatchString(ref)
}

// AdmissionApplication is a prospective student application. The application
// number is assigned once at creation and never changes.
type AdmissionApplication struct {
	ID                string            `db:"id" json:"id"`
	ApplicationNumber string            `db:"application_number" json:"application_number"`
	ApplicationDate   time.Time         `db:"application_date" json:"application_date"`
	SessionID         *string           `db:"session_id" json:"session_id,omitempty"`
	ClassID           *string           `db:"class_id" json:"class_id,omitempty"`

	GuardianName         string `db:"guardian_name" json:"guardian_name"`
	GuardianEmail        string `db:"guardian_email" json:"guardian_email"`
	GuardianPhone        string `db:"guardian_phone" json:"guardian_phone"`
	GuardianAddress      string `db:"guardian_address" json:"guardian_address"`
	GuardianRelationship string `db:"guardian_relationship" json:"guardian_relationship"`

	FirstName    string    `db:"firstname" json:"firstname"`
	MiddleName   string    `db:"middle_name" json:"middle_name,omitempty"`
	Surname      string    `db:"surname" json:"surname"`
	Gender       string    `db:"gender" json:"gender"`
	DateOfBirth  time.Time `db:"date_of_birth" json:"date_of_birth"`
	MedicalNotes string    `db:"medical_notes" json:"medical_notes,omitempty"`
	Allergies    string    `db:"allergies" json:"allergies,omitempty"`

	Status ApplicationStatus `db:"status" json:"status"`

	PaymentReference  string     `db:"payment_reference" json:"payment_reference,omitempty"`
	PaymentVerified   bool       `db:"payment_verified" json:"payment_verified"`
	PaymentVerifiedBy *string    `db:"payment_verified_by" json:"payment_verified_by,omitempty"`
	PaymentVerifiedAt *time.Time `db:"payment_verified_at" json:"payment_verified_at,omitempty"`
	PaymentAmount     float64    `db:"payment_amount" json:"payment_amount"`

	ReviewedBy  *string    `db:"reviewed_by" json:"reviewed_by,omitempty"`
	ReviewedAt  *time.Time `db:"reviewed_at" json:"reviewed_at,omitempty"`
	ReviewNotes string     `db:"review_notes" json:"review_notes,omitempty"`

	DecidedBy       *string         `db:"decided_by" json:"decided_by,omitempty"`
	DecidedAt       *time.Time      `db:"decided_at" json:"decided_at,omitempty"`
	DecisionNotes   string          `db:"decision_notes" json:"decision_notes,omitempty"`
	RejectionReason RejectionReason `db:"rejection_reason" json:"rejection_reason,omitempty"`

	LetterSent         bool       `db:"letter_sent" json:"letter_sent"`
	LetterSentAt       *time.Time `db:"letter_sent_at" json:"letter_sent_at,omitempty"`
	GuardianAccepted   bool       `db:"guardian_accepted" json:"guardian_accepted"`
	GuardianAcceptedAt *time.Time `db:"guardian_accepted_at" json:"guardian_accepted_at,omitempty"`

	WaitlistPosition *int   `db:"waitlist_position" json:"waitlist_position,omitempty"`
	WaitlistNotes    string `db:"waitlist_notes" json:"waitlist_notes,omitempty"`

	StudentID *string `db:"student_id" json:"student_id,omitempty"`

	CreatedBy *string   `db:"created_by" json:"created_by,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// FullName joins the applicant's name parts.
func (a *AdmissionApplication) FullName() string {
	if a.MiddleName != "" {
		return a.Surname + " " + a.FirstName + " " + a.MiddleName
	}
	return a.Surname + " " + a.FirstName
}

// Review-log action labels.
const (
	ReviewActionStatusChange     = "STATUS_CHANGE"
	ReviewActionStudentCreated   = "STUDENT_CREATED"
	ReviewActionStudentActivated = "STUDENT_ACTIVATED"
	ReviewActionWaitlistUpdate   = "WAITLIST_UPDATE"
	ReviewActionLetterSent       = "LETTER_SENT"
)

// AdmissionReviewLog is the append-only audit trail for application status
// changes. One row exists per transition, written in the same transaction.
type AdmissionReviewLog struct {
	ID            string            `db:"id" json:"id"`
	ApplicationID string            `db:"application_id" json:"application_id"`
	ActorID       *string           `db:"actor_id" json:"actor_id,omitempty"`
	Action        string            `db:"action" json:"action"`
	Notes         string            `db:"notes" json:"notes,omitempty"`
	FromStatus    ApplicationStatus `db:"from_status" json:"from_status"`
	ToStatus      ApplicationStatus `db:"to_status" json:"to_status"`
	CreatedAt     time.Time         `db:"created_at" json:"created_at"`
}

// ApplicationFilter constrains listing queries.
type ApplicationFilter struct {
	Status    []ApplicationStatus
	SessionID string
	ClassID   string
	Search    string
	Page      int
	PageSize  int
}

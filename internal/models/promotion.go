package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// PromotionLog is the append-only record of one successful class move.
type PromotionLog struct {
	ID          string    `db:"id" json:"id"`
	BatchID     string    `db:"batch_id" json:"batch_id"`
	StudentID   string    `db:"student_id" json:"student_id"`
	FromClassID string    `db:"from_class_id" json:"from_class_id"`
	ToClassID   string    `db:"to_class_id" json:"to_class_id"`
	SessionID   string    `db:"session_id" json:"session_id"`
	PromotedBy  *string   `db:"promoted_by" json:"promoted_by,omitempty"`
	Notes       string    `db:"notes" json:"notes,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// PromotionPayload is the JSON-serializable argument set of a promotion job.
type PromotionPayload struct {
	StudentIDs  []string `json:"student_ids"`
	FromClassID string   `json:"from_class_id"`
	ToClassID   string   `json:"to_class_id"`
	SessionID   string   `json:"session_id"`
	PromotedBy  string   `json:"promoted_by,omitempty"`
}

// Value marshals the payload to JSON for persistence.
func (p PromotionPayload) Value() (driver.Value, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal promotion payload: %w", err)
	}
	return data, nil
}

// Scan unmarshals JSON payloads into the struct.
func (p *PromotionPayload) Scan(value interface{}) error {
	if value == nil {
		*p = PromotionPayload{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for PromotionPayload", value)
	}
	if len(data) == 0 {
		*p = PromotionPayload{}
		return nil
	}
	if err := json.Unmarshal(data, p); err != nil {
		return fmt.Errorf("unmarshal promotion payload: %w", err)
	}
	return nil
}

// PromotionBatch is the pollable record of one asynchronous promotion run.
type PromotionBatch struct {
	ID           string           `db:"id" json:"id"`
	Payload      PromotionPayload `db:"payload" json:"payload"`
	Status       JobStatus        `db:"status" json:"status"`
	Promoted     int              `db:"promoted" json:"promoted"`
	Failed       int              `db:"failed" json:"failed"`
	ErrorMessage *string          `db:"error_message" json:"error_message,omitempty"`
	CreatedBy    *string          `db:"created_by" json:"created_by,omitempty"`
	CreatedAt    time.Time        `db:"created_at" json:"created_at"`
	StartedAt    *time.Time       `db:"started_at" json:"started_at,omitempty"`
	CompletedAt  *time.Time       `db:"completed_at" json:"completed_at,omitempty"`
}

package models

import "gorm.io/datatypes"

// Exam generation sources.
const (
	ExamSourceManual = "manual"
	ExamSourceAI     = "ai"
)

// Exam is a generated or hand-written assessment owned by a user.
type Exam struct {
	BaseModel

	OwnerID string `gorm:"type:uuid;not null;index" json:"owner_id"`
	Owner   *User  `gorm:"foreignKey:OwnerID" json:"-"`

	Title       string `gorm:"not null" json:"title"`
	Subject     string `gorm:"index" json:"subject"`
	Difficulty  string `json:"difficulty"`
	Source      string `gorm:"not null;default:manual" json:"source"`
	Description string `json:"description"`

	Questions []ExamQuestion `gorm:"foreignKey:ExamID" json:"questions,omitempty"`

	Tombstone
}

// ExamQuestion is one question inside an exam. The payload keeps the raw
// question structure (choices, answer key, explanation) as produced by the
// generator.
type ExamQuestion struct {
	BaseModel

	ExamID   string         `gorm:"type:uuid;not null;index" json:"exam_id"`
	Position int            `gorm:"not null" json:"position"`
	Prompt   string         `gorm:"not null" json:"prompt"`
	Payload  datatypes.JSON `json:"payload"`

	Tombstone
}

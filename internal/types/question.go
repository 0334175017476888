package types

import "time"

// Question is a single exam question in its canonical stored form.
// QuestionID is a 6-digit numeric string assigned at ingestion time.
type Question struct {
	QuestionID string `gorm:"column:question_id;primaryKey" json:"question_id"`
	Text       string `gorm:"column:text;not null" json:"text"`
	Base64     string `gorm:"column:base64" json:"base64,omitempty"`
	Subject    string `gorm:"column:subject;not null;index" json:"subject"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Question) TableName() string { return "question" }

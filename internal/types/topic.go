package types

import "strings"

// Topic is one entry of the closed classification vocabulary, e.g.
// "B1.2: Cell Structure". TopicID is the code before the colon ("B1.2").
type Topic struct {
	TopicID string `gorm:"column:topic_id;primaryKey" json:"topic_id"`
	Name    string `gorm:"column:name;not null" json:"name"`
	Subject string `gorm:"column:subject;not null;index" json:"subject"`
}

func (Topic) TableName() string { return "topic" }

// TopicCode extracts the code prefix from a full topic name. Names without
// a colon map to themselves.
func TopicCode(name string) string {
	code, _, _ := strings.Cut(name, ":")
	return strings.TrimSpace(code)
}

package types

// Classification links a question to one topic of its subject vocabulary.
// A question carries one row per assigned topic.
type Classification struct {
	QuestionID string `gorm:"column:question_id;primaryKey" json:"question_id"`
	TopicID    string `gorm:"column:topic_id;primaryKey" json:"topic_id"`
}

func (Classification) TableName() string { return "classification" }

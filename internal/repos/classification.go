package repos

import (
	"gorm.io/gorm"

	"github.com/hschub/hschub-backend/internal/platform/logger"
	"github.com/hschub/hschub-backend/internal/types"
)

type ClassificationRepo interface {
	// ReplaceForQuestion removes every link of the question and writes the
	// given topic set. An empty set just clears the links.
	ReplaceForQuestion(tx *gorm.DB, questionID string, topicIDs []string) error
	GetByQuestionID(tx *gorm.DB, questionID string) ([]types.Classification, error)
	GetByQuestionIDs(tx *gorm.DB, questionIDs []string) ([]types.Classification, error)
	GetByTopicIDs(tx *gorm.DB, topicIDs []string) ([]types.Classification, error)
	GetAll(tx *gorm.DB) ([]types.Classification, error)
	// QuestionIDsWithAllTopics returns questions linked to EVERY one of the
	// given topics.
	QuestionIDsWithAllTopics(tx *gorm.DB, topicIDs []string) ([]string, error)
}

type classificationRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewClassificationRepo(db *gorm.DB, log *logger.Logger) ClassificationRepo {
	return &classificationRepo{db: db, log: log.With("repo", "ClassificationRepo")}
}

func (r *classificationRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *classificationRepo) ReplaceForQuestion(tx *gorm.DB, questionID string, topicIDs []string) error {
	return r.conn(tx).Transaction(func(txn *gorm.DB) error {
		if err := txn.Where("question_id = ?", questionID).
			Delete(&types.Classification{}).Error; err != nil {
			return err
		}
		if len(topicIDs) == 0 {
			return nil
		}
		rows := make([]types.Classification, 0, len(topicIDs))
		seen := make(map[string]struct{}, len(topicIDs))
		for _, tid := range topicIDs {
			if tid == "" {
				continue
			}
			if _, dup := seen[tid]; dup {
				continue
			}
			seen[tid] = struct{}{}
			rows = append(rows, types.Classification{QuestionID: questionID, TopicID: tid})
		}
		if len(rows) == 0 {
			return nil
		}
		return txn.Create(&rows).Error
	})
}

func (r *classificationRepo) GetByQuestionID(tx *gorm.DB, questionID string) ([]types.Classification, error) {
	var out []types.Classification
	if err := r.conn(tx).Where("question_id = ?", questionID).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *classificationRepo) GetByQuestionIDs(tx *gorm.DB, questionIDs []string) ([]types.Classification, error) {
	if len(questionIDs) == 0 {
		return []types.Classification{}, nil
	}
	var out []types.Classification
	if err := r.conn(tx).Where("question_id IN ?", questionIDs).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *classificationRepo) GetByTopicIDs(tx *gorm.DB, topicIDs []string) ([]types.Classification, error) {
	if len(topicIDs) == 0 {
		return []types.Classification{}, nil
	}
	var out []types.Classification
	if err := r.conn(tx).Where("topic_id IN ?", topicIDs).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *classificationRepo) GetAll(tx *gorm.DB) ([]types.Classification, error) {
	var out []types.Classification
	if err := r.conn(tx).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *classificationRepo) QuestionIDsWithAllTopics(tx *gorm.DB, topicIDs []string) ([]string, error) {
	if len(topicIDs) == 0 {
		return []string{}, nil
	}
	var out []string
	if err := r.conn(tx).Model(&types.Classification{}).
		Where("topic_id IN ?", topicIDs).
		Group("question_id").
		Having("COUNT(DISTINCT topic_id) = ?", len(topicIDs)).
		Pluck("question_id", &out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

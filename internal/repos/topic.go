package repos

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/hschub/hschub-backend/internal/platform/logger"
	"github.com/hschub/hschub-backend/internal/types"
)

type TopicRepo interface {
	GetBySubject(tx *gorm.DB, subject string) ([]types.Topic, error)
	GetByIDs(tx *gorm.DB, topicIDs []string) ([]types.Topic, error)
	GetByNames(tx *gorm.DB, names []string) ([]types.Topic, error)
	DistinctSubjects(tx *gorm.DB) ([]string, error)
	// ReplaceAll swaps the whole vocabulary of one subject in a single
	// transaction. Used by the seeding tool.
	ReplaceAll(tx *gorm.DB, subject string, topics []types.Topic) error
}

type topicRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTopicRepo(db *gorm.DB, log *logger.Logger) TopicRepo {
	return &topicRepo{db: db, log: log.With("repo", "TopicRepo")}
}

func (r *topicRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *topicRepo) GetBySubject(tx *gorm.DB, subject string) ([]types.Topic, error) {
	var out []types.Topic
	if err := r.conn(tx).
		Where("subject = ?", subject).
		Order("topic_id").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *topicRepo) GetByIDs(tx *gorm.DB, topicIDs []string) ([]types.Topic, error) {
	if len(topicIDs) == 0 {
		return []types.Topic{}, nil
	}
	var out []types.Topic
	if err := r.conn(tx).Where("topic_id IN ?", topicIDs).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *topicRepo) GetByNames(tx *gorm.DB, names []string) ([]types.Topic, error) {
	if len(names) == 0 {
		return []types.Topic{}, nil
	}
	var out []types.Topic
	if err := r.conn(tx).Where("name IN ?", names).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *topicRepo) DistinctSubjects(tx *gorm.DB) ([]string, error) {
	var out []string
	if err := r.conn(tx).Model(&types.Topic{}).
		Distinct("subject").
		Order("subject").
		Pluck("subject", &out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *topicRepo) ReplaceAll(tx *gorm.DB, subject string, topics []types.Topic) error {
	return r.conn(tx).Transaction(func(txn *gorm.DB) error {
		if err := txn.Where("subject = ?", subject).Delete(&types.Topic{}).Error; err != nil {
			return err
		}
		if len(topics) == 0 {
			return nil
		}
		return txn.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "topic_id"}},
			UpdateAll: true,
		}).Create(&topics).Error
	})
}

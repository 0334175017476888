package repos

import (
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/hschub/hschub-backend/internal/platform/logger"
	"github.com/hschub/hschub-backend/internal/types"
)

type QuestionRepo interface {
	// UpsertIgnoreExisting inserts the question only when its ID is not yet
	// present. Existing rows are left untouched.
	UpsertIgnoreExisting(tx *gorm.DB, q *types.Question) error
	GetByID(tx *gorm.DB, questionID string) (*types.Question, error)
	GetByIDs(tx *gorm.DB, questionIDs []string) ([]types.Question, error)
	GetBySubject(tx *gorm.DB, subject string) ([]types.Question, error)
	GetAll(tx *gorm.DB) ([]types.Question, error)
	ExistsByID(tx *gorm.DB, questionID string) (bool, error)
}

type questionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewQuestionRepo(db *gorm.DB, log *logger.Logger) QuestionRepo {
	return &questionRepo{db: db, log: log.With("repo", "QuestionRepo")}
}

func (r *questionRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *questionRepo) UpsertIgnoreExisting(tx *gorm.DB, q *types.Question) error {
	if q == nil {
		return fmt.Errorf("question is nil")
	}
	if q.QuestionID == "" {
		return fmt.Errorf("question_id is empty")
	}
	res := r.conn(tx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "question_id"}},
			DoNothing: true,
		}).
		Create(q)
	if res.Error != nil {
		r.log.Error("Failed to upsert question", "question_id", q.QuestionID, "error", res.Error)
		return res.Error
	}
	return nil
}

func (r *questionRepo) GetByID(tx *gorm.DB, questionID string) (*types.Question, error) {
	var q types.Question
	if err := r.conn(tx).First(&q, "question_id = ?", questionID).Error; err != nil {
		return nil, err
	}
	return &q, nil
}

func (r *questionRepo) GetByIDs(tx *gorm.DB, questionIDs []string) ([]types.Question, error) {
	if len(questionIDs) == 0 {
		return []types.Question{}, nil
	}
	var out []types.Question
	if err := r.conn(tx).Where("question_id IN ?", questionIDs).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *questionRepo) GetBySubject(tx *gorm.DB, subject string) ([]types.Question, error) {
	var out []types.Question
	if err := r.conn(tx).Where("subject = ?", subject).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *questionRepo) GetAll(tx *gorm.DB) ([]types.Question, error) {
	var out []types.Question
	if err := r.conn(tx).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *questionRepo) ExistsByID(tx *gorm.DB, questionID string) (bool, error) {
	var count int64
	if err := r.conn(tx).Model(&types.Question{}).
		Where("question_id = ?", questionID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

package repository

import (
	"errors"
	"exam_portal_backend/internal/model"

	"gorm.io/gorm"
)

// ErrForeignChild 请求中携带了不属于该试卷的题目/选项 ID
var ErrForeignChild = errors.New("question or option does not belong to this exam")

type ExamRepository struct {
	DB *gorm.DB
}

func NewExamRepository(db *gorm.DB) *ExamRepository {
	return &ExamRepository{DB: db}
}

func orderedQuestions(db *gorm.DB) *gorm.DB {
	return db.Order("display_order asc, created_at asc")
}

func orderedOptions(db *gorm.DB) *gorm.DB {
	return db.Order("display_order asc, created_at asc")
}

// Create 在同一事务中创建试卷、题目和选项
func (r *ExamRepository) Create(exam *model.Exam) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		questions := exam.Questions
		exam.Questions = nil
		if err := tx.Create(exam).Error; err != nil {
			return err
		}
		if err := insertQuestions(tx, exam.ID, questions); err != nil {
			return err
		}
		exam.Questions = questions
		return nil
	})
}

func insertQuestions(tx *gorm.DB, examID string, questions []model.Question) error {
	for i := range questions {
		q := &questions[i]
		q.ID = ""
		q.ExamID = examID
		options := q.Options
		q.Options = nil
		if err := tx.Create(q).Error; err != nil {
			return err
		}
		for j := range options {
			options[j].ID = ""
			options[j].QuestionID = q.ID
			if err := tx.Create(&options[j]).Error; err != nil {
				return err
			}
		}
		q.Options = options
	}
	return nil
}

func (r *ExamRepository) FindByID(id string) (*model.Exam, error) {
	var exam model.Exam
	err := r.DB.First(&exam, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &exam, nil
}

// FindWithQuestions 按展示顺序加载题目和选项
func (r *ExamRepository) FindWithQuestions(id string) (*model.Exam, error) {
	var exam model.Exam
	err := r.DB.
		Preload("Questions", orderedQuestions).
		Preload("Questions.Options", orderedOptions).
		First(&exam, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &exam, nil
}

// FindQuestionsByIDs 包含已删除的题目，用于展示历史作答
func (r *ExamRepository) FindQuestionsByIDs(ids []string) ([]model.Question, error) {
	var qs []model.Question
	if len(ids) == 0 {
		return qs, nil
	}
	err := r.DB.Unscoped().
		Preload("Options", func(db *gorm.DB) *gorm.DB { return orderedOptions(db.Unscoped()) }).
		Where("id IN ?", ids).
		Find(&qs).Error
	return qs, err
}

func (r *ExamRepository) Update(exam *model.Exam) error {
	return r.DB.Model(exam).Select("title", "header", "duration_seconds", "is_published", "published_at").Updates(exam).Error
}

// ReplaceQuestions 以请求为准整体替换题目：
// 不在请求中的旧题目/选项被删除，带 ID 的更新，不带 ID 的新建。
func (r *ExamRepository) ReplaceQuestions(examID string, incoming []model.Question) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		var existing []model.Question
		if err := tx.Preload("Options").Where("exam_id = ?", examID).Find(&existing).Error; err != nil {
			return err
		}
		existingByID := make(map[string]*model.Question, len(existing))
		for i := range existing {
			existingByID[existing[i].ID] = &existing[i]
		}

		keep := make(map[string]bool, len(incoming))
		for _, q := range incoming {
			if q.ID == "" {
				continue
			}
			if _, ok := existingByID[q.ID]; !ok {
				return ErrForeignChild
			}
			keep[q.ID] = true
		}

		var removed []string
		for id := range existingByID {
			if !keep[id] {
				removed = append(removed, id)
			}
		}
		if len(removed) > 0 {
			if err := tx.Where("question_id IN ?", removed).Delete(&model.Option{}).Error; err != nil {
				return err
			}
			if err := tx.Where("id IN ?", removed).Delete(&model.Question{}).Error; err != nil {
				return err
			}
		}

		for i := range incoming {
			q := incoming[i]
			if q.ID == "" {
				if err := insertQuestions(tx, examID, []model.Question{q}); err != nil {
					return err
				}
				continue
			}
			if err := tx.Model(&model.Question{}).Where("id = ?", q.ID).Updates(map[string]interface{}{
				"text":          q.Text,
				"type":          q.Type,
				"display_order": q.Order,
				"points":        q.Points,
			}).Error; err != nil {
				return err
			}
			if err := replaceOptions(tx, existingByID[q.ID], q.Options); err != nil {
				return err
			}
		}
		return nil
	})
}

func replaceOptions(tx *gorm.DB, current *model.Question, incoming []model.Option) error {
	currentIDs := make(map[string]bool, len(current.Options))
	for _, o := range current.Options {
		currentIDs[o.ID] = true
	}

	keep := make(map[string]bool, len(incoming))
	for _, o := range incoming {
		if o.ID == "" {
			continue
		}
		if !currentIDs[o.ID] {
			return ErrForeignChild
		}
		keep[o.ID] = true
	}

	var removed []string
	for id := range currentIDs {
		if !keep[id] {
			removed = append(removed, id)
		}
	}
	if len(removed) > 0 {
		if err := tx.Where("id IN ?", removed).Delete(&model.Option{}).Error; err != nil {
			return err
		}
	}

	for i := range incoming {
		o := incoming[i]
		if o.ID == "" {
			o.QuestionID = current.ID
			if err := tx.Create(&o).Error; err != nil {
				return err
			}
			continue
		}
		if err := tx.Model(&model.Option{}).Where("id = ?", o.ID).Updates(map[string]interface{}{
			"text":          o.Text,
			"is_correct":    o.IsCorrect,
			"display_order": o.Order,
		}).Error; err != nil {
			return err
		}
	}
	return nil
}

// Delete 删除试卷及其题目、选项、作答记录和提交
func (r *ExamRepository) Delete(id string) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		var submissionIDs []string
		if err := tx.Model(&model.Submission{}).Where("exam_id = ?", id).Pluck("id", &submissionIDs).Error; err != nil {
			return err
		}
		if len(submissionIDs) > 0 {
			if err := tx.Unscoped().Where("submission_id IN ?", submissionIDs).Delete(&model.Answer{}).Error; err != nil {
				return err
			}
			if err := tx.Unscoped().Where("exam_id = ?", id).Delete(&model.Submission{}).Error; err != nil {
				return err
			}
		}

		var questionIDs []string
		if err := tx.Model(&model.Question{}).Where("exam_id = ?", id).Pluck("id", &questionIDs).Error; err != nil {
			return err
		}
		if len(questionIDs) > 0 {
			if err := tx.Where("question_id IN ?", questionIDs).Delete(&model.Option{}).Error; err != nil {
				return err
			}
			if err := tx.Where("exam_id = ?", id).Delete(&model.Question{}).Error; err != nil {
				return err
			}
		}

		if err := tx.Model(&model.ScheduledExam{}).Where("exam_id = ?", id).Update("exam_id", nil).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Exam{}, "id = ?", id).Error
	})
}

type ExamListRow struct {
	model.Exam
	QuestionCount   int `json:"questionCount"`
	SubmissionCount int `json:"submissionCount"`
}

const examCountColumns = "exams.*, " +
	"(SELECT COUNT(*) FROM questions q WHERE q.exam_id = exams.id AND q.deleted_at IS NULL) AS question_count, " +
	"(SELECT COUNT(*) FROM submissions s WHERE s.exam_id = exams.id AND s.deleted_at IS NULL) AS submission_count"

func (r *ExamRepository) ListByTeacher(teacherID uint) ([]ExamListRow, error) {
	var rows []ExamListRow
	err := r.DB.Model(&model.Exam{}).
		Select(examCountColumns).
		Where("exams.teacher_id = ?", teacherID).
		Order("exams.created_at desc").
		Scan(&rows).Error
	return rows, err
}

func (r *ExamRepository) ListAll() ([]ExamListRow, error) {
	var rows []ExamListRow
	err := r.DB.Model(&model.Exam{}).
		Select(examCountColumns).
		Order("exams.created_at desc").
		Scan(&rows).Error
	return rows, err
}

func (r *ExamRepository) ListPublished() ([]ExamListRow, error) {
	var rows []ExamListRow
	err := r.DB.Model(&model.Exam{}).
		Select(examCountColumns).
		Where("exams.is_published = ?", true).
		Order("exams.published_at desc, exams.created_at desc").
		Scan(&rows).Error
	return rows, err
}

func (r *ExamRepository) FindByTeacherAndTitle(teacherID uint, title string) (*model.Exam, error) {
	var exam model.Exam
	err := r.DB.Where("teacher_id = ? AND title = ?", teacherID, title).First(&exam).Error
	if err != nil {
		return nil, err
	}
	return &exam, nil
}

func (r *ExamRepository) Count() (int64, error) {
	var n int64
	err := r.DB.Model(&model.Exam{}).Count(&n).Error
	return n, err
}

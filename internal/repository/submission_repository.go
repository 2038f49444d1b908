package repository

import (
	"errors"
	"exam_portal_backend/internal/model"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrDuplicateSubmission (student, exam) 已存在作答记录
var ErrDuplicateSubmission = errors.New("submission already exists for student and exam")

type SubmissionRepository struct {
	DB *gorm.DB
}

func NewSubmissionRepository(db *gorm.DB) *SubmissionRepository {
	return &SubmissionRepository{DB: db}
}

// Transaction 在事务中执行 fn，fn 收到的仓储绑定到该事务
func (r *SubmissionRepository) Transaction(fn func(tx *SubmissionRepository) error) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		return fn(&SubmissionRepository{DB: tx})
	})
}

// CreateUnique 创建作答记录；唯一索引兜底并发重复创建
func (r *SubmissionRepository) CreateUnique(sub *model.Submission) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&model.Submission{}).
			Where("student_id = ? AND exam_id = ?", sub.StudentID, sub.ExamID).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrDuplicateSubmission
		}
		if err := tx.Create(sub).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrDuplicateSubmission
			}
			return err
		}
		return nil
	})
}

func (r *SubmissionRepository) FindByID(id string) (*model.Submission, error) {
	var s model.Submission
	if err := r.DB.First(&s, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// LockByID 在事务内对作答记录加行锁 (SELECT ... FOR UPDATE)
func (r *SubmissionRepository) LockByID(id string) (*model.Submission, error) {
	var s model.Submission
	err := r.DB.Clauses(clause.Locking{Strength: "UPDATE"}).First(&s, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *SubmissionRepository) FindByStudentAndExam(studentID uint, examID string) (*model.Submission, error) {
	var s model.Submission
	err := r.DB.Where("student_id = ? AND exam_id = ?", studentID, examID).First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *SubmissionRepository) ListAnswers(submissionID string) ([]model.Answer, error) {
	var answers []model.Answer
	err := r.DB.Where("submission_id = ?", submissionID).Order("created_at asc").Find(&answers).Error
	return answers, err
}

// ReplaceAnswers 删除旧作答并写入新作答
func (r *SubmissionRepository) ReplaceAnswers(submissionID string, answers []model.Answer) error {
	if err := r.DB.Unscoped().Where("submission_id = ?", submissionID).Delete(&model.Answer{}).Error; err != nil {
		return err
	}
	if len(answers) == 0 {
		return nil
	}
	for i := range answers {
		answers[i].SubmissionID = submissionID
	}
	return r.DB.CreateInBatches(answers, 100).Error
}

// MarkSubmitted 仅当状态仍为 STARTED 时更新（compare-and-swap），返回是否更新成功
func (r *SubmissionRepository) MarkSubmitted(sub *model.Submission) (bool, error) {
	res := r.DB.Model(&model.Submission{}).
		Where("id = ? AND status = ?", sub.ID, model.StatusStarted).
		Updates(map[string]interface{}{
			"status":          sub.Status,
			"score":           sub.Score,
			"is_fully_graded": sub.IsFullyGraded,
			"submitted_at":    sub.SubmittedAt,
			"graded_at":       sub.GradedAt,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *SubmissionRepository) UpdateAnswerGrade(answerID string, isCorrect *bool, points *float64) error {
	return r.DB.Model(&model.Answer{}).
		Where("id = ?", answerID).
		Updates(map[string]interface{}{
			"is_correct":     isCorrect,
			"points_awarded": points,
		}).Error
}

// UpdateGradingSummary 写回汇总后的总分与批改状态
func (r *SubmissionRepository) UpdateGradingSummary(sub *model.Submission) error {
	return r.DB.Model(&model.Submission{}).
		Where("id = ?", sub.ID).
		Updates(map[string]interface{}{
			"status":          sub.Status,
			"score":           sub.Score,
			"is_fully_graded": sub.IsFullyGraded,
			"graded_at":       sub.GradedAt,
		}).Error
}

// DeleteWithAnswers 物理删除，释放 (student, exam) 唯一约束以便重考
func (r *SubmissionRepository) DeleteWithAnswers(id string) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().Where("submission_id = ?", id).Delete(&model.Answer{}).Error; err != nil {
			return err
		}
		return tx.Unscoped().Delete(&model.Submission{}, "id = ?", id).Error
	})
}

type StudentAttemptRow struct {
	model.Submission
	ExamTitle string `json:"examTitle"`
}

func (r *SubmissionRepository) ListByStudent(studentID uint) ([]StudentAttemptRow, error) {
	var rows []StudentAttemptRow
	err := r.DB.Table("submissions s").
		Select("s.*, e.title AS exam_title").
		Joins("JOIN exams e ON e.id = s.exam_id").
		Where("s.student_id = ? AND s.deleted_at IS NULL", studentID).
		Order("s.started_at desc").
		Scan(&rows).Error
	return rows, err
}

type ExamSubmissionRow struct {
	ID            string                 `json:"id"`
	StudentID     uint                   `json:"studentId"`
	StudentName   string                 `json:"studentName"`
	StudentEmail  string                 `json:"studentEmail"`
	Status        model.SubmissionStatus `json:"status"`
	Score         *float64               `json:"score"`
	IsFullyGraded bool                   `json:"isFullyGraded"`
	StartedAt     time.Time              `json:"startedAt"`
	SubmittedAt   *time.Time             `json:"submittedAt"`
}

func (r *SubmissionRepository) ListByExam(examID string) ([]ExamSubmissionRow, error) {
	var rows []ExamSubmissionRow
	err := r.DB.Table("submissions s").
		Select("s.id, s.student_id, u.name AS student_name, u.email AS student_email, " +
			"s.status, s.score, s.is_fully_graded, s.started_at, s.submitted_at").
		Joins("JOIN users u ON u.id = s.student_id").
		Where("s.exam_id = ? AND s.deleted_at IS NULL", examID).
		Order("s.submitted_at desc, s.started_at desc").
		Scan(&rows).Error
	return rows, err
}

func (r *SubmissionRepository) Count() (int64, error) {
	var n int64
	err := r.DB.Model(&model.Submission{}).Count(&n).Error
	return n, err
}

// CountSubmittedByExam 已提交或已批改的作答数
func (r *SubmissionRepository) CountSubmittedByExam(examID string) (int64, error) {
	var n int64
	err := r.DB.Model(&model.Submission{}).
		Where("exam_id = ? AND status <> ?", examID, model.StatusStarted).
		Count(&n).Error
	return n, err
}

func (r *SubmissionRepository) CountPendingGrading() (int64, error) {
	var n int64
	err := r.DB.Model(&model.Submission{}).Where("status = ?", model.StatusSubmitted).Count(&n).Error
	return n, err
}

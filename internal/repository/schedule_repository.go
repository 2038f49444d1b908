package repository

import (
	"exam_portal_backend/internal/model"
	"time"

	"gorm.io/gorm"
)

type ScheduleRepository struct {
	DB *gorm.DB
}

func NewScheduleRepository(db *gorm.DB) *ScheduleRepository {
	return &ScheduleRepository{DB: db}
}

func (r *ScheduleRepository) Create(s *model.ScheduledExam) error {
	return r.DB.Create(s).Error
}

func (r *ScheduleRepository) FindByID(id string) (*model.ScheduledExam, error) {
	var s model.ScheduledExam
	if err := r.DB.First(&s, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *ScheduleRepository) Update(s *model.ScheduledExam) error {
	return r.DB.Model(s).Select("title", "description", "exam_date", "exam_id", "is_published").Updates(s).Error
}

func (r *ScheduleRepository) Delete(id string) error {
	return r.DB.Delete(&model.ScheduledExam{}, "id = ?", id).Error
}

func (r *ScheduleRepository) ListByTeacher(teacherID uint) ([]model.ScheduledExam, error) {
	var list []model.ScheduledExam
	err := r.DB.Where("teacher_id = ?", teacherID).Order("exam_date asc").Find(&list).Error
	return list, err
}

type UpcomingScheduleRow struct {
	model.ScheduledExam
	TeacherName string `json:"teacherName"`
}

// ListUpcoming 已发布且考试时间在 now 之后的安排
func (r *ScheduleRepository) ListUpcoming(now time.Time) ([]UpcomingScheduleRow, error) {
	var rows []UpcomingScheduleRow
	err := r.DB.Table("scheduled_exams se").
		Select("se.*, u.name AS teacher_name").
		Joins("JOIN users u ON u.id = se.teacher_id").
		Where("se.is_published = ? AND se.exam_date > ? AND se.deleted_at IS NULL", true, now).
		Order("se.exam_date asc").
		Scan(&rows).Error
	return rows, err
}

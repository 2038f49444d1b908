package repository

import (
	"exam_portal_backend/internal/model"
	"time"

	"gorm.io/gorm"
)

type AnnouncementRepository struct {
	DB *gorm.DB
}

func NewAnnouncementRepository(db *gorm.DB) *AnnouncementRepository {
	return &AnnouncementRepository{DB: db}
}

func (r *AnnouncementRepository) Create(a *model.Announcement) error {
	return r.DB.Create(a).Error
}

func (r *AnnouncementRepository) FindByID(id string) (*model.Announcement, error) {
	var a model.Announcement
	if err := r.DB.First(&a, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *AnnouncementRepository) Update(a *model.Announcement) error {
	return r.DB.Model(a).Select("title", "content", "expires_at", "is_published").Updates(a).Error
}

func (r *AnnouncementRepository) Delete(id string) error {
	return r.DB.Delete(&model.Announcement{}, "id = ?", id).Error
}

func (r *AnnouncementRepository) ListByTeacher(teacherID uint) ([]model.Announcement, error) {
	var list []model.Announcement
	err := r.DB.Where("teacher_id = ?", teacherID).Order("created_at desc").Find(&list).Error
	return list, err
}

// ListActive 已发布且未过期的公告
func (r *AnnouncementRepository) ListActive(now time.Time) ([]model.Announcement, error) {
	var list []model.Announcement
	err := r.DB.
		Where("is_published = ? AND (expires_at IS NULL OR expires_at > ?)", true, now).
		Order("created_at desc").
		Find(&list).Error
	return list, err
}

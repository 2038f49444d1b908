package model

import (
	"time"
)

// swagger:model Announcement
type Announcement struct {
	UUIDBase
	TeacherID   uint       `gorm:"index;not null" json:"teacherId"`
	Title       string     `gorm:"size:255;not null" json:"title"`
	Content     string     `gorm:"type:text;not null" json:"content"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
	IsPublished bool       `gorm:"index" json:"isPublished"`
}

func (Announcement) TableName() string {
	return "announcements"
}

// swagger:model ScheduledExam
type ScheduledExam struct {
	UUIDBase
	TeacherID   uint      `gorm:"index;not null" json:"teacherId"`
	ExamID      *string   `gorm:"type:varchar(36);index" json:"examId,omitempty"`
	Title       string    `gorm:"size:255;not null" json:"title"`
	Description string    `gorm:"type:text" json:"description"`
	ExamDate    time.Time `gorm:"index;not null" json:"examDate"`
	IsPublished bool      `json:"isPublished"`
}

func (ScheduledExam) TableName() string {
	return "scheduled_exams"
}

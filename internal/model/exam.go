package model

import (
	"time"
)

type QuestionType string

const (
	QuestionMultipleChoice QuestionType = "MULTIPLE_CHOICE"
	QuestionTrueFalse      QuestionType = "TRUE_FALSE"
	QuestionShortAnswer    QuestionType = "SHORT_ANSWER"
)

// swagger:model Exam
type Exam struct {
	UUIDBase
	TeacherID       uint       `gorm:"index;not null" json:"teacherId"`
	Title           string     `gorm:"size:255;not null" json:"title"`
	Header          string     `gorm:"type:text" json:"header"`
	DurationSeconds *int       `json:"durationSeconds,omitempty"`
	IsPublished     bool       `gorm:"index" json:"isPublished"`
	PublishedAt     *time.Time `json:"publishedAt,omitempty"`
	Questions       []Question `gorm:"foreignKey:ExamID" json:"questions,omitempty"`
}

func (Exam) TableName() string {
	return "exams"
}

// swagger:model Question
type Question struct {
	UUIDBase
	ExamID  string       `gorm:"index;type:varchar(36);not null" json:"examId"`
	Text    string       `gorm:"type:text;not null" json:"text"`
	Type    QuestionType `gorm:"size:20;not null" json:"type"`
	Order   int          `gorm:"column:display_order;default:0" json:"order"`
	Points  float64      `gorm:"default:1" json:"points"`
	Options []Option     `gorm:"foreignKey:QuestionID" json:"options"`
}

func (Question) TableName() string {
	return "questions"
}

// swagger:model Option
type Option struct {
	UUIDBase
	QuestionID string `gorm:"index;type:varchar(36);not null" json:"questionId"`
	Text       string `gorm:"type:text;not null" json:"text"`
	IsCorrect  bool   `json:"isCorrect"`
	Order      int    `gorm:"column:display_order;default:0" json:"order"`
}

func (Option) TableName() string {
	return "options"
}

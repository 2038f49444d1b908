package model

import (
	"time"
)

type SubmissionStatus string

const (
	StatusStarted   SubmissionStatus = "STARTED"
	StatusSubmitted SubmissionStatus = "SUBMITTED"
	StatusGraded    SubmissionStatus = "GRADED"
)

// Submission 学生对一场考试的一次作答，(student_id, exam_id) 唯一
// swagger:model Submission
type Submission struct {
	UUIDBase
	ExamID        string           `gorm:"type:varchar(36);not null;uniqueIndex:idx_submission_student_exam" json:"examId"`
	StudentID     uint             `gorm:"not null;uniqueIndex:idx_submission_student_exam" json:"studentId"`
	Status        SubmissionStatus `gorm:"size:20;not null;index" json:"status"`
	Score         *float64         `json:"score"`
	IsFullyGraded bool             `json:"isFullyGraded"`
	StartedAt     time.Time        `json:"startedAt"`
	SubmittedAt   *time.Time       `json:"submittedAt,omitempty"`
	GradedAt      *time.Time       `json:"gradedAt,omitempty"`
}

func (Submission) TableName() string {
	return "submissions"
}

// Answer 对应一道题的作答；PointsAwarded 为 nil 表示待人工批改
// swagger:model Answer
type Answer struct {
	UUIDBase
	SubmissionID     string   `gorm:"index;type:varchar(36);not null" json:"submissionId"`
	QuestionID       string   `gorm:"index;type:varchar(36);not null" json:"questionId"`
	SelectedOptionID *string  `gorm:"type:varchar(36)" json:"selectedOptionId"`
	TextAnswer       *string  `gorm:"type:text" json:"textAnswer"`
	IsCorrect        *bool    `json:"isCorrect"`
	PointsAwarded    *float64 `json:"pointsAwarded"`
}

func (Answer) TableName() string {
	return "answers"
}

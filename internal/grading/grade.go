// Package grading 实现客观题自动评分与提交级汇总，不做任何 I/O。
package grading

import (
	"fmt"
	"strings"
)

type QuestionType string

const (
	MultipleChoice QuestionType = "MULTIPLE_CHOICE"
	TrueFalse      QuestionType = "TRUE_FALSE"
	ShortAnswer    QuestionType = "SHORT_ANSWER"
)

// DefaultPoints 未设置分值的题目按 1 分计
const DefaultPoints = 1.0

// ParseQuestionType 接受 MCQ 作为 MULTIPLE_CHOICE 的别名，大小写不敏感
func ParseQuestionType(s string) (QuestionType, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "MULTIPLE_CHOICE", "MCQ":
		return MultipleChoice, nil
	case "TRUE_FALSE":
		return TrueFalse, nil
	case "SHORT_ANSWER":
		return ShortAnswer, nil
	}
	return "", fmt.Errorf("unknown question type %q", s)
}

// Objective 客观题可以自动评分
func (t QuestionType) Objective() bool {
	return t == MultipleChoice || t == TrueFalse
}

type State int

const (
	Ungraded State = iota
	Correct
	Incorrect
)

func (s State) String() string {
	switch s {
	case Correct:
		return "correct"
	case Incorrect:
		return "incorrect"
	default:
		return "ungraded"
	}
}

// Grade 单题评分结果。Ungraded 时 Points 无意义
type Grade struct {
	State  State
	Points float64
}

func UngradedGrade() Grade { return Grade{State: Ungraded} }

func CorrectGrade(points float64) Grade { return Grade{State: Correct, Points: points} }

func IncorrectGrade() Grade { return Grade{State: Incorrect} }

// ManualGrade 人工批改：nil 表示撤销批改，0 分判错，大于 0 判对
func ManualGrade(points *float64) Grade {
	switch {
	case points == nil:
		return UngradedGrade()
	case *points > 0:
		return CorrectGrade(*points)
	default:
		return IncorrectGrade()
	}
}

func (g Grade) Resolved() bool {
	return g.State != Ungraded
}

// IsCorrect 对应数据库中可空的 is_correct 列
func (g Grade) IsCorrect() *bool {
	if g.State == Ungraded {
		return nil
	}
	v := g.State == Correct
	return &v
}

// PointsAwarded 对应数据库中可空的 points_awarded 列
func (g Grade) PointsAwarded() *float64 {
	if g.State == Ungraded {
		return nil
	}
	v := g.Points
	return &v
}

// FromColumns 从持久化的两个可空列还原评分状态
func FromColumns(isCorrect *bool, points *float64) Grade {
	if points == nil {
		return UngradedGrade()
	}
	if isCorrect != nil && !*isCorrect {
		return Grade{State: Incorrect, Points: *points}
	}
	if isCorrect == nil && *points <= 0 {
		return Grade{State: Incorrect, Points: *points}
	}
	return CorrectGrade(*points)
}

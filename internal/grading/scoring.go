package grading

import (
	"fmt"
	"math"
	"unicode/utf8"
)

type Option struct {
	ID        string
	IsCorrect bool
}

// Question 评分所需的题目视图
type Question struct {
	ID      string
	Type    QuestionType
	Points  float64
	Options []Option
}

// MaxPoints 题目满分，未设置时为 DefaultPoints
func (q Question) MaxPoints() float64 {
	if q.Points <= 0 {
		return DefaultPoints
	}
	return q.Points
}

// Response 学生提交的一条作答
type Response struct {
	QuestionID       string
	SelectedOptionID *string
	TextAnswer       *string
}

// Outcome 每道考试题目恰好对应一个 Outcome
type Outcome struct {
	QuestionID       string
	SelectedOptionID *string
	TextAnswer       *string
	Grade            Grade
}

type Result struct {
	Outcomes      []Outcome
	Summary       Summary
	TotalPossible float64
}

type Rules struct {
	MaxTextLength int
}

// PayloadError 提交内容不合法，整批拒绝
type PayloadError struct {
	Index      int
	QuestionID string
	Reason     string
}

func (e *PayloadError) Error() string {
	if e.QuestionID == "" {
		return fmt.Sprintf("answers[%d]: %s", e.Index, e.Reason)
	}
	return fmt.Sprintf("answers[%d] (question %s): %s", e.Index, e.QuestionID, e.Reason)
}

func nonEmpty(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}

// Normalize 把空字符串视为未填写
func Normalize(responses []Response) []Response {
	out := make([]Response, len(responses))
	for i, r := range responses {
		out[i] = Response{
			QuestionID:       r.QuestionID,
			SelectedOptionID: nonEmpty(r.SelectedOptionID),
			TextAnswer:       nonEmpty(r.TextAnswer),
		}
	}
	return out
}

// Validate 在评分前检查整批作答。不属于本场考试的题目被忽略
func Validate(questions []Question, responses []Response, rules Rules) error {
	byID := make(map[string]Question, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}

	seen := make(map[string]bool, len(responses))
	for i, r := range Normalize(responses) {
		if r.QuestionID == "" {
			return &PayloadError{Index: i, Reason: "questionId is required"}
		}
		if seen[r.QuestionID] {
			return &PayloadError{Index: i, QuestionID: r.QuestionID, Reason: "duplicate answer for question"}
		}
		seen[r.QuestionID] = true

		if r.SelectedOptionID != nil && r.TextAnswer != nil {
			return &PayloadError{Index: i, QuestionID: r.QuestionID, Reason: "only one of selectedOptionId and textAnswer may be set"}
		}
		if r.TextAnswer != nil && rules.MaxTextLength > 0 && utf8.RuneCountInString(*r.TextAnswer) > rules.MaxTextLength {
			return &PayloadError{Index: i, QuestionID: r.QuestionID, Reason: fmt.Sprintf("textAnswer exceeds %d characters", rules.MaxTextLength)}
		}

		q, ok := byID[r.QuestionID]
		if !ok {
			continue
		}
		if q.Type.Objective() && r.TextAnswer != nil {
			return &PayloadError{Index: i, QuestionID: r.QuestionID, Reason: "textAnswer is not allowed for objective questions"}
		}
		if q.Type == ShortAnswer && r.SelectedOptionID != nil {
			return &PayloadError{Index: i, QuestionID: r.QuestionID, Reason: "selectedOptionId is not allowed for short answer questions"}
		}
	}
	return nil
}

// GradeObjective 选中的选项属于该题且被标记为正确时得满分
func GradeObjective(q Question, selected *string) Grade {
	if selected == nil {
		return IncorrectGrade()
	}
	for _, opt := range q.Options {
		if opt.ID == *selected {
			if opt.IsCorrect {
				return CorrectGrade(q.MaxPoints())
			}
			break
		}
	}
	return IncorrectGrade()
}

// Score 校验并评分，按考试题目顺序返回每题结果与汇总
func Score(questions []Question, responses []Response, rules Rules) (Result, error) {
	for i, q := range questions {
		switch q.Type {
		case MultipleChoice, TrueFalse, ShortAnswer:
		default:
			return Result{}, &PayloadError{Index: i, QuestionID: q.ID, Reason: fmt.Sprintf("unknown question type %q", q.Type)}
		}
	}
	if err := Validate(questions, responses, rules); err != nil {
		return Result{}, err
	}

	byQuestion := make(map[string]Response, len(responses))
	for _, r := range Normalize(responses) {
		byQuestion[r.QuestionID] = r
	}

	res := Result{Outcomes: make([]Outcome, 0, len(questions))}
	grades := make([]Grade, 0, len(questions))
	for _, q := range questions {
		r := byQuestion[q.ID]
		out := Outcome{QuestionID: q.ID}
		if q.Type.Objective() {
			out.SelectedOptionID = r.SelectedOptionID
			out.Grade = GradeObjective(q, r.SelectedOptionID)
		} else {
			out.TextAnswer = r.TextAnswer
			out.Grade = UngradedGrade()
		}
		res.Outcomes = append(res.Outcomes, out)
		grades = append(grades, out.Grade)
		res.TotalPossible += q.MaxPoints()
	}
	res.Summary = Reconcile(grades)
	return res, nil
}

// ValidatePoints 人工给分必须为空或 [0, max] 内的有限数
func ValidatePoints(points *float64, max float64) error {
	if points == nil {
		return nil
	}
	p := *points
	if math.IsNaN(p) || math.IsInf(p, 0) {
		return fmt.Errorf("pointsAwarded must be a finite number")
	}
	if p < 0 {
		return fmt.Errorf("pointsAwarded cannot be negative")
	}
	if p > max {
		return fmt.Errorf("pointsAwarded %.2f exceeds question maximum %.2f", p, max)
	}
	return nil
}

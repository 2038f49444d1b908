package grading

type Status string

const (
	StatusSubmitted Status = "SUBMITTED"
	StatusGraded    Status = "GRADED"
)

// Summary 提交级汇总
type Summary struct {
	Score       float64
	FullyGraded bool
	Status      Status
}

// Reconcile 基于当前全部作答重新计算总分与批改状态。
// 未批改的题目不计入总分；只要存在未批改题目就停留在 SUBMITTED。
func Reconcile(grades []Grade) Summary {
	s := Summary{FullyGraded: true}
	for _, g := range grades {
		if !g.Resolved() {
			s.FullyGraded = false
			continue
		}
		s.Score += g.Points
	}
	s.Status = StatusSubmitted
	if s.FullyGraded {
		s.Status = StatusGraded
	}
	return s
}

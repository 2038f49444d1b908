package service

import (
	"errors"
	"exam_portal_backend/internal/model"
	"exam_portal_backend/internal/util"
	"testing"
)

func TestCreateExamValidation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name      string
		questions []QuestionReq
	}{
		{"unknown type", []QuestionReq{{Text: "q", Type: "ESSAY"}}},
		{"empty text", []QuestionReq{{Text: " ", Type: "SHORT_ANSWER"}}},
		{"objective without options", []QuestionReq{{Text: "q", Type: "MCQ"}}},
		{"two correct options", []QuestionReq{{Text: "q", Type: "MCQ", Options: []OptionReq{
			{Text: "a", IsCorrect: true}, {Text: "b", IsCorrect: true},
		}}}},
		{"no correct option", []QuestionReq{{Text: "q", Type: "TRUE_FALSE", Options: []OptionReq{
			{Text: "t"}, {Text: "f"},
		}}}},
		{"short answer with options", []QuestionReq{{Text: "q", Type: "SHORT_ANSWER", Options: []OptionReq{{Text: "a"}}}}},
		{"zero points", []QuestionReq{{Text: "q", Type: "SHORT_ANSWER", Points: fp(0)}}},
		{"new question with id", []QuestionReq{{ID: "abc", Text: "q", Type: "SHORT_ANSWER"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			qs := tt.questions
			_, err := f.exams.CreateExam(ctx(), f.teacher, ExamReq{Title: strp("Quiz"), Questions: &qs})
			if util.KindOf(err) != util.KindValidation {
				t.Fatalf("err = %v, want validation", err)
			}
		})
	}

	if _, err := f.exams.CreateExam(ctx(), f.teacher, ExamReq{Title: strp("  ")}); util.KindOf(err) != util.KindValidation {
		t.Fatalf("blank title err = %v", err)
	}
	if _, err := f.exams.CreateExam(ctx(), f.student, ExamReq{Title: strp("Quiz")}); !errors.Is(err, util.ErrPermissionDenied) {
		t.Fatalf("student create err = %v", err)
	}
}

func TestCreateExamAssignsOrderAndDefaults(t *testing.T) {
	f := newFixture(t)
	exam := f.createExam(t, biologyQuiz(false))

	got, err := f.exams.GetExam(ctx(), f.teacher, exam.ID)
	if err != nil {
		t.Fatalf("GetExam: %v", err)
	}
	if got.IsPublished || got.PublishedAt != nil {
		t.Fatalf("exam should be a draft: %+v", got)
	}
	if len(got.Questions) != 3 {
		t.Fatalf("questions = %d", len(got.Questions))
	}
	for i, q := range got.Questions {
		if q.Order != i+1 || q.Points != 1 {
			t.Fatalf("question %d: order=%d points=%v", i, q.Order, q.Points)
		}
	}
	if got.Questions[0].Options[1].Text != "Mitochondrion" || !got.Questions[0].Options[1].IsCorrect {
		t.Fatalf("options not preserved: %+v", got.Questions[0].Options)
	}

	if _, err := f.exams.GetExam(ctx(), f.otherTeacher, exam.ID); !errors.Is(err, util.ErrNotExamOwner) {
		t.Fatalf("other teacher GetExam err = %v", err)
	}
	if _, err := f.exams.GetExam(ctx(), f.admin, exam.ID); err != nil {
		t.Fatalf("admin GetExam: %v", err)
	}
}

func TestReplaceQuestionsDiffsByID(t *testing.T) {
	f := newFixture(t)
	exam := f.createExam(t, biologyQuiz(false))
	mcq, tf := exam.Questions[0], exam.Questions[1]

	updated, err := f.exams.ReplaceQuestions(ctx(), f.teacher, exam.ID, []QuestionReq{
		{ID: tf.ID, Text: "Plants photosynthesize (updated).", Type: "TRUE_FALSE", Options: []OptionReq{
			{ID: tf.Options[0].ID, Text: "True"},
			{ID: tf.Options[1].ID, Text: "False", IsCorrect: true},
		}},
		{Text: "Name a noble gas.", Type: "SHORT_ANSWER", Points: fp(2)},
	})
	if err != nil {
		t.Fatalf("ReplaceQuestions: %v", err)
	}
	if len(updated.Questions) != 2 {
		t.Fatalf("questions = %d, want 2", len(updated.Questions))
	}
	first := updated.Questions[0]
	if first.ID != tf.ID || first.Text != "Plants photosynthesize (updated)." || first.Order != 1 {
		t.Fatalf("kept question = %+v", first)
	}
	if first.Options[0].IsCorrect || !first.Options[1].IsCorrect {
		t.Fatalf("option correctness not updated: %+v", first.Options)
	}
	if updated.Questions[1].Points != 2 || updated.Questions[1].Type != model.QuestionShortAnswer {
		t.Fatalf("new question = %+v", updated.Questions[1])
	}

	var remaining int64
	f.db.Model(&model.Question{}).Where("id = ?", mcq.ID).Count(&remaining)
	if remaining != 0 {
		t.Fatal("dropped question still visible")
	}
	var options int64
	f.db.Model(&model.Option{}).Where("question_id = ?", mcq.ID).Count(&options)
	if options != 0 {
		t.Fatal("options of dropped question still visible")
	}
}

func TestReplaceQuestionsRejectsForeignIDs(t *testing.T) {
	f := newFixture(t)
	exam := f.createExam(t, biologyQuiz(false))
	other := f.createExam(t, biologyQuiz(false))

	_, err := f.exams.ReplaceQuestions(ctx(), f.teacher, exam.ID, []QuestionReq{
		{ID: other.Questions[2].ID, Text: "stolen", Type: "SHORT_ANSWER"},
	})
	if util.KindOf(err) != util.KindValidation {
		t.Fatalf("foreign question err = %v", err)
	}

	q := exam.Questions[0]
	_, err = f.exams.ReplaceQuestions(ctx(), f.teacher, exam.ID, []QuestionReq{
		{ID: q.ID, Text: q.Text, Type: "MCQ", Options: []OptionReq{
			{ID: other.Questions[0].Options[0].ID, Text: "x", IsCorrect: true},
		}},
	})
	if util.KindOf(err) != util.KindValidation {
		t.Fatalf("foreign option err = %v", err)
	}

	got, _ := f.exams.GetExam(ctx(), f.teacher, exam.ID)
	if len(got.Questions) != 3 {
		t.Fatalf("failed replace changed questions: %d", len(got.Questions))
	}

	if _, err := f.exams.ReplaceQuestions(ctx(), f.otherTeacher, exam.ID, nil); !errors.Is(err, util.ErrNotExamOwner) {
		t.Fatalf("other teacher err = %v", err)
	}
}

func TestUpdateExamAndPublish(t *testing.T) {
	f := newFixture(t)
	exam := f.createExam(t, biologyQuiz(false))

	duration := 900
	got, err := f.exams.UpdateExam(ctx(), f.teacher, exam.ID, ExamReq{Title: strp("Biology Final"), DurationSeconds: &duration})
	if err != nil {
		t.Fatalf("UpdateExam: %v", err)
	}
	if got.Title != "Biology Final" || *got.DurationSeconds != 900 || got.Header != "Good luck" || len(got.Questions) != 3 {
		t.Fatalf("updated = %+v", got)
	}

	published, err := f.exams.SetPublished(ctx(), f.teacher, exam.ID, true)
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if !published.IsPublished || published.PublishedAt == nil {
		t.Fatalf("published = %+v", published)
	}
	if _, err := f.attempts.StartAttempt(ctx(), f.student, exam.ID); err != nil {
		t.Fatalf("start after publish: %v", err)
	}

	unpublished, _ := f.exams.SetPublished(ctx(), f.teacher, exam.ID, false)
	if unpublished.IsPublished || unpublished.PublishedAt != nil {
		t.Fatalf("unpublished = %+v", unpublished)
	}
	if _, err := f.attempts.StartAttempt(ctx(), f.otherStudent, exam.ID); !errors.Is(err, util.ErrExamNotAvailable) {
		t.Fatalf("start after unpublish err = %v", err)
	}
}

func TestListExams(t *testing.T) {
	f := newFixture(t)
	draft := f.createExam(t, biologyQuiz(false))
	live := f.createExam(t, biologyQuiz(true))
	f.attempts.StartAttempt(ctx(), f.student, live.ID)

	mine, err := f.exams.ListMyExams(ctx(), f.teacher)
	if err != nil {
		t.Fatalf("ListMyExams: %v", err)
	}
	if len(mine) != 2 {
		t.Fatalf("teacher sees %d exams", len(mine))
	}
	for _, row := range mine {
		if row.QuestionCount != 3 {
			t.Fatalf("question count = %d", row.QuestionCount)
		}
		if row.ID == live.ID && row.SubmissionCount != 1 {
			t.Fatalf("submission count = %d", row.SubmissionCount)
		}
	}
	if rows, _ := f.exams.ListMyExams(ctx(), f.otherTeacher); len(rows) != 0 {
		t.Fatalf("other teacher sees %d exams", len(rows))
	}
	if rows, _ := f.exams.ListMyExams(ctx(), f.admin); len(rows) != 2 {
		t.Fatalf("admin sees %d exams", len(rows))
	}

	catalog, err := f.exams.ListPublishedExams(ctx(), f.student)
	if err != nil {
		t.Fatalf("ListPublishedExams: %v", err)
	}
	if len(catalog) != 1 || catalog[0].ID != live.ID {
		t.Fatalf("catalog = %+v", catalog)
	}
	if catalog[0].AttemptStatus == nil || *catalog[0].AttemptStatus != model.StatusStarted {
		t.Fatalf("attempt status missing: %+v", catalog[0])
	}
	for _, e := range catalog {
		if e.ID == draft.ID {
			t.Fatal("draft exam listed")
		}
	}

	other, _ := f.exams.ListPublishedExams(ctx(), f.otherStudent)
	if other[0].AttemptID != nil {
		t.Fatal("attempt of another student leaked")
	}
}

func TestDeleteExamRemovesAttempts(t *testing.T) {
	f := newFixture(t)
	exam := f.createExam(t, biologyQuiz(true))
	sub, _ := f.attempts.StartAttempt(ctx(), f.student, exam.ID)
	f.attempts.SubmitAnswers(ctx(), f.student, sub.ID, nil)

	if err := f.exams.DeleteExam(ctx(), f.otherTeacher, exam.ID); !errors.Is(err, util.ErrNotExamOwner) {
		t.Fatalf("other teacher delete err = %v", err)
	}
	if err := f.exams.DeleteExam(ctx(), f.teacher, exam.ID); err != nil {
		t.Fatalf("DeleteExam: %v", err)
	}
	if _, err := f.exams.GetExam(ctx(), f.teacher, exam.ID); !errors.Is(err, util.ErrExamNotFound) {
		t.Fatalf("GetExam after delete err = %v", err)
	}
	if _, err := f.attempts.GetAttemptResult(ctx(), f.student, sub.ID); !errors.Is(err, util.ErrAttemptNotFound) {
		t.Fatalf("result after delete err = %v", err)
	}
	if got := len(f.answersOf(t, sub.ID)); got != 0 {
		t.Fatalf("answers left: %d", got)
	}
}

func TestListExamSubmissions(t *testing.T) {
	f := newFixture(t)
	exam := f.createExam(t, biologyQuiz(true))
	sub, _ := f.attempts.StartAttempt(ctx(), f.student, exam.ID)
	f.attempts.SubmitAnswers(ctx(), f.student, sub.ID, []AnswerInput{
		{QuestionID: exam.Questions[0].ID, SelectedOptionID: strp(correctOption(exam.Questions[0]))},
	})
	f.attempts.StartAttempt(ctx(), f.otherStudent, exam.ID)

	rows, err := f.exams.ListExamSubmissions(ctx(), f.teacher, exam.ID)
	if err != nil {
		t.Fatalf("ListExamSubmissions: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d", len(rows))
	}
	var found bool
	for _, r := range rows {
		if r.ID == sub.ID {
			found = true
			if r.StudentEmail != "sam@example.com" || r.Score == nil || *r.Score != 1 || r.Status != model.StatusSubmitted {
				t.Fatalf("row = %+v", r)
			}
		}
	}
	if !found {
		t.Fatal("submitted attempt missing")
	}
	if _, err := f.exams.ListExamSubmissions(ctx(), f.otherTeacher, exam.ID); !errors.Is(err, util.ErrNotExamOwner) {
		t.Fatalf("other teacher err = %v", err)
	}
}

// keepQuestion 按现有题目构造请求，保留 ID、题型和分值
func keepQuestion(q model.Question) QuestionReq {
	req := QuestionReq{ID: q.ID, Text: q.Text, Type: string(q.Type), Order: q.Order, Points: fp(q.Points)}
	for _, o := range q.Options {
		req.Options = append(req.Options, OptionReq{ID: o.ID, Text: o.Text, IsCorrect: o.IsCorrect, Order: o.Order})
	}
	return req
}

func TestQuestionsLockedAfterSubmission(t *testing.T) {
	f := newFixture(t)
	exam := f.createExam(t, biologyQuiz(true))
	mcq, tf, short := exam.Questions[0], exam.Questions[1], exam.Questions[2]

	// 仅开始作答不锁定题目
	if _, err := f.attempts.StartAttempt(ctx(), f.otherStudent, exam.ID); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := f.exams.ReplaceQuestions(ctx(), f.teacher, exam.ID, []QuestionReq{
		keepQuestion(mcq), keepQuestion(tf), keepQuestion(short),
	}); err != nil {
		t.Fatalf("edit before submissions: %v", err)
	}

	sub, shortID, _ := submittedAttempt(t, f, exam)

	retyped := keepQuestion(short)
	retyped.Type = "MCQ"
	retyped.Options = []OptionReq{{Text: "osmosis", IsCorrect: true}}
	repointed := keepQuestion(mcq)
	repointed.Points = fp(0.5)

	tests := []struct {
		name      string
		questions []QuestionReq
	}{
		{"retype short answer", []QuestionReq{keepQuestion(mcq), keepQuestion(tf), retyped}},
		{"lower points", []QuestionReq{repointed, keepQuestion(tf), keepQuestion(short)}},
		{"remove question", []QuestionReq{keepQuestion(mcq), keepQuestion(tf)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.exams.ReplaceQuestions(ctx(), f.teacher, exam.ID, tt.questions); !errors.Is(err, util.ErrQuestionsLocked) {
				t.Fatalf("err = %v, want questions locked", err)
			}
			qs := tt.questions
			if _, err := f.exams.UpdateExam(ctx(), f.teacher, exam.ID, ExamReq{Title: strp("Renamed"), Questions: &qs}); !errors.Is(err, util.ErrQuestionsLocked) {
				t.Fatalf("update err = %v, want questions locked", err)
			}
		})
	}

	got, _ := f.exams.GetExam(ctx(), f.teacher, exam.ID)
	if got.Title != "Biology Quiz" || len(got.Questions) != 3 || got.Questions[2].Type != model.QuestionShortAnswer {
		t.Fatalf("locked edit changed exam: %+v", got)
	}

	reworded := keepQuestion(short)
	reworded.Text = "Describe osmosis in plant cells."
	added := QuestionReq{Text: "Name a noble gas.", Type: "SHORT_ANSWER"}
	if _, err := f.exams.ReplaceQuestions(ctx(), f.teacher, exam.ID, []QuestionReq{
		keepQuestion(mcq), keepQuestion(tf), reworded, added,
	}); err != nil {
		t.Fatalf("text edit after submission: %v", err)
	}

	summary, err := f.grading.SaveManualGrades(ctx(), f.teacher, sub.ID, []GradeInput{{AnswerID: shortID, PointsAwarded: fp(1)}})
	if err != nil {
		t.Fatalf("grade after edit: %v", err)
	}
	if summary.Status != model.StatusGraded || !summary.IsFullyGraded {
		t.Fatalf("summary = %+v", summary)
	}
	if summary.Score > summary.TotalPossibleScore || summary.TotalPossibleScore != 3 {
		t.Fatalf("score %v of %v", summary.Score, summary.TotalPossibleScore)
	}
}

package service

import (
	"encoding/csv"
	"errors"
	"exam_portal_backend/internal/config"
	"exam_portal_backend/internal/util"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestExportResultsWritesCSV(t *testing.T) {
	f := newFixture(t)
	dir := t.TempDir()
	storage := NewStorageService(&config.Config{Storage: config.StorageConfig{Type: util.StorageLocal, LocalPath: dir}})
	s := NewExportService(f.exams.ExamRepo, f.attempts.SubmissionRepo, storage)

	exam := f.createExam(t, biologyQuiz(true))
	sub, _ := f.attempts.StartAttempt(ctx(), f.student, exam.ID)
	f.attempts.SubmitAnswers(ctx(), f.student, sub.ID, []AnswerInput{
		{QuestionID: exam.Questions[0].ID, SelectedOptionID: strp(correctOption(exam.Questions[0]))},
	})

	if _, err := s.ExportResults(ctx(), f.otherTeacher, exam.ID); !errors.Is(err, util.ErrNotExamOwner) {
		t.Fatalf("other teacher err = %v", err)
	}

	res, err := s.ExportResults(ctx(), f.teacher, exam.ID)
	if err != nil {
		t.Fatalf("ExportResults: %v", err)
	}
	if res.Rows != 1 || !strings.HasPrefix(res.URL, "/uploads/exports/"+exam.ID+"/") {
		t.Fatalf("result = %+v", res)
	}

	file, err := os.Open(filepath.Join(dir, filepath.FromSlash(strings.TrimPrefix(res.URL, "/uploads/"))))
	if err != nil {
		t.Fatalf("open export: %v", err)
	}
	defer file.Close()
	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("records = %d", len(records))
	}
	if strings.Join(records[0], ",") != "student,email,status,score,total,fully_graded,submitted_at" {
		t.Fatalf("header = %v", records[0])
	}
	row := records[1]
	if row[0] != "Sam Student" || row[1] != "sam@example.com" || row[2] != "SUBMITTED" || row[3] != "1" || row[4] != "3" || row[5] != "false" || row[6] == "" {
		t.Fatalf("row = %v", row)
	}
}

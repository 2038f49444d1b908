package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"exam_portal_backend/internal/grading"
	"exam_portal_backend/internal/repository"
	"exam_portal_backend/internal/util"
	"exam_portal_backend/pkg/logger"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"
)

type ExportService struct {
	ExamRepo       *repository.ExamRepository
	SubmissionRepo *repository.SubmissionRepository
	Storage        *StorageService
}

func NewExportService(examRepo *repository.ExamRepository, submissionRepo *repository.SubmissionRepository, storage *StorageService) *ExportService {
	return &ExportService{ExamRepo: examRepo, SubmissionRepo: submissionRepo, Storage: storage}
}

type ExportResult struct {
	URL  string `json:"url"`
	Rows int    `json:"rows"`
}

var exportHeader = []string{"student", "email", "status", "score", "total", "fully_graded", "submitted_at"}

// ExportResults 导出某场考试的成绩单 CSV 并写入存储
func (s *ExportService) ExportResults(ctx context.Context, actor Actor, examID string) (*ExportResult, error) {
	exam, err := s.ExamRepo.FindWithQuestions(examID)
	if err != nil {
		return nil, translateErr(err, util.ErrExamNotFound)
	}
	if !actor.Owns(exam.TeacherID) {
		return nil, util.ErrNotExamOwner
	}
	rows, err := s.SubmissionRepo.ListByExam(exam.ID)
	if err != nil {
		return nil, util.StorageError(err)
	}

	var total float64
	for _, q := range exam.Questions {
		total += grading.Question{Points: q.Points}.MaxPoints()
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(exportHeader); err != nil {
		return nil, err
	}
	for _, r := range rows {
		score, submittedAt := "", ""
		if r.Score != nil {
			score = strconv.FormatFloat(*r.Score, 'f', -1, 64)
		}
		if r.SubmittedAt != nil {
			submittedAt = r.SubmittedAt.UTC().Format(time.RFC3339)
		}
		record := []string{
			r.StudentName,
			r.StudentEmail,
			string(r.Status),
			score,
			strconv.FormatFloat(total, 'f', -1, 64),
			strconv.FormatBool(r.IsFullyGraded),
			submittedAt,
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}

	filename := fmt.Sprintf("exports/%s/results-%s.csv", exam.ID, time.Now().UTC().Format("20060102-150405"))
	url, err := s.Storage.Upload(ctx, filename, bytes.NewReader(buf.Bytes()), int64(buf.Len()), util.MimeCSV)
	if err != nil {
		return nil, util.StorageError(err)
	}
	logger.Log.Info("Exam results exported",
		zap.String("exam_id", exam.ID),
		zap.Uint("user_id", actor.UserID),
		zap.Int("rows", len(rows)),
		zap.String("url", url))
	return &ExportResult{URL: url, Rows: len(rows)}, nil
}

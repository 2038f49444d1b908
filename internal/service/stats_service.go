package service

import (
	"context"
	"exam_portal_backend/internal/model"
	"exam_portal_backend/internal/repository"
	"exam_portal_backend/internal/util"
)

type StatsService struct {
	UserRepo       *repository.UserRepository
	ExamRepo       *repository.ExamRepository
	SubmissionRepo *repository.SubmissionRepository
}

func NewStatsService(userRepo *repository.UserRepository, examRepo *repository.ExamRepository, submissionRepo *repository.SubmissionRepository) *StatsService {
	return &StatsService{UserRepo: userRepo, ExamRepo: examRepo, SubmissionRepo: submissionRepo}
}

type PortalStats struct {
	Exams          int64 `json:"exams"`
	Students       int64 `json:"students"`
	Teachers       int64 `json:"teachers"`
	Attempts       int64 `json:"attempts"`
	PendingGrading int64 `json:"pendingGrading"`
}

func (s *StatsService) Overview(ctx context.Context, actor Actor) (*PortalStats, error) {
	if !actor.IsAdmin() {
		return nil, util.ErrPermissionDenied
	}
	var (
		st  PortalStats
		err error
	)
	if st.Exams, err = s.ExamRepo.Count(); err != nil {
		return nil, util.StorageError(err)
	}
	if st.Students, err = s.UserRepo.CountByRole(model.Student); err != nil {
		return nil, util.StorageError(err)
	}
	if st.Teachers, err = s.UserRepo.CountByRole(model.Teacher); err != nil {
		return nil, util.StorageError(err)
	}
	if st.Attempts, err = s.SubmissionRepo.Count(); err != nil {
		return nil, util.StorageError(err)
	}
	if st.PendingGrading, err = s.SubmissionRepo.CountPendingGrading(); err != nil {
		return nil, util.StorageError(err)
	}
	return &st, nil
}

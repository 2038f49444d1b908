package service

import (
	"context"
	"exam_portal_backend/internal/model"
	"exam_portal_backend/internal/repository"
	"exam_portal_backend/internal/util"
	"strings"
	"time"
	"unicode/utf8"
)

type AnnouncementService struct {
	Repo *repository.AnnouncementRepository
}

func NewAnnouncementService(repo *repository.AnnouncementRepository) *AnnouncementService {
	return &AnnouncementService{Repo: repo}
}

type AnnouncementReq struct {
	Title       *string    `json:"title"`
	Content     *string    `json:"content"`
	ExpiresAt   *time.Time `json:"expiresAt"`
	IsPublished *bool      `json:"isPublished"`
}

func validateAnnouncement(a *model.Announcement) error {
	if utf8.RuneCountInString(strings.TrimSpace(a.Title)) < 3 {
		return util.ValidationError("title must be at least 3 characters")
	}
	if utf8.RuneCountInString(strings.TrimSpace(a.Content)) < 10 {
		return util.ValidationError("content must be at least 10 characters")
	}
	return nil
}

func (s *AnnouncementService) Create(ctx context.Context, actor Actor, req AnnouncementReq) (*model.Announcement, error) {
	if !actor.CanAuthor() {
		return nil, util.ErrPermissionDenied
	}
	a := &model.Announcement{
		TeacherID:   actor.UserID,
		ExpiresAt:   req.ExpiresAt,
		IsPublished: true,
	}
	if req.Title != nil {
		a.Title = strings.TrimSpace(*req.Title)
	}
	if req.Content != nil {
		a.Content = *req.Content
	}
	if req.IsPublished != nil {
		a.IsPublished = *req.IsPublished
	}
	if err := validateAnnouncement(a); err != nil {
		return nil, err
	}
	if err := s.Repo.Create(a); err != nil {
		return nil, util.StorageError(err)
	}
	return a, nil
}

func (s *AnnouncementService) loadOwned(actor Actor, id string) (*model.Announcement, error) {
	a, err := s.Repo.FindByID(id)
	if err != nil {
		return nil, translateErr(err, util.ErrAnnouncementNotFound)
	}
	if !actor.Owns(a.TeacherID) {
		return nil, util.ErrPermissionDenied
	}
	return a, nil
}

func (s *AnnouncementService) Update(ctx context.Context, actor Actor, id string, req AnnouncementReq) (*model.Announcement, error) {
	a, err := s.loadOwned(actor, id)
	if err != nil {
		return nil, err
	}
	if req.Title != nil {
		a.Title = strings.TrimSpace(*req.Title)
	}
	if req.Content != nil {
		a.Content = *req.Content
	}
	if req.ExpiresAt != nil {
		a.ExpiresAt = req.ExpiresAt
	}
	if req.IsPublished != nil {
		a.IsPublished = *req.IsPublished
	}
	if err := validateAnnouncement(a); err != nil {
		return nil, err
	}
	if err := s.Repo.Update(a); err != nil {
		return nil, util.StorageError(err)
	}
	return a, nil
}

func (s *AnnouncementService) Delete(ctx context.Context, actor Actor, id string) error {
	a, err := s.loadOwned(actor, id)
	if err != nil {
		return err
	}
	if err := s.Repo.Delete(a.ID); err != nil {
		return util.StorageError(err)
	}
	return nil
}

func (s *AnnouncementService) ListMine(ctx context.Context, actor Actor) ([]model.Announcement, error) {
	if !actor.CanAuthor() {
		return nil, util.ErrPermissionDenied
	}
	list, err := s.Repo.ListByTeacher(actor.UserID)
	if err != nil {
		return nil, util.StorageError(err)
	}
	return list, nil
}

// ListActive 公开接口：已发布且未过期
func (s *AnnouncementService) ListActive(ctx context.Context) ([]model.Announcement, error) {
	list, err := s.Repo.ListActive(time.Now())
	if err != nil {
		return nil, util.StorageError(err)
	}
	return list, nil
}

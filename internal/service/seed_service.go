package service

import (
	"context"
	"errors"
	"exam_portal_backend/internal/model"
	"exam_portal_backend/internal/repository"
	"exam_portal_backend/internal/util"
	"exam_portal_backend/pkg/logger"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

type SeedOption struct {
	Text      string `yaml:"text"`
	IsCorrect bool   `yaml:"is_correct"`
}

type SeedQuestion struct {
	Text    string       `yaml:"text"`
	Type    string       `yaml:"type"`
	Points  *float64     `yaml:"points"`
	Options []SeedOption `yaml:"options"`
}

type SeedExam struct {
	Owner           string         `yaml:"owner"`
	Title           string         `yaml:"title"`
	Header          string         `yaml:"header"`
	DurationSeconds *int           `yaml:"duration_seconds"`
	Published       bool           `yaml:"published"`
	Questions       []SeedQuestion `yaml:"questions"`
}

type SeedUser struct {
	Name     string `yaml:"name"`
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
	Role     string `yaml:"role"`
}

type SeedFile struct {
	Users []SeedUser `yaml:"users"`
	Exams []SeedExam `yaml:"exams"`
}

type SeedService struct {
	UserRepo *repository.UserRepository
	ExamSvc  *ExamService
}

func NewSeedService(userRepo *repository.UserRepository, examSvc *ExamService) *SeedService {
	return &SeedService{UserRepo: userRepo, ExamSvc: examSvc}
}

type SeedReport struct {
	UsersCreated int
	UsersUpdated int
	ExamsCreated int
	ExamsSkipped int
}

func (s *SeedService) SeedFromFile(ctx context.Context, path string) (*SeedReport, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return s.Seed(ctx, f)
}

// Seed 账号按邮箱更新或创建；试卷按 (出卷人, 标题) 去重，已存在则跳过
func (s *SeedService) Seed(ctx context.Context, r io.Reader) (*SeedReport, error) {
	var file SeedFile
	if err := yaml.NewDecoder(r).Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}

	report := &SeedReport{}
	for i, su := range file.Users {
		created, err := s.upsertUser(su)
		if err != nil {
			return nil, fmt.Errorf("users[%d]: %w", i, err)
		}
		if created {
			report.UsersCreated++
		} else {
			report.UsersUpdated++
		}
	}

	for i, se := range file.Exams {
		owner, err := s.UserRepo.FindByEmail(strings.ToLower(se.Owner))
		if err != nil {
			return nil, fmt.Errorf("exams[%d]: owner %s: %w", i, se.Owner, err)
		}
		if _, err := s.ExamSvc.ExamRepo.FindByTeacherAndTitle(owner.ID, se.Title); err == nil {
			report.ExamsSkipped++
			continue
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}

		questions := make([]QuestionReq, 0, len(se.Questions))
		for _, sq := range se.Questions {
			q := QuestionReq{Text: sq.Text, Type: sq.Type, Points: sq.Points}
			for _, so := range sq.Options {
				q.Options = append(q.Options, OptionReq{Text: so.Text, IsCorrect: so.IsCorrect})
			}
			questions = append(questions, q)
		}
		title, header, published := se.Title, se.Header, se.Published
		actor := Actor{UserID: owner.ID, Role: owner.Role}
		if _, err := s.ExamSvc.CreateExam(ctx, actor, ExamReq{
			Title:           &title,
			Header:          &header,
			DurationSeconds: se.DurationSeconds,
			IsPublished:     &published,
			Questions:       &questions,
		}); err != nil {
			return nil, fmt.Errorf("exams[%d]: %w", i, err)
		}
		report.ExamsCreated++
	}

	logger.Log.Info("Seed completed",
		zap.Int("users_created", report.UsersCreated),
		zap.Int("users_updated", report.UsersUpdated),
		zap.Int("exams_created", report.ExamsCreated),
		zap.Int("exams_skipped", report.ExamsSkipped))
	return report, nil
}

func (s *SeedService) upsertUser(su SeedUser) (bool, error) {
	role := model.UserRole(strings.ToLower(su.Role))
	switch role {
	case model.Student, model.Teacher, model.Admin:
	default:
		return false, util.ValidationErrorf("unknown role %q", su.Role)
	}
	if su.Email == "" || su.Password == "" {
		return false, util.ValidationError("email and password are required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(su.Password), bcrypt.DefaultCost)
	if err != nil {
		return false, err
	}

	email := strings.ToLower(strings.TrimSpace(su.Email))
	user, err := s.UserRepo.FindByEmail(email)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return true, s.UserRepo.Create(&model.User{
			Name:     su.Name,
			Email:    email,
			Password: string(hash),
			Role:     role,
		})
	}
	if err != nil {
		return false, err
	}
	user.Name = su.Name
	user.Password = string(hash)
	user.Role = role
	return false, s.UserRepo.Update(user)
}

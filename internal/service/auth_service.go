package service

import (
	"context"
	"errors"
	"exam_portal_backend/internal/config"
	"exam_portal_backend/internal/model"
	"exam_portal_backend/internal/repository"
	"exam_portal_backend/internal/util"
	"exam_portal_backend/pkg/logger"
	"net/mail"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type AuthService struct {
	UserRepo *repository.UserRepository
	Cfg      *config.Config
}

func NewAuthService(userRepo *repository.UserRepository, cfg *config.Config) *AuthService {
	return &AuthService{
		UserRepo: userRepo,
		Cfg:      cfg,
	}
}

type RegisterReq struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

type LoginReq struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type LoginResult struct {
	Token string      `json:"token"`
	User  *model.User `json:"user"`
}

// createUser 邮箱统一小写，密码 bcrypt 存储
func (s *AuthService) createUser(name, email, password string, role model.UserRole) (*model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, util.ValidationError("invalid email address")
	}
	if strings.TrimSpace(name) == "" {
		return nil, util.ValidationError("name is required")
	}
	if len(password) < 6 {
		return nil, util.ValidationError("password must be at least 6 characters")
	}

	_, err := s.UserRepo.FindByEmail(email)
	if err == nil {
		return nil, util.ErrEmailRegistered
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.StorageError(err)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	user := &model.User{
		Name:     strings.TrimSpace(name),
		Email:    email,
		Password: string(hashedPassword),
		Role:     role,
	}
	if err := s.UserRepo.Create(user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, util.ErrEmailRegistered
		}
		return nil, util.StorageError(err)
	}
	return user, nil
}

// Register 公开注册只能创建学生账号
func (s *AuthService) Register(ctx context.Context, req RegisterReq) (*model.User, error) {
	user, err := s.createUser(req.Name, req.Email, req.Password, model.Student)
	if err != nil {
		return nil, err
	}
	logger.Log.Info("Student registered", zap.Uint("user_id", user.ID))
	return user, nil
}

// CreateTeacher 管理员创建教师账号
func (s *AuthService) CreateTeacher(ctx context.Context, actor Actor, req RegisterReq) (*model.User, error) {
	if !actor.IsAdmin() {
		return nil, util.ErrPermissionDenied
	}
	user, err := s.createUser(req.Name, req.Email, req.Password, model.Teacher)
	if err != nil {
		return nil, err
	}
	logger.Log.Info("Teacher account created", zap.Uint("user_id", user.ID), zap.Uint("admin_id", actor.UserID))
	return user, nil
}

func (s *AuthService) Login(ctx context.Context, req LoginReq) (*LoginResult, error) {
	user, err := s.UserRepo.FindByEmail(strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrInvalidCredentials
		}
		return nil, util.StorageError(err)
	}
	if user.Disabled {
		return nil, util.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, util.ErrInvalidCredentials
	}

	token, err := util.GenerateJWT(user, s.Cfg.JWT.Secret, s.Cfg.JWT.ExpireTime)
	if err != nil {
		return nil, err
	}
	if err := s.UserRepo.UpdateLastLogin(user.ID); err != nil {
		logger.Log.Warn("Failed to update last login", zap.Uint("user_id", user.ID), zap.Error(err))
	}
	return &LoginResult{Token: token, User: user}, nil
}

func (s *AuthService) GetUser(ctx context.Context, userID uint) (*model.User, error) {
	user, err := s.UserRepo.FindByID(userID)
	if err != nil {
		return nil, translateErr(err, util.ErrUserNotFound)
	}
	return user, nil
}

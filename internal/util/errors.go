package util

import (
	"errors"
	"fmt"
)

type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindNotFound
	KindAuthorization
	KindConflict
	KindValidation
	KindStorage
)

func (k ErrorKind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindAuthorization:
		return "authorization"
	case KindConflict:
		return "conflict"
	case KindValidation:
		return "validation"
	case KindStorage:
		return "storage"
	default:
		return "internal"
	}
}

// AppError 业务错误，Kind 决定对外的 HTTP 状态码
type AppError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil && e.Kind != KindStorage {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is 同一 Kind 且同一 Message 视为同一个错误，便于与哨兵错误比较
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Message == t.Message
}

func NotFoundError(msg string) *AppError {
	return &AppError{Kind: KindNotFound, Message: msg}
}

func AuthorizationError(msg string) *AppError {
	return &AppError{Kind: KindAuthorization, Message: msg}
}

func ConflictError(msg string) *AppError {
	return &AppError{Kind: KindConflict, Message: msg}
}

func ValidationError(msg string) *AppError {
	return &AppError{Kind: KindValidation, Message: msg}
}

func ValidationErrorf(format string, args ...interface{}) *AppError {
	return &AppError{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// StorageError 包装底层存储错误，对外不暴露驱动细节
func StorageError(err error) *AppError {
	return &AppError{Kind: KindStorage, Message: "storage operation failed", Err: err}
}

// KindOf 返回错误链上第一个 AppError 的类型
func KindOf(err error) ErrorKind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

var (
	ErrUserNotFound            = NotFoundError("user not found")
	ErrEmailRegistered         = ConflictError("email already registered")
	ErrInvalidCredentials      = AuthorizationError("invalid credentials")
	ErrPermissionDenied        = AuthorizationError("permission denied")
	ErrExamNotFound            = NotFoundError("exam not found")
	ErrExamNotAvailable        = NotFoundError("exam not found or not published")
	ErrNotExamOwner            = AuthorizationError("not the owner of this exam")
	ErrAttemptNotFound         = NotFoundError("attempt not found")
	ErrAnswerNotFound          = NotFoundError("answer not found in this attempt")
	ErrDuplicateAttempt        = ConflictError("attempt already exists for this exam")
	ErrAttemptAlreadySubmitted = ConflictError("attempt already submitted")
	ErrAttemptNotSubmitted     = ConflictError("attempt not yet submitted")
	ErrAttemptExpired          = ConflictError("attempt time limit exceeded")
	ErrQuestionsLocked         = ConflictError("exam has submitted attempts; question type, points and removal are locked")
	ErrAnnouncementNotFound    = NotFoundError("announcement not found")
	ErrScheduleNotFound        = NotFoundError("schedule not found")
)

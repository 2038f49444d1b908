package service

import (
	"errors"
	"exam_portal_backend/internal/model"
	"exam_portal_backend/internal/util"

	"gorm.io/gorm"
)

// Actor 当前请求的身份，由控制器从 JWT 中取出后显式传入各业务方法
type Actor struct {
	UserID uint
	Role   model.UserRole
}

func ActorFromClaims(claims *util.Claims) Actor {
	if claims == nil {
		return Actor{}
	}
	return Actor{UserID: claims.UserID, Role: claims.Role}
}

func (a Actor) IsAdmin() bool {
	return a.Role == model.Admin
}

func (a Actor) IsStudent() bool {
	return a.Role == model.Student
}

// CanAuthor 教师和管理员可以出卷
func (a Actor) CanAuthor() bool {
	return a.Role == model.Teacher || a.Role == model.Admin
}

// Owns 管理员视为拥有全部资源
func (a Actor) Owns(ownerID uint) bool {
	return a.IsAdmin() || (a.Role == model.Teacher && a.UserID == ownerID)
}

// translateErr 把仓储层错误转换为业务错误：
// 已是 AppError 的原样返回，记录不存在转为 notFound，其余包装为 StorageError
func translateErr(err error, notFound *util.AppError) error {
	if err == nil {
		return nil
	}
	var appErr *util.AppError
	if errors.As(err, &appErr) {
		return err
	}
	if notFound != nil && errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound
	}
	return util.StorageError(err)
}

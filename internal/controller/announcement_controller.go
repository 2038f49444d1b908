package controller

import (
	"exam_portal_backend/internal/service"
	"exam_portal_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type AnnouncementController struct {
	Service *service.AnnouncementService
}

func NewAnnouncementController(svc *service.AnnouncementService) *AnnouncementController {
	return &AnnouncementController{Service: svc}
}

// @Summary 公告列表
// @Description 已发布且未过期的公告
// @Tags 公告
// @Produce json
// @Success 200 {object} util.Response
// @Router /api/announcements [get]
func (c *AnnouncementController) ListActive(ctx *gin.Context) {
	list, err := c.Service.ListActive(ctx.Request.Context())
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, list)
}

// @Summary 我的公告
// @Tags 公告
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response
// @Router /api/teacher/announcements [get]
func (c *AnnouncementController) ListMine(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	list, err := c.Service.ListMine(ctx.Request.Context(), actor)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, list)
}

// @Summary 发布公告
// @Tags 公告
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body service.AnnouncementReq true "公告内容"
// @Success 201 {object} util.Response{data=model.Announcement}
// @Router /api/teacher/announcements [post]
func (c *AnnouncementController) Create(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	var req service.AnnouncementReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	a, err := c.Service.Create(ctx.Request.Context(), actor, req)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Created(ctx, a)
}

// @Summary 更新公告
// @Tags 公告
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "公告ID"
// @Param body body service.AnnouncementReq true "公告内容"
// @Success 200 {object} util.Response{data=model.Announcement}
// @Router /api/teacher/announcements/{id} [put]
func (c *AnnouncementController) Update(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	var req service.AnnouncementReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	a, err := c.Service.Update(ctx.Request.Context(), actor, ctx.Param("id"), req)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, a)
}

// @Summary 删除公告
// @Tags 公告
// @Produce json
// @Security BearerAuth
// @Param id path string true "公告ID"
// @Success 200 {object} util.Response
// @Router /api/teacher/announcements/{id} [delete]
func (c *AnnouncementController) Delete(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	if err := c.Service.Delete(ctx.Request.Context(), actor, ctx.Param("id")); err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

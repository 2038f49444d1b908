package controller

import (
	"exam_portal_backend/internal/service"
	"exam_portal_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type ScheduleController struct {
	Service *service.ScheduleService
}

func NewScheduleController(svc *service.ScheduleService) *ScheduleController {
	return &ScheduleController{Service: svc}
}

// @Summary 近期考试安排
// @Tags 考试安排
// @Produce json
// @Success 200 {object} util.Response
// @Router /api/schedules [get]
func (c *ScheduleController) ListUpcoming(ctx *gin.Context) {
	rows, err := c.Service.ListUpcoming(ctx.Request.Context())
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, rows)
}

// @Summary 我的考试安排
// @Tags 考试安排
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response
// @Router /api/teacher/schedules [get]
func (c *ScheduleController) ListMine(ctx *gin.Context) {
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

// @Summary 新建考试安排
// @Tags 考试安排
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body service.ScheduleReq true "安排信息"
// @Success 201 {object} util.Response{data=model.ScheduledExam}
// @Router /api/teacher/schedules [post]
func (c *ScheduleController) Create(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	var req service.ScheduleReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	se, err := c.Service.Create(ctx.Request.Context(), actor, req)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Created(ctx, se)
}

// @Summary 更新考试安排
// @Tags 考试安排
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "安排ID"
// @Param body body service.ScheduleReq true "安排信息"
// @Success 200 {object} util.Response{data=model.ScheduledExam}
// @Router /api/teacher/schedules/{id} [put]
func (c *ScheduleController) Update(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	var req service.ScheduleReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	se, err := c.Service.Update(ctx.Request.Context(), actor, ctx.Param("id"), req)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, se)
}

// @Summary 删除考试安排
// @Tags 考试安排
// @Produce json
// @Security BearerAuth
// @Param id path string true "安排ID"
// @Success 200 {object} util.Response
// @Router /api/teacher/schedules/{id} [delete]
func (c *ScheduleController) Delete(ctx *gin.Context) {
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

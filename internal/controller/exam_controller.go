package controller

import (
	"exam_portal_backend/internal/service"
	"exam_portal_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type ExamController struct {
	ExamService   *service.ExamService
	ExportService *service.ExportService
}

func NewExamController(examService *service.ExamService, exportService *service.ExportService) *ExamController {
	return &ExamController{ExamService: examService, ExportService: exportService}
}

// @Summary 创建试卷
// @Tags 试卷管理
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body service.ExamReq true "试卷信息"
// @Success 201 {object} util.Response{data=model.Exam}
// @Failure 400 {object} util.Response "题目不合法"
// @Router /api/teacher/exams [post]
func (c *ExamController) CreateExam(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}

	var req service.ExamReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	exam, err := c.ExamService.CreateExam(ctx.Request.Context(), actor, req)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}

	util.Created(ctx, exam)
}

// @Summary 我的试卷列表
// @Description 管理员可以看到全部试卷
// @Tags 试卷管理
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response
// @Router /api/teacher/exams [get]
func (c *ExamController) ListMyExams(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}

	exams, err := c.ExamService.ListMyExams(ctx.Request.Context(), actor)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}

	util.Success(ctx, gin.H{"items": exams, "total": len(exams)})
}

// @Summary 试卷详情（含答案）
// @Tags 试卷管理
// @Produce json
// @Security BearerAuth
// @Param id path string true "试卷ID"
// @Success 200 {object} util.Response{data=model.Exam}
// @Router /api/teacher/exams/{id} [get]
func (c *ExamController) GetExam(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}

	exam, err := c.ExamService.GetExam(ctx.Request.Context(), actor, ctx.Param("id"))
	if err != nil {
		util.RespondError(ctx, err)
		return
	}

	util.Success(ctx, exam)
}

// @Summary 更新试卷
// @Description questions 不为空时整体替换题目
// @Tags 试卷管理
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "试卷ID"
// @Param body body service.ExamReq true "试卷信息"
// @Success 200 {object} util.Response{data=model.Exam}
// @Router /api/teacher/exams/{id} [put]
func (c *ExamController) UpdateExam(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}

	var req service.ExamReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	exam, err := c.ExamService.UpdateExam(ctx.Request.Context(), actor, ctx.Param("id"), req)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}

	util.Success(ctx, exam)
}

// @Summary 替换试卷题目
// @Tags 试卷管理
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "试卷ID"
// @Param body body []service.QuestionReq true "题目列表"
// @Success 200 {object} util.Response{data=model.Exam}
// @Router /api/teacher/exams/{id}/questions [put]
func (c *ExamController) ReplaceQuestions(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}

	var req []service.QuestionReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	exam, err := c.ExamService.ReplaceQuestions(ctx.Request.Context(), actor, ctx.Param("id"), req)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}

	util.Success(ctx, exam)
}

type PublishReq struct {
	IsPublished *bool `json:"isPublished" binding:"required"`
}

// @Summary 发布/取消发布试卷
// @Tags 试卷管理
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "试卷ID"
// @Param body body PublishReq true "发布状态"
// @Success 200 {object} util.Response{data=model.Exam}
// @Router /api/teacher/exams/{id}/publish [put]
func (c *ExamController) SetPublished(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}

	var req PublishReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	exam, err := c.ExamService.SetPublished(ctx.Request.Context(), actor, ctx.Param("id"), *req.IsPublished)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}

	util.Success(ctx, exam)
}

// @Summary 删除试卷
// @Description 同时删除题目、选项以及全部作答记录
// @Tags 试卷管理
// @Produce json
// @Security BearerAuth
// @Param id path string true "试卷ID"
// @Success 200 {object} util.Response
// @Router /api/teacher/exams/{id} [delete]
func (c *ExamController) DeleteExam(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}

	if err := c.ExamService.DeleteExam(ctx.Request.Context(), actor, ctx.Param("id")); err != nil {
		util.RespondError(ctx, err)
		return
	}

	util.Success(ctx, nil)
}

// @Summary 试卷提交列表
// @Tags 试卷管理
// @Produce json
// @Security BearerAuth
// @Param id path string true "试卷ID"
// @Param page query int false "页码"
// @Param limit query int false "每页数量"
// @Success 200 {object} util.Response{data=util.PageResponse}
// @Router /api/teacher/exams/{id}/submissions [get]
func (c *ExamController) ListSubmissions(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	page, limit := util.ParsePage(ctx.Query("page"), ctx.Query("limit"))

	rows, err := c.ExamService.ListExamSubmissions(ctx.Request.Context(), actor, ctx.Param("id"))
	if err != nil {
		util.RespondError(ctx, err)
		return
	}

	start := (page - 1) * limit
	if start > len(rows) {
		start = len(rows)
	}
	end := start + limit
	if end > len(rows) {
		end = len(rows)
	}
	util.Success(ctx, util.PageResponse{
		List:  rows[start:end],
		Total: int64(len(rows)),
		Page:  page,
		Limit: limit,
	})
}

// @Summary 导出成绩 CSV
// @Tags 试卷管理
// @Produce json
// @Security BearerAuth
// @Param id path string true "试卷ID"
// @Success 200 {object} util.Response{data=service.ExportResult}
// @Router /api/teacher/exams/{id}/export [post]
func (c *ExamController) ExportResults(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}

	res, err := c.ExportService.ExportResults(ctx.Request.Context(), actor, ctx.Param("id"))
	if err != nil {
		util.RespondError(ctx, err)
		return
	}

	util.Success(ctx, res)
}

// @Summary 可参加的考试
// @Tags 考试
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response{data=[]service.PublishedExam}
// @Router /api/exams [get]
func (c *ExamController) ListPublished(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}

	exams, err := c.ExamService.ListPublishedExams(ctx.Request.Context(), actor)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}

	util.Success(ctx, exams)
}

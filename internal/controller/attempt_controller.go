package controller

import (
	"encoding/json"
	"exam_portal_backend/internal/service"
	"exam_portal_backend/internal/util"
	"fmt"

	"github.com/gin-gonic/gin"
)

type AttemptController struct {
	AttemptService *service.AttemptService
	GradingService *service.GradingService
}

func NewAttemptController(attemptService *service.AttemptService, gradingService *service.GradingService) *AttemptController {
	return &AttemptController{AttemptService: attemptService, GradingService: gradingService}
}

// @Summary 开始考试
// @Tags 考试
// @Produce json
// @Security BearerAuth
// @Param id path string true "试卷ID"
// @Success 201 {object} util.Response{data=model.Submission}
// @Failure 404 {object} util.Response "试卷不存在或未发布"
// @Failure 409 {object} util.Response "已参加过该考试"
// @Router /api/exams/{id}/attempts [post]
func (c *AttemptController) StartAttempt(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}

	sub, err := c.AttemptService.StartAttempt(ctx.Request.Context(), actor, ctx.Param("id"))
	if err != nil {
		util.RespondError(ctx, err)
		return
	}

	util.Created(ctx, sub)
}

// @Summary 我的考试记录
// @Tags 考试
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response
// @Router /api/attempts [get]
func (c *AttemptController) ListMyAttempts(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}

	rows, err := c.AttemptService.ListMyAttempts(ctx.Request.Context(), actor)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}

	util.Success(ctx, rows)
}

// @Summary 获取试卷（作答视图）
// @Tags 考试
// @Produce json
// @Security BearerAuth
// @Param id path string true "作答ID"
// @Success 200 {object} util.Response{data=service.AttemptPaper}
// @Router /api/attempts/{id} [get]
func (c *AttemptController) GetPaper(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}

	paper, err := c.AttemptService.GetAttemptPaper(ctx.Request.Context(), actor, ctx.Param("id"))
	if err != nil {
		util.RespondError(ctx, err)
		return
	}

	util.Success(ctx, paper)
}

type SubmitAnswersReq struct {
	Answers []service.AnswerInput `json:"answers"`
}

// @Summary 交卷
// @Description 每场考试只能提交一次，重复提交返回 409
// @Tags 考试
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "作答ID"
// @Param body body SubmitAnswersReq true "作答内容"
// @Success 200 {object} util.Response{data=service.SubmitResult}
// @Failure 400 {object} util.Response "作答格式错误"
// @Failure 409 {object} util.Response "已提交"
// @Router /api/attempts/{id}/submit [post]
func (c *AttemptController) Submit(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}

	var req SubmitAnswersReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	res, err := c.AttemptService.SubmitAnswers(ctx.Request.Context(), actor, ctx.Param("id"), req.Answers)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}

	util.Success(ctx, res)
}

// @Summary 考试结果
// @Tags 考试
// @Produce json
// @Security BearerAuth
// @Param id path string true "作答ID"
// @Success 200 {object} util.Response{data=service.AttemptResult}
// @Failure 409 {object} util.Response "尚未交卷"
// @Router /api/attempts/{id}/result [get]
func (c *AttemptController) GetResult(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}

	res, err := c.AttemptService.GetAttemptResult(ctx.Request.Context(), actor, ctx.Param("id"))
	if err != nil {
		util.RespondError(ctx, err)
		return
	}

	util.Success(ctx, res)
}

// GradeReq pointsAwarded 必须显式给出，null 表示撤销批改
type GradeReq struct {
	AnswerID      string          `json:"answerId"`
	PointsAwarded json.RawMessage `json:"pointsAwarded" swaggertype:"number"`
}

type SaveGradesReq struct {
	Grades []GradeReq `json:"grades"`
}

// toGradeInputs 区分缺省字段和显式 null
func (r SaveGradesReq) toGradeInputs() ([]service.GradeInput, error) {
	out := make([]service.GradeInput, 0, len(r.Grades))
	for i, g := range r.Grades {
		if len(g.PointsAwarded) == 0 {
			return nil, fmt.Errorf("grades[%d]: pointsAwarded is required, use null to clear a grade", i)
		}
		var points *float64
		if err := json.Unmarshal(g.PointsAwarded, &points); err != nil {
			return nil, fmt.Errorf("grades[%d]: pointsAwarded must be a number or null", i)
		}
		out = append(out, service.GradeInput{AnswerID: g.AnswerID, PointsAwarded: points})
	}
	return out, nil
}

// @Summary 保存简答题人工评分
// @Tags 阅卷
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "作答ID"
// @Param body body SaveGradesReq true "评分列表，pointsAwarded 必填，为 null 表示撤销"
// @Success 200 {object} util.Response{data=service.GradeSummary}
// @Router /api/teacher/attempts/{id}/grades [put]
func (c *AttemptController) SaveGrades(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}

	var req SaveGradesReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	grades, err := req.toGradeInputs()
	if err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	res, err := c.GradingService.SaveManualGrades(ctx.Request.Context(), actor, ctx.Param("id"), grades)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}

	util.Success(ctx, res)
}

// @Summary 重置作答
// @Description 删除作答记录，学生可重新参加考试
// @Tags 阅卷
// @Produce json
// @Security BearerAuth
// @Param id path string true "作答ID"
// @Success 200 {object} util.Response
// @Router /api/teacher/attempts/{id} [delete]
func (c *AttemptController) ResetAttempt(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}

	if err := c.AttemptService.ResetAttempt(ctx.Request.Context(), actor, ctx.Param("id")); err != nil {
		util.RespondError(ctx, err)
		return
	}

	util.Success(ctx, nil)
}

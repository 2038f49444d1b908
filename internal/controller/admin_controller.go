package controller

import (
	"exam_portal_backend/internal/service"
	"exam_portal_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type AdminController struct {
	StatsService *service.StatsService
}

func NewAdminController(statsService *service.StatsService) *AdminController {
	return &AdminController{StatsService: statsService}
}

// @Summary 平台统计
// @Tags 管理
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response{data=service.PortalStats}
// @Router /api/admin/stats [get]
func (c *AdminController) Stats(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	st, err := c.StatsService.Overview(ctx.Request.Context(), actor)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, st)
}

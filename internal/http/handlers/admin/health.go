package admin

import (
	"fmt"
	"strconv"
	"time"

	"github.com/rewardhub/internal/cache"
	"github.com/rewardhub/internal/http/response"
	"github.com/rewardhub/internal/service"

	"github.com/gin-gonic/gin"
)

// 健康报告缓存时长，聚合查询较重，短缓存即可
const healthReportCacheTTL = 30 * time.Second

// GetHealth 获取发放健康报告
func (h *Handler) GetHealth(c *gin.Context) {
	windowMinutes, _ := strconv.Atoi(c.DefaultQuery("window_minutes", "60"))

	cacheKey := fmt.Sprintf("health:report:%d", windowMinutes)
	if cache.Enabled() {
		var cached service.HealthReport
		if hit, err := cache.GetJSON(c.Request.Context(), cacheKey, &cached); err == nil && hit {
			response.Success(c, &cached)
			return
		}
	}

	report, err := h.HealthService.Report(windowMinutes)
	if err != nil {
		respondError(c, response.CodeInternal, "health report failed", err)
		return
	}

	if cache.Enabled() {
		if err := cache.SetJSON(c.Request.Context(), cacheKey, report, healthReportCacheTTL); err != nil {
			requestLog(c).Warnw("health_report_cache_write_failed", "error", err)
		}
	}
	response.Success(c, report)
}

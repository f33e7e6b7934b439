package shared

import (
	"github.com/rewardhub/internal/http/response"
	"github.com/rewardhub/internal/logger"
	"github.com/rewardhub/internal/service"
	"github.com/rewardhub/internal/taxonomy"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RequestLog 提供携带 request_id 的日志实例。
func RequestLog(c *gin.Context) *zap.SugaredLogger {
	if c == nil {
		return logger.S()
	}
	if requestID, ok := c.Get("request_id"); ok {
		if id, ok := requestID.(string); ok && id != "" {
			return logger.SW("request_id", id)
		}
	}
	return logger.S()
}

// RespondError 返回错误响应，并在有原始错误时记录日志。
func RespondError(c *gin.Context, code int, msg string, err error) {
	appErr := response.WrapError(code, "", msg, err)
	if err != nil {
		RequestLog(c).Errorw("handler_error",
			"code", appErr.Code,
			"message", appErr.Message,
			"error", err,
		)
	}
	response.Error(c, appErr.Code, appErr.Message)
}

// RespondClassifiedError 按错误分类码返回错误响应。
// 分类码取自固定错误码集合，看板按该码聚合。
func RespondClassifiedError(c *gin.Context, code int, err error) {
	errorCode := service.ClassifyError(err)
	info := taxonomy.Describe(errorCode)
	if err != nil && errorCode == taxonomy.CodeUnclassified {
		RequestLog(c).Errorw("handler_error",
			"code", code,
			"error_code", errorCode,
			"error", err,
		)
	}
	response.ErrorWithCode(c, code, string(errorCode), info.Description)
}

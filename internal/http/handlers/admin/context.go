package admin

import (
	handlershared "github.com/rewardhub/internal/http/handlers/shared"

	"github.com/gin-gonic/gin"
)

// getAdminID 从上下文读取当前管理员ID（由 JWT 中间件写入）。
func getAdminID(c *gin.Context) (uint, bool) {
	return handlershared.GetContextUint(c, "admin_id")
}

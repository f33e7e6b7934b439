package public

import "github.com/rewardhub/internal/provider"

// Handler 发放引擎接口处理器入口
// 说明：该处理器供上游活动引擎调用，不承载管理端操作。
type Handler struct {
	*provider.Container
}

// New 创建引擎处理器
func New(c *provider.Container) *Handler {
	return &Handler{Container: c}
}

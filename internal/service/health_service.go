package service

import (
	"sort"
	"time"

	"github.com/rewardhub/internal/models"
	"github.com/rewardhub/internal/repository"
	"github.com/rewardhub/internal/taxonomy"
)

// 健康评估默认参数
const (
	defaultHealthWindowMinutes = 60
	defaultLowInventoryLevel   = 10
	degradedSuccessRateFloor   = 0.90
	stalePurchaseAgeForHealth  = 10 * time.Minute
)

// 健康状态常量
const (
	HealthStatusOK       = "ok"
	HealthStatusDegraded = "degraded"
)

// HealthService 健康监控服务
// 只读聚合发放尝试日志与库存水位，不承载业务规则。
type HealthService struct {
	attemptRepo repository.ProvisionAttemptRepository
	healthRepo  repository.HealthRepository
}

// AttemptSummary 窗口内发放尝试汇总
type AttemptSummary struct {
	Total        int64   `json:"total"`
	Success      int64   `json:"success"`
	Failure      int64   `json:"failure"`
	SuccessRate  float64 `json:"success_rate"`
	AvgLatencyMs float64 `json:"avg_latency_ms"`
}

// InventoryLevel 品牌面额可用库存
type InventoryLevel struct {
	BrandID      uint         `json:"brand_id"`
	BrandName    string       `json:"brand_name"`
	Denomination models.Money `json:"denomination"`
	Available    int64        `json:"available"`
}

// ErrorBreakdown 错误码分布行，附带处置建议
type ErrorBreakdown struct {
	Code        taxonomy.Code `json:"code"`
	Category    string        `json:"category"`
	Description string        `json:"description"`
	Remediation string        `json:"remediation"`
	Count       int64         `json:"count"`
}

// HealthReport 健康报告
type HealthReport struct {
	Status                string           `json:"status"`
	GeneratedAt           time.Time        `json:"generated_at"`
	WindowMinutes         int              `json:"window_minutes"`
	Attempts              AttemptSummary   `json:"attempts"`
	TopErrorCode          taxonomy.Code    `json:"top_error_code,omitempty"`
	Errors                []ErrorBreakdown `json:"errors"`
	Sources               map[string]int64 `json:"sources"`
	Inventory             []InventoryLevel `json:"inventory"`
	LowInventoryBrands    int64            `json:"low_inventory_brands"`
	StalePendingPurchases int64            `json:"stale_pending_purchases"`
}

// NewHealthService 创建健康监控服务
func NewHealthService(attemptRepo repository.ProvisionAttemptRepository, healthRepo repository.HealthRepository) *HealthService {
	return &HealthService{attemptRepo: attemptRepo, healthRepo: healthRepo}
}

// Report 生成滚动窗口健康报告
func (s *HealthService) Report(windowMinutes int) (*HealthReport, error) {
	if windowMinutes <= 0 {
		windowMinutes = defaultHealthWindowMinutes
	}
	now := time.Now()
	since := now.Add(-time.Duration(windowMinutes) * time.Minute)

	stats, err := s.attemptRepo.WindowStats(since)
	if err != nil {
		return nil, err
	}
	errorCounts, err := s.attemptRepo.ErrorCodeCounts(since)
	if err != nil {
		return nil, err
	}
	sourceCounts, err := s.attemptRepo.SourceCounts(since)
	if err != nil {
		return nil, err
	}
	levels, err := s.healthRepo.GetInventoryLevels()
	if err != nil {
		return nil, err
	}
	lowBrands, err := s.healthRepo.CountLowInventoryBrands(defaultLowInventoryLevel)
	if err != nil {
		return nil, err
	}
	stalePending, err := s.healthRepo.CountStalePendingPurchases(now.Add(-stalePurchaseAgeForHealth))
	if err != nil {
		return nil, err
	}

	report := &HealthReport{
		GeneratedAt:           now,
		WindowMinutes:         windowMinutes,
		Sources:               sourceCounts,
		LowInventoryBrands:    lowBrands,
		StalePendingPurchases: stalePending,
	}
	report.Attempts = AttemptSummary{
		Total:        stats.Total,
		Success:      stats.Success,
		Failure:      stats.Failure,
		AvgLatencyMs: stats.AvgLatency,
	}
	if stats.Total > 0 {
		report.Attempts.SuccessRate = float64(stats.Success) / float64(stats.Total)
	} else {
		report.Attempts.SuccessRate = 1
	}

	for code, count := range errorCounts {
		info := taxonomy.Describe(taxonomy.Code(code))
		report.Errors = append(report.Errors, ErrorBreakdown{
			Code:        info.Code,
			Category:    info.Category,
			Description: info.Description,
			Remediation: info.Remediation,
			Count:       count,
		})
	}
	// 次数降序，同次数按错误码排序，保证输出稳定
	sort.Slice(report.Errors, func(i, j int) bool {
		if report.Errors[i].Count != report.Errors[j].Count {
			return report.Errors[i].Count > report.Errors[j].Count
		}
		return report.Errors[i].Code < report.Errors[j].Code
	})
	if len(report.Errors) > 0 {
		report.TopErrorCode = report.Errors[0].Code
	}
	for _, level := range levels {
		report.Inventory = append(report.Inventory, InventoryLevel{
			BrandID:      level.BrandID,
			BrandName:    level.BrandName,
			Denomination: level.Denomination,
			Available:    level.Available,
		})
	}

	report.Status = HealthStatusOK
	if report.Attempts.SuccessRate < degradedSuccessRateFloor || stalePending > 0 {
		report.Status = HealthStatusDegraded
	}
	return report, nil
}

package repository

import (
	"errors"
	"time"

	"github.com/rewardhub/internal/models"

	"gorm.io/gorm"
)

// AttemptWindowStats 滚动窗口内的发放尝试聚合
type AttemptWindowStats struct {
	Total      int64
	Success    int64
	Failure    int64
	AvgLatency float64
}

// ProvisionAttemptRepository 发放尝试日志数据访问接口
type ProvisionAttemptRepository interface {
	Create(attempt *models.ProvisionAttempt) error
	GetByCorrelationID(correlationID string) (*models.ProvisionAttempt, error)
	WindowStats(since time.Time) (*AttemptWindowStats, error)
	ErrorCodeCounts(since time.Time) (map[string]int64, error)
	SourceCounts(since time.Time) (map[string]int64, error)
	WithTx(tx *gorm.DB) *GormProvisionAttemptRepository
}

// GormProvisionAttemptRepository GORM 实现
type GormProvisionAttemptRepository struct {
	db *gorm.DB
}

// NewProvisionAttemptRepository 创建尝试日志仓库
func NewProvisionAttemptRepository(db *gorm.DB) *GormProvisionAttemptRepository {
	return &GormProvisionAttemptRepository{db: db}
}

// WithTx 绑定事务
func (r *GormProvisionAttemptRepository) WithTx(tx *gorm.DB) *GormProvisionAttemptRepository {
	if tx == nil {
		return r
	}
	return &GormProvisionAttemptRepository{db: tx}
}

// Create 写入发放尝试日志
func (r *GormProvisionAttemptRepository) Create(attempt *models.ProvisionAttempt) error {
	return r.db.Create(attempt).Error
}

// GetByCorrelationID 根据关联ID查询尝试日志
func (r *GormProvisionAttemptRepository) GetByCorrelationID(correlationID string) (*models.ProvisionAttempt, error) {
	var attempt models.ProvisionAttempt
	err := r.db.Where("correlation_id = ?", correlationID).First(&attempt).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &attempt, nil
}

// WindowStats 窗口内总量、成功失败数与平均耗时
func (r *GormProvisionAttemptRepository) WindowStats(since time.Time) (*AttemptWindowStats, error) {
	var row struct {
		Total      int64
		Success    int64
		AvgLatency float64
	}
	err := r.db.Model(&models.ProvisionAttempt{}).
		Select("COUNT(*) as total, COALESCE(SUM(CASE WHEN success THEN 1 ELSE 0 END), 0) as success, COALESCE(AVG(duration_ms), 0) as avg_latency").
		Where("started_at >= ?", since).
		Scan(&row).Error
	if err != nil {
		return nil, err
	}
	return &AttemptWindowStats{
		Total:      row.Total,
		Success:    row.Success,
		Failure:    row.Total - row.Success,
		AvgLatency: row.AvgLatency,
	}, nil
}

// ErrorCodeCounts 窗口内失败错误码分布
func (r *GormProvisionAttemptRepository) ErrorCodeCounts(since time.Time) (map[string]int64, error) {
	var rows []struct {
		ErrorCode string
		Count     int64
	}
	err := r.db.Model(&models.ProvisionAttempt{}).
		Select("error_code, COUNT(*) as count").
		Where("started_at >= ? AND success = ?", since, false).
		Group("error_code").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.ErrorCode] = row.Count
	}
	return counts, nil
}

// SourceCounts 窗口内成功发放的出卡来源分布
func (r *GormProvisionAttemptRepository) SourceCounts(since time.Time) (map[string]int64, error) {
	var rows []struct {
		Source string
		Count  int64
	}
	err := r.db.Model(&models.ProvisionAttempt{}).
		Select("source, COUNT(*) as count").
		Where("started_at >= ? AND success = ?", since, true).
		Group("source").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.Source] = row.Count
	}
	return counts, nil
}

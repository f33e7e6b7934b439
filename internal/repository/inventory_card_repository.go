package repository

import (
	"errors"
	"time"

	"github.com/rewardhub/internal/constants"
	"github.com/rewardhub/internal/models"

	"gorm.io/gorm"
)

// ErrNoAvailableCard 无可认领库存
var ErrNoAvailableCard = errors.New("no available inventory card")

// claimCandidateBatch 每轮 CAS 竞争时拉取的候选卡数量
const claimCandidateBatch = 5

// InventoryCardRepository 礼品卡库存数据访问接口
type InventoryCardRepository interface {
	CreateBatch(items []models.InventoryCard) error
	GetByID(id uint) (*models.InventoryCard, error)
	GetByCode(code string) (*models.InventoryCard, error)
	GetByPurchaseKey(key string) (*models.InventoryCard, error)
	ClaimAvailable(brandID uint, denomination models.Money, recipientID, campaignID uint, at time.Time) (*models.InventoryCard, error)
	Release(cardID uint) (bool, error)
	RecordExternalCard(card *models.InventoryCard) error
	MarkDelivered(cardID uint, at time.Time) (bool, error)
	MarkRedeemed(cardID uint, at time.Time) (bool, error)
	CountAvailable(brandID uint, denomination models.Money) (int64, error)
	ListByBatch(batchID uint, page, pageSize int) ([]models.InventoryCard, int64, error)
	WithTx(tx *gorm.DB) *GormInventoryCardRepository
}

// GormInventoryCardRepository GORM 实现
type GormInventoryCardRepository struct {
	db *gorm.DB
	// claimMaxBatches 认领竞争时最多拉取的候选批次轮数
	claimMaxBatches int
}

// NewInventoryCardRepository 创建库存卡仓库
func NewInventoryCardRepository(db *gorm.DB) *GormInventoryCardRepository {
	return &GormInventoryCardRepository{db: db, claimMaxBatches: constants.DefaultClaimMaxRetries}
}

// SetClaimMaxRetries 设置认领候选批次轮数上限
func (r *GormInventoryCardRepository) SetClaimMaxRetries(n int) {
	if n > 0 {
		r.claimMaxBatches = n
	}
}

// WithTx 绑定事务
func (r *GormInventoryCardRepository) WithTx(tx *gorm.DB) *GormInventoryCardRepository {
	if tx == nil {
		return r
	}
	return &GormInventoryCardRepository{db: tx, claimMaxBatches: r.claimMaxBatches}
}

// CreateBatch 批量创建库存卡
func (r *GormInventoryCardRepository) CreateBatch(items []models.InventoryCard) error {
	if len(items) == 0 {
		return nil
	}
	return r.db.Create(&items).Error
}

// GetByID 根据 ID 获取库存卡
func (r *GormInventoryCardRepository) GetByID(id uint) (*models.InventoryCard, error) {
	var card models.InventoryCard
	if err := r.db.Preload("Brand").First(&card, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &card, nil
}

// GetByCode 根据卡密获取库存卡
func (r *GormInventoryCardRepository) GetByCode(code string) (*models.InventoryCard, error) {
	var card models.InventoryCard
	if err := r.db.Where("card_code = ?", code).First(&card).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &card, nil
}

// GetByPurchaseKey 根据采购幂等键获取库存卡
func (r *GormInventoryCardRepository) GetByPurchaseKey(key string) (*models.InventoryCard, error) {
	var card models.InventoryCard
	if err := r.db.Where("purchase_key = ?", key).First(&card).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &card, nil
}

// ClaimAvailable 原子认领一张匹配的可用卡
// 实现为候选查询 + 条件更新（CAS）：更新语句以
// status = 'available' 为前置条件，RowsAffected = 0 即竞争失败，
// 换下一个候选重试。绝不做读取后盲写。
func (r *GormInventoryCardRepository) ClaimAvailable(brandID uint, denomination models.Money, recipientID, campaignID uint, at time.Time) (*models.InventoryCard, error) {
	if brandID == 0 {
		return nil, ErrNoAvailableCard
	}

	var lastSeenID uint
	for round := 0; round < r.claimMaxBatches; round++ {
		var candidates []models.InventoryCard
		query := r.db.
			Where("brand_id = ? AND denomination = ? AND status = ?", brandID, denomination, constants.CardStatusAvailable).
			Order("id asc").
			Limit(claimCandidateBatch)
		if lastSeenID > 0 {
			query = query.Where("id > ?", lastSeenID)
		}
		if err := query.Find(&candidates).Error; err != nil {
			return nil, err
		}
		if len(candidates) == 0 {
			return nil, ErrNoAvailableCard
		}

		for i := range candidates {
			candidate := candidates[i]
			lastSeenID = candidate.ID
			result := r.db.Model(&models.InventoryCard{}).
				Where("id = ? AND status = ?", candidate.ID, constants.CardStatusAvailable).
				Updates(map[string]interface{}{
					"status":                constants.CardStatusClaimed,
					"assigned_recipient_id": recipientID,
					"assigned_campaign_id":  campaignID,
					"assigned_at":           at,
					"updated_at":            at,
				})
			if result.Error != nil {
				return nil, result.Error
			}
			if result.RowsAffected == 0 {
				// 竞争失败，该卡已被并发调用方认领
				continue
			}

			candidate.Status = constants.CardStatusClaimed
			candidate.AssignedRecipientID = &recipientID
			candidate.AssignedCampaignID = &campaignID
			candidate.AssignedAt = &at
			return &candidate, nil
		}
	}
	// 达到批次轮数上限仍全部竞争失败，按无库存处理
	return nil, ErrNoAvailableCard
}

// Release 将卡置回可用状态并清空分配字段，仅撤销流程使用
func (r *GormInventoryCardRepository) Release(cardID uint) (bool, error) {
	if cardID == 0 {
		return false, nil
	}
	now := time.Now()
	result := r.db.Model(&models.InventoryCard{}).
		Where("id = ? AND status NOT IN ?", cardID, []string{constants.CardStatusAvailable, constants.CardStatusRedeemed}).
		Updates(map[string]interface{}{
			"status":                constants.CardStatusAvailable,
			"assigned_recipient_id": nil,
			"assigned_campaign_id":  nil,
			"assigned_at":           nil,
			"updated_at":            now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// RecordExternalCard 记录实时采购的卡，落库即为 claimed 状态
func (r *GormInventoryCardRepository) RecordExternalCard(card *models.InventoryCard) error {
	if card == nil {
		return errors.New("card is nil")
	}
	card.Status = constants.CardStatusClaimed
	card.Source = constants.CardSourceExternal
	return r.db.Create(card).Error
}

// MarkDelivered 标记卡已交付
func (r *GormInventoryCardRepository) MarkDelivered(cardID uint, at time.Time) (bool, error) {
	result := r.db.Model(&models.InventoryCard{}).
		Where("id = ? AND status = ?", cardID, constants.CardStatusClaimed).
		Updates(map[string]interface{}{
			"status":     constants.CardStatusDelivered,
			"updated_at": at,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// MarkRedeemed 标记卡已兑换
func (r *GormInventoryCardRepository) MarkRedeemed(cardID uint, at time.Time) (bool, error) {
	result := r.db.Model(&models.InventoryCard{}).
		Where("id = ? AND status = ?", cardID, constants.CardStatusDelivered).
		Updates(map[string]interface{}{
			"status":     constants.CardStatusRedeemed,
			"updated_at": at,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// CountAvailable 统计可用库存
func (r *GormInventoryCardRepository) CountAvailable(brandID uint, denomination models.Money) (int64, error) {
	var count int64
	query := r.db.Model(&models.InventoryCard{}).
		Where("brand_id = ? AND status = ?", brandID, constants.CardStatusAvailable)
	if !denomination.IsZero() {
		query = query.Where("denomination = ?", denomination)
	}
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// ListByBatch 按批次获取库存卡列表
func (r *GormInventoryCardRepository) ListByBatch(batchID uint, page, pageSize int) ([]models.InventoryCard, int64, error) {
	if batchID == 0 {
		return nil, 0, errors.New("invalid batch id")
	}
	query := r.db.Model(&models.InventoryCard{}).Where("batch_id = ?", batchID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var items []models.InventoryCard
	if err := applyPagination(query, page, pageSize).Order("id asc").Find(&items).Error; err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

package service

import (
	"github.com/rewardhub/internal/constants"
	"github.com/rewardhub/internal/models"
	"github.com/rewardhub/internal/repository"
)

// PricingService 定价服务
// 成本与客户价始终同时计算：成本随出卡来源变化，客户价不随。
type PricingService struct {
	brandRepo   repository.BrandRepository
	pricingRepo repository.PricingRepository
}

// PriceQuote 定价结果
type PriceQuote struct {
	Denomination models.Money `json:"denomination"` // 面额
	CostBasis    models.Money `json:"cost_basis"`   // 成本（按来源）
	ClientPrice  models.Money `json:"client_price"` // 客户计费价
	Source       string       `json:"source"`       // 出卡来源
}

// NewPricingService 创建定价服务
func NewPricingService(brandRepo repository.BrandRepository, pricingRepo repository.PricingRepository) *PricingService {
	return &PricingService{brandRepo: brandRepo, pricingRepo: pricingRepo}
}

// ResolvePrice 解析品牌面额在指定出卡来源下的成本与客户价
// 面额必须预先配置，任意面额一律拒绝。
func (s *PricingService) ResolvePrice(brandID uint, denomination models.Money, source string) (*PriceQuote, error) {
	brand, err := s.brandRepo.GetByID(brandID)
	if err != nil {
		return nil, err
	}
	if brand == nil {
		return nil, ErrBrandNotFound
	}
	if !brand.IsActive {
		return nil, ErrBrandDisabled
	}

	entry, err := s.pricingRepo.GetByBrandDenomination(brandID, denomination)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, ErrDenominationNotConfigured
	}

	return &PriceQuote{
		Denomination: entry.Denomination,
		CostBasis:    resolveCostBasis(entry, source),
		ClientPrice:  resolveClientPrice(entry),
		Source:       source,
	}, nil
}

// ListBrandPricing 获取品牌全部面额配置
func (s *PricingService) ListBrandPricing(brandID uint) ([]models.BrandDenomination, error) {
	brand, err := s.brandRepo.GetByID(brandID)
	if err != nil {
		return nil, err
	}
	if brand == nil {
		return nil, ErrBrandNotFound
	}
	return s.pricingRepo.ListByBrand(brandID)
}

// resolveCostBasis 按来源解析成本；未配置时按面额计
func resolveCostBasis(entry *models.BrandDenomination, source string) models.Money {
	if source == constants.CardSourceExternal {
		if entry.ExternalCost != nil {
			return *entry.ExternalCost
		}
		return entry.Denomination
	}
	if entry.CostBasis != nil {
		return *entry.CostBasis
	}
	return entry.Denomination
}

// resolveClientPrice 解析客户价；未启用自定义定价时恒等于面额
func resolveClientPrice(entry *models.BrandDenomination) models.Money {
	if entry.UseCustomPricing && entry.ClientPrice != nil {
		return *entry.ClientPrice
	}
	return entry.Denomination
}

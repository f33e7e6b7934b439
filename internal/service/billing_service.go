package service

import (
	"strings"
	"time"

	"github.com/rewardhub/internal/constants"
	"github.com/rewardhub/internal/models"
	"github.com/rewardhub/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// BillingService 计费服务
// 流水仅追加；撤销以负向调整单体现，绝不改写历史行。
type BillingService struct {
	ledgerRepo repository.BillingLedgerRepository
	creditRepo repository.CreditGrantRepository
}

// RecordBillingInput 计费入账输入
type RecordBillingInput struct {
	AssignmentID *uint
	RecipientID  uint
	CampaignID   uint
	BrandID      uint
	Denomination models.Money
	CostBasis    models.Money
	ClientPrice  models.Money
	Source       string
	BilledAt     time.Time
}

// GrantCreditsInput 额度充值输入
type GrantCreditsInput struct {
	EntityType string
	EntityID   uint
	Amount     models.Money
	Note       string
	GrantedBy  *uint
}

// CreditSummary 账户额度概览
type CreditSummary struct {
	EntityType string       `json:"entity_type"`
	EntityID   uint         `json:"entity_id"`
	Granted    models.Money `json:"granted"`
	Billed     models.Money `json:"billed"`
	Available  models.Money `json:"available"`
}

// NewBillingService 创建计费服务
func NewBillingService(ledgerRepo repository.BillingLedgerRepository, creditRepo repository.CreditGrantRepository) *BillingService {
	return &BillingService{ledgerRepo: ledgerRepo, creditRepo: creditRepo}
}

// RecordBilling 追加计费流水
func (s *BillingService) RecordBilling(tx *gorm.DB, input RecordBillingInput) (*models.BillingLedgerEntry, error) {
	billedAt := input.BilledAt
	if billedAt.IsZero() {
		billedAt = time.Now()
	}
	entry := &models.BillingLedgerEntry{
		AssignmentID: input.AssignmentID,
		RecipientID:  input.RecipientID,
		CampaignID:   input.CampaignID,
		BrandID:      input.BrandID,
		Denomination: input.Denomination,
		CostBasis:    input.CostBasis,
		ClientPrice:  input.ClientPrice,
		Source:       input.Source,
		BilledAt:     billedAt,
	}
	if err := s.ledgerRepo.WithTx(tx).Create(entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// RecordAdjustment 追加撤销负向调整单
// 金额取原流水的相反数，来源标记为调整。
func (s *BillingService) RecordAdjustment(tx *gorm.DB, original *models.BillingLedgerEntry, at time.Time) (*models.BillingLedgerEntry, error) {
	adjustment := &models.BillingLedgerEntry{
		AssignmentID: original.AssignmentID,
		RecipientID:  original.RecipientID,
		CampaignID:   original.CampaignID,
		BrandID:      original.BrandID,
		Denomination: original.Denomination,
		CostBasis:    models.NewMoneyFromDecimal(original.CostBasis.Decimal.Neg()),
		ClientPrice:  models.NewMoneyFromDecimal(original.ClientPrice.Decimal.Neg()),
		Source:       constants.BillingSourceAdjustment,
		BilledAt:     at,
	}
	if err := s.ledgerRepo.WithTx(tx).Create(adjustment); err != nil {
		return nil, err
	}
	return adjustment, nil
}

// GrantCredits 充值账户额度
func (s *BillingService) GrantCredits(input GrantCreditsInput) (*models.CreditGrant, error) {
	entityType := strings.TrimSpace(input.EntityType)
	if entityType != constants.CreditEntityCampaign && entityType != constants.CreditEntityClient {
		return nil, ErrCreditGrantInvalid
	}
	if input.EntityID == 0 || input.Amount.Decimal.LessThanOrEqual(decimal.Zero) {
		return nil, ErrCreditGrantInvalid
	}
	grant := &models.CreditGrant{
		EntityType: entityType,
		EntityID:   input.EntityID,
		Amount:     input.Amount,
		Note:       strings.TrimSpace(input.Note),
		GrantedBy:  input.GrantedBy,
		CreatedAt:  time.Now(),
	}
	if err := s.creditRepo.Create(grant); err != nil {
		return nil, err
	}
	return grant, nil
}

// GetAvailableCredits 账户可用额度（充值合计 - 计费合计）
// 流水只带活动维度，client 账户的充值仅作开票备查，余额读取不支持。
func (s *BillingService) GetAvailableCredits(entityType string, entityID uint) (*CreditSummary, error) {
	entityType = strings.TrimSpace(entityType)
	if entityType == "" {
		entityType = constants.CreditEntityCampaign
	}
	if entityType != constants.CreditEntityCampaign || entityID == 0 {
		return nil, ErrCreditGrantInvalid
	}
	granted, err := s.creditRepo.SumGrants(entityType, entityID)
	if err != nil {
		return nil, err
	}
	billed, err := s.ledgerRepo.SumBilledByCampaign(entityID)
	if err != nil {
		return nil, err
	}
	return &CreditSummary{
		EntityType: entityType,
		EntityID:   entityID,
		Granted:    granted,
		Billed:     billed,
		Available:  models.NewMoneyFromDecimal(granted.Decimal.Sub(billed.Decimal)),
	}, nil
}

// CheckCredits 校验活动额度是否足以覆盖本次计费
// 活动从未充值过视为不限额（额度控制为可选准入）。
func (s *BillingService) CheckCredits(campaignID uint, clientPrice models.Money) error {
	granted, err := s.creditRepo.SumGrants(constants.CreditEntityCampaign, campaignID)
	if err != nil {
		return err
	}
	if granted.Decimal.IsZero() {
		return nil
	}
	billed, err := s.ledgerRepo.SumBilledByCampaign(campaignID)
	if err != nil {
		return err
	}
	available := granted.Decimal.Sub(billed.Decimal)
	if available.LessThan(clientPrice.Decimal) {
		return ErrInsufficientCredits
	}
	return nil
}

// ListCampaignLedger 活动计费流水分页列表
func (s *BillingService) ListCampaignLedger(campaignID uint, page, pageSize int) ([]models.BillingLedgerEntry, int64, error) {
	return s.ledgerRepo.ListByCampaign(campaignID, page, pageSize)
}

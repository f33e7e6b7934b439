package service

import (
	"encoding/csv"
	"fmt"
	"io"
	"math/rand"
	"strings"
	"time"

	"github.com/rewardhub/internal/constants"
	"github.com/rewardhub/internal/models"
	"github.com/rewardhub/internal/repository"

	"gorm.io/gorm"
)

// InventoryService 库存服务
type InventoryService struct {
	db          *gorm.DB
	brandRepo   repository.BrandRepository
	pricingRepo repository.PricingRepository
	cardRepo    repository.InventoryCardRepository
	batchRepo   repository.InventoryBatchRepository
}

// ImportCSVInput CSV 导入输入
type ImportCSVInput struct {
	BrandID      uint
	Denomination models.Money
	Source       string
	Note         string
	CreatedBy    *uint
}

// ImportResult 导入结果
type ImportResult struct {
	Batch    *models.InventoryBatch `json:"batch"`
	Imported int                    `json:"imported"`
	Skipped  int                    `json:"skipped"`
}

// InventoryStats 品牌库存统计
type InventoryStats struct {
	BrandID   uint  `json:"brand_id"`
	Available int64 `json:"available"`
}

// NewInventoryService 创建库存服务
func NewInventoryService(
	db *gorm.DB,
	brandRepo repository.BrandRepository,
	pricingRepo repository.PricingRepository,
	cardRepo repository.InventoryCardRepository,
	batchRepo repository.InventoryBatchRepository,
) *InventoryService {
	return &InventoryService{
		db:          db,
		brandRepo:   brandRepo,
		pricingRepo: pricingRepo,
		cardRepo:    cardRepo,
		batchRepo:   batchRepo,
	}
}

// ImportCSV 导入一批 CSV 卡密
// 面额必须已配置；重复卡密（文件内或库内）跳过不报错。
func (s *InventoryService) ImportCSV(reader io.Reader, input ImportCSVInput) (*ImportResult, error) {
	brand, err := s.brandRepo.GetByID(input.BrandID)
	if err != nil {
		return nil, err
	}
	if brand == nil {
		return nil, ErrBrandNotFound
	}
	entry, err := s.pricingRepo.GetByBrandDenomination(input.BrandID, input.Denomination)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, ErrDenominationNotConfigured
	}

	rows, err := parseInventoryCSV(reader)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInventoryImportInvalid, err)
	}
	if len(rows) == 0 {
		return nil, ErrInventoryImportInvalid
	}

	source := strings.TrimSpace(input.Source)
	if source == "" {
		source = constants.InventoryBatchSourceCSV
	}

	now := time.Now()
	batch := &models.InventoryBatch{
		BrandID:   input.BrandID,
		BatchNo:   generateBatchNo(),
		Source:    source,
		Note:      strings.TrimSpace(input.Note),
		CreatedBy: input.CreatedBy,
		CreatedAt: now,
		UpdatedAt: now,
	}

	imported := 0
	skipped := 0
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.batchRepo.WithTx(tx).Create(batch); err != nil {
			return err
		}
		batchID := batch.ID
		cards := make([]models.InventoryCard, 0, len(rows))
		for _, row := range rows {
			existing, err := s.cardRepo.WithTx(tx).GetByCode(row.cardCode)
			if err != nil {
				return err
			}
			if existing != nil {
				skipped++
				continue
			}
			card := models.InventoryCard{
				BrandID:      input.BrandID,
				BatchID:      &batchID,
				Denomination: input.Denomination,
				Status:       constants.CardStatusAvailable,
				Source:       constants.CardSourceCSV,
				CardCode:     row.cardCode,
				ExpiresAt:    row.expiresAt,
				CreatedAt:    now,
				UpdatedAt:    now,
			}
			if row.cardNumber != "" {
				number := row.cardNumber
				card.CardNumber = &number
			}
			cards = append(cards, card)
		}
		if err := s.cardRepo.WithTx(tx).CreateBatch(cards); err != nil {
			return err
		}
		imported = len(cards)
		batch.TotalCount = imported
		return tx.Model(&models.InventoryBatch{}).
			Where("id = ?", batch.ID).
			Update("total_count", imported).Error
	})
	if err != nil {
		return nil, err
	}
	return &ImportResult{Batch: batch, Imported: imported, Skipped: skipped}, nil
}

// Stats 品牌可用库存统计
func (s *InventoryService) Stats(brandID uint) (*InventoryStats, error) {
	brand, err := s.brandRepo.GetByID(brandID)
	if err != nil {
		return nil, err
	}
	if brand == nil {
		return nil, ErrBrandNotFound
	}
	available, err := s.cardRepo.CountAvailable(brandID, models.Money{})
	if err != nil {
		return nil, err
	}
	return &InventoryStats{BrandID: brandID, Available: available}, nil
}

// ListBatches 批次分页列表
func (s *InventoryService) ListBatches(page, pageSize int) ([]models.InventoryBatch, int64, error) {
	return s.batchRepo.List(page, pageSize)
}

type inventoryCSVRow struct {
	cardCode   string
	cardNumber string
	expiresAt  *time.Time
}

// parseInventoryCSV 解析导入文件
// 首行可以是表头（card_code[,card_number][,expires_at]），
// 也可以直接是数据；文件内重复卡密去重。
func parseInventoryCSV(reader io.Reader) ([]inventoryCSVRow, error) {
	csvReader := csv.NewReader(reader)
	csvReader.TrimLeadingSpace = true
	csvReader.FieldsPerRecord = -1

	var (
		rows       []inventoryCSVRow
		headerRead bool
		codeIdx    = 0
		numberIdx  = -1
		expiresIdx = -1
	)
	seen := make(map[string]struct{})
	for {
		record, err := csvReader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(record) == 0 {
			continue
		}
		if !headerRead {
			headerRead = true
			skipRow := false
			for i, col := range record {
				name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(col, "\uFEFF")))
				switch name {
				case "card_code", "code":
					codeIdx = i
					skipRow = true
				case "card_number", "number":
					numberIdx = i
					skipRow = true
				case "expires_at":
					expiresIdx = i
					skipRow = true
				}
			}
			if skipRow {
				continue
			}
		}
		if codeIdx >= len(record) {
			continue
		}
		code := strings.TrimSpace(strings.TrimPrefix(record[codeIdx], "\uFEFF"))
		if code == "" {
			continue
		}
		if _, ok := seen[code]; ok {
			continue
		}
		seen[code] = struct{}{}

		row := inventoryCSVRow{cardCode: code}
		if numberIdx >= 0 && numberIdx < len(record) {
			row.cardNumber = strings.TrimSpace(record[numberIdx])
		}
		if expiresIdx >= 0 && expiresIdx < len(record) {
			if raw := strings.TrimSpace(record[expiresIdx]); raw != "" {
				if t, err := time.Parse(time.RFC3339, raw); err == nil {
					row.expiresAt = &t
				} else if t, err := time.Parse("2006-01-02", raw); err == nil {
					row.expiresAt = &t
				}
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func generateBatchNo() string {
	now := time.Now().Format("20060102150405")
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	return fmt.Sprintf("INV-%s-%04d", now, rng.Intn(10000))
}

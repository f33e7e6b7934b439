package main

import (
	"fmt"
	"time"

	"github.com/rewardhub/internal/config"
	"github.com/rewardhub/internal/constants"
	"github.com/rewardhub/internal/logger"
	"github.com/rewardhub/internal/models"
)

func main() {
	// 连接数据库
	cfg := config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	stdLog := logger.StdLogger()
	if err := models.InitDB(cfg.Database.Driver, cfg.Database.DSN, models.DBPoolConfig{
		MaxOpenConns:           cfg.Database.Pool.MaxOpenConns,
		MaxIdleConns:           cfg.Database.Pool.MaxIdleConns,
		ConnMaxLifetimeSeconds: cfg.Database.Pool.ConnMaxLifetimeSeconds,
		ConnMaxIdleTimeSeconds: cfg.Database.Pool.ConnMaxIdleTimeSeconds,
	}); err != nil {
		stdLog.Fatalf("Failed to connect database: %v", err)
	}

	// 自动迁移
	if err := models.AutoMigrate(); err != nil {
		stdLog.Fatalf("Failed to migrate database: %v", err)
	}

	// 添加品牌
	brands := []models.Brand{
		{Name: "Amazon", ExternalPurchaseCode: "AMZ-GC", IsActive: true},
		{Name: "Starbucks", ExternalPurchaseCode: "", IsActive: true},
		{Name: "Steam", ExternalPurchaseCode: "STEAM-GC", IsActive: true},
	}
	for i := range brands {
		var existing models.Brand
		if err := models.DB.Where("name = ?", brands[i].Name).First(&existing).Error; err != nil {
			if err := models.DB.Create(&brands[i]).Error; err != nil {
				stdLog.Printf("Failed to create brand %s: %v", brands[i].Name, err)
			} else {
				stdLog.Printf("Created brand: %s", brands[i].Name)
			}
		} else {
			brands[i] = existing
			stdLog.Printf("Brand already exists: %s", existing.Name)
		}
	}

	// 面额定价配置
	customPrice := models.MustMoney("48.50")
	externalCost := models.MustMoney("47.80")
	denominations := []models.BrandDenomination{
		{BrandID: brands[0].ID, Denomination: models.MustMoney("25.00")},
		{BrandID: brands[0].ID, Denomination: models.MustMoney("50.00"), ClientPrice: &customPrice, UseCustomPricing: true, ExternalCost: &externalCost},
		{BrandID: brands[1].ID, Denomination: models.MustMoney("10.00")},
		{BrandID: brands[2].ID, Denomination: models.MustMoney("20.00")},
	}
	for _, d := range denominations {
		var existing models.BrandDenomination
		err := models.DB.
			Where("brand_id = ? AND denomination = ?", d.BrandID, d.Denomination).
			First(&existing).Error
		if err != nil {
			if err := models.DB.Create(&d).Error; err != nil {
				stdLog.Printf("Failed to create denomination %s for brand %d: %v", d.Denomination.String(), d.BrandID, err)
			} else {
				stdLog.Printf("Created denomination %s for brand %d", d.Denomination.String(), d.BrandID)
			}
		} else {
			stdLog.Printf("Denomination already exists: brand %d / %s", d.BrandID, d.Denomination.String())
		}
	}

	// 收件人
	recipients := []models.Recipient{
		{Name: "张伟", Email: "zhangwei@example.com", Phone: "13800000001"},
		{Name: "李娜", Email: "lina@example.com", Phone: "13800000002"},
		{Name: "Alice Chen", Email: "alice.chen@example.com"},
	}
	for _, r := range recipients {
		var existing models.Recipient
		if err := models.DB.Where("email = ?", r.Email).First(&existing).Error; err != nil {
			if err := models.DB.Create(&r).Error; err != nil {
				stdLog.Printf("Failed to create recipient %s: %v", r.Email, err)
			} else {
				stdLog.Printf("Created recipient: %s", r.Email)
			}
		} else {
			stdLog.Printf("Recipient already exists: %s", r.Email)
		}
	}

	// 演示库存批次：Amazon 25 面额 5 张卡
	batchNo := "SEED-AMZ-25"
	var existingBatch models.InventoryBatch
	if err := models.DB.Where("batch_no = ?", batchNo).First(&existingBatch).Error; err != nil {
		batch := models.InventoryBatch{
			BrandID:    brands[0].ID,
			BatchNo:    batchNo,
			Source:     constants.InventoryBatchSourceSeed,
			TotalCount: 5,
			Note:       "演示库存",
		}
		if err := models.DB.Create(&batch).Error; err != nil {
			stdLog.Fatalf("Failed to create inventory batch: %v", err)
		}
		now := time.Now()
		for i := 1; i <= batch.TotalCount; i++ {
			card := models.InventoryCard{
				BrandID:      brands[0].ID,
				BatchID:      &batch.ID,
				Denomination: models.MustMoney("25.00"),
				Status:       constants.CardStatusAvailable,
				Source:       constants.CardSourceCSV,
				CardCode:     fmt.Sprintf("SEED-AMZ25-%s-%03d", now.Format("20060102"), i),
			}
			if err := models.DB.Create(&card).Error; err != nil {
				stdLog.Printf("Failed to create seed card %d: %v", i, err)
			}
		}
		stdLog.Printf("Created inventory batch %s with %d cards", batchNo, batch.TotalCount)
	} else {
		stdLog.Printf("Inventory batch already exists: %s", batchNo)
	}

	// 演示活动额度
	var grantCount int64
	models.DB.Model(&models.CreditGrant{}).
		Where("entity_type = ? AND entity_id = ?", constants.CreditEntityCampaign, 1).
		Count(&grantCount)
	if grantCount == 0 {
		grant := models.CreditGrant{
			EntityType: constants.CreditEntityCampaign,
			EntityID:   1,
			Amount:     models.MustMoney("500.00"),
			Note:       "演示活动预充额度",
		}
		if err := models.DB.Create(&grant).Error; err != nil {
			stdLog.Printf("Failed to create credit grant: %v", err)
		} else {
			stdLog.Printf("Created credit grant for campaign 1: %s", grant.Amount.String())
		}
	} else {
		stdLog.Printf("Credit grant already exists for campaign 1")
	}

	stdLog.Printf("Seed completed")
}

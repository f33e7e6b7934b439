package service

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/rewardhub/internal/constants"
	"github.com/rewardhub/internal/models"
	"github.com/rewardhub/internal/repository"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func setupInventoryServiceTest(t *testing.T) (*InventoryService, *gorm.DB, models.Brand) {
	t.Helper()
	dsn := fmt.Sprintf("file:inventory_service_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(
		&models.Brand{},
		&models.BrandDenomination{},
		&models.InventoryBatch{},
		&models.InventoryCard{},
	); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}

	brand := models.Brand{Name: fmt.Sprintf("Acme %d", time.Now().UnixNano()), IsActive: true}
	if err := db.Create(&brand).Error; err != nil {
		t.Fatalf("create brand failed: %v", err)
	}
	if err := db.Create(&models.BrandDenomination{
		BrandID:      brand.ID,
		Denomination: models.MustMoney("25.00"),
	}).Error; err != nil {
		t.Fatalf("create denomination failed: %v", err)
	}

	svc := NewInventoryService(
		db,
		repository.NewBrandRepository(db),
		repository.NewPricingRepository(db),
		repository.NewInventoryCardRepository(db),
		repository.NewInventoryBatchRepository(db),
	)
	return svc, db, brand
}

func TestImportCSVWithHeader(t *testing.T) {
	svc, db, brand := setupInventoryServiceTest(t)
	payload := strings.Join([]string{
		"card_code,card_number,expires_at",
		"GC-AAA-111,4111222233334444,2027-12-31",
		"GC-BBB-222,,",
		"GC-AAA-111,dup,", // 文件内重复
		"",
	}, "\n")

	result, err := svc.ImportCSV(strings.NewReader(payload), ImportCSVInput{
		BrandID:      brand.ID,
		Denomination: models.MustMoney("25.00"),
		Note:         "march restock",
	})
	if err != nil {
		t.Fatalf("import failed: %v", err)
	}
	if result.Imported != 2 {
		t.Fatalf("expected 2 imported, got %d", result.Imported)
	}
	if result.Batch.Source != constants.InventoryBatchSourceCSV {
		t.Fatalf("expected csv batch source, got %s", result.Batch.Source)
	}
	if result.Batch.TotalCount != 2 {
		t.Fatalf("expected batch total 2, got %d", result.Batch.TotalCount)
	}

	var card models.InventoryCard
	if err := db.Where("card_code = ?", "GC-AAA-111").First(&card).Error; err != nil {
		t.Fatalf("load card failed: %v", err)
	}
	if card.Status != constants.CardStatusAvailable || card.Source != constants.CardSourceCSV {
		t.Fatalf("unexpected card state: %+v", card)
	}
	if card.CardNumber == nil || *card.CardNumber != "4111222233334444" {
		t.Fatal("expected card number imported")
	}
	if card.ExpiresAt == nil {
		t.Fatal("expected expiry imported")
	}
	if card.BatchID == nil || *card.BatchID != result.Batch.ID {
		t.Fatal("expected card linked to batch")
	}
}

func TestImportCSVWithoutHeader(t *testing.T) {
	svc, _, brand := setupInventoryServiceTest(t)
	payload := "GC-PLAIN-1\nGC-PLAIN-2\nGC-PLAIN-3\n"

	result, err := svc.ImportCSV(strings.NewReader(payload), ImportCSVInput{
		BrandID:      brand.ID,
		Denomination: models.MustMoney("25.00"),
	})
	if err != nil {
		t.Fatalf("import failed: %v", err)
	}
	if result.Imported != 3 {
		t.Fatalf("expected 3 imported, got %d", result.Imported)
	}
}

func TestImportCSVSkipsExistingCodes(t *testing.T) {
	svc, db, brand := setupInventoryServiceTest(t)
	if err := db.Create(&models.InventoryCard{
		BrandID:      brand.ID,
		Denomination: models.MustMoney("25.00"),
		CardCode:     "GC-EXISTS",
		Status:       constants.CardStatusAvailable,
		Source:       constants.CardSourceCSV,
	}).Error; err != nil {
		t.Fatalf("seed existing card failed: %v", err)
	}

	result, err := svc.ImportCSV(strings.NewReader("GC-EXISTS\nGC-NEW\n"), ImportCSVInput{
		BrandID:      brand.ID,
		Denomination: models.MustMoney("25.00"),
	})
	if err != nil {
		t.Fatalf("import failed: %v", err)
	}
	if result.Imported != 1 || result.Skipped != 1 {
		t.Fatalf("expected 1 imported 1 skipped, got %d/%d", result.Imported, result.Skipped)
	}
}

func TestImportCSVRejectsUnconfiguredDenomination(t *testing.T) {
	svc, _, brand := setupInventoryServiceTest(t)

	_, err := svc.ImportCSV(strings.NewReader("GC-X\n"), ImportCSVInput{
		BrandID:      brand.ID,
		Denomination: models.MustMoney("37.00"),
	})
	if !errors.Is(err, ErrDenominationNotConfigured) {
		t.Fatalf("expected ErrDenominationNotConfigured, got %v", err)
	}
}

func TestImportCSVEmptyPayload(t *testing.T) {
	svc, _, brand := setupInventoryServiceTest(t)

	_, err := svc.ImportCSV(strings.NewReader("card_code\n"), ImportCSVInput{
		BrandID:      brand.ID,
		Denomination: models.MustMoney("25.00"),
	})
	if !errors.Is(err, ErrInventoryImportInvalid) {
		t.Fatalf("expected ErrInventoryImportInvalid, got %v", err)
	}
}

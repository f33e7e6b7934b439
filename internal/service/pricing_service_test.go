package service

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rewardhub/internal/constants"
	"github.com/rewardhub/internal/models"
	"github.com/rewardhub/internal/repository"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func setupPricingServiceTest(t *testing.T) (*PricingService, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:pricing_service_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(&models.Brand{}, &models.BrandDenomination{}); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	svc := NewPricingService(repository.NewBrandRepository(db), repository.NewPricingRepository(db))
	return svc, db
}

func seedBrandWithDenomination(t *testing.T, db *gorm.DB, entry models.BrandDenomination) models.Brand {
	t.Helper()
	brand := models.Brand{Name: fmt.Sprintf("Acme %d", time.Now().UnixNano()), IsActive: true}
	if err := db.Create(&brand).Error; err != nil {
		t.Fatalf("create brand failed: %v", err)
	}
	entry.BrandID = brand.ID
	if err := db.Create(&entry).Error; err != nil {
		t.Fatalf("create denomination failed: %v", err)
	}
	return brand
}

func TestResolvePriceDefaultsToDenomination(t *testing.T) {
	svc, db := setupPricingServiceTest(t)
	brand := seedBrandWithDenomination(t, db, models.BrandDenomination{
		Denomination: models.MustMoney("25.00"),
	})

	quote, err := svc.ResolvePrice(brand.ID, models.MustMoney("25.00"), constants.CardSourceCSV)
	if err != nil {
		t.Fatalf("resolve price failed: %v", err)
	}
	if !quote.CostBasis.Equal(models.MustMoney("25.00")) {
		t.Fatalf("expected cost 25.00, got %s", quote.CostBasis.String())
	}
	if !quote.ClientPrice.Equal(models.MustMoney("25.00")) {
		t.Fatalf("expected client price 25.00, got %s", quote.ClientPrice.String())
	}
}

func TestResolvePriceCostVariesBySource(t *testing.T) {
	svc, db := setupPricingServiceTest(t)
	csvCost := models.MustMoney("21.50")
	externalCost := models.MustMoney("23.75")
	brand := seedBrandWithDenomination(t, db, models.BrandDenomination{
		Denomination: models.MustMoney("25.00"),
		CostBasis:    &csvCost,
		ExternalCost: &externalCost,
	})

	quote, err := svc.ResolvePrice(brand.ID, models.MustMoney("25.00"), constants.CardSourceCSV)
	if err != nil {
		t.Fatalf("resolve csv price failed: %v", err)
	}
	if !quote.CostBasis.Equal(csvCost) {
		t.Fatalf("expected csv cost 21.50, got %s", quote.CostBasis.String())
	}

	quote, err = svc.ResolvePrice(brand.ID, models.MustMoney("25.00"), constants.CardSourceExternal)
	if err != nil {
		t.Fatalf("resolve external price failed: %v", err)
	}
	if !quote.CostBasis.Equal(externalCost) {
		t.Fatalf("expected external cost 23.75, got %s", quote.CostBasis.String())
	}
	if !quote.ClientPrice.Equal(models.MustMoney("25.00")) {
		t.Fatalf("client price must not vary by source, got %s", quote.ClientPrice.String())
	}
}

func TestResolvePriceCustomClientPrice(t *testing.T) {
	svc, db := setupPricingServiceTest(t)
	clientPrice := models.MustMoney("27.00")
	brand := seedBrandWithDenomination(t, db, models.BrandDenomination{
		Denomination:     models.MustMoney("25.00"),
		ClientPrice:      &clientPrice,
		UseCustomPricing: true,
	})

	quote, err := svc.ResolvePrice(brand.ID, models.MustMoney("25.00"), constants.CardSourceCSV)
	if err != nil {
		t.Fatalf("resolve price failed: %v", err)
	}
	if !quote.ClientPrice.Equal(clientPrice) {
		t.Fatalf("expected custom client price 27.00, got %s", quote.ClientPrice.String())
	}
}

func TestResolvePriceCustomPricingDisabledIgnoresClientPrice(t *testing.T) {
	svc, db := setupPricingServiceTest(t)
	clientPrice := models.MustMoney("27.00")
	brand := seedBrandWithDenomination(t, db, models.BrandDenomination{
		Denomination:     models.MustMoney("25.00"),
		ClientPrice:      &clientPrice,
		UseCustomPricing: false,
	})

	quote, err := svc.ResolvePrice(brand.ID, models.MustMoney("25.00"), constants.CardSourceCSV)
	if err != nil {
		t.Fatalf("resolve price failed: %v", err)
	}
	if !quote.ClientPrice.Equal(models.MustMoney("25.00")) {
		t.Fatalf("expected denomination price, got %s", quote.ClientPrice.String())
	}
}

func TestResolvePriceRejectsUnconfiguredDenomination(t *testing.T) {
	svc, db := setupPricingServiceTest(t)
	brand := seedBrandWithDenomination(t, db, models.BrandDenomination{
		Denomination: models.MustMoney("25.00"),
	})

	// 37 元没有配置，即便介于已配置面额之间也必须拒绝
	_, err := svc.ResolvePrice(brand.ID, models.MustMoney("37.00"), constants.CardSourceCSV)
	if !errors.Is(err, ErrDenominationNotConfigured) {
		t.Fatalf("expected ErrDenominationNotConfigured, got %v", err)
	}
}

func TestResolvePriceUnknownBrand(t *testing.T) {
	svc, _ := setupPricingServiceTest(t)

	_, err := svc.ResolvePrice(999, models.MustMoney("25.00"), constants.CardSourceCSV)
	if !errors.Is(err, ErrBrandNotFound) {
		t.Fatalf("expected ErrBrandNotFound, got %v", err)
	}
}

func TestResolvePriceInactiveBrand(t *testing.T) {
	svc, db := setupPricingServiceTest(t)
	brand := seedBrandWithDenomination(t, db, models.BrandDenomination{
		Denomination: models.MustMoney("25.00"),
	})
	if err := db.Model(&models.Brand{}).Where("id = ?", brand.ID).Update("is_active", false).Error; err != nil {
		t.Fatalf("deactivate brand failed: %v", err)
	}

	_, err := svc.ResolvePrice(brand.ID, models.MustMoney("25.00"), constants.CardSourceCSV)
	if !errors.Is(err, ErrBrandDisabled) {
		t.Fatalf("expected ErrBrandDisabled, got %v", err)
	}
}

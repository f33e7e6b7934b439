package repository

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rewardhub/internal/constants"
	"github.com/rewardhub/internal/models"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func setupInventoryCardRepositoryTest(t *testing.T) (*GormInventoryCardRepository, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:inventory_card_repo_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(
		&models.Brand{},
		&models.InventoryBatch{},
		&models.InventoryCard{},
	); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	// 单连接串行化写入，避免内存 sqlite 的写锁竞争
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("access sql db failed: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	return NewInventoryCardRepository(db), db
}

func seedAvailableCards(t *testing.T, db *gorm.DB, brandID uint, denomination string, count int) []models.InventoryCard {
	t.Helper()
	now := time.Now().UTC()
	cards := make([]models.InventoryCard, 0, count)
	for i := 0; i < count; i++ {
		cards = append(cards, models.InventoryCard{
			BrandID:      brandID,
			Denomination: models.MustMoney(denomination),
			CardCode:     fmt.Sprintf("CODE-%d-%s-%d-%d", brandID, denomination, i, now.UnixNano()),
			Status:       constants.CardStatusAvailable,
			Source:       constants.CardSourceCSV,
			CreatedAt:    now,
			UpdatedAt:    now,
		})
	}
	if err := db.Create(&cards).Error; err != nil {
		t.Fatalf("seed cards failed: %v", err)
	}
	return cards
}

func TestClaimAvailableAssignsSingleCard(t *testing.T) {
	repo, db := setupInventoryCardRepositoryTest(t)
	seedAvailableCards(t, db, 1, "25.00", 3)
	seedAvailableCards(t, db, 1, "50.00", 1)

	at := time.Now().UTC()
	card, err := repo.ClaimAvailable(1, models.MustMoney("25.00"), 7, 3, at)
	if err != nil {
		t.Fatalf("claim failed: %v", err)
	}
	if card.Status != constants.CardStatusClaimed {
		t.Fatalf("expected claimed status, got %s", card.Status)
	}
	if !card.Denomination.Equal(models.MustMoney("25.00")) {
		t.Fatalf("expected denomination 25.00, got %s", card.Denomination.String())
	}
	if card.AssignedRecipientID == nil || *card.AssignedRecipientID != 7 {
		t.Fatalf("expected recipient 7, got %v", card.AssignedRecipientID)
	}
	if card.AssignedCampaignID == nil || *card.AssignedCampaignID != 3 {
		t.Fatalf("expected campaign 3, got %v", card.AssignedCampaignID)
	}

	var stored models.InventoryCard
	if err := db.First(&stored, card.ID).Error; err != nil {
		t.Fatalf("load stored card failed: %v", err)
	}
	if stored.Status != constants.CardStatusClaimed {
		t.Fatalf("expected stored status claimed, got %s", stored.Status)
	}

	count, err := repo.CountAvailable(1, models.MustMoney("25.00"))
	if err != nil {
		t.Fatalf("count available failed: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 remaining, got %d", count)
	}
}

func TestClaimAvailableEmptyInventory(t *testing.T) {
	repo, _ := setupInventoryCardRepositoryTest(t)

	_, err := repo.ClaimAvailable(1, models.MustMoney("25.00"), 7, 3, time.Now().UTC())
	if !errors.Is(err, ErrNoAvailableCard) {
		t.Fatalf("expected ErrNoAvailableCard, got %v", err)
	}
}

func TestClaimAvailableDoesNotCrossDenomination(t *testing.T) {
	repo, db := setupInventoryCardRepositoryTest(t)
	seedAvailableCards(t, db, 1, "50.00", 2)

	_, err := repo.ClaimAvailable(1, models.MustMoney("25.00"), 7, 3, time.Now().UTC())
	if !errors.Is(err, ErrNoAvailableCard) {
		t.Fatalf("expected ErrNoAvailableCard, got %v", err)
	}
}

// 两个调用方竞争同一张卡时，条件更新保证只有一方拿到。
func TestClaimAvailableConcurrentCallersNeverShareCard(t *testing.T) {
	repo, db := setupInventoryCardRepositoryTest(t)
	const cardCount = 4
	const callerCount = 8
	seedAvailableCards(t, db, 1, "25.00", cardCount)

	var wg sync.WaitGroup
	claimed := make(chan uint, callerCount)
	misses := make(chan struct{}, callerCount)
	for i := 0; i < callerCount; i++ {
		wg.Add(1)
		go func(recipientID uint) {
			defer wg.Done()
			card, err := repo.ClaimAvailable(1, models.MustMoney("25.00"), recipientID, 3, time.Now().UTC())
			if err != nil {
				if errors.Is(err, ErrNoAvailableCard) {
					misses <- struct{}{}
					return
				}
				t.Errorf("claim failed: %v", err)
				return
			}
			claimed <- card.ID
		}(uint(i + 1))
	}
	wg.Wait()
	close(claimed)
	close(misses)

	seen := make(map[uint]bool)
	for id := range claimed {
		if seen[id] {
			t.Fatalf("card %d claimed by more than one caller", id)
		}
		seen[id] = true
	}
	if len(seen) != cardCount {
		t.Fatalf("expected %d distinct claims, got %d", cardCount, len(seen))
	}
	missCount := 0
	for range misses {
		missCount++
	}
	if missCount != callerCount-cardCount {
		t.Fatalf("expected %d misses, got %d", callerCount-cardCount, missCount)
	}

	var remaining int64
	if err := db.Model(&models.InventoryCard{}).Where("status = ?", constants.CardStatusAvailable).Count(&remaining).Error; err != nil {
		t.Fatalf("count remaining failed: %v", err)
	}
	if remaining != 0 {
		t.Fatalf("expected no available cards left, got %d", remaining)
	}
}

func TestReleaseRestoresAvailability(t *testing.T) {
	repo, db := setupInventoryCardRepositoryTest(t)
	seedAvailableCards(t, db, 1, "25.00", 1)

	card, err := repo.ClaimAvailable(1, models.MustMoney("25.00"), 7, 3, time.Now().UTC())
	if err != nil {
		t.Fatalf("claim failed: %v", err)
	}

	released, err := repo.Release(card.ID)
	if err != nil {
		t.Fatalf("release failed: %v", err)
	}
	if !released {
		t.Fatal("expected release to take effect")
	}

	var stored models.InventoryCard
	if err := db.First(&stored, card.ID).Error; err != nil {
		t.Fatalf("load card failed: %v", err)
	}
	if stored.Status != constants.CardStatusAvailable {
		t.Fatalf("expected available, got %s", stored.Status)
	}
	if stored.AssignedRecipientID != nil || stored.AssignedCampaignID != nil || stored.AssignedAt != nil {
		t.Fatal("expected assignment fields cleared")
	}
}

func TestReleaseRedeemedCardIsNoop(t *testing.T) {
	repo, db := setupInventoryCardRepositoryTest(t)
	seedAvailableCards(t, db, 1, "25.00", 1)

	card, err := repo.ClaimAvailable(1, models.MustMoney("25.00"), 7, 3, time.Now().UTC())
	if err != nil {
		t.Fatalf("claim failed: %v", err)
	}
	if _, err := repo.MarkDelivered(card.ID, time.Now().UTC()); err != nil {
		t.Fatalf("mark delivered failed: %v", err)
	}
	if _, err := repo.MarkRedeemed(card.ID, time.Now().UTC()); err != nil {
		t.Fatalf("mark redeemed failed: %v", err)
	}

	released, err := repo.Release(card.ID)
	if err != nil {
		t.Fatalf("release failed: %v", err)
	}
	if released {
		t.Fatal("redeemed card must not be released back to inventory")
	}

	var stored models.InventoryCard
	if err := db.First(&stored, card.ID).Error; err != nil {
		t.Fatalf("load card failed: %v", err)
	}
	if stored.Status != constants.CardStatusRedeemed {
		t.Fatalf("expected redeemed, got %s", stored.Status)
	}
}

func TestMarkDeliveredRequiresClaimedStatus(t *testing.T) {
	repo, db := setupInventoryCardRepositoryTest(t)
	cards := seedAvailableCards(t, db, 1, "25.00", 1)

	updated, err := repo.MarkDelivered(cards[0].ID, time.Now().UTC())
	if err != nil {
		t.Fatalf("mark delivered failed: %v", err)
	}
	if updated {
		t.Fatal("available card must not transition directly to delivered")
	}
}

func TestRecordExternalCard(t *testing.T) {
	repo, db := setupInventoryCardRepositoryTest(t)
	recipientID := uint(7)
	campaignID := uint(3)
	now := time.Now().UTC()
	key := "pk-test-1"
	card := &models.InventoryCard{
		BrandID:             1,
		Denomination:        models.MustMoney("100.00"),
		CardCode:            "EXT-CODE-1",
		PurchaseKey:         &key,
		AssignedRecipientID: &recipientID,
		AssignedCampaignID:  &campaignID,
		AssignedAt:          &now,
	}
	if err := repo.RecordExternalCard(card); err != nil {
		t.Fatalf("record external card failed: %v", err)
	}

	var stored models.InventoryCard
	if err := db.First(&stored, card.ID).Error; err != nil {
		t.Fatalf("load card failed: %v", err)
	}
	if stored.Status != constants.CardStatusClaimed {
		t.Fatalf("expected claimed, got %s", stored.Status)
	}
	if stored.Source != constants.CardSourceExternal {
		t.Fatalf("expected external source, got %s", stored.Source)
	}

	found, err := repo.GetByPurchaseKey(key)
	if err != nil {
		t.Fatalf("get by purchase key failed: %v", err)
	}
	if found == nil || found.ID != card.ID {
		t.Fatal("expected lookup by purchase key to find the card")
	}
}

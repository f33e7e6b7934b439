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

func setupDeliveryServiceTest(t *testing.T) (*DeliveryService, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:delivery_service_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(
		&models.Brand{},
		&models.Recipient{},
		&models.InventoryBatch{},
		&models.InventoryCard{},
		&models.Assignment{},
	); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	svc := NewDeliveryService(db, repository.NewAssignmentRepository(db), repository.NewInventoryCardRepository(db))
	return svc, db
}

func seedDeliverable(t *testing.T, db *gorm.DB, cardStatus, deliveryStatus string) (models.Assignment, models.InventoryCard) {
	t.Helper()
	recipient := models.Recipient{Name: "Pat", Email: "pat@example.com"}
	if err := db.Create(&recipient).Error; err != nil {
		t.Fatalf("create recipient failed: %v", err)
	}
	now := time.Now().UTC()
	recipientID := recipient.ID
	campaignID := uint(3)
	card := models.InventoryCard{
		BrandID:             1,
		Denomination:        models.MustMoney("25.00"),
		CardCode:            fmt.Sprintf("CARD-%d", time.Now().UnixNano()),
		Status:              cardStatus,
		Source:              constants.CardSourceCSV,
		AssignedRecipientID: &recipientID,
		AssignedCampaignID:  &campaignID,
		AssignedAt:          &now,
	}
	if err := db.Create(&card).Error; err != nil {
		t.Fatalf("create card failed: %v", err)
	}
	cardID := card.ID
	assignment := models.Assignment{
		RecipientID:     recipientID,
		CampaignID:      campaignID,
		ConditionNumber: 1,
		BrandID:         1,
		Denomination:    models.MustMoney("25.00"),
		InventoryCardID: &cardID,
		Source:          constants.CardSourceCSV,
		DeliveryStatus:  deliveryStatus,
	}
	if err := db.Create(&assignment).Error; err != nil {
		t.Fatalf("create assignment failed: %v", err)
	}
	return assignment, card
}

func TestDeliverMarksAssignmentAndCard(t *testing.T) {
	svc, db := setupDeliveryServiceTest(t)
	assignment, card := seedDeliverable(t, db, constants.CardStatusClaimed, constants.AssignmentStatusProvisioned)

	if err := svc.Deliver(assignment.ID, "corr-1"); err != nil {
		t.Fatalf("deliver failed: %v", err)
	}

	var storedAssignment models.Assignment
	if err := db.First(&storedAssignment, assignment.ID).Error; err != nil {
		t.Fatalf("load assignment failed: %v", err)
	}
	if storedAssignment.DeliveryStatus != constants.AssignmentStatusDelivered {
		t.Fatalf("expected delivered, got %s", storedAssignment.DeliveryStatus)
	}

	var storedCard models.InventoryCard
	if err := db.First(&storedCard, card.ID).Error; err != nil {
		t.Fatalf("load card failed: %v", err)
	}
	if storedCard.Status != constants.CardStatusDelivered {
		t.Fatalf("expected delivered card, got %s", storedCard.Status)
	}
}

func TestDeliverIsIdempotent(t *testing.T) {
	svc, db := setupDeliveryServiceTest(t)
	assignment, _ := seedDeliverable(t, db, constants.CardStatusClaimed, constants.AssignmentStatusProvisioned)

	if err := svc.Deliver(assignment.ID, "corr-1"); err != nil {
		t.Fatalf("first deliver failed: %v", err)
	}
	if err := svc.Deliver(assignment.ID, "corr-1"); err != nil {
		t.Fatalf("repeat deliver must be a no-op, got %v", err)
	}
}

func TestDeliverRevokedAssignmentSkipped(t *testing.T) {
	svc, db := setupDeliveryServiceTest(t)
	assignment, card := seedDeliverable(t, db, constants.CardStatusClaimed, constants.AssignmentStatusRevoked)

	if err := svc.Deliver(assignment.ID, "corr-1"); err != nil {
		t.Fatalf("deliver of revoked assignment must not error, got %v", err)
	}

	var storedCard models.InventoryCard
	if err := db.First(&storedCard, card.ID).Error; err != nil {
		t.Fatalf("load card failed: %v", err)
	}
	if storedCard.Status != constants.CardStatusClaimed {
		t.Fatalf("revoked assignment must not deliver its card, got %s", storedCard.Status)
	}
}

func TestDeliverUnknownAssignment(t *testing.T) {
	svc, _ := setupDeliveryServiceTest(t)

	if err := svc.Deliver(999, "corr-1"); !errors.Is(err, ErrAssignmentNotFound) {
		t.Fatalf("expected ErrAssignmentNotFound, got %v", err)
	}
}

func TestRedeemDeliveredCard(t *testing.T) {
	svc, db := setupDeliveryServiceTest(t)
	assignment, card := seedDeliverable(t, db, constants.CardStatusDelivered, constants.AssignmentStatusDelivered)

	redeemed, err := svc.Redeem(card.CardCode, assignment.RecipientID)
	if err != nil {
		t.Fatalf("redeem failed: %v", err)
	}
	if redeemed.Status != constants.CardStatusRedeemed {
		t.Fatalf("expected redeemed, got %s", redeemed.Status)
	}

	var storedAssignment models.Assignment
	if err := db.First(&storedAssignment, assignment.ID).Error; err != nil {
		t.Fatalf("load assignment failed: %v", err)
	}
	if storedAssignment.DeliveryStatus != constants.AssignmentStatusRedeemed {
		t.Fatalf("expected redeemed assignment, got %s", storedAssignment.DeliveryStatus)
	}
}

func TestRedeemRejectsWrongState(t *testing.T) {
	svc, db := setupDeliveryServiceTest(t)
	_, card := seedDeliverable(t, db, constants.CardStatusClaimed, constants.AssignmentStatusProvisioned)

	if _, err := svc.Redeem(card.CardCode, *card.AssignedRecipientID); !errors.Is(err, ErrCardStateInvalid) {
		t.Fatalf("claimed card must not redeem, got %v", err)
	}
	if _, err := svc.Redeem("NO-SUCH-CODE", 1); !errors.Is(err, ErrCardStateInvalid) {
		t.Fatalf("unknown code must be rejected, got %v", err)
	}

	// 他人卡密拒绝
	delivered, cardB := seedDeliverableSecond(t, db)
	if _, err := svc.Redeem(cardB.CardCode, delivered.RecipientID+100); !errors.Is(err, ErrCardStateInvalid) {
		t.Fatalf("wrong recipient must be rejected, got %v", err)
	}

	// 重复兑换拒绝
	if _, err := svc.Redeem(cardB.CardCode, delivered.RecipientID); err != nil {
		t.Fatalf("redeem failed: %v", err)
	}
	if _, err := svc.Redeem(cardB.CardCode, delivered.RecipientID); !errors.Is(err, ErrCardStateInvalid) {
		t.Fatalf("double redeem must be rejected, got %v", err)
	}
}

func seedDeliverableSecond(t *testing.T, db *gorm.DB) (models.Assignment, models.InventoryCard) {
	t.Helper()
	recipient := models.Recipient{Name: "Sam", Email: "sam@example.com"}
	if err := db.Create(&recipient).Error; err != nil {
		t.Fatalf("create recipient failed: %v", err)
	}
	now := time.Now().UTC()
	recipientID := recipient.ID
	campaignID := uint(4)
	card := models.InventoryCard{
		BrandID:             1,
		Denomination:        models.MustMoney("25.00"),
		CardCode:            fmt.Sprintf("CARD-B-%d", time.Now().UnixNano()),
		Status:              constants.CardStatusDelivered,
		Source:              constants.CardSourceCSV,
		AssignedRecipientID: &recipientID,
		AssignedCampaignID:  &campaignID,
		AssignedAt:          &now,
	}
	if err := db.Create(&card).Error; err != nil {
		t.Fatalf("create card failed: %v", err)
	}
	cardID := card.ID
	assignment := models.Assignment{
		RecipientID:     recipientID,
		CampaignID:      campaignID,
		ConditionNumber: 1,
		BrandID:         1,
		Denomination:    models.MustMoney("25.00"),
		InventoryCardID: &cardID,
		Source:          constants.CardSourceCSV,
		DeliveryStatus:  constants.AssignmentStatusDelivered,
	}
	if err := db.Create(&assignment).Error; err != nil {
		t.Fatalf("create assignment failed: %v", err)
	}
	return assignment, card
}

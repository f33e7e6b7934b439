package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/rewardhub/internal/constants"
	"github.com/rewardhub/internal/models"
	"github.com/rewardhub/internal/provider"
	"github.com/rewardhub/internal/queue"
	"github.com/rewardhub/internal/repository"
	"github.com/rewardhub/internal/service"

	"github.com/glebarez/sqlite"
	"github.com/hibiken/asynq"
	"gorm.io/gorm"
)

func setupWorkerTest(t *testing.T) (*Consumer, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:worker_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
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

	deliverySvc := service.NewDeliveryService(db, repository.NewAssignmentRepository(db), repository.NewInventoryCardRepository(db))
	container := &provider.Container{DeliveryService: deliverySvc}
	return NewConsumer(container), db
}

func TestHandleRewardDeliverSuccess(t *testing.T) {
	consumer, db := setupWorkerTest(t)

	recipient := models.Recipient{Name: "Pat", Email: "pat@example.com"}
	if err := db.Create(&recipient).Error; err != nil {
		t.Fatalf("create recipient failed: %v", err)
	}
	now := time.Now().UTC()
	recipientID := recipient.ID
	campaignID := uint(1)
	card := models.InventoryCard{
		BrandID:             1,
		Denomination:        models.MustMoney("25.00"),
		CardCode:            "WRK-CARD-1",
		Status:              constants.CardStatusClaimed,
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
		DeliveryStatus:  constants.AssignmentStatusProvisioned,
	}
	if err := db.Create(&assignment).Error; err != nil {
		t.Fatalf("create assignment failed: %v", err)
	}

	body, _ := json.Marshal(queue.RewardDeliverPayload{AssignmentID: assignment.ID, CorrelationID: "corr-wrk"})
	task := asynq.NewTask(queue.TaskRewardDeliver, body)

	if err := consumer.handleRewardDeliver(context.Background(), task); err != nil {
		t.Fatalf("handle reward deliver failed: %v", err)
	}

	var got models.Assignment
	if err := db.First(&got, assignment.ID).Error; err != nil {
		t.Fatalf("reload assignment failed: %v", err)
	}
	if got.DeliveryStatus != constants.AssignmentStatusDelivered {
		t.Fatalf("expected delivered, got %s", got.DeliveryStatus)
	}
}

func TestHandleRewardDeliverSkipsInvalidPayload(t *testing.T) {
	consumer, _ := setupWorkerTest(t)

	body, _ := json.Marshal(queue.RewardDeliverPayload{AssignmentID: 0})
	task := asynq.NewTask(queue.TaskRewardDeliver, body)
	if err := consumer.handleRewardDeliver(context.Background(), task); err != nil {
		t.Fatalf("zero assignment id should be skipped, got: %v", err)
	}

	bad := asynq.NewTask(queue.TaskRewardDeliver, []byte("{not-json"))
	if err := consumer.handleRewardDeliver(context.Background(), bad); err == nil {
		t.Fatal("malformed payload should fail for retry visibility")
	}
}

func TestHandleRewardDeliverMissingAssignmentNotRetried(t *testing.T) {
	consumer, _ := setupWorkerTest(t)

	body, _ := json.Marshal(queue.RewardDeliverPayload{AssignmentID: 9999, CorrelationID: "corr-miss"})
	task := asynq.NewTask(queue.TaskRewardDeliver, body)
	if err := consumer.handleRewardDeliver(context.Background(), task); err != nil {
		t.Fatalf("missing assignment should not be retried, got: %v", err)
	}
}

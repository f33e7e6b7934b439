package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rewardhub/internal/constants"
	"github.com/rewardhub/internal/models"
	"github.com/rewardhub/internal/purchase"
	"github.com/rewardhub/internal/repository"
	"github.com/rewardhub/internal/taxonomy"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

type stubGateway struct {
	mu        sync.Mutex
	purchases int
	purchase  func(input purchase.PurchaseInput) (*purchase.PurchaseResult, error)
	lookup    func(key string) (*purchase.PurchaseResult, int, error)
}

func (g *stubGateway) Purchase(_ context.Context, input purchase.PurchaseInput) (*purchase.PurchaseResult, error) {
	g.mu.Lock()
	g.purchases++
	g.mu.Unlock()
	if g.purchase == nil {
		return nil, purchase.ErrRequestFailed
	}
	return g.purchase(input)
}

func (g *stubGateway) Lookup(_ context.Context, key string) (*purchase.PurchaseResult, int, error) {
	if g.lookup == nil {
		return nil, 0, purchase.ErrOrderNotFound
	}
	return g.lookup(key)
}

type stubNotifier struct {
	mu      sync.Mutex
	entries []uint
	fail    bool
}

func (n *stubNotifier) EnqueueDeliver(assignmentID uint, _ string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fail {
		return errors.New("queue down")
	}
	n.entries = append(n.entries, assignmentID)
	return nil
}

type provisioningFixture struct {
	db        *gorm.DB
	svc       *ProvisioningService
	gateway   *stubGateway
	notifier  *stubNotifier
	brand     models.Brand
	recipient models.Recipient
}

func setupProvisioningTest(t *testing.T, externalCode string) *provisioningFixture {
	t.Helper()
	dsn := fmt.Sprintf("file:provisioning_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(
		&models.Brand{},
		&models.BrandDenomination{},
		&models.Recipient{},
		&models.InventoryBatch{},
		&models.InventoryCard{},
		&models.Assignment{},
		&models.BillingLedgerEntry{},
		&models.CreditGrant{},
		&models.ProvisionAttempt{},
		&models.ExternalPurchase{},
	); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	// 单连接串行化写入，避免内存 sqlite 的写锁竞争
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("access sql db failed: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	brand := models.Brand{Name: fmt.Sprintf("Acme %d", time.Now().UnixNano()), IsActive: true, ExternalPurchaseCode: externalCode}
	if err := db.Create(&brand).Error; err != nil {
		t.Fatalf("create brand failed: %v", err)
	}
	csvCost := models.MustMoney("21.50")
	externalCost := models.MustMoney("23.75")
	if err := db.Create(&models.BrandDenomination{
		BrandID:      brand.ID,
		Denomination: models.MustMoney("25.00"),
		CostBasis:    &csvCost,
		ExternalCost: &externalCost,
	}).Error; err != nil {
		t.Fatalf("create denomination failed: %v", err)
	}
	recipient := models.Recipient{Name: "Pat", Email: "pat@example.com"}
	if err := db.Create(&recipient).Error; err != nil {
		t.Fatalf("create recipient failed: %v", err)
	}

	gateway := &stubGateway{}
	notifier := &stubNotifier{}
	brandRepo := repository.NewBrandRepository(db)
	pricingRepo := repository.NewPricingRepository(db)
	svc := NewProvisioningService(
		db,
		brandRepo,
		repository.NewRecipientRepository(db),
		repository.NewInventoryCardRepository(db),
		repository.NewAssignmentRepository(db),
		repository.NewExternalPurchaseRepository(db),
		repository.NewProvisionAttemptRepository(db),
		NewPricingService(brandRepo, pricingRepo),
		NewBillingService(repository.NewBillingLedgerRepository(db), repository.NewCreditGrantRepository(db)),
		gateway,
		notifier,
		1,
	)
	return &provisioningFixture{db: db, svc: svc, gateway: gateway, notifier: notifier, brand: brand, recipient: recipient}
}

func (f *provisioningFixture) seedCards(t *testing.T, count int) {
	t.Helper()
	now := time.Now().UTC()
	for i := 0; i < count; i++ {
		if err := f.db.Create(&models.InventoryCard{
			BrandID:      f.brand.ID,
			Denomination: models.MustMoney("25.00"),
			CardCode:     fmt.Sprintf("CSV-%d-%d-%d", f.brand.ID, i, now.UnixNano()),
			Status:       constants.CardStatusAvailable,
			Source:       constants.CardSourceCSV,
		}).Error; err != nil {
			t.Fatalf("seed card failed: %v", err)
		}
	}
}

func (f *provisioningFixture) provisionInput() ProvisionInput {
	return ProvisionInput{
		RecipientID:     f.recipient.ID,
		CampaignID:      3,
		ConditionNumber: 1,
		BrandID:         f.brand.ID,
		Denomination:    models.MustMoney("25.00"),
	}
}

func (f *provisioningFixture) lastAttempt(t *testing.T) models.ProvisionAttempt {
	t.Helper()
	var attempt models.ProvisionAttempt
	if err := f.db.Order("id desc").First(&attempt).Error; err != nil {
		t.Fatalf("load attempt failed: %v", err)
	}
	return attempt
}

func TestProvisionFromInventory(t *testing.T) {
	f := setupProvisioningTest(t, "")
	f.seedCards(t, 2)

	result, err := f.svc.Provision(context.Background(), f.provisionInput())
	if err != nil {
		t.Fatalf("provision failed: %v", err)
	}
	if result.Source != constants.CardSourceCSV {
		t.Fatalf("expected csv source, got %s", result.Source)
	}
	if result.Assignment.InventoryCardID == nil || *result.Assignment.InventoryCardID != result.Card.ID {
		t.Fatal("expected assignment to reference the claimed card")
	}

	var card models.InventoryCard
	if err := f.db.First(&card, result.Card.ID).Error; err != nil {
		t.Fatalf("load card failed: %v", err)
	}
	if card.Status != constants.CardStatusClaimed {
		t.Fatalf("expected claimed card, got %s", card.Status)
	}

	var entry models.BillingLedgerEntry
	if err := f.db.Where("assignment_id = ?", result.Assignment.ID).First(&entry).Error; err != nil {
		t.Fatalf("load ledger entry failed: %v", err)
	}
	if !entry.CostBasis.Equal(models.MustMoney("21.50")) {
		t.Fatalf("expected csv cost 21.50, got %s", entry.CostBasis.String())
	}
	if !entry.ClientPrice.Equal(models.MustMoney("25.00")) {
		t.Fatalf("expected client price 25.00, got %s", entry.ClientPrice.String())
	}

	attempt := f.lastAttempt(t)
	if !attempt.Success || attempt.Source != constants.CardSourceCSV {
		t.Fatalf("unexpected attempt record: %+v", attempt)
	}
	if len(f.notifier.entries) != 1 || f.notifier.entries[0] != result.Assignment.ID {
		t.Fatalf("expected one delivery enqueue, got %v", f.notifier.entries)
	}
	if f.gateway.purchases != 0 {
		t.Fatal("gateway must not be called while inventory is available")
	}
}

func TestProvisionDuplicateGrantRejected(t *testing.T) {
	f := setupProvisioningTest(t, "")
	f.seedCards(t, 2)

	if _, err := f.svc.Provision(context.Background(), f.provisionInput()); err != nil {
		t.Fatalf("first provision failed: %v", err)
	}
	_, err := f.svc.Provision(context.Background(), f.provisionInput())
	if !errors.Is(err, ErrAlreadyProvisioned) {
		t.Fatalf("expected ErrAlreadyProvisioned, got %v", err)
	}

	attempt := f.lastAttempt(t)
	if attempt.Success || attempt.ErrorCode != string(taxonomy.CodeAlreadyProvisioned) {
		t.Fatalf("expected already_provisioned attempt, got %+v", attempt)
	}

	// 不同条件序号视为新的发放
	input := f.provisionInput()
	input.ConditionNumber = 2
	if _, err := f.svc.Provision(context.Background(), input); err != nil {
		t.Fatalf("second condition provision failed: %v", err)
	}
}

func TestProvisionEmptyInventoryNoFallback(t *testing.T) {
	f := setupProvisioningTest(t, "")

	_, err := f.svc.Provision(context.Background(), f.provisionInput())
	if !errors.Is(err, ErrInventoryEmptyNoFallback) {
		t.Fatalf("expected ErrInventoryEmptyNoFallback, got %v", err)
	}
	attempt := f.lastAttempt(t)
	if attempt.ErrorCode != string(taxonomy.CodeInventoryEmptyNoFallback) {
		t.Fatalf("expected inventory_empty_no_fallback, got %s", attempt.ErrorCode)
	}
}

func TestProvisionFallsBackToExternalPurchase(t *testing.T) {
	f := setupProvisioningTest(t, "acme-gc")
	f.gateway.purchase = func(input purchase.PurchaseInput) (*purchase.PurchaseResult, error) {
		if input.BrandCode != "acme-gc" {
			t.Errorf("expected brand code acme-gc, got %s", input.BrandCode)
		}
		if input.IdempotencyKey == "" {
			t.Error("expected idempotency key")
		}
		return &purchase.PurchaseResult{OrderID: "ord-1", CardCode: "EXT-1", Cost: "23.75"}, nil
	}

	result, err := f.svc.Provision(context.Background(), f.provisionInput())
	if err != nil {
		t.Fatalf("provision failed: %v", err)
	}
	if result.Source != constants.CardSourceExternal {
		t.Fatalf("expected external source, got %s", result.Source)
	}

	var card models.InventoryCard
	if err := f.db.First(&card, result.Card.ID).Error; err != nil {
		t.Fatalf("load card failed: %v", err)
	}
	if card.Source != constants.CardSourceExternal || card.Status != constants.CardStatusClaimed {
		t.Fatalf("unexpected card state: %+v", card)
	}

	var order models.ExternalPurchase
	if err := f.db.Order("id desc").First(&order).Error; err != nil {
		t.Fatalf("load purchase order failed: %v", err)
	}
	if order.Status != constants.PurchaseStatusCompleted {
		t.Fatalf("expected completed purchase, got %s", order.Status)
	}
	if card.PurchaseKey == nil || *card.PurchaseKey != order.IdempotencyKey {
		t.Fatal("expected card linked to purchase by idempotency key")
	}

	var entry models.BillingLedgerEntry
	if err := f.db.Where("assignment_id = ?", result.Assignment.ID).First(&entry).Error; err != nil {
		t.Fatalf("load ledger entry failed: %v", err)
	}
	if !entry.CostBasis.Equal(models.MustMoney("23.75")) {
		t.Fatalf("expected external cost 23.75, got %s", entry.CostBasis.String())
	}
	if !entry.ClientPrice.Equal(models.MustMoney("25.00")) {
		t.Fatalf("client price must not vary by source, got %s", entry.ClientPrice.String())
	}
}

func TestProvisionExternalTimeoutKeepsOrderPending(t *testing.T) {
	f := setupProvisioningTest(t, "acme-gc")
	f.gateway.purchase = func(input purchase.PurchaseInput) (*purchase.PurchaseResult, error) {
		return nil, purchase.ErrRequestTimeout
	}

	_, err := f.svc.Provision(context.Background(), f.provisionInput())
	if !errors.Is(err, ErrPurchaseTimeout) {
		t.Fatalf("expected ErrPurchaseTimeout, got %v", err)
	}

	var order models.ExternalPurchase
	if err := f.db.Order("id desc").First(&order).Error; err != nil {
		t.Fatalf("load purchase order failed: %v", err)
	}
	if order.Status != constants.PurchaseStatusPending {
		t.Fatalf("timed out order must stay pending for reconciliation, got %s", order.Status)
	}

	attempt := f.lastAttempt(t)
	if attempt.ErrorCode != string(taxonomy.CodePurchaseTimeout) {
		t.Fatalf("expected purchase_timeout, got %s", attempt.ErrorCode)
	}
}

func TestProvisionExternalFailureMarksOrderFailed(t *testing.T) {
	f := setupProvisioningTest(t, "acme-gc")
	f.gateway.purchase = func(input purchase.PurchaseInput) (*purchase.PurchaseResult, error) {
		return nil, purchase.ErrResponseInvalid
	}

	_, err := f.svc.Provision(context.Background(), f.provisionInput())
	if !errors.Is(err, ErrPurchaseResponseInvalid) {
		t.Fatalf("expected ErrPurchaseResponseInvalid, got %v", err)
	}

	var order models.ExternalPurchase
	if err := f.db.Order("id desc").First(&order).Error; err != nil {
		t.Fatalf("load purchase order failed: %v", err)
	}
	if order.Status != constants.PurchaseStatusFailed {
		t.Fatalf("expected failed order, got %s", order.Status)
	}
}

func TestProvisionIgnoresCreditBalance(t *testing.T) {
	f := setupProvisioningTest(t, "")
	f.seedCards(t, 1)
	// 额度准入是调用方的前置职责，发放流程即使账户欠费也照常出卡
	if err := f.db.Create(&models.CreditGrant{
		EntityType: constants.CreditEntityCampaign,
		EntityID:   3,
		Amount:     models.MustMoney("10.00"),
	}).Error; err != nil {
		t.Fatalf("seed credits failed: %v", err)
	}

	result, err := f.svc.Provision(context.Background(), f.provisionInput())
	if err != nil {
		t.Fatalf("provision must not check credits, got %v", err)
	}
	if result.Card == nil || result.Source != constants.CardSourceCSV {
		t.Fatalf("unexpected result: %+v", result)
	}

	var claimed int64
	if err := f.db.Model(&models.InventoryCard{}).Where("status = ?", constants.CardStatusClaimed).Count(&claimed).Error; err != nil {
		t.Fatalf("count claimed failed: %v", err)
	}
	if claimed != 1 {
		t.Fatalf("expected the card claimed despite low credits, got %d", claimed)
	}
}

func TestProvisionUnconfiguredDenomination(t *testing.T) {
	f := setupProvisioningTest(t, "")
	f.seedCards(t, 1)

	input := f.provisionInput()
	input.Denomination = models.MustMoney("37.00")
	_, err := f.svc.Provision(context.Background(), input)
	if !errors.Is(err, ErrDenominationNotConfigured) {
		t.Fatalf("expected ErrDenominationNotConfigured, got %v", err)
	}
}

func TestProvisionConcurrentCallersShareNothing(t *testing.T) {
	f := setupProvisioningTest(t, "")
	const recipients = 4
	const cards = 2
	f.seedCards(t, cards)

	ids := make([]uint, 0, recipients)
	ids = append(ids, f.recipient.ID)
	for i := 1; i < recipients; i++ {
		r := models.Recipient{Name: fmt.Sprintf("R%d", i), Email: fmt.Sprintf("r%d@example.com", i)}
		if err := f.db.Create(&r).Error; err != nil {
			t.Fatalf("create recipient failed: %v", err)
		}
		ids = append(ids, r.ID)
	}

	var wg sync.WaitGroup
	cardIDs := make(chan uint, recipients)
	failures := make(chan error, recipients)
	for _, recipientID := range ids {
		wg.Add(1)
		go func(rid uint) {
			defer wg.Done()
			input := f.provisionInput()
			input.RecipientID = rid
			result, err := f.svc.Provision(context.Background(), input)
			if err != nil {
				failures <- err
				return
			}
			cardIDs <- result.Card.ID
		}(recipientID)
	}
	wg.Wait()
	close(cardIDs)
	close(failures)

	seen := make(map[uint]bool)
	for id := range cardIDs {
		if seen[id] {
			t.Fatalf("card %d provisioned to more than one recipient", id)
		}
		seen[id] = true
	}
	if len(seen) != cards {
		t.Fatalf("expected %d successful provisions, got %d", cards, len(seen))
	}
	for err := range failures {
		if !errors.Is(err, ErrInventoryEmptyNoFallback) {
			t.Fatalf("losers must see empty inventory, got %v", err)
		}
	}
}

func TestProvisionDeliveryEnqueueFailureDoesNotRollBack(t *testing.T) {
	f := setupProvisioningTest(t, "")
	f.seedCards(t, 1)
	f.notifier.fail = true

	result, err := f.svc.Provision(context.Background(), f.provisionInput())
	if err != nil {
		t.Fatalf("provision must succeed despite enqueue failure: %v", err)
	}

	var assignment models.Assignment
	if err := f.db.First(&assignment, result.Assignment.ID).Error; err != nil {
		t.Fatalf("load assignment failed: %v", err)
	}
	if assignment.DeliveryStatus != constants.AssignmentStatusProvisioned {
		t.Fatalf("expected provisioned status, got %s", assignment.DeliveryStatus)
	}
}

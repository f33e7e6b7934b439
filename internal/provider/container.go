package provider

import (
	"github.com/rewardhub/internal/cache"
	"github.com/rewardhub/internal/config"
	"github.com/rewardhub/internal/logger"
	"github.com/rewardhub/internal/models"
	"github.com/rewardhub/internal/purchase"
	"github.com/rewardhub/internal/queue"
	"github.com/rewardhub/internal/repository"
	"github.com/rewardhub/internal/service"
)

// Container 依赖注入容器
type Container struct {
	Config      *config.Config
	QueueClient *queue.Client

	// Repositories
	AdminRepo       repository.AdminRepository
	BrandRepo       repository.BrandRepository
	PricingRepo     repository.PricingRepository
	RecipientRepo   repository.RecipientRepository
	CardRepo        repository.InventoryCardRepository
	BatchRepo       repository.InventoryBatchRepository
	AssignmentRepo  repository.AssignmentRepository
	LedgerRepo      repository.BillingLedgerRepository
	CreditGrantRepo repository.CreditGrantRepository
	RevokeLogRepo   repository.RevokeLogRepository
	PurchaseRepo    repository.ExternalPurchaseRepository
	AttemptRepo     repository.ProvisionAttemptRepository
	HealthRepo      repository.HealthRepository

	// Services
	AuthService           *service.AuthService
	PricingService        *service.PricingService
	BillingService        *service.BillingService
	InventoryService      *service.InventoryService
	ProvisioningService   *service.ProvisioningService
	DeliveryService       *service.DeliveryService
	RevocationService     *service.RevocationService
	ReconciliationService *service.ReconciliationService
	HealthService         *service.HealthService
}

// NewContainer 初始化容器
func NewContainer(cfg *config.Config) *Container {
	// 初始化缓存
	if err := cache.InitRedis(&cfg.Redis); err != nil {
		logger.Warnw("provider_init_redis_failed", "error", err)
	}

	// 初始化队列客户端
	var queueClient *queue.Client
	if cfg.Queue.Enabled {
		qc, err := queue.NewClient(&cfg.Queue)
		if err != nil {
			logger.Errorw("provider_init_queue_client_failed", "error", err)
		} else {
			queueClient = qc
		}
	}

	c := &Container{
		Config:      cfg,
		QueueClient: queueClient,
	}

	// 1. 初始化 Repositories
	c.initRepositories()

	// 2. 初始化 Services
	c.initServices()

	return c
}

func (c *Container) initRepositories() {
	db := models.DB
	c.AdminRepo = repository.NewAdminRepository(db)
	c.BrandRepo = repository.NewBrandRepository(db)
	c.PricingRepo = repository.NewPricingRepository(db)
	c.RecipientRepo = repository.NewRecipientRepository(db)
	cardRepo := repository.NewInventoryCardRepository(db)
	cardRepo.SetClaimMaxRetries(c.Config.Provisioning.ClaimMaxRetries)
	c.CardRepo = cardRepo
	c.BatchRepo = repository.NewInventoryBatchRepository(db)
	c.AssignmentRepo = repository.NewAssignmentRepository(db)
	c.LedgerRepo = repository.NewBillingLedgerRepository(db)
	c.CreditGrantRepo = repository.NewCreditGrantRepository(db)
	c.RevokeLogRepo = repository.NewRevokeLogRepository(db)
	c.PurchaseRepo = repository.NewExternalPurchaseRepository(db)
	c.AttemptRepo = repository.NewProvisionAttemptRepository(db)
	c.HealthRepo = repository.NewHealthRepository(db)
}

func (c *Container) initServices() {
	db := models.DB

	c.AuthService = service.NewAuthService(c.Config, c.AdminRepo)
	c.PricingService = service.NewPricingService(c.BrandRepo, c.PricingRepo)
	c.BillingService = service.NewBillingService(c.LedgerRepo, c.CreditGrantRepo)
	c.InventoryService = service.NewInventoryService(db, c.BrandRepo, c.PricingRepo, c.CardRepo, c.BatchRepo)

	// 采购网关按配置可选启用，未配置时库存耗尽直接失败
	var gateway service.PurchaseGateway
	purchaseClient, err := purchase.NewClient(&purchase.Config{
		GatewayURL:     c.Config.Purchase.GatewayURL,
		AuthToken:      c.Config.Purchase.AuthToken,
		TimeoutSeconds: c.Config.Purchase.TimeoutSeconds,
	})
	if err != nil {
		logger.Warnw("provider_purchase_gateway_disabled", "error", err)
	} else {
		gateway = purchaseClient
	}

	var notifier service.DeliveryNotifier
	if c.QueueClient != nil {
		notifier = c.QueueClient
	}

	c.ProvisioningService = service.NewProvisioningService(
		db,
		c.BrandRepo,
		c.RecipientRepo,
		c.CardRepo,
		c.AssignmentRepo,
		c.PurchaseRepo,
		c.AttemptRepo,
		c.PricingService,
		c.BillingService,
		gateway,
		notifier,
		c.Config.Purchase.TimeoutSeconds,
	)
	c.DeliveryService = service.NewDeliveryService(db, c.AssignmentRepo, c.CardRepo)
	c.RevocationService = service.NewRevocationService(
		db,
		c.AssignmentRepo,
		c.CardRepo,
		c.RecipientRepo,
		c.BrandRepo,
		c.LedgerRepo,
		c.RevokeLogRepo,
		c.BillingService,
	)
	c.ReconciliationService = service.NewReconciliationService(
		db,
		c.PurchaseRepo,
		c.CardRepo,
		c.AssignmentRepo,
		c.PricingService,
		c.BillingService,
		gateway,
		c.Config.Provisioning.ReconcileMinAgeSeconds,
	)
	c.HealthService = service.NewHealthService(c.AttemptRepo, c.HealthRepo)
}

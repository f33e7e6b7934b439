package constants

// 库存卡状态常量
const (
	CardStatusAvailable = "available"
	CardStatusClaimed   = "claimed"
	CardStatusDelivered = "delivered"
	CardStatusRedeemed  = "redeemed"
	CardStatusRevoked   = "revoked"
)

// 卡来源常量
const (
	CardSourceCSV      = "csv"
	CardSourceExternal = "external"
)

// 计费流水来源常量（除卡来源外的调整单）
const (
	BillingSourceAdjustment = "adjustment"
)

// 发放记录交付状态常量
const (
	AssignmentStatusProvisioned = "provisioned"
	AssignmentStatusDelivered   = "delivered"
	AssignmentStatusRedeemed    = "redeemed"
	AssignmentStatusRevoked     = "revoked"
)

// 外部采购单状态常量
const (
	PurchaseStatusPending   = "pending"
	PurchaseStatusCompleted = "completed"
	PurchaseStatusFailed    = "failed"
)

// 额度账户类型常量
const (
	CreditEntityCampaign = "campaign"
	CreditEntityClient   = "client"
)

// 库存批次来源常量
const (
	InventoryBatchSourceCSV    = "csv"
	InventoryBatchSourceManual = "manual"
	InventoryBatchSourceSeed   = "seed"
)

// 队列与任务常量
const (
	QueueDefault          = "default"
	TaskRewardDeliver     = "reward:deliver"
	TaskPurchaseReconcile = "purchase:reconcile"
)

// 发放流程默认参数
const (
	DefaultClaimMaxRetries        = 3
	DefaultPurchaseTimeoutSeconds = 15
	DefaultReconcileIntervalSecs  = 300
	DefaultReconcileMinAgeSecs    = 120
	RevokeReasonMinLength         = 10
)

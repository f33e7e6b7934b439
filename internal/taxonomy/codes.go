package taxonomy

// Code 稳定错误码
// 运营看板按错误码聚合告警，码值一经分配不得更名或复用。
type Code string

// 错误码分类
const (
	CategoryConfiguration = "configuration"
	CategoryResource      = "resource"
	CategoryExternal      = "external"
	CategoryState         = "state"
	CategoryDelivery      = "delivery"
	CategoryUnclassified  = "unclassified"
)

// 全部 15 个稳定错误码
const (
	// 配置类
	CodeBrandNotFound             Code = "brand_not_found"
	CodeDenominationNotConfigured Code = "denomination_not_configured"
	CodeExternalPurchaseDisabled  Code = "external_purchase_not_enabled"
	CodePurchaseAPIMisconfigured  Code = "purchase_api_misconfigured"

	// 资源类
	CodeInventoryEmptyNoFallback Code = "inventory_empty_no_fallback"
	CodeInsufficientCredits      Code = "insufficient_credits"

	// 外部服务类
	CodePurchaseRequestFailed   Code = "purchase_request_failed"
	CodePurchaseTimeout         Code = "purchase_timeout"
	CodePurchaseResponseInvalid Code = "purchase_response_invalid"

	// 状态类
	CodeAlreadyProvisioned Code = "already_provisioned"
	CodeAlreadyRevoked     Code = "already_revoked"
	CodeAssignmentNotFound Code = "assignment_not_found"
	CodeCardStateInvalid   Code = "card_state_invalid"

	// 交付类
	CodeDeliveryNotifyFailed Code = "delivery_notification_failed"

	// 未分类
	CodeUnclassified Code = "unclassified_error"
)

// Info 错误码描述与运维处置建议
type Info struct {
	Code        Code   `json:"code"`
	Category    string `json:"category"`
	Description string `json:"description"`
	Remediation string `json:"remediation"`
}

var registry = map[Code]Info{
	CodeBrandNotFound: {
		Code:        CodeBrandNotFound,
		Category:    CategoryConfiguration,
		Description: "requested brand does not exist or is inactive",
		Remediation: "verify the brand id supplied by the campaign configuration",
	},
	CodeDenominationNotConfigured: {
		Code:        CodeDenominationNotConfigured,
		Category:    CategoryConfiguration,
		Description: "requested denomination is not configured for this brand",
		Remediation: "add the denomination to the brand pricing configuration",
	},
	CodeExternalPurchaseDisabled: {
		Code:        CodeExternalPurchaseDisabled,
		Category:    CategoryConfiguration,
		Description: "brand has no external purchase code, fallback purchasing disabled",
		Remediation: "configure the external purchase code for the brand or rely on CSV inventory only",
	},
	CodePurchaseAPIMisconfigured: {
		Code:        CodePurchaseAPIMisconfigured,
		Category:    CategoryConfiguration,
		Description: "external purchase API gateway or token is not configured",
		Remediation: "set purchase.gateway_url and purchase.auth_token in the service configuration",
	},
	CodeInventoryEmptyNoFallback: {
		Code:        CodeInventoryEmptyNoFallback,
		Category:    CategoryResource,
		Description: "no inventory and no external fallback configured",
		Remediation: "upload inventory or configure the external purchase API",
	},
	CodeInsufficientCredits: {
		Code:        CodeInsufficientCredits,
		Category:    CategoryResource,
		Description: "available credits are insufficient for this provisioning",
		Remediation: "grant additional credits to the campaign or client account",
	},
	CodePurchaseRequestFailed: {
		Code:        CodePurchaseRequestFailed,
		Category:    CategoryExternal,
		Description: "external purchase API call failed",
		Remediation: "check purchase provider availability and recent provider-side incidents",
	},
	CodePurchaseTimeout: {
		Code:        CodePurchaseTimeout,
		Category:    CategoryExternal,
		Description: "external purchase API call exceeded the configured timeout",
		Remediation: "check provider latency; the reconciliation sweep resolves in-doubt purchases",
	},
	CodePurchaseResponseInvalid: {
		Code:        CodePurchaseResponseInvalid,
		Category:    CategoryExternal,
		Description: "external purchase API returned an unparseable or incomplete response",
		Remediation: "inspect raw provider responses in the attempt trace and contact the provider",
	},
	CodeAlreadyProvisioned: {
		Code:        CodeAlreadyProvisioned,
		Category:    CategoryState,
		Description: "a reward was already provisioned for this recipient, campaign and condition",
		Remediation: "no action needed, duplicate grants are rejected by design",
	},
	CodeAlreadyRevoked: {
		Code:        CodeAlreadyRevoked,
		Category:    CategoryState,
		Description: "assignment is already revoked",
		Remediation: "no action needed, revoke is not repeatable",
	},
	CodeAssignmentNotFound: {
		Code:        CodeAssignmentNotFound,
		Category:    CategoryState,
		Description: "assignment does not exist",
		Remediation: "verify the assignment id supplied by the admin console",
	},
	CodeCardStateInvalid: {
		Code:        CodeCardStateInvalid,
		Category:    CategoryState,
		Description: "card code is unknown or the card is not in a redeemable state",
		Remediation: "verify the card code and its delivery status",
	},
	CodeDeliveryNotifyFailed: {
		Code:        CodeDeliveryNotifyFailed,
		Category:    CategoryDelivery,
		Description: "card provisioned but the delivery notification failed",
		Remediation: "inspect the worker queue; the card stays claimed and can be re-notified",
	},
	CodeUnclassified: {
		Code:        CodeUnclassified,
		Category:    CategoryUnclassified,
		Description: "unexpected internal error",
		Remediation: "inspect service logs for the correlation id",
	},
}

// Describe 返回错误码的描述信息；未知错误码按未分类处理
func Describe(code Code) Info {
	if info, ok := registry[code]; ok {
		return info
	}
	info := registry[CodeUnclassified]
	return info
}

// Known 判断错误码是否在固定集合内
func Known(code Code) bool {
	_, ok := registry[code]
	return ok
}

// All 返回全部错误码（供校验与文档使用）
func All() []Info {
	result := make([]Info, 0, len(registry))
	for _, info := range registry {
		result = append(result, info)
	}
	return result
}

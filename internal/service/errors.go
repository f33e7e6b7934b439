package service

import (
	"errors"

	"github.com/rewardhub/internal/purchase"
	"github.com/rewardhub/internal/taxonomy"
)

// 服务层哨兵错误
var (
	ErrBrandNotFound             = errors.New("brand not found")
	ErrBrandDisabled             = errors.New("brand disabled")
	ErrDenominationNotConfigured = errors.New("denomination not configured for brand")
	ErrExternalPurchaseDisabled  = errors.New("external purchase not enabled for brand")
	ErrPurchaseMisconfigured     = errors.New("purchase gateway misconfigured")
	ErrInventoryEmptyNoFallback  = errors.New("inventory empty and no purchase fallback")
	ErrInsufficientCredits       = errors.New("insufficient prepaid credits")
	ErrPurchaseRequestFailed     = errors.New("external purchase request failed")
	ErrPurchaseTimeout           = errors.New("external purchase timed out")
	ErrPurchaseResponseInvalid   = errors.New("external purchase response invalid")
	ErrAlreadyProvisioned        = errors.New("reward already provisioned for grant")
	ErrAlreadyRevoked            = errors.New("assignment already revoked")
	ErrAssignmentNotFound        = errors.New("assignment not found")
	ErrCardStateInvalid          = errors.New("card state does not allow operation")
	ErrDeliveryFailed            = errors.New("delivery notification failed")
	ErrRecipientNotFound         = errors.New("recipient not found")
	ErrRevokeReasonTooShort      = errors.New("revoke reason too short")
	ErrInventoryImportInvalid    = errors.New("inventory import payload invalid")
	ErrCreditGrantInvalid        = errors.New("credit grant input invalid")
	ErrAdminInvalidCredential    = errors.New("invalid username or password")
	ErrQueueUnavailable          = errors.New("task queue unavailable")
)

// ClassifyError 将服务层错误归入稳定错误码
// 未识别的错误一律归入 unclassified_error，绝不编造新码。
func ClassifyError(err error) taxonomy.Code {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrBrandNotFound), errors.Is(err, ErrBrandDisabled):
		return taxonomy.CodeBrandNotFound
	case errors.Is(err, ErrDenominationNotConfigured):
		return taxonomy.CodeDenominationNotConfigured
	case errors.Is(err, ErrExternalPurchaseDisabled):
		return taxonomy.CodeExternalPurchaseDisabled
	case errors.Is(err, ErrPurchaseMisconfigured), errors.Is(err, purchase.ErrConfigInvalid):
		return taxonomy.CodePurchaseAPIMisconfigured
	case errors.Is(err, ErrInventoryEmptyNoFallback):
		return taxonomy.CodeInventoryEmptyNoFallback
	case errors.Is(err, ErrInsufficientCredits):
		return taxonomy.CodeInsufficientCredits
	case errors.Is(err, ErrPurchaseTimeout), errors.Is(err, purchase.ErrRequestTimeout):
		return taxonomy.CodePurchaseTimeout
	case errors.Is(err, ErrPurchaseRequestFailed), errors.Is(err, purchase.ErrRequestFailed):
		return taxonomy.CodePurchaseRequestFailed
	case errors.Is(err, ErrPurchaseResponseInvalid), errors.Is(err, purchase.ErrResponseInvalid):
		return taxonomy.CodePurchaseResponseInvalid
	case errors.Is(err, ErrAlreadyProvisioned):
		return taxonomy.CodeAlreadyProvisioned
	case errors.Is(err, ErrAlreadyRevoked):
		return taxonomy.CodeAlreadyRevoked
	case errors.Is(err, ErrAssignmentNotFound):
		return taxonomy.CodeAssignmentNotFound
	case errors.Is(err, ErrCardStateInvalid):
		return taxonomy.CodeCardStateInvalid
	case errors.Is(err, ErrDeliveryFailed):
		return taxonomy.CodeDeliveryNotifyFailed
	default:
		return taxonomy.CodeUnclassified
	}
}

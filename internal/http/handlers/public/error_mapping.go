package public

import (
	"errors"

	"github.com/rewardhub/internal/http/response"
	"github.com/rewardhub/internal/service"

	"github.com/gin-gonic/gin"
)

// mappedHandlerError 定义业务错误到接口错误响应的映射关系。
type mappedHandlerError struct {
	target error
	code   int
}

func respondWithMappedError(c *gin.Context, err error, rules []mappedHandlerError, fallbackCode int) {
	for _, rule := range rules {
		if errors.Is(err, rule.target) {
			respondClassifiedError(c, rule.code, err)
			return
		}
	}
	respondClassifiedError(c, fallbackCode, err)
}

var provisionErrorRules = []mappedHandlerError{
	{target: service.ErrBrandNotFound, code: response.CodeNotFound},
	{target: service.ErrBrandDisabled, code: response.CodeNotFound},
	{target: service.ErrRecipientNotFound, code: response.CodeNotFound},
	{target: service.ErrDenominationNotConfigured, code: response.CodeBadRequest},
	{target: service.ErrExternalPurchaseDisabled, code: response.CodeConflict},
	{target: service.ErrPurchaseMisconfigured, code: response.CodeInternal},
	{target: service.ErrInventoryEmptyNoFallback, code: response.CodeConflict},
	{target: service.ErrInsufficientCredits, code: response.CodeConflict},
	{target: service.ErrPurchaseRequestFailed, code: response.CodeUpstream},
	{target: service.ErrPurchaseTimeout, code: response.CodeUpstreamTimeout},
	{target: service.ErrPurchaseResponseInvalid, code: response.CodeUpstream},
	{target: service.ErrAlreadyProvisioned, code: response.CodeConflict},
}

var redeemErrorRules = []mappedHandlerError{
	{target: service.ErrCardStateInvalid, code: response.CodeConflict},
}

func respondProvisionError(c *gin.Context, err error) {
	respondWithMappedError(c, err, provisionErrorRules, response.CodeInternal)
}

func respondRedeemError(c *gin.Context, err error) {
	respondWithMappedError(c, err, redeemErrorRules, response.CodeInternal)
}

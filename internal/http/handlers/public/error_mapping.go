package public

import (
	"errors"

	"github.com/refmart/refmart/internal/http/response"
	"github.com/refmart/refmart/internal/service"

	"github.com/gin-gonic/gin"
)

// mappedHandlerError 定义业务错误到接口错误响应的映射关系。
type mappedHandlerError struct {
	target error
	code   int
	msg    string
}

func respondWithMappedError(c *gin.Context, err error, rules []mappedHandlerError, fallbackCode int, fallbackMsg string) {
	for _, rule := range rules {
		if errors.Is(err, rule.target) {
			respondError(c, rule.code, rule.msg, nil)
			return
		}
	}
	respondError(c, fallbackCode, fallbackMsg, err)
}

var payoutApplyErrorRules = []mappedHandlerError{
	{target: service.ErrPayoutAmountInvalid, code: response.CodeBadRequest, msg: "提现金额无效"},
	{target: service.ErrPayoutChannelInvalid, code: response.CodeBadRequest, msg: "收款渠道或账号无效"},
	{target: service.ErrBelowMinimumThreshold, code: response.CodeBadRequest, msg: "提现金额低于起提门槛"},
	{target: service.ErrInsufficientBalance, code: response.CodeBadRequest, msg: "可提现余额不足"},
	{target: service.ErrAgentNotOpened, code: response.CodeBadRequest, msg: "尚未开通推广身份"},
	{target: service.ErrNotFound, code: response.CodeNotFound, msg: "记录不存在"},
}

var orderCreateErrorRules = []mappedHandlerError{
	{target: service.ErrProductUnavailable, code: response.CodeBadRequest, msg: "商品不可购买"},
	{target: service.ErrNotFound, code: response.CodeNotFound, msg: "记录不存在"},
}

var orderTransitionErrorRules = []mappedHandlerError{
	{target: service.ErrOrderStatusInvalid, code: response.CodeBadRequest, msg: "订单状态不允许该操作"},
	{target: service.ErrNotFound, code: response.CodeNotFound, msg: "订单不存在"},
}

func respondPayoutApplyError(c *gin.Context, err error) {
	respondWithMappedError(c, err, payoutApplyErrorRules, response.CodeInternal, "提现申请失败")
}

func respondOrderCreateError(c *gin.Context, err error) {
	respondWithMappedError(c, err, orderCreateErrorRules, response.CodeInternal, "下单失败")
}

func respondOrderTransitionError(c *gin.Context, err error) {
	respondWithMappedError(c, err, orderTransitionErrorRules, response.CodeInternal, "订单操作失败")
}

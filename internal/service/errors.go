package service

import "errors"

// 业务错误定义，处理层据此映射响应码。
var (
	ErrNotFound            = errors.New("record not found")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrAccountDisabled     = errors.New("account disabled")
	ErrEmailTaken          = errors.New("email already registered")
	ErrWeakPassword        = errors.New("password too weak")
	ErrAgentAlreadyOpened  = errors.New("agent profile already opened")
	ErrAgentNotOpened      = errors.New("agent profile not opened")
	ErrAgentDisabled       = errors.New("agent profile disabled")
	ErrReferralCodeInvalid = errors.New("referral code invalid")
	ErrProductUnavailable  = errors.New("product unavailable")
	ErrOrderStatusInvalid  = errors.New("order status invalid")

	ErrPayoutAmountInvalid     = errors.New("payout amount invalid")
	ErrPayoutChannelInvalid    = errors.New("payout channel invalid")
	ErrBelowMinimumThreshold   = errors.New("payout amount below minimum threshold")
	ErrInsufficientBalance     = errors.New("insufficient available balance")
	ErrPayoutStatusInvalid     = errors.New("payout status transition invalid")
	ErrPayoutRejectReasonEmpty = errors.New("payout reject reason required")
)

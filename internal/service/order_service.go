package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/refmart/refmart/internal/constants"
	"github.com/refmart/refmart/internal/logger"
	"github.com/refmart/refmart/internal/models"
	"github.com/refmart/refmart/internal/queue"
	"github.com/refmart/refmart/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// OrderService 订单业务服务
type OrderService struct {
	repo        repository.OrderRepository
	productRepo repository.ProductRepository
	userRepo    repository.UserRepository
	referral    *ReferralService
	queueClient *queue.Client
}

// NewOrderService 创建订单服务
func NewOrderService(
	repo repository.OrderRepository,
	productRepo repository.ProductRepository,
	userRepo repository.UserRepository,
	referral *ReferralService,
	queueClient *queue.Client,
) *OrderService {
	return &OrderService{
		repo:        repo,
		productRepo: productRepo,
		userRepo:    userRepo,
		referral:    referral,
		queueClient: queueClient,
	}
}

// CreateOrderItemInput 下单商品项输入
type CreateOrderItemInput struct {
	ProductID uint
	Quantity  int
}

// CreateOrderInput 下单输入
type CreateOrderInput struct {
	Items        []CreateOrderItemInput
	ReferralCode string
	VisitorKey   string
	ClientIP     string
}

// CreateOrder 创建订单并落归因快照
func (s *OrderService) CreateOrder(userID uint, input CreateOrderInput) (*models.Order, error) {
	if userID == 0 || s.repo == nil || s.productRepo == nil {
		return nil, ErrNotFound
	}
	items, err := mergeOrderItems(input.Items)
	if err != nil {
		return nil, err
	}

	total := decimal.Zero
	orderItems := make([]models.OrderItem, 0, len(items))
	referralEligible := false
	for _, item := range items {
		product, err := s.productRepo.GetByID(item.ProductID)
		if err != nil {
			return nil, err
		}
		if product == nil || !product.IsActive {
			return nil, ErrProductUnavailable
		}
		if product.IsReferralEnabled {
			referralEligible = true
		}
		unitPrice := product.PriceAmount.Decimal.Round(2)
		lineTotal := unitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))).Round(2)
		total = total.Add(lineTotal).Round(2)
		orderItems = append(orderItems, models.OrderItem{
			ProductID:  product.ID,
			Title:      product.Title,
			UnitPrice:  models.NewMoneyFromDecimal(unitPrice),
			Quantity:   item.Quantity,
			TotalPrice: models.NewMoneyFromDecimal(lineTotal),
		})
	}

	var agentProfileID *uint
	referralCode := ""
	if referralEligible && s.referral != nil {
		agentProfileID, referralCode, err = s.referral.ResolveOrderAgentSnapshot(userID, input.ReferralCode, input.VisitorKey)
		if err != nil {
			return nil, err
		}
	}

	now := time.Now()
	order := &models.Order{
		OrderNo:        generateOrderNo(),
		UserID:         userID,
		Status:         constants.OrderStatusPendingPayment,
		Currency:       "CNY",
		TotalAmount:    models.NewMoneyFromDecimal(total),
		AgentProfileID: agentProfileID,
		ReferralCode:   referralCode,
		ClientIP:       strings.TrimSpace(input.ClientIP),
		CreatedAt:      now,
		UpdatedAt:      now,
		Items:          orderItems,
	}
	if err := s.repo.Create(order); err != nil {
		return nil, err
	}
	logger.Infow("order created", "order_no", order.OrderNo, "user_id", userID, "total", total.StringFixed(2))
	return s.repo.GetByID(order.ID)
}

// MarkOrderPaid 标记订单支付成功并触发佣金计提
func (s *OrderService) MarkOrderPaid(orderID uint) (*models.Order, error) {
	if orderID == 0 || s.repo == nil {
		return nil, ErrNotFound
	}
	err := s.repo.Transaction(func(tx *gorm.DB) error {
		repoTx := s.repo.WithTx(tx)
		order, err := s.repo.GetByIDForUpdate(tx, orderID)
		if err != nil {
			return err
		}
		if order == nil {
			return ErrNotFound
		}
		if order.Status != constants.OrderStatusPendingPayment {
			return ErrOrderStatusInvalid
		}
		now := time.Now()
		order.Status = constants.OrderStatusPaid
		order.PaidAt = &now
		order.UpdatedAt = now
		return repoTx.Update(order)
	})
	if err != nil {
		return nil, err
	}

	if s.queueClient.Enabled() {
		if err := s.queueClient.EnqueueCommissionAccrue(queue.CommissionAccruePayload{OrderID: orderID}); err != nil {
			logger.Warnw("enqueue commission accrue failed, fallback to sync", "order_id", orderID, "error", err)
			s.accrueSync(orderID)
		}
	} else {
		s.accrueSync(orderID)
	}
	return s.repo.GetByID(orderID)
}

func (s *OrderService) accrueSync(orderID uint) {
	if s.referral == nil {
		return
	}
	if err := s.referral.HandleOrderPaid(orderID); err != nil {
		logger.Errorw("commission accrue failed", "order_id", orderID, "error", err)
	}
}

// CancelOrder 取消订单并触发佣金逆向
func (s *OrderService) CancelOrder(orderID uint, reason string) (*models.Order, error) {
	if orderID == 0 || s.repo == nil {
		return nil, ErrNotFound
	}
	var wasPaid bool
	err := s.repo.Transaction(func(tx *gorm.DB) error {
		repoTx := s.repo.WithTx(tx)
		order, err := s.repo.GetByIDForUpdate(tx, orderID)
		if err != nil {
			return err
		}
		if order == nil {
			return ErrNotFound
		}
		if order.Status != constants.OrderStatusPendingPayment && order.Status != constants.OrderStatusPaid {
			return ErrOrderStatusInvalid
		}
		wasPaid = order.Status == constants.OrderStatusPaid
		now := time.Now()
		order.Status = constants.OrderStatusCanceled
		order.CanceledAt = &now
		order.UpdatedAt = now
		return repoTx.Update(order)
	})
	if err != nil {
		return nil, err
	}

	if wasPaid {
		reasonText := strings.TrimSpace(reason)
		if reasonText == "" {
			reasonText = "order_canceled"
		}
		if s.queueClient.Enabled() {
			if err := s.queueClient.EnqueueCommissionRevoke(queue.CommissionRevokePayload{OrderID: orderID, Reason: reasonText}); err != nil {
				logger.Warnw("enqueue commission revoke failed, fallback to sync", "order_id", orderID, "error", err)
				s.revokeSync(orderID, reasonText)
			}
		} else {
			s.revokeSync(orderID, reasonText)
		}
	}
	return s.repo.GetByID(orderID)
}

func (s *OrderService) revokeSync(orderID uint, reason string) {
	if s.referral == nil {
		return
	}
	if err := s.referral.HandleOrderCanceled(orderID, reason); err != nil {
		logger.Errorw("commission revoke failed", "order_id", orderID, "error", err)
	}
}

// CompleteOrder 完成订单
func (s *OrderService) CompleteOrder(orderID uint) (*models.Order, error) {
	if orderID == 0 || s.repo == nil {
		return nil, ErrNotFound
	}
	err := s.repo.Transaction(func(tx *gorm.DB) error {
		repoTx := s.repo.WithTx(tx)
		order, err := s.repo.GetByIDForUpdate(tx, orderID)
		if err != nil {
			return err
		}
		if order == nil {
			return ErrNotFound
		}
		if order.Status != constants.OrderStatusPaid {
			return ErrOrderStatusInvalid
		}
		now := time.Now()
		order.Status = constants.OrderStatusCompleted
		order.UpdatedAt = now
		return repoTx.Update(order)
	})
	if err != nil {
		return nil, err
	}
	return s.repo.GetByID(orderID)
}

// GetOrder 获取订单
func (s *OrderService) GetOrder(orderID uint) (*models.Order, error) {
	if orderID == 0 || s.repo == nil {
		return nil, ErrNotFound
	}
	order, err := s.repo.GetByID(orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrNotFound
	}
	return order, nil
}

// GetUserOrder 获取用户名下的订单
func (s *OrderService) GetUserOrder(userID, orderID uint) (*models.Order, error) {
	order, err := s.GetOrder(orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, ErrNotFound
	}
	return order, nil
}

// ListOrders 分页查询订单
func (s *OrderService) ListOrders(filter repository.OrderListFilter) ([]models.Order, int64, error) {
	if s.repo == nil {
		return []models.Order{}, 0, nil
	}
	return s.repo.List(filter)
}

func mergeOrderItems(items []CreateOrderItemInput) ([]CreateOrderItemInput, error) {
	if len(items) == 0 {
		return nil, ErrProductUnavailable
	}
	merged := make([]CreateOrderItemInput, 0, len(items))
	indexMap := make(map[uint]int)
	for _, item := range items {
		if item.ProductID == 0 || item.Quantity <= 0 {
			return nil, ErrProductUnavailable
		}
		if idx, ok := indexMap[item.ProductID]; ok {
			merged[idx].Quantity += item.Quantity
			continue
		}
		indexMap[item.ProductID] = len(merged)
		merged = append(merged, item)
	}
	return merged, nil
}

func generateOrderNo() string {
	now := time.Now().Format("20060102150405")
	return fmt.Sprintf("RM%s%s", now, randNumeric(6))
}

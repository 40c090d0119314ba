package provider

import (
	"github.com/refmart/refmart/internal/cache"
	"github.com/refmart/refmart/internal/config"
	"github.com/refmart/refmart/internal/logger"
	"github.com/refmart/refmart/internal/models"
	"github.com/refmart/refmart/internal/queue"
	"github.com/refmart/refmart/internal/repository"
	"github.com/refmart/refmart/internal/service"
)

// Container 依赖注入容器
type Container struct {
	Config      *config.Config
	QueueClient *queue.Client

	// Repositories
	AdminRepo   repository.AdminRepository
	UserRepo    repository.UserRepository
	ProductRepo repository.ProductRepository
	OrderRepo   repository.OrderRepository
	AgentRepo   repository.AgentRepository
	LedgerRepo  repository.LedgerRepository

	// Services
	AuthService     *service.AuthService
	UserAuthService *service.UserAuthService
	ProductService  *service.ProductService
	OrderService    *service.OrderService
	LedgerService   *service.LedgerService
	ReferralService *service.ReferralService
}

// NewContainer 初始化容器
func NewContainer(cfg *config.Config) *Container {
	if err := cache.InitRedis(&cfg.Redis); err != nil {
		logger.Warnw("provider_init_redis_failed", "error", err)
	}

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

	c.initRepositories()
	c.initServices()
	return c
}

func (c *Container) initRepositories() {
	db := models.DB
	c.AdminRepo = repository.NewAdminRepository(db)
	c.UserRepo = repository.NewUserRepository(db)
	c.ProductRepo = repository.NewProductRepository(db)
	c.OrderRepo = repository.NewOrderRepository(db)
	c.AgentRepo = repository.NewAgentRepository(db)
	c.LedgerRepo = repository.NewLedgerRepository(db)
}

func (c *Container) initServices() {
	c.AuthService = service.NewAuthService(c.Config, c.AdminRepo)
	c.UserAuthService = service.NewUserAuthService(c.Config, c.UserRepo)
	c.ProductService = service.NewProductService(c.ProductRepo)
	c.LedgerService = service.NewLedgerService(c.LedgerRepo, c.UserRepo, c.Config.Ledger)
	c.ReferralService = service.NewReferralService(c.AgentRepo, c.LedgerRepo, c.UserRepo, c.OrderRepo, c.LedgerService, c.Config.Ledger)
	c.OrderService = service.NewOrderService(c.OrderRepo, c.ProductRepo, c.UserRepo, c.ReferralService, c.QueueClient)
}

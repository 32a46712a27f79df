package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"librarydesk/internal/api/auth"
	"librarydesk/internal/api/middleware"
	"librarydesk/internal/api/scheduler"
	"librarydesk/internal/catalog"
	"librarydesk/internal/circulation"
	"librarydesk/internal/config"
	"librarydesk/internal/model"
	"librarydesk/internal/pkg/dedup"
	"librarydesk/internal/pkg/metrics"
	"librarydesk/internal/pkg/notify"
	"librarydesk/internal/pkg/ratelimit"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

// Server 封装了 API 服务所需的依赖和路由处理。
//
// 它持有数据库连接、Redis 客户端、流通服务以及 Gin 路由引擎。
// 所有权威状态都在数据库里；请求之间只有会话令牌本身。
type Server struct {
	cfg    *config.Config
	logger *slog.Logger
	db     *gorm.DB
	rdb    *redis.Client
	router *gin.Engine
	auth   *auth.Handler
	circ   CirculationService
	sched  *scheduler.Scheduler
}

// CirculationService 是流通流程对 HTTP 层暴露的能力。
type CirculationService interface {
	Perform(ctx context.Context, actorRole, username string, bookID uint, action circulation.Action, dateInput string) (*circulation.Result, error)
	ListIssued(ctx context.Context) ([]circulation.IssuedDetail, error)
	BuildReport(ctx context.Context, windowKind string, referenceDate time.Time) ([]circulation.ReportRow, error)
}

// NewServer 初始化 API 服务器。
//
// 它负责：
// 1. 连接 MySQL 数据库并执行自动迁移
// 2. 连接 Redis
// 3. 初始化流通服务、邮件通知器与逾期提醒调度器
// 4. 初始化 Gin 路由引擎
//
// 参数:
//
//	ctx: 上下文
//	cfg: 配置对象
//	logger: 日志记录器
//
// 返回值:
//
//	*Server: 初始化完成的服务器实例
//	error: 初始化失败返回错误
func NewServer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	db, err := gorm.Open(mysql.Open(cfg.MySQL.DSN), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent),
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(
		&model.User{}, &model.Book{}, &model.IssuedBook{},
		&model.BookRequest{}, &model.ContactMessage{},
	); err != nil {
		return nil, err
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       0,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	metrics.InitMetrics()

	emailNotifier := notify.NewEmailNotifier(&cfg.Email, logger)
	circ := circulation.NewService(db, logger, emailNotifier, cfg.App.LoanPeriodDays)

	marker := dedup.NewMarker(rdb, 48*time.Hour)
	sched := scheduler.New(circ, emailNotifier, marker, logger, cfg.App.ReminderInterval)

	loginLimiter := ratelimit.NewRedisRateLimiter(
		rdb, logger, "librarydesk:ratelimit:login",
		cfg.App.LoginRateLimit, cfg.App.LoginRateBurst)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(logger))

	s := &Server{
		cfg:    cfg,
		logger: logger,
		db:     db,
		rdb:    rdb,
		router: r,
		auth:   auth.NewHandler(db, rdb, cfg.Security.JWTSecret, cfg.App.SessionTTL, logger),
		circ:   circ,
		sched:  sched,
	}
	s.registerRoutes(loginLimiter)
	return s, nil
}

// Router 返回 HTTP 路由处理器。
func (s *Server) Router() http.Handler {
	return s.router
}

// StartScheduler 启动逾期提醒调度器。
func (s *Server) StartScheduler(ctx context.Context) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("PANIC in reminder scheduler", slog.Any("panic", r))
			}
		}()
		s.sched.Run(ctx)
	}()
}

// Close 关闭数据库与缓存连接。
func (s *Server) Close() error {
	var firstErr error
	if s.rdb != nil {
		if err := s.rdb.Close(); err != nil {
			firstErr = err
		}
	}
	if s.db != nil {
		sqlDB, err := s.db.DB()
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
		} else {
			if closeErr := sqlDB.Close(); closeErr != nil {
				if firstErr == nil {
					firstErr = closeErr
				}
			}
		}
	}
	return firstErr
}

// registerRoutes 注册所有的 API 路由。
func (s *Server) registerRoutes(loginLimiter *ratelimit.RateLimiter) {
	s.router.GET("/", s.handleLanding)

	// Prometheus metrics 端点
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	s.router.GET("/healthz", s.handleHealthz)

	s.router.GET("/register", s.auth.RegisterPage)
	s.router.POST("/register", s.auth.Register)
	s.router.GET("/login", s.auth.LoginPage)
	s.router.POST("/login", middleware.LoginThrottle(loginLimiter, s.logger), s.auth.Login)

	s.router.GET("/book_gallery", s.handleBookGallery)
	s.router.GET("/books/:category", s.handleBooksByCategory)
	s.router.GET("/contact", s.handleContactPage)
	s.router.POST("/contact", s.handleContact)

	authed := s.router.Group("/")
	authed.Use(middleware.Session(s.cfg.Security.JWTSecret, s.rdb))
	authed.GET("/dashboard", s.handleDashboard)
	authed.GET("/logout", s.auth.Logout)
	authed.POST("/books/:category", s.handleCategoryRequest)

	admin := authed.Group("/")
	admin.Use(middleware.RequireRoles(model.RoleAdmin))
	admin.GET("/manage-books", s.handleListBooks)
	admin.POST("/manage-books", s.handleCreateBook)
	admin.GET("/delete-book/:id", s.handleDeleteBook)
	admin.GET("/issue-return", s.handleIssuedList)
	admin.POST("/issue-return", s.handleIssueReturn)
	admin.GET("/reports", s.handleReports)
	admin.POST("/reports", s.handleReports)

	member := authed.Group("/")
	member.Use(middleware.RequireRoles(model.MemberRoles()...))
	member.GET("/my-books", s.handleMyBooks)
	member.GET("/request-book", s.handleRequestBookPage)
	member.POST("/request-book", s.handleRequestBook)
}

func (s *Server) handleLanding(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "librarydesk",
		"message": "institutional library management",
	})
}

func (s *Server) handleHealthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if s.db == nil || s.rdb == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error"})
		return
	}

	var one int
	if err := s.db.WithContext(ctx).Raw("SELECT 1").Scan(&one).Error; err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error"})
		return
	}
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleDashboard(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"username": middleware.GetUsername(c),
		"role":     middleware.GetRole(c),
	})
}

// handleBookGallery 返回静态分类画廊。
func (s *Server) handleBookGallery(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"categories": catalog.Categories()})
}

// handleBooksByCategory 返回某个分类下的静态书单。
//
// 目录数据独立于馆藏 books 表，未知分类返回空列表。
func (s *Server) handleBooksByCategory(c *gin.Context) {
	category := c.Param("category")
	c.JSON(http.StatusOK, gin.H{
		"category": catalog.Normalize(category),
		"books":    catalog.Lookup(category),
	})
}

// createBookRequest 新增馆藏图书的请求参数。
type createBookRequest struct {
	Title    string `json:"title" binding:"required"`
	Author   string `json:"author"`
	Category string `json:"category"`
}

// bookResponse 馆藏图书的响应结构。
type bookResponse struct {
	ID        uint   `json:"id"`
	Title     string `json:"title"`
	Author    string `json:"author"`
	Category  string `json:"category"`
	Available bool   `json:"available"`
}

// handleListBooks 返回全部馆藏图书。
func (s *Server) handleListBooks(c *gin.Context) {
	books := []model.Book{}
	if err := s.db.WithContext(c.Request.Context()).Order("id").Find(&books).Error; err != nil {
		s.logger.Error("list books failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list books failed"})
		return
	}

	resp := make([]bookResponse, 0, len(books))
	for _, b := range books {
		resp = append(resp, bookResponse{
			ID:        b.ID,
			Title:     b.Title,
			Author:    b.Author,
			Category:  b.Category,
			Available: b.Available,
		})
	}
	c.JSON(http.StatusOK, gin.H{"books": resp})
}

// handleCreateBook 新增馆藏图书（默认可借）。
func (s *Server) handleCreateBook(c *gin.Context) {
	var req createBookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	book := model.Book{
		Title:     req.Title,
		Author:    req.Author,
		Category:  req.Category,
		Available: true,
	}
	if err := s.db.WithContext(c.Request.Context()).Create(&book).Error; err != nil {
		s.logger.Error("create book failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create book failed"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"id": book.ID})
}

// handleDeleteBook 删除馆藏图书。
//
// 借阅历史有意不级联清理。
func (s *Server) handleDeleteBook(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid book id"})
		return
	}

	if err := s.db.WithContext(c.Request.Context()).Delete(&model.Book{}, uint(id)).Error; err != nil {
		s.logger.Error("delete book failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete book failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

// contactRequest 站内留言的请求参数。
type contactRequest struct {
	Name    string `json:"name" binding:"required"`
	Email   string `json:"email" binding:"required,email"`
	Message string `json:"message" binding:"required"`
}

func (s *Server) handleContactPage(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"fields": []string{"name", "email", "message"}})
}

// handleContact 记录一条站内留言（只追加）。
func (s *Server) handleContact(c *gin.Context) {
	var req contactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg := model.ContactMessage{
		Name:    req.Name,
		Email:   req.Email,
		Message: req.Message,
	}
	if err := s.db.WithContext(c.Request.Context()).Create(&msg).Error; err != nil {
		s.logger.Error("save contact message failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "save message failed"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "message sent"})
}

package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"librarydesk/internal/api/middleware"
	"librarydesk/internal/model"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Handler 提供注册、登录与注销接口。
type Handler struct {
	db         *gorm.DB
	rdb        *redis.Client
	jwtSecret  []byte
	sessionTTL time.Duration
	logger     *slog.Logger
}

// NewHandler 创建 Auth Handler。
func NewHandler(db *gorm.DB, rdb *redis.Client, jwtSecret string, sessionTTL time.Duration, logger *slog.Logger) *Handler {
	if sessionTTL <= 0 {
		sessionTTL = 24 * time.Hour
	}
	return &Handler{
		db:         db,
		rdb:        rdb,
		jwtSecret:  []byte(jwtSecret),
		sessionTTL: sessionTTL,
		logger:     logger,
	}
}

type registerRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
	Role     string `json:"role" binding:"required"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
	Role     string `json:"role" binding:"required"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

// RegisterPage 返回注册表单的元数据（页面渲染由前端负责）。
func (h *Handler) RegisterPage(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"roles": []string{model.RoleStudent, model.RoleFaculty, model.RoleAdmin},
	})
}

// Register 创建新用户。
//
// 邮箱已存在时不创建重复用户，带警告重定向到登录页。
func (h *Handler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	role := strings.TrimSpace(strings.ToLower(req.Role))
	if !model.IsValidRole(role) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid role"})
		return
	}
	email := strings.TrimSpace(strings.ToLower(req.Email))

	var existing model.User
	err := h.db.Where("email = ?", email).First(&existing).Error
	if err == nil {
		// 用户已存在：提示去登录，不做任何写入
		c.Redirect(http.StatusFound, "/login?warning=user_exists")
		return
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query user failed"})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "hash password failed"})
		return
	}

	user := model.User{
		Username: strings.TrimSpace(req.Username),
		Email:    email,
		Password: string(hash),
		Role:     role,
	}
	if err := h.db.Create(&user).Error; err != nil {
		if h.logger != nil {
			h.logger.Error("create user failed", slog.String("email", email), slog.String("error", err.Error()))
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create user failed"})
		return
	}

	if h.logger != nil {
		h.logger.Info("user registered", slog.String("email", email), slog.String("role", role))
	}
	c.JSON(http.StatusCreated, gin.H{"message": "registration successful, please login"})
}

// LoginPage 返回登录表单的元数据。
func (h *Handler) LoginPage(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"roles": []string{model.RoleStudent, model.RoleFaculty, model.RoleAdmin},
	})
}

// Login 按 (邮箱, 口令, 角色) 校验用户并建立会话。
//
// 成功时签发会话令牌，同时写入 Cookie 并在响应体返回。
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	email := strings.TrimSpace(strings.ToLower(req.Email))
	role := strings.TrimSpace(strings.ToLower(req.Role))

	var user model.User
	if err := h.db.Where("email = ? AND role = ?", email, role).First(&user).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	token, err := h.issueToken(&user)
	if err != nil {
		if h.logger != nil {
			h.logger.Error("sign token failed", slog.String("email", email), slog.String("error", err.Error()))
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "sign token failed"})
		return
	}

	c.SetCookie(middleware.SessionCookie, token, int(h.sessionTTL.Seconds()), "/", "", false, true)

	if h.logger != nil {
		h.logger.Info("user logged in", slog.String("email", email), slog.String("role", user.Role))
	}
	c.JSON(http.StatusOK, tokenResponse{Token: token})
}

// Logout 注销会话：令牌进入吊销名单，清除 Cookie，回到首页。
func (h *Handler) Logout(c *gin.Context) {
	sessionID := c.GetString("sessionID")
	if sessionID != "" && h.rdb != nil {
		ttl := h.sessionTTL
		if v, ok := c.Get("sessionExpiresAt"); ok {
			if expires, ok := v.(time.Time); ok {
				if remain := time.Until(expires); remain > 0 {
					ttl = remain
				}
			}
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.rdb.Set(ctx, middleware.RevokedKeyPrefix+sessionID, "1", ttl).Err(); err != nil {
			if h.logger != nil {
				h.logger.Warn("revoke session failed", slog.String("error", err.Error()))
			}
		}
	}

	c.SetCookie(middleware.SessionCookie, "", -1, "/", "", false, true)
	c.Redirect(http.StatusFound, "/")
}

func (h *Handler) issueToken(user *model.User) (string, error) {
	jti, err := randomID()
	if err != nil {
		return "", fmt.Errorf("generate session id: %w", err)
	}
	now := time.Now()
	claims := middleware.SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(user.ID), 10),
			ID:        jti,
			ExpiresAt: jwt.NewNumericDate(now.Add(h.sessionTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		Username: user.Username,
		Role:     user.Role,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(h.jwtSecret)
}

func randomID() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

package api

import (
	"context"
	"log/slog"

	"librarydesk/internal/model"

	"golang.org/x/crypto/bcrypt"
)

// SeedAdminUser 确保系统中至少存在一个管理员账号。
//
// 首次启动时用配置里的初始凭据创建管理员；已存在管理员则跳过，
// 多次调用是幂等的。
func (s *Server) SeedAdminUser(ctx context.Context) error {
	var count int64
	if err := s.db.WithContext(ctx).
		Model(&model.User{}).
		Where("role = ?", model.RoleAdmin).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hashed, err := bcrypt.GenerateFromPassword(
		[]byte(s.cfg.Security.AdminPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	admin := model.User{
		Username: s.cfg.Security.AdminUsername,
		Email:    s.cfg.Security.AdminEmail,
		Password: string(hashed),
		Role:     model.RoleAdmin,
	}
	if err := s.db.WithContext(ctx).Create(&admin).Error; err != nil {
		return err
	}

	s.logger.Info("seeded initial admin user",
		slog.String("username", admin.Username),
		slog.String("email", admin.Email))
	return nil
}

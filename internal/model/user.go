package model

import "time"

// 系统角色。
const (
	RoleAdmin   = "admin"
	RoleStudent = "student"
	RoleFaculty = "faculty"
)

// User 表示系统用户。
//
// 注册时创建（或服务首次启动时引导创建一个默认 admin），
// 应用层不会更新或删除用户。
type User struct {
	ID        uint      `gorm:"primaryKey"`                       // 用户 ID
	Username  string    `gorm:"type:varchar(191);not null"`       // 显示名（借还操作按此查找）
	Email     string    `gorm:"type:varchar(191);index"`          // 邮箱（注册时查重，不加唯一约束）
	Password  string    `gorm:"not null"`                         // bcrypt 哈希
	Role      string    `gorm:"type:varchar(16);default:student"` // 角色: admin / student / faculty
	CreatedAt time.Time // 创建时间
}

// MemberRoles 返回普通成员角色集合（student / faculty）。
func MemberRoles() []string {
	return []string{RoleStudent, RoleFaculty}
}

// IsValidRole 判断角色字符串是否合法。
func IsValidRole(role string) bool {
	switch role {
	case RoleAdmin, RoleStudent, RoleFaculty:
		return true
	}
	return false
}

package model

import "time"

// DateLayout 是所有日历日期字段的存储格式（ISO-8601，如 "2024-01-15"）。
//
// 日期以字符串形式入库，字符串的字典序即日期序，报表的区间过滤依赖这一点。
const DateLayout = "2006-01-02"

// Book 表示馆藏图书。
//
// 由管理员创建和删除；Available 只能由借还流程修改。
// 删除图书不会级联清理借阅历史。
type Book struct {
	ID        uint      `gorm:"primaryKey"`                 // 图书 ID
	Title     string    `gorm:"type:varchar(255);not null"` // 书名
	Author    string    `gorm:"type:varchar(255)"`          // 作者
	Category  string    `gorm:"type:varchar(64)"`           // 分类（自由文本）
	Available bool      `gorm:"default:true"`               // 是否可借
	CreatedAt time.Time // 创建时间
}

// IssuedBook 表示一条借阅记录。
//
// 借出时创建，归还时翻转 Returned，永不删除。
// 不变式：同一 (user, book) 同时最多存在一条 Returned=false 的记录。
type IssuedBook struct {
	ID        uint   `gorm:"primaryKey"` // 记录 ID
	UserID    uint   `gorm:"not null;index"`
	BookID    uint   `gorm:"not null;index"`
	IssueDate string `gorm:"type:varchar(10);not null"` // 借出日期（ISO 日期字符串）
	DueDate   string `gorm:"type:varchar(10);not null"` // 应还日期 = 借出日期 + 借期
	Returned  bool   `gorm:"default:false"`             // 是否已归还
}

// TableName 指定借阅记录表名。
func (IssuedBook) TableName() string {
	return "issued_books"
}

// BookRequest 表示用户提交的荐购请求（只追加）。
//
// BookTitle 是自由文本，不校验是否存在于馆藏或目录。
type BookRequest struct {
	ID          uint   `gorm:"primaryKey"`
	UserID      uint   `gorm:"not null;index"`
	BookTitle   string `gorm:"type:varchar(255);not null"` // 请求书名（自由文本）
	RequestDate string `gorm:"type:varchar(10);not null"`  // 请求日期（ISO 日期字符串）
}

// ContactMessage 表示站内留言（只追加）。
type ContactMessage struct {
	ID      uint   `gorm:"primaryKey"`
	Name    string `gorm:"type:varchar(191)"`
	Email   string `gorm:"type:varchar(191)"`
	Message string `gorm:"type:text"`
}

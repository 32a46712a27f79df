package circulation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"librarydesk/internal/model"
	"librarydesk/internal/pkg/metrics"
	"librarydesk/internal/pkg/notify"

	"gorm.io/gorm"
)

// 流通流程的错误分类。
// 调用方据此决定是拒绝（重定向）、提示还是报冲突。
var (
	ErrUnauthorized    = errors.New("actor is not an admin")
	ErrUserNotFound    = errors.New("user not found")
	ErrBookNotFound    = errors.New("book not found")
	ErrInvalidDate     = errors.New("invalid date")
	ErrBookUnavailable = errors.New("book is currently not available")
	ErrNoOpenRecord    = errors.New("no open issued record for this user and book")
)

// Action 表示一次流通操作的类型。
type Action string

const (
	ActionIssue  Action = "issue"
	ActionReturn Action = "return"
)

// Service 实现图书借出 / 归还的核心流程。
//
// 所有状态都在数据库里，Service 自身不在请求之间保留任何权威状态。
type Service struct {
	db       *gorm.DB
	logger   *slog.Logger
	notifier notify.Notifier
	loanDays int
}

// NewService 创建流通服务。
//
// 参数:
//
//	db: 数据库连接
//	logger: 日志记录器
//	notifier: 邮件通知器（可为 nil，表示不通知）
//	loanDays: 借期天数（<=0 时使用默认 14 天）
func NewService(db *gorm.DB, logger *slog.Logger, notifier notify.Notifier, loanDays int) *Service {
	if loanDays <= 0 {
		loanDays = 14
	}
	return &Service{
		db:       db,
		logger:   logger,
		notifier: notifier,
		loanDays: loanDays,
	}
}

// Result 描述一次成功的流通操作。
type Result struct {
	Action    Action `json:"action"`
	RecordID  uint   `json:"record_id"`
	Username  string `json:"username"`
	BookTitle string `json:"book_title"`
	IssueDate string `json:"issue_date"`
	DueDate   string `json:"due_date,omitempty"` // 归还操作时为空
}

// Perform 执行一次借出或归还。
//
// 校验顺序：操作者角色 → 用户名 → 图书 → 日期。任何一步失败都不产生写入。
// 借出时记录创建与可借标志翻转在同一事务内提交；
// 可借标志通过条件更新（available=1 时才置 0）翻转，并检查影响行数，
// 避免先读后写的竞争窗口。
//
// 归还操作会解析调用方提供的日期并校验格式，但不落库：
// 表结构没有归还日期列。
func (s *Service) Perform(ctx context.Context, actorRole, username string, bookID uint, action Action, dateInput string) (*Result, error) {
	if actorRole != model.RoleAdmin {
		return nil, ErrUnauthorized
	}

	var user model.User
	if err := s.db.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	var book model.Book
	if err := s.db.WithContext(ctx).First(&book, bookID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBookNotFound
		}
		return nil, fmt.Errorf("lookup book: %w", err)
	}

	date, err := time.Parse(model.DateLayout, dateInput)
	if err != nil {
		return nil, ErrInvalidDate
	}

	switch action {
	case ActionIssue:
		return s.issue(ctx, &user, &book, date)
	case ActionReturn:
		return s.doReturn(ctx, &user, &book)
	default:
		return nil, fmt.Errorf("unknown action %q", action)
	}
}

func (s *Service) issue(ctx context.Context, user *model.User, book *model.Book, issueDate time.Time) (*Result, error) {
	// 先做一次用户可见的快速检查，不可借时不产生任何写入
	if !book.Available {
		metrics.CirculationConflicts.Inc()
		return nil, ErrBookUnavailable
	}

	issueStr := issueDate.Format(model.DateLayout)
	dueStr := issueDate.AddDate(0, 0, s.loanDays).Format(model.DateLayout)

	record := model.IssuedBook{
		UserID:    user.ID,
		BookID:    book.ID,
		IssueDate: issueStr,
		DueDate:   dueStr,
		Returned:  false,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Book{}).
			Where("id = ? AND available = ?", book.ID, true).
			Update("available", false)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// 并发借出竞争失败：另一事务已经拿走了这本书
			return ErrBookUnavailable
		}
		return tx.Create(&record).Error
	})
	if err != nil {
		if errors.Is(err, ErrBookUnavailable) {
			metrics.CirculationConflicts.Inc()
			return nil, ErrBookUnavailable
		}
		return nil, fmt.Errorf("issue book: %w", err)
	}

	metrics.BooksIssuedTotal.Inc()
	s.logger.Info("book issued",
		slog.String("username", user.Username),
		slog.Uint64("book_id", uint64(book.ID)),
		slog.String("due_date", dueStr))

	s.notifyBestEffort(ctx, user, book, ActionIssue, dueStr)

	return &Result{
		Action:    ActionIssue,
		RecordID:  record.ID,
		Username:  user.Username,
		BookTitle: book.Title,
		IssueDate: issueStr,
		DueDate:   dueStr,
	}, nil
}

func (s *Service) doReturn(ctx context.Context, user *model.User, book *model.Book) (*Result, error) {
	var record model.IssuedBook

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("user_id = ? AND book_id = ? AND returned = ?", user.ID, book.ID, false).
			First(&record).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNoOpenRecord
			}
			return err
		}

		if err := tx.Model(&model.IssuedBook{}).
			Where("id = ?", record.ID).
			Update("returned", true).Error; err != nil {
			return err
		}
		return tx.Model(&model.Book{}).
			Where("id = ?", book.ID).
			Update("available", true).Error
	})
	if err != nil {
		if errors.Is(err, ErrNoOpenRecord) {
			return nil, ErrNoOpenRecord
		}
		return nil, fmt.Errorf("return book: %w", err)
	}

	metrics.BooksReturnedTotal.Inc()
	s.logger.Info("book returned",
		slog.String("username", user.Username),
		slog.Uint64("book_id", uint64(book.ID)))

	s.notifyBestEffort(ctx, user, book, ActionReturn, "")

	return &Result{
		Action:    ActionReturn,
		RecordID:  record.ID,
		Username:  user.Username,
		BookTitle: book.Title,
		IssueDate: record.IssueDate,
	}, nil
}

// notifyBestEffort 发送借还通知。失败只记录日志，不影响操作结果。
func (s *Service) notifyBestEffort(ctx context.Context, user *model.User, book *model.Book, action Action, dueDate string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.SendCirculationNotice(ctx, user.Email, user.Username, book.Title, string(action), dueDate); err != nil {
		s.logger.Warn("circulation notice failed",
			slog.String("email", user.Email),
			slog.String("error", err.Error()))
	}
}

// IssuedDetail 是借阅记录与用户名、书名拼接后的展示行。
type IssuedDetail struct {
	ID        uint   `json:"id"`
	Username  string `json:"username"`
	Title     string `json:"title"`
	IssueDate string `json:"issue_date"`
	DueDate   string `json:"due_date"`
	Returned  bool   `json:"returned"`
}

// ListIssued 返回全部借阅记录及用户名 / 书名，供管理页展示。
func (s *Service) ListIssued(ctx context.Context) ([]IssuedDetail, error) {
	rows := []IssuedDetail{}
	err := s.db.WithContext(ctx).Table("issued_books").
		Select("issued_books.id, users.username, books.title, issued_books.issue_date, issued_books.due_date, issued_books.returned").
		Joins("JOIN users ON issued_books.user_id = users.id").
		Joins("JOIN books ON issued_books.book_id = books.id").
		Order("issued_books.id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list issued: %w", err)
	}
	return rows, nil
}

// OverdueRecord 描述一条逾期未还的借阅，用于催还提醒。
type OverdueRecord struct {
	RecordID uint   `json:"record_id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Title    string `json:"title"`
	DueDate  string `json:"due_date"`
}

// ListOverdue 返回截至 today（ISO 日期字符串）逾期未还的全部记录。
func (s *Service) ListOverdue(ctx context.Context, today string) ([]OverdueRecord, error) {
	rows := []OverdueRecord{}
	err := s.db.WithContext(ctx).Table("issued_books").
		Select("issued_books.id AS record_id, users.username, users.email, books.title, issued_books.due_date").
		Joins("JOIN users ON issued_books.user_id = users.id").
		Joins("JOIN books ON issued_books.book_id = books.id").
		Where("issued_books.returned = ? AND issued_books.due_date < ?", false, today).
		Order("issued_books.due_date").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list overdue: %w", err)
	}
	return rows, nil
}

package circulation

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"librarydesk/internal/model"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("unwrap db: %v", err)
	}
	// 内存库按连接隔离，必须限制为单连接
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(
		&model.User{}, &model.Book{}, &model.IssuedBook{},
		&model.BookRequest{}, &model.ContactMessage{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newTestService(t *testing.T, db *gorm.DB) *Service {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(db, logger, nil, 14)
}

func seedUser(t *testing.T, db *gorm.DB, username, role string) model.User {
	t.Helper()
	user := model.User{
		Username: username,
		Email:    username + "@example.com",
		Password: "x",
		Role:     role,
	}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return user
}

func seedBook(t *testing.T, db *gorm.DB, title string, available bool) model.Book {
	t.Helper()
	book := model.Book{Title: title, Author: "A. Author", Category: "Fiction", Available: available}
	if err := db.Create(&book).Error; err != nil {
		t.Fatalf("seed book: %v", err)
	}
	return book
}

func TestPerform_IssueSuccess(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)
	seedUser(t, db, "alice", model.RoleStudent)
	book := seedBook(t, db, "The Great Gatsby", true)

	res, err := svc.Perform(context.Background(), model.RoleAdmin, "alice", book.ID, ActionIssue, "2024-01-01")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if res.DueDate != "2024-01-15" {
		t.Fatalf("expected due date 2024-01-15, got %q", res.DueDate)
	}

	var got model.Book
	if err := db.First(&got, book.ID).Error; err != nil {
		t.Fatalf("reload book: %v", err)
	}
	if got.Available {
		t.Fatalf("expected book to be unavailable after issue")
	}

	var records []model.IssuedBook
	if err := db.Find(&records).Error; err != nil {
		t.Fatalf("load records: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected exactly one issued record, got %d", len(records))
	}
	rec := records[0]
	if rec.Returned {
		t.Fatalf("expected record to be open")
	}
	if rec.IssueDate != "2024-01-01" || rec.DueDate != "2024-01-15" {
		t.Fatalf("unexpected record dates: %q / %q", rec.IssueDate, rec.DueDate)
	}
}

func TestPerform_IssueUnavailableWritesNothing(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)
	seedUser(t, db, "alice", model.RoleStudent)
	book := seedBook(t, db, "Watchmen", false)

	_, err := svc.Perform(context.Background(), model.RoleAdmin, "alice", book.ID, ActionIssue, "2024-01-01")
	if !errors.Is(err, ErrBookUnavailable) {
		t.Fatalf("expected ErrBookUnavailable, got %v", err)
	}

	var count int64
	if err := db.Model(&model.IssuedBook{}).Count(&count).Error; err != nil {
		t.Fatalf("count records: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected no issued records, got %d", count)
	}
}

func TestPerform_SecondIssueOfSameBookConflicts(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)
	seedUser(t, db, "alice", model.RoleStudent)
	seedUser(t, db, "bob", model.RoleFaculty)
	book := seedBook(t, db, "Atomic Habits", true)

	if _, err := svc.Perform(context.Background(), model.RoleAdmin, "alice", book.ID, ActionIssue, "2024-01-01"); err != nil {
		t.Fatalf("first issue: %v", err)
	}
	_, err := svc.Perform(context.Background(), model.RoleAdmin, "bob", book.ID, ActionIssue, "2024-01-02")
	if !errors.Is(err, ErrBookUnavailable) {
		t.Fatalf("expected conflict on second issue, got %v", err)
	}
}

func TestPerform_NonAdminRefused(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)
	seedUser(t, db, "alice", model.RoleStudent)
	book := seedBook(t, db, "Watchmen", true)

	_, err := svc.Perform(context.Background(), model.RoleStudent, "alice", book.ID, ActionIssue, "2024-01-01")
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}

	var got model.Book
	if err := db.First(&got, book.ID).Error; err != nil {
		t.Fatalf("reload book: %v", err)
	}
	if !got.Available {
		t.Fatalf("expected no mutation for non-admin actor")
	}
}

func TestPerform_ValidationFailures(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)
	user := seedUser(t, db, "alice", model.RoleStudent)
	book := seedBook(t, db, "Watchmen", true)

	ctx := context.Background()

	if _, err := svc.Perform(ctx, model.RoleAdmin, "nobody", book.ID, ActionIssue, "2024-01-01"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
	if _, err := svc.Perform(ctx, model.RoleAdmin, "alice", 999, ActionIssue, "2024-01-01"); !errors.Is(err, ErrBookNotFound) {
		t.Fatalf("expected ErrBookNotFound, got %v", err)
	}
	if _, err := svc.Perform(ctx, model.RoleAdmin, "alice", book.ID, ActionIssue, "01/01/2024"); !errors.Is(err, ErrInvalidDate) {
		t.Fatalf("expected ErrInvalidDate, got %v", err)
	}

	_ = user
}

func TestPerform_ReturnSuccess(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)
	seedUser(t, db, "alice", model.RoleStudent)
	book := seedBook(t, db, "The Great Gatsby", true)

	if _, err := svc.Perform(context.Background(), model.RoleAdmin, "alice", book.ID, ActionIssue, "2024-01-01"); err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := svc.Perform(context.Background(), model.RoleAdmin, "alice", book.ID, ActionReturn, "2024-01-10"); err != nil {
		t.Fatalf("return: %v", err)
	}

	var rec model.IssuedBook
	if err := db.First(&rec).Error; err != nil {
		t.Fatalf("load record: %v", err)
	}
	if !rec.Returned {
		t.Fatalf("expected record to be marked returned")
	}

	var got model.Book
	if err := db.First(&got, book.ID).Error; err != nil {
		t.Fatalf("reload book: %v", err)
	}
	if !got.Available {
		t.Fatalf("expected book to be available after return")
	}
}

func TestPerform_ReturnWithoutOpenRecord(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)
	seedUser(t, db, "alice", model.RoleStudent)
	book := seedBook(t, db, "Watchmen", true)

	_, err := svc.Perform(context.Background(), model.RoleAdmin, "alice", book.ID, ActionReturn, "2024-01-10")
	if !errors.Is(err, ErrNoOpenRecord) {
		t.Fatalf("expected ErrNoOpenRecord, got %v", err)
	}

	var got model.Book
	if err := db.First(&got, book.ID).Error; err != nil {
		t.Fatalf("reload book: %v", err)
	}
	if !got.Available {
		t.Fatalf("expected book availability untouched")
	}
}

type recordingNotifier struct {
	notices   int
	reminders int
	lastDue   string
	action    string
}

func (r *recordingNotifier) SendCirculationNotice(_ context.Context, _, _, _, action, dueDate string) error {
	r.notices++
	r.action = action
	r.lastDue = dueDate
	return nil
}

func (r *recordingNotifier) SendDueReminder(_ context.Context, _, _, _, _ string) error {
	r.reminders++
	return nil
}

func TestPerform_IssueSendsNotice(t *testing.T) {
	db := newTestDB(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	n := &recordingNotifier{}
	svc := NewService(db, logger, n, 14)

	seedUser(t, db, "alice", model.RoleStudent)
	book := seedBook(t, db, "Watchmen", true)

	if _, err := svc.Perform(context.Background(), model.RoleAdmin, "alice", book.ID, ActionIssue, "2024-01-01"); err != nil {
		t.Fatalf("issue: %v", err)
	}
	if n.notices != 1 {
		t.Fatalf("expected one notice, got %d", n.notices)
	}
	if n.action != "issue" || n.lastDue != "2024-01-15" {
		t.Fatalf("unexpected notice: action=%q due=%q", n.action, n.lastDue)
	}
}

func TestListIssued_JoinsUserAndBook(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)
	seedUser(t, db, "alice", model.RoleStudent)
	book := seedBook(t, db, "The Great Gatsby", true)

	if _, err := svc.Perform(context.Background(), model.RoleAdmin, "alice", book.ID, ActionIssue, "2024-01-01"); err != nil {
		t.Fatalf("issue: %v", err)
	}

	rows, err := svc.ListIssued(context.Background())
	if err != nil {
		t.Fatalf("list issued: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected one row, got %d", len(rows))
	}
	row := rows[0]
	if row.Username != "alice" || row.Title != "The Great Gatsby" {
		t.Fatalf("unexpected join result: %+v", row)
	}
	if row.IssueDate != "2024-01-01" || row.DueDate != "2024-01-15" || row.Returned {
		t.Fatalf("unexpected row fields: %+v", row)
	}
}

func TestListOverdue(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)
	seedUser(t, db, "alice", model.RoleStudent)
	overdueBook := seedBook(t, db, "Overdue Book", true)
	currentBook := seedBook(t, db, "Current Book", true)

	if _, err := svc.Perform(context.Background(), model.RoleAdmin, "alice", overdueBook.ID, ActionIssue, "2024-01-01"); err != nil {
		t.Fatalf("issue overdue: %v", err)
	}
	if _, err := svc.Perform(context.Background(), model.RoleAdmin, "alice", currentBook.ID, ActionIssue, "2024-02-01"); err != nil {
		t.Fatalf("issue current: %v", err)
	}

	// 2024-01-01 借出的应还日期是 2024-01-15，2024-02-01 这天已逾期
	rows, err := svc.ListOverdue(context.Background(), "2024-02-01")
	if err != nil {
		t.Fatalf("list overdue: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected one overdue record, got %d", len(rows))
	}
	if rows[0].Title != "Overdue Book" || rows[0].DueDate != "2024-01-15" {
		t.Fatalf("unexpected overdue row: %+v", rows[0])
	}
	if rows[0].Email != "alice@example.com" {
		t.Fatalf("expected borrower email, got %q", rows[0].Email)
	}
}

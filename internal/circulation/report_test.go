package circulation

import (
	"context"
	"testing"
	"time"

	"librarydesk/internal/model"
)

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse(model.DateLayout, s)
	if err != nil {
		t.Fatalf("parse date %q: %v", s, err)
	}
	return d
}

func TestBuildReport_WeeklyWindow(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)
	seedUser(t, db, "alice", model.RoleStudent)

	inside := seedBook(t, db, "Inside Window", true)
	boundary := seedBook(t, db, "On Boundary", true)
	outside := seedBook(t, db, "Outside Window", true)

	ctx := context.Background()
	if _, err := svc.Perform(ctx, model.RoleAdmin, "alice", inside.ID, ActionIssue, "2024-03-10"); err != nil {
		t.Fatalf("issue inside: %v", err)
	}
	if _, err := svc.Perform(ctx, model.RoleAdmin, "alice", boundary.ID, ActionIssue, "2024-03-08"); err != nil {
		t.Fatalf("issue boundary: %v", err)
	}
	if _, err := svc.Perform(ctx, model.RoleAdmin, "alice", outside.ID, ActionIssue, "2024-03-07"); err != nil {
		t.Fatalf("issue outside: %v", err)
	}

	// 参考日 2024-03-15，weekly 窗口起点 2024-03-08
	rows, err := svc.BuildReport(ctx, WindowWeekly, mustDate(t, "2024-03-15"))
	if err != nil {
		t.Fatalf("build report: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows in weekly window, got %d", len(rows))
	}
	// 按借出日期降序
	if rows[0].Title != "Inside Window" || rows[1].Title != "On Boundary" {
		t.Fatalf("unexpected order: %q, %q", rows[0].Title, rows[1].Title)
	}
}

func TestBuildReport_DailyBoundaryExample(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)
	seedUser(t, db, "alice", model.RoleStudent)
	book := seedBook(t, db, "New Year Book", true)

	ctx := context.Background()
	if _, err := svc.Perform(ctx, model.RoleAdmin, "alice", book.ID, ActionIssue, "2024-01-01"); err != nil {
		t.Fatalf("issue: %v", err)
	}

	sameDay, err := svc.BuildReport(ctx, WindowDaily, mustDate(t, "2024-01-01"))
	if err != nil {
		t.Fatalf("report same day: %v", err)
	}
	if len(sameDay) != 1 {
		t.Fatalf("expected issue to appear on its own day, got %d rows", len(sameDay))
	}

	nextDay, err := svc.BuildReport(ctx, WindowDaily, mustDate(t, "2024-01-02"))
	if err != nil {
		t.Fatalf("report next day: %v", err)
	}
	if len(nextDay) != 0 {
		t.Fatalf("expected issue to be excluded the next day, got %d rows", len(nextDay))
	}
}

func TestBuildReport_UnknownWindowFallsBackToDaily(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)
	seedUser(t, db, "alice", model.RoleStudent)
	old := seedBook(t, db, "Old Book", true)
	fresh := seedBook(t, db, "Fresh Book", true)

	ctx := context.Background()
	if _, err := svc.Perform(ctx, model.RoleAdmin, "alice", old.ID, ActionIssue, "2024-03-01"); err != nil {
		t.Fatalf("issue old: %v", err)
	}
	if _, err := svc.Perform(ctx, model.RoleAdmin, "alice", fresh.ID, ActionIssue, "2024-03-15"); err != nil {
		t.Fatalf("issue fresh: %v", err)
	}

	rows, err := svc.BuildReport(ctx, "yearly", mustDate(t, "2024-03-15"))
	if err != nil {
		t.Fatalf("build report: %v", err)
	}
	if len(rows) != 1 || rows[0].Title != "Fresh Book" {
		t.Fatalf("expected daily semantics for unknown window, got %+v", rows)
	}
}

func TestBuildReport_ReturnDatePopulatedOnlyWhenReturned(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)
	seedUser(t, db, "alice", model.RoleStudent)
	returned := seedBook(t, db, "Returned Book", true)
	open := seedBook(t, db, "Open Book", true)

	ctx := context.Background()
	if _, err := svc.Perform(ctx, model.RoleAdmin, "alice", returned.ID, ActionIssue, "2024-03-10"); err != nil {
		t.Fatalf("issue returned: %v", err)
	}
	if _, err := svc.Perform(ctx, model.RoleAdmin, "alice", returned.ID, ActionReturn, "2024-03-12"); err != nil {
		t.Fatalf("return: %v", err)
	}
	if _, err := svc.Perform(ctx, model.RoleAdmin, "alice", open.ID, ActionIssue, "2024-03-11"); err != nil {
		t.Fatalf("issue open: %v", err)
	}

	rows, err := svc.BuildReport(ctx, WindowWeekly, mustDate(t, "2024-03-15"))
	if err != nil {
		t.Fatalf("build report: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}

	for _, row := range rows {
		switch row.Title {
		case "Returned Book":
			// 已归还记录的归还日期取自应还日期
			if row.ReturnDate != "2024-03-24" {
				t.Fatalf("expected return date 2024-03-24, got %q", row.ReturnDate)
			}
		case "Open Book":
			if row.ReturnDate != "" {
				t.Fatalf("expected empty return date for open record, got %q", row.ReturnDate)
			}
		default:
			t.Fatalf("unexpected row: %+v", row)
		}
	}
}

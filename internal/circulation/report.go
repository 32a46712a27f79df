package circulation

import (
	"context"
	"fmt"
	"time"

	"librarydesk/internal/model"
)

// 报表时间窗口。
const (
	WindowDaily   = "daily"
	WindowWeekly  = "weekly"
	WindowMonthly = "monthly"
)

// ReportRow 是流通报表的一行。
//
// ReturnDate 只有在记录已归还时才有值，取自记录的应还日期：
// 表中没有单独的归还日期列。
type ReportRow struct {
	Username   string `json:"username"`
	Title      string `json:"title"`
	IssueDate  string `json:"issue_date"`
	ReturnDate string `json:"return_date,omitempty"`
}

type reportScanRow struct {
	Username  string
	Title     string
	IssueDate string
	DueDate   string
	Returned  bool
}

// BuildReport 构建一个时间窗口内的流通报表。
//
// 窗口起点：daily 为参考日当天，weekly 为参考日减 7 天，
// monthly 为参考日减 30 天；无法识别的窗口按 daily 处理。
// 返回借出日期不早于窗口起点的全部记录，按借出日期降序排列。
func (s *Service) BuildReport(ctx context.Context, windowKind string, referenceDate time.Time) ([]ReportRow, error) {
	start := referenceDate
	switch windowKind {
	case WindowWeekly:
		start = referenceDate.AddDate(0, 0, -7)
	case WindowMonthly:
		start = referenceDate.AddDate(0, 0, -30)
	default:
		// daily 及未知窗口：起点即参考日
	}

	rows := []reportScanRow{}
	err := s.db.WithContext(ctx).Table("issued_books").
		Select("users.username, books.title, issued_books.issue_date, issued_books.due_date, issued_books.returned").
		Joins("JOIN users ON issued_books.user_id = users.id").
		Joins("JOIN books ON issued_books.book_id = books.id").
		Where("issued_books.issue_date >= ?", start.Format(model.DateLayout)).
		Order("issued_books.issue_date DESC, issued_books.id DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("build report: %w", err)
	}

	report := make([]ReportRow, 0, len(rows))
	for _, row := range rows {
		r := ReportRow{
			Username:  row.Username,
			Title:     row.Title,
			IssueDate: row.IssueDate,
		}
		if row.Returned {
			r.ReturnDate = row.DueDate
		}
		report = append(report, r)
	}
	return report, nil
}

package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"librarydesk/internal/api/middleware"
	"librarydesk/internal/circulation"
	"librarydesk/internal/model"
	"librarydesk/internal/pkg/metrics"

	"github.com/gin-gonic/gin"
)

// issueReturnRequest 借还操作的请求参数。
type issueReturnRequest struct {
	Username  string `json:"username" binding:"required"`
	BookID    uint   `json:"book_id" binding:"required"`
	Action    string `json:"action" binding:"required"`
	IssueDate string `json:"issue_date" binding:"required"`
}

// handleIssuedList 返回全部借阅记录（含用户名与书名）。
func (s *Server) handleIssuedList(c *gin.Context) {
	records, err := s.circ.ListIssued(c.Request.Context())
	if err != nil {
		s.logger.Error("list issued records failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list records failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": records})
}

// handleIssueReturn 执行借出或归还。
//
// 用户、图书必须已存在；重复借出同一本书会被拒绝。
func (s *Server) handleIssueReturn(c *gin.Context) {
	var req issueReturnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := s.circ.Perform(
		c.Request.Context(),
		middleware.GetRole(c),
		req.Username,
		req.BookID,
		circulation.Action(req.Action),
		req.IssueDate,
	)
	if err != nil {
		s.renderCirculationError(c, err)
		return
	}

	message := "book issued"
	if result.Action == circulation.ActionReturn {
		message = "book returned"
	}
	c.JSON(http.StatusOK, gin.H{"message": message, "result": result})
}

// renderCirculationError 将流通服务的哨兵错误映射为 HTTP 响应。
func (s *Server) renderCirculationError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, circulation.ErrUnauthorized):
		c.Redirect(http.StatusFound, "/dashboard")
	case errors.Is(err, circulation.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"warning": "user not found"})
	case errors.Is(err, circulation.ErrBookNotFound):
		c.JSON(http.StatusNotFound, gin.H{"warning": "book not found"})
	case errors.Is(err, circulation.ErrNoOpenRecord):
		c.JSON(http.StatusNotFound, gin.H{"warning": "no open record for this user and book"})
	case errors.Is(err, circulation.ErrInvalidDate):
		c.JSON(http.StatusBadRequest, gin.H{"warning": "invalid date, expected YYYY-MM-DD"})
	case errors.Is(err, circulation.ErrBookUnavailable):
		c.JSON(http.StatusConflict, gin.H{"warning": "book is not available"})
	default:
		s.logger.Error("circulation operation failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "operation failed"})
	}
}

// reportRequest 流通报表的请求参数。
type reportRequest struct {
	ReportType string `json:"report_type"`
}

// handleReports 返回指定时间窗口内的流通报表。
//
// GET 走 query 参数，POST 走 JSON；两者都以当天为参考日期。
func (s *Server) handleReports(c *gin.Context) {
	windowKind := circulation.WindowDaily
	if c.Request.Method == http.MethodPost {
		var req reportRequest
		if err := c.ShouldBindJSON(&req); err == nil && req.ReportType != "" {
			windowKind = req.ReportType
		}
	} else if v := c.Query("report_type"); v != "" {
		windowKind = v
	}

	rows, err := s.circ.BuildReport(c.Request.Context(), windowKind, time.Now())
	if err != nil {
		s.logger.Error("build report failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "build report failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"report_type": windowKind, "records": rows})
}

// myIssuedRow 成员视角下的一条借阅记录。
type myIssuedRow struct {
	Title     string `json:"title"`
	IssueDate string `json:"issue_date"`
	DueDate   string `json:"due_date"`
	Returned  bool   `json:"returned"`
}

// myRequestRow 成员视角下的一条求购记录。
type myRequestRow struct {
	BookTitle   string `json:"book_title"`
	RequestDate string `json:"request_date"`
}

// handleMyBooks 返回当前用户的借阅记录与求购记录。
func (s *Server) handleMyBooks(c *gin.Context) {
	userID := middleware.GetUserID(c)
	ctx := c.Request.Context()

	issued := []myIssuedRow{}
	err := s.db.WithContext(ctx).
		Table("issued_books").
		Select("books.title AS title, issued_books.issue_date, issued_books.due_date, issued_books.returned").
		Joins("JOIN books ON books.id = issued_books.book_id").
		Where("issued_books.user_id = ?", userID).
		Order("issued_books.id").
		Scan(&issued).Error
	if err != nil {
		s.logger.Error("list my books failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list my books failed"})
		return
	}

	requests := []myRequestRow{}
	err = s.db.WithContext(ctx).
		Table("book_requests").
		Select("book_title, request_date").
		Where("user_id = ?", userID).
		Order("id").
		Scan(&requests).Error
	if err != nil {
		s.logger.Error("list my requests failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list my requests failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"issued": issued, "requests": requests})
}

// bookRequestBody 求购图书的请求参数。
type bookRequestBody struct {
	BookTitle string `json:"book_title" binding:"required"`
}

func (s *Server) handleRequestBookPage(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"fields": []string{"book_title"}})
}

// handleRequestBook 记录一条求购（按标题，不校验馆藏）。
func (s *Server) handleRequestBook(c *gin.Context) {
	s.insertBookRequest(c)
}

// handleCategoryRequest 从分类页直接求购一本书，需要登录身份。
func (s *Server) handleCategoryRequest(c *gin.Context) {
	s.insertBookRequest(c)
}

func (s *Server) insertBookRequest(c *gin.Context) {
	var req bookRequestBody
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	record := model.BookRequest{
		UserID:      middleware.GetUserID(c),
		BookTitle:   req.BookTitle,
		RequestDate: time.Now().Format(model.DateLayout),
	}
	if err := s.db.WithContext(c.Request.Context()).Create(&record).Error; err != nil {
		s.logger.Error("save book request failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "save request failed"})
		return
	}

	metrics.BookRequestsTotal.Inc()
	c.JSON(http.StatusCreated, gin.H{"message": "request recorded"})
}

package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// 流通与提醒相关的 Prometheus 指标。
//
// 指标对象在包加载时创建，可以直接使用；
// InitMetrics 负责把它们注册到默认 Registry（服务启动时调用一次）。
var (
	BooksIssuedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "librarydesk_books_issued_total",
		Help: "Total number of successful book issues.",
	})
	BooksReturnedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "librarydesk_books_returned_total",
		Help: "Total number of successful book returns.",
	})
	CirculationConflicts = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "librarydesk_circulation_conflicts_total",
		Help: "Issue attempts rejected because the book was unavailable.",
	})
	ReminderEmailsSent = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "librarydesk_reminder_emails_sent_total",
		Help: "Due-date reminder emails sent.",
	})
	BookRequestsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "librarydesk_book_requests_total",
		Help: "Book requests submitted by members.",
	})
	LoginThrottledTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "librarydesk_login_throttled_total",
		Help: "Login attempts rejected by the rate limiter.",
	})
	RateLimitWaitDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "librarydesk_ratelimit_wait_seconds",
		Help:    "Time spent waiting for a rate limit token.",
		Buckets: prometheus.DefBuckets,
	})
	RateLimitTimeoutTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "librarydesk_ratelimit_timeout_total",
		Help: "Rate limit acquisitions aborted by context cancellation.",
	})
)

var registerOnce sync.Once

// InitMetrics 注册所有指标。重复调用只生效一次（测试中会被多次调用）。
func InitMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			BooksIssuedTotal,
			BooksReturnedTotal,
			CirculationConflicts,
			ReminderEmailsSent,
			BookRequestsTotal,
			LoginThrottledTotal,
			RateLimitWaitDuration,
			RateLimitTimeoutTotal,
		)
	})
}

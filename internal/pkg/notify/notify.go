package notify

import "context"

// Notifier 定义对外邮件通知接口。
//
// 实现必须是尽力而为的：通知失败不应影响业务操作本身。
type Notifier interface {
	// SendCirculationNotice 在借出 / 归还成功后向借阅人发送通知。
	//
	// 参数:
	//   ctx: 上下文
	//   toEmail: 接收邮箱
	//   username: 借阅人显示名
	//   bookTitle: 书名
	//   action: "issue" 或 "return"
	//   dueDate: 应还日期（ISO 日期字符串，归还通知时可为空）
	SendCirculationNotice(ctx context.Context, toEmail, username, bookTitle, action, dueDate string) error

	// SendDueReminder 向逾期未还的借阅人发送催还提醒。
	SendDueReminder(ctx context.Context, toEmail, username, bookTitle, dueDate string) error
}

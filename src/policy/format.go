package policy

import (
	"fmt"
	"time"
)

// BroadcastTimeLayout 开播时间的展示格式（24 小时制，日/月/年）
const BroadcastTimeLayout = "15:04 - 02/01/2006"

// DurationText 时长文案，nil 或非正数表示无限循环
func DurationText(minutes *int) string {
	if minutes == nil || *minutes <= 0 {
		return "Unlimited"
	}
	return fmt.Sprintf("%d minutes", *minutes)
}

// FormatBroadcastTime 按 loc 格式化开播时间，零值返回 N/A
func FormatBroadcastTime(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return "N/A"
	}
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Format(BroadcastTimeLayout)
}

// Package form 新建排程表单：默认值、校验、生成 create_schedule 负载以及成功后的重置规则
package form

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// DefaultRTMPServer 默认推流服务器
const DefaultRTMPServer = "rtmp://a.rtmp.youtube.com/live2"

// DefaultDuration 自定义时长的默认值（分钟）
const DefaultDuration = 60

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"
	// wireTimeLayout 与浏览器 toISOString 输出一致
	wireTimeLayout = "2006-01-02T15:04:05.000Z"
)

// DurationType 时长类型
type DurationType string

const (
	DurationInfinite DurationType = "infinite"
	DurationCustom   DurationType = "custom"
)

// ErrInvalidForm 表单校验失败
var ErrInvalidForm = errors.New("invalid form")

// CreateForm 新建排程表单
type CreateForm struct {
	Title        string       `json:"title"`
	VideoInput   string       `json:"videoInput"`
	Date         string       `json:"date"`
	Time         string       `json:"time"`
	StreamKey    string       `json:"streamKey"`
	RTMPServer   string       `json:"rtmpServer"`
	DurationType DurationType `json:"durationType"`
	Duration     int          `json:"duration"`
}

// CreatePayload create_schedule 的负载
type CreatePayload struct {
	Title             string `json:"title"`
	StreamKey         string `json:"streamKey"`
	RTMPServer        string `json:"rtmpServer"`
	BroadcastDateTime string `json:"broadcastDateTime"`
	DurationMinutes   *int   `json:"durationMinutes"`
	VideoURL          string `json:"videoUrl"`
}

// NewCreateForm 返回带默认值的表单，日期和时间取 now 所在时区
func NewCreateForm(now time.Time, rtmpServer string) *CreateForm {
	if rtmpServer == "" {
		rtmpServer = DefaultRTMPServer
	}
	return &CreateForm{
		Date:         now.Format(dateLayout),
		Time:         now.Format(timeLayout),
		RTMPServer:   rtmpServer,
		DurationType: DurationInfinite,
		Duration:     DefaultDuration,
	}
}

// FieldErrors 字段名到错误信息
type FieldErrors map[string]string

// Err 无错误时返回 nil
func (fe FieldErrors) Err() error {
	if len(fe) == 0 {
		return nil
	}
	fields := make([]string, 0, len(fe))
	for k := range fe {
		fields = append(fields, k)
	}
	sort.Strings(fields)
	return fmt.Errorf("%w: %s", ErrInvalidForm, strings.Join(fields, ", "))
}

// Validate 校验必填字段
func (f *CreateForm) Validate() FieldErrors {
	errs := FieldErrors{}
	if strings.TrimSpace(f.Title) == "" {
		errs["title"] = "Please enter a title."
	}
	if strings.TrimSpace(f.VideoInput) == "" {
		errs["videoInput"] = "Please enter a video URL."
	}
	if f.Date == "" {
		errs["date"] = "Please choose a broadcast date."
	} else if _, err := time.Parse(dateLayout, f.Date); err != nil {
		errs["date"] = "Invalid date."
	}
	if f.Time == "" {
		errs["time"] = "Please choose a broadcast time."
	} else if _, err := time.Parse(timeLayout, f.Time); err != nil {
		errs["time"] = "Invalid time."
	}
	if strings.TrimSpace(f.RTMPServer) == "" {
		errs["rtmpServer"] = "Please enter an RTMP server."
	}
	if strings.TrimSpace(f.StreamKey) == "" {
		errs["streamKey"] = "Please enter a stream key."
	}
	switch f.DurationType {
	case DurationInfinite:
	case DurationCustom:
		if f.Duration <= 0 {
			errs["duration"] = "Please enter a valid duration (minutes)."
		}
	default:
		errs["durationType"] = "Unknown duration type."
	}
	return errs
}

// BroadcastTime 表单日期时间按 loc 解释
func (f *CreateForm) BroadcastTime(loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	return time.ParseInLocation(dateLayout+"T"+timeLayout, f.Date+"T"+f.Time, loc)
}

// Payload 生成 create_schedule 负载。
// broadcastDateTime 为 UTC 毫秒精度时间戳；仅自定义时长时携带 durationMinutes。
func (f *CreateForm) Payload(loc *time.Location) (CreatePayload, error) {
	if err := f.Validate().Err(); err != nil {
		return CreatePayload{}, err
	}
	at, err := f.BroadcastTime(loc)
	if err != nil {
		return CreatePayload{}, fmt.Errorf("%w: %v", ErrInvalidForm, err)
	}
	p := CreatePayload{
		Title:             f.Title,
		StreamKey:         f.StreamKey,
		RTMPServer:        f.RTMPServer,
		BroadcastDateTime: at.UTC().Format(wireTimeLayout),
		VideoURL:          f.VideoInput,
	}
	if f.DurationType == DurationCustom {
		d := f.Duration
		p.DurationMinutes = &d
	}
	return p, nil
}

// Reset 创建成功后调用：清空内容字段，保留日期、时间和 RTMP 服务器
func (f *CreateForm) Reset() {
	f.Title = ""
	f.VideoInput = ""
	f.StreamKey = ""
	f.DurationType = DurationInfinite
	f.Duration = DefaultDuration
}

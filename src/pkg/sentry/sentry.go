// Package sentry 封装 Sentry 崩溃上报
// 上报前会清理推流密钥等敏感数据
package sentry

import (
	"context"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"
	uuid "github.com/satori/go.uuid"
)

var (
	initialized bool
	initMu      sync.RWMutex
)

// 敏感关键字列表
var sensitiveKeywords = []string{
	"cookie", "token", "password", "secret", "key", "auth",
	"credential", "stream_key", "streamkey",
}

var (
	sensitiveURLPattern = regexp.MustCompile(`([?&])(token|key|secret|password|auth|access_token|session)=[^&]*`)
	// rtmp(s)://host/app/<streamKey>
	rtmpKeyPattern  = regexp.MustCompile(`(?i)(rtmps?://[^\s/"]+/[^\s/"]+/)[^\s"?,}]+`)
	keywordPatterns = compileKeywordPatterns()
)

func compileKeywordPatterns() []*regexp.Regexp {
	patterns := make([]*regexp.Regexp, 0, len(sensitiveKeywords))
	for _, keyword := range sensitiveKeywords {
		patterns = append(patterns, regexp.MustCompile(`(?i)(`+regexp.QuoteMeta(keyword)+`)\s*[=:]\s*[^\s,}"\[\]]+`))
	}
	return patterns
}

// Init 初始化 Sentry SDK，dsn 为空时不启用
func Init(dsn, environment, release string) error {
	if dsn == "" {
		return nil
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      environment,
		Release:          release,
		AttachStacktrace: true,
		BeforeSend:       beforeSendHook,
		SampleRate:       1.0,
	})
	if err != nil {
		return err
	}

	// 每个进程一个匿名 ID，不与任何账号关联
	instanceID := strings.ReplaceAll(uuid.Must(uuid.NewV4()).String(), "-", "")
	sentry.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetUser(sentry.User{ID: instanceID})
	})

	initMu.Lock()
	initialized = true
	initMu.Unlock()
	return nil
}

// IsInitialized 返回 Sentry 是否已初始化
func IsInitialized() bool {
	initMu.RLock()
	defer initMu.RUnlock()
	return initialized
}

// Flush 刷新待发送事件（程序退出前调用）
func Flush(timeout time.Duration) {
	if !IsInitialized() {
		return
	}
	sentry.Flush(timeout)
}

// RecoverWithContext 用于 goroutine 的 panic 恢复
// 必须先 recover()，再检查 Sentry 状态
func RecoverWithContext(ctx context.Context) {
	err := recover()
	if err == nil {
		return
	}
	if IsInitialized() {
		hub := sentry.GetHubFromContext(ctx)
		if hub == nil {
			hub = sentry.CurrentHub()
		}
		if hub != nil {
			hub.RecoverWithContext(ctx, err)
		}
	}
}

// Recover 用于 goroutine 的 panic 恢复（无 context 版本）
func Recover() {
	err := recover()
	if err == nil {
		return
	}
	if IsInitialized() {
		if hub := sentry.CurrentHub(); hub != nil {
			hub.Recover(err)
		}
	}
}

// CaptureException 捕获异常
func CaptureException(err error) {
	if !IsInitialized() || err == nil {
		return
	}
	sentry.CaptureException(err)
}

// Go 启动 goroutine 并自动添加 panic 恢复
func Go(f func()) {
	go func() {
		defer Recover()
		f()
	}()
}

// GoWithContext 启动 goroutine 并自动添加 panic 恢复，f 会收到传入的 ctx
func GoWithContext(ctx context.Context, f func(context.Context)) {
	go func() {
		defer RecoverWithContext(ctx)
		f(ctx)
	}()
}

func beforeSendHook(event *sentry.Event, hint *sentry.EventHint) *sentry.Event {
	if event.Message != "" {
		event.Message = sanitizeString(event.Message)
	}
	for i := range event.Exception {
		event.Exception[i].Value = sanitizeString(event.Exception[i].Value)
		if event.Exception[i].Stacktrace != nil {
			for j := range event.Exception[i].Stacktrace.Frames {
				frame := &event.Exception[i].Stacktrace.Frames[j]
				frame.Vars = sanitizeMap(frame.Vars)
			}
		}
	}
	event.Extra = sanitizeMap(event.Extra)
	for key, ctxData := range event.Contexts {
		event.Contexts[key] = sanitizeMap(ctxData)
	}
	event.Tags = sanitizeTags(event.Tags)
	if event.Request != nil {
		event.Request = sanitizeRequest(event.Request)
	}
	return event
}

// sanitizeString 清理字符串中的敏感数据
func sanitizeString(s string) string {
	result := sensitiveURLPattern.ReplaceAllString(s, "$1$2=[REDACTED]")
	result = rtmpKeyPattern.ReplaceAllString(result, "${1}[REDACTED]")
	for _, pattern := range keywordPatterns {
		result = pattern.ReplaceAllString(result, "$1=[REDACTED]")
	}
	return result
}

func sanitizeMap(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}
	result := make(map[string]interface{}, len(m))
	for key, value := range m {
		switch v := value.(type) {
		case string:
			if isSensitiveKey(key) {
				result[key] = "[REDACTED]"
			} else {
				result[key] = sanitizeString(v)
			}
		case map[string]interface{}:
			result[key] = sanitizeMap(v)
		default:
			if isSensitiveKey(key) {
				result[key] = "[REDACTED]"
			} else {
				result[key] = value
			}
		}
	}
	return result
}

func sanitizeTags(tags map[string]string) map[string]string {
	if tags == nil {
		return nil
	}
	result := make(map[string]string, len(tags))
	for key, value := range tags {
		if isSensitiveKey(key) {
			result[key] = "[REDACTED]"
		} else {
			result[key] = sanitizeString(value)
		}
	}
	return result
}

func sanitizeRequest(req *sentry.Request) *sentry.Request {
	if req.URL != "" {
		req.URL = sensitiveURLPattern.ReplaceAllString(req.URL, "$1$2=[REDACTED]")
	}
	if req.QueryString != "" {
		req.QueryString = sanitizeString(req.QueryString)
	}
	for header := range req.Headers {
		switch strings.ToLower(header) {
		case "authorization", "cookie", "x-api-key", "x-auth-token":
			req.Headers[header] = "[REDACTED]"
		}
	}
	if req.Cookies != "" {
		req.Cookies = "[REDACTED]"
	}
	if req.Data != "" {
		req.Data = sanitizeString(req.Data)
	}
	return req
}

// isSensitiveKey 检查键名是否为敏感键
func isSensitiveKey(key string) bool {
	keyLower := strings.ToLower(key)
	for _, keyword := range sensitiveKeywords {
		if strings.Contains(keyLower, keyword) {
			return true
		}
	}
	return false
}

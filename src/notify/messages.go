package notify

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/Masterminds/sprig"
	"github.com/sirupsen/logrus"
)

// MessageKey 通知文案的键，与配置文件 messages 段的键一致
type MessageKey string

const (
	MsgConnected        MessageKey = "connected"
	MsgDisconnected     MessageKey = "disconnected"
	MsgValidationFailed MessageKey = "validation_failed"
	MsgCreateLoading    MessageKey = "create_loading"
	MsgCreateSuccess    MessageKey = "create_success"
	MsgCreateError      MessageKey = "create_error"
	MsgCreateRejected   MessageKey = "create_rejected"
	MsgNoResponse       MessageKey = "no_response"
	MsgStopLoading      MessageKey = "stop_loading"
	MsgStopSuccess      MessageKey = "stop_success"
	MsgStopFailed       MessageKey = "stop_failed"
	MsgStopTimeout      MessageKey = "stop_timeout"
	MsgStopSendFailed   MessageKey = "stop_send_failed"
	MsgStopAbandoned    MessageKey = "stop_abandoned"
	MsgDeleteLoading    MessageKey = "delete_loading"
	MsgDeleteSuccess    MessageKey = "delete_success"
	MsgDeleteError      MessageKey = "delete_error"
	MsgEmergencyLoading MessageKey = "emergency_loading"
	MsgEmergencySuccess MessageKey = "emergency_success"
	MsgEmergencyError   MessageKey = "emergency_error"
	MsgActionNotAllowed MessageKey = "action_not_allowed"
	MsgConfirmStop      MessageKey = "confirm_stop"
	MsgConfirmDelete    MessageKey = "confirm_delete"
	MsgConfirmEmergency MessageKey = "confirm_emergency"
)

// DefaultMessages 默认文案，使用 text/template 语法并支持 sprig 函数
var DefaultMessages = map[MessageKey]string{
	MsgConnected:        "Connected to server!",
	MsgDisconnected:     "Lost connection to server!",
	MsgValidationFailed: "Please fill in all required fields correctly!",
	MsgCreateLoading:    "Sending and validating schedule...",
	MsgCreateSuccess:    `Scheduled "{{ .Title }}" successfully!`,
	MsgCreateError:      "Error: {{ .Error }}",
	MsgCreateRejected:   `Server rejected "{{ .Title }}" without giving a reason.`,
	MsgNoResponse:       "No response from server.",
	MsgStopLoading:      `Sending stop request for "{{ .Title }}"...`,
	MsgStopSuccess:      `Stream "{{ .Title }}" stopped successfully!`,
	MsgStopFailed:       `Stream "{{ .Title }}" ended in a failed state.`,
	MsgStopTimeout:      `No stop confirmation for "{{ .Title }}" after {{ .Elapsed }}.`,
	MsgStopSendFailed:   `Could not send stop request for "{{ .Title }}": {{ .Error }}`,
	MsgStopAbandoned:    `Stop request for "{{ .Title }}" is no longer tracked.`,
	MsgDeleteLoading:    `Deleting "{{ .Title }}"...`,
	MsgDeleteSuccess:    `Deleted "{{ .Title }}".`,
	MsgDeleteError:      "Could not delete.",
	MsgEmergencyLoading: "Emergency stopping all streams...",
	MsgEmergencySuccess: "All streams emergency stopped!",
	MsgEmergencyError:   "Emergency stop failed",
	MsgActionNotAllowed: `Cannot {{ .Action }} "{{ .Title }}" while it is {{ .Status | lower }}.`,
	MsgConfirmStop:      `Are you sure you want to STOP livestream "{{ .Title }}"?`,
	MsgConfirmDelete:    `Are you sure you want to DELETE schedule "{{ .Title }}"?`,
	MsgConfirmEmergency: "WARNING: emergency stop ALL streams? This stops every running stream, kills every FFmpeg process and cannot be undone.",
}

// MessageData 模板可用的字段
type MessageData struct {
	Title   string
	Error   string
	Action  string
	Status  string
	Elapsed string
}

// Renderer 渲染通知文案
type Renderer struct {
	templates map[MessageKey]*template.Template
}

// NewRenderer 使用默认文案并叠加 overrides（键为 MessageKey 字符串）
func NewRenderer(overrides map[string]string) (*Renderer, error) {
	r := &Renderer{templates: make(map[MessageKey]*template.Template, len(DefaultMessages))}
	for key, text := range DefaultMessages {
		if override, ok := overrides[string(key)]; ok && override != "" {
			text = override
		}
		tmpl, err := template.New(string(key)).Funcs(sprig.TxtFuncMap()).Parse(text)
		if err != nil {
			return nil, fmt.Errorf("invalid message template %q: %w", key, err)
		}
		r.templates[key] = tmpl
	}
	for key := range overrides {
		if _, ok := DefaultMessages[MessageKey(key)]; !ok {
			return nil, fmt.Errorf("unknown message key %q", key)
		}
	}
	return r, nil
}

// MustNewRenderer 默认文案的 Renderer
func MustNewRenderer() *Renderer {
	r, err := NewRenderer(nil)
	if err != nil {
		panic(err)
	}
	return r
}

// Render 渲染文案，模板执行失败时退回原始模板文本
func (r *Renderer) Render(key MessageKey, data MessageData) string {
	tmpl, ok := r.templates[key]
	if !ok {
		return string(key)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		logrus.WithError(err).WithField("key", key).Warn("failed to render message")
		return DefaultMessages[key]
	}
	return buf.String()
}

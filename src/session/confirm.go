package session

import "context"

// Confirmer 破坏性操作（停止、删除、紧急停止）发出请求前的确认环节，
// 这是唯一可以取消操作的地方。
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) bool
}

// ConfirmerFunc 函数形式的 Confirmer
type ConfirmerFunc func(ctx context.Context, prompt string) bool

func (f ConfirmerFunc) Confirm(ctx context.Context, prompt string) bool {
	return f(ctx, prompt)
}

type confirmedKey struct{}

// WithConfirmation 标记调用方已取得用户确认（例如 HTTP 请求带了 confirm=true）
func WithConfirmation(ctx context.Context) context.Context {
	return context.WithValue(ctx, confirmedKey{}, true)
}

// ContextConfirmer 只认 WithConfirmation 标记过的 context
var ContextConfirmer Confirmer = ConfirmerFunc(func(ctx context.Context, prompt string) bool {
	confirmed, _ := ctx.Value(confirmedKey{}).(bool)
	return confirmed
})

// AlwaysConfirm 不做确认，用于脚本化调用
var AlwaysConfirm Confirmer = ConfirmerFunc(func(context.Context, string) bool {
	return true
})

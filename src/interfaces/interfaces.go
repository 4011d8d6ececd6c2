package interfaces

import (
	"context"

	"github.com/sirupsen/logrus"
)

// Module 具有启动/关闭生命周期的组件
type Module interface {
	Start(ctx context.Context) error
	Close(ctx context.Context)
}

// Logger 全局 logger 的包装
type Logger struct {
	*logrus.Logger
}

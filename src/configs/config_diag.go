package configs

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
)

// diagnoseRead 配置文件读取失败时给出的排查提示，无可用提示时返回空字符串
func diagnoseRead(file string, readErr error) string {
	var hints []string
	switch {
	case errors.Is(readErr, fs.ErrNotExist):
		hints = append(hints,
			fmt.Sprintf("配置文件 %s 不存在", file),
			"请通过 --config 或环境变量 "+EnvConfigFile+" 指定配置文件，或省略该参数使用默认配置")
	case errors.Is(readErr, fs.ErrPermission):
		hint := fmt.Sprintf("没有读取 %s 的权限", file)
		if info, err := os.Stat(file); err == nil {
			hint += fmt.Sprintf("，当前权限: %v", info.Mode().Perm())
		}
		hints = append(hints, hint, fmt.Sprintf("请执行 chmod a+r %s 或以文件所有者运行", file))
	default:
		if info, err := os.Stat(file); err == nil && info.IsDir() {
			hints = append(hints, fmt.Sprintf("%s 是目录，请指定其中的配置文件", file))
		}
	}
	if len(hints) == 0 {
		return ""
	}
	return "\n" + strings.Join(hints, "\n")
}

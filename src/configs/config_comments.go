package configs

import "gopkg.in/yaml.v3"

// DecorateConfigNode 将硬编码的注释注入到配置节点树中。
func DecorateConfigNode(node *yaml.Node) {
	if node.Kind != yaml.DocumentNode || len(node.Content) == 0 {
		return
	}
	root := node.Content[0]
	if root.Kind != yaml.MappingNode {
		return
	}

	root.HeadComment = `# 这个配置文件内的注释是自动生成的，请不要手动修改。
# 需要修改注释时，请在 src/configs/config_comments.go 文件内修改。`

	setFieldHeadComment(root, "rpc", "# 本地 HTTP 接口（JSON API + SSE），供展示层使用")

	setFieldHeadComment(root, "server", "# 排程服务的 websocket 地址")
	if serverNode := findNode(root, "server"); serverNode != nil {
		setFieldLineComment(serverNode, "url", "# 也可以通过环境变量 LIVESCHED_SERVER_URL 覆盖")
		setFieldLineComment(serverNode, "reconnect_interval", "# 断线后的重连间隔")
	}

	if actionsNode := findNode(root, "actions"); actionsNode != nil {
		setFieldComment(actionsNode, "delete_settle",
			`# 删除和紧急停止没有服务端确认，发出请求后等待这段时间即提示成功
# 服务端的失败对用户不可见`, "")
		setFieldComment(actionsNode, "stop_confirm_timeout",
			`# 停止请求等待广播确认的最长时间
# 0 表示一直等待，直到该排程出现 COMPLETED/FAILED`, "")
	}

	if formNode := findNode(root, "form"); formNode != nil {
		setFieldLineComment(formNode, "timezone", "# 例如 Asia/Ho_Chi_Minh，留空使用本机时区")
	}

	setFieldHeadComment(root, "messages", `# 覆盖通知文案，使用 text/template 语法并支持 sprig 函数
# 例如 create_error: 'Lỗi: {{ .Error }}'`)

	setFieldHeadComment(root, "sentry", "# Sentry 错误监控配置（用于收集崩溃日志）")
	if sentryNode := findNode(root, "sentry"); sentryNode != nil {
		setFieldComment(sentryNode, "enable", "# 是否启用 Sentry 错误监控", "")
		setFieldComment(sentryNode, "dsn", "# Sentry DSN，留空时读取环境变量 SENTRY_DSN", "")
		setFieldComment(sentryNode, "environment", "# 环境标识：production 或 development", "")
	}
}

func findNode(mapNode *yaml.Node, key string) *yaml.Node {
	for i := 0; i < len(mapNode.Content); i += 2 {
		if mapNode.Content[i].Value == key {
			return mapNode.Content[i+1]
		}
	}
	return nil
}

func setFieldComment(mapNode *yaml.Node, key, headComment, lineComment string) {
	for i := 0; i < len(mapNode.Content); i += 2 {
		k := mapNode.Content[i]
		if k.Value == key {
			if headComment != "" {
				k.HeadComment = headComment
			}
			if lineComment != "" {
				k.LineComment = lineComment
			}
			return
		}
	}
}

func setFieldLineComment(mapNode *yaml.Node, key, lineComment string) {
	setFieldComment(mapNode, key, "", lineComment)
}

func setFieldHeadComment(mapNode *yaml.Node, key, headComment string) {
	setFieldComment(mapNode, key, headComment, "")
}

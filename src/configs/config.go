package configs

import (
	"bytes"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bililive-go/livesched/src/notify"
)

// RPC 本地展示层 HTTP 服务
type RPC struct {
	Enable bool   `yaml:"enable" json:"enable"`
	Bind   string `yaml:"bind" json:"bind"`
}

var defaultRPC = RPC{
	Enable: true,
	Bind:   "127.0.0.1:8080",
}

func (r *RPC) verify() error {
	if r == nil {
		return nil
	}
	if !r.Enable {
		return nil
	}
	if _, err := net.ResolveTCPAddr("tcp", r.Bind); err != nil {
		return fmt.Errorf("无效的RPC绑定地址: %w", err)
	}
	return nil
}

// Server 排程服务的 websocket 通道
type Server struct {
	URL               string        `yaml:"url" json:"url"`
	ReconnectInterval time.Duration `yaml:"reconnect_interval" json:"reconnect_interval"`
	HandshakeTimeout  time.Duration `yaml:"handshake_timeout" json:"handshake_timeout"`
	WriteTimeout      time.Duration `yaml:"write_timeout" json:"write_timeout"`
	PongWait          time.Duration `yaml:"pong_wait" json:"pong_wait"`
}

var defaultServer = Server{
	URL:               "ws://127.0.0.1:5000/ws",
	ReconnectInterval: 3 * time.Second,
	HandshakeTimeout:  10 * time.Second,
	WriteTimeout:      10 * time.Second,
	PongWait:          60 * time.Second,
}

func (s *Server) verify() error {
	u, err := url.Parse(s.URL)
	if err != nil {
		return fmt.Errorf("无效的服务端地址: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf(`服务端地址 "%s" 必须以 ws:// 或 wss:// 开头`, s.URL)
	}
	if s.ReconnectInterval <= 0 {
		return fmt.Errorf("重连间隔必须大于 0")
	}
	return nil
}

// Actions 用户操作的时间参数
type Actions struct {
	// DeleteSettle 删除请求发出后到提示成功的固定等待
	DeleteSettle time.Duration `yaml:"delete_settle" json:"delete_settle"`
	// EmergencyStopSettle 紧急停止请求发出后到提示成功的固定等待
	EmergencyStopSettle time.Duration `yaml:"emergency_stop_settle" json:"emergency_stop_settle"`
	// CreateAckTimeout 等待 create_schedule 确认的最长时间
	CreateAckTimeout time.Duration `yaml:"create_ack_timeout" json:"create_ack_timeout"`
	// StopConfirmTimeout 停止请求等待广播确认的最长时间，0 表示一直等待
	StopConfirmTimeout time.Duration `yaml:"stop_confirm_timeout" json:"stop_confirm_timeout"`
}

var defaultActions = Actions{
	DeleteSettle:        500 * time.Millisecond,
	EmergencyStopSettle: time.Second,
	CreateAckTimeout:    30 * time.Second,
	StopConfirmTimeout:  0,
}

// Form 新建表单默认值
type Form struct {
	DefaultRTMPServer string `yaml:"default_rtmp_server" json:"default_rtmp_server"`
	// Timezone 解释表单日期时间所用的时区，留空使用本机时区
	Timezone string `yaml:"timezone" json:"timezone"`
}

type Log struct {
	OutPutFolder string `yaml:"out_put_folder" json:"out_put_folder"`
	SaveLastLog  bool   `yaml:"save_last_log" json:"save_last_log"`
	SaveEveryLog bool   `yaml:"save_every_log" json:"save_every_log"`
	// RotateDays 指定按"天"为单位滚动日志时，最多保留的天数（<=0 表示不清理）
	RotateDays int `yaml:"rotate_days" json:"rotate_days"`
}

type Sentry struct {
	Enable      bool   `yaml:"enable" json:"enable"`
	DSN         string `yaml:"dsn" json:"-"`
	Environment string `yaml:"environment" json:"environment"`
}

type Metrics struct {
	Enable bool `yaml:"enable" json:"enable"`
}

// Config content all config info.
type Config struct {
	File    string `yaml:"-" json:"-"`
	Version int64  `yaml:"-" json:"-"` // 内部版本号，仅用于乐观并发控制

	RPC     RPC     `yaml:"rpc" json:"rpc"`
	Debug   bool    `yaml:"debug" json:"debug"`
	Server  Server  `yaml:"server" json:"server"`
	Actions Actions `yaml:"actions" json:"actions"`
	Form    Form    `yaml:"form" json:"form"`
	Log     Log     `yaml:"log" json:"log"`
	Sentry  Sentry  `yaml:"sentry" json:"sentry"`
	Metrics Metrics `yaml:"metrics" json:"metrics"`

	// Messages 覆盖通知文案，键见 notify.MessageKey
	Messages map[string]string `yaml:"messages,omitempty" json:"messages,omitempty"`
}

// 使用 atomic.Value 存放当前配置指针，避免并发读写造成 data race
var config atomic.Value // stores *Config

// 单独的 Debug 原子标志，便于高频读取
var currentDebug atomic.Bool

// 序列化所有 Update 操作，避免并发更新造成的丢写问题
var updateMu sync.Mutex

func SetCurrentConfig(cfg *Config) {
	if cfg == nil {
		config.Store((*Config)(nil))
		currentDebug.Store(false)
		return
	}
	config.Store(cfg)
	currentDebug.Store(cfg.Debug)
}

func GetCurrentConfig() *Config {
	v := config.Load()
	if v == nil {
		return nil
	}
	return v.(*Config)
}

// IsDebug 提供并发安全、低开销的 Debug 值读取
func IsDebug() bool {
	return currentDebug.Load()
}

// Update 采用“复制-更新-原子替换”模式更新全局配置，并持久化到文件。
// mutator 只能修改参数 c，不要持有 c 的指针做异步修改。
func Update(mutator func(c *Config) error) (*Config, error) {
	return updateImpl(mutator, true)
}

// UpdateTransient 与 Update 类似，但只更新内存配置。
func UpdateTransient(mutator func(c *Config) error) (*Config, error) {
	return updateImpl(mutator, false)
}

func updateImpl(mutator func(c *Config) error, persist bool) (*Config, error) {
	updateMu.Lock()
	defer updateMu.Unlock()
	old := GetCurrentConfig()
	var base *Config
	if old == nil {
		base = NewConfig()
	} else {
		base = CloneConfigShallow(old)
	}
	if err := mutator(base); err != nil {
		return nil, err
	}
	if old == nil {
		base.Version = 1
	} else {
		base.Version = old.Version + 1
	}

	if persist && base.File != "" {
		if err := base.Marshal(); err != nil {
			return nil, fmt.Errorf("failed to save config: %w", err)
		}
	}

	SetCurrentConfig(base)
	return base, nil
}

// SetDebug 更新 Debug 标志并持久化
func SetDebug(v bool) (*Config, error) {
	return Update(func(c *Config) error { c.Debug = v; return nil })
}

var defaultConfig = Config{
	RPC:     defaultRPC,
	Debug:   false,
	Server:  defaultServer,
	Actions: defaultActions,
	Form: Form{
		DefaultRTMPServer: "rtmp://a.rtmp.youtube.com/live2",
	},
	Log: Log{
		OutPutFolder: "./",
		SaveLastLog:  true,
		SaveEveryLog: false,
		RotateDays:   7,
	},
	Sentry: Sentry{
		Enable:      false,
		Environment: "production",
	},
	Metrics: Metrics{
		Enable: true,
	},
}

func NewConfig() *Config {
	config := defaultConfig
	config.Messages = map[string]string{}
	return &config
}

// Verify will return an error when this config has problem.
func (c *Config) Verify() error {
	if c == nil {
		return fmt.Errorf("配置不存在")
	}
	if err := c.RPC.verify(); err != nil {
		return err
	}
	if err := c.Server.verify(); err != nil {
		return err
	}
	if c.Actions.DeleteSettle < 0 || c.Actions.EmergencyStopSettle < 0 {
		return fmt.Errorf("操作等待时间不能为负数")
	}
	if c.Actions.CreateAckTimeout <= 0 {
		return fmt.Errorf("create_ack_timeout 必须大于 0")
	}
	if c.Actions.StopConfirmTimeout < 0 {
		return fmt.Errorf("stop_confirm_timeout 不能为负数")
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf(`无效的时区 "%s": %w`, c.Form.Timezone, err)
	}
	if _, err := notify.NewRenderer(c.Messages); err != nil {
		return err
	}
	return nil
}

// Location 表单使用的时区
func (c *Config) Location() (*time.Location, error) {
	if strings.TrimSpace(c.Form.Timezone) == "" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Form.Timezone)
}

// 环境变量覆盖，.env 文件在启动时由 godotenv 载入
const (
	EnvServerURL = "LIVESCHED_SERVER_URL"
	EnvRPCBind   = "LIVESCHED_RPC_BIND"
	EnvSentryDSN = "SENTRY_DSN"
	// EnvConfigFile 由命令行参数读取
	EnvConfigFile = "LIVESCHED_CONFIG"
)

// ApplyEnv 用环境变量覆盖配置
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvServerURL); v != "" {
		c.Server.URL = v
	}
	if v := os.Getenv(EnvRPCBind); v != "" {
		c.RPC.Bind = v
	}
	if v := os.Getenv(EnvSentryDSN); v != "" && c.Sentry.DSN == "" {
		c.Sentry.DSN = v
	}
}

func NewConfigWithBytes(b []byte) (*Config, error) {
	config := defaultConfig
	if err := yaml.Unmarshal(b, &config); err != nil {
		return nil, err
	}
	if config.Messages == nil {
		config.Messages = map[string]string{}
	}
	return &config, nil
}

func NewConfigWithFile(file string) (*Config, error) {
	b, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("can`t open file: %s: %w%s", file, err, diagnoseRead(file, err))
	}
	config, err := NewConfigWithBytes(b)
	if err != nil {
		return nil, err
	}
	config.File = file
	return config, nil
}

func (c *Config) Marshal() error {
	if c.File == "" {
		return errors.New("config path not set")
	}

	// 先序列化为字节再解析成 Node，便于注入注释
	var node yaml.Node
	tempBytes, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(tempBytes, &node); err != nil {
		return err
	}

	DecorateConfigNode(&node)

	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(&node); err != nil {
		return err
	}

	return os.WriteFile(c.File, buf.Bytes(), 0644)
}

// CloneConfigShallow 返回 Config 的浅克隆，Messages 会被复制
func CloneConfigShallow(src *Config) *Config {
	if src == nil {
		return nil
	}
	dst := *src
	dst.Messages = make(map[string]string, len(src.Messages))
	for k, v := range src.Messages {
		dst.Messages[k] = v
	}
	return &dst
}

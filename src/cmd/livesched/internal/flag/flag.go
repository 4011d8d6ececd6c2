// Package flag 命令行参数
package flag

import (
	"github.com/alecthomas/kingpin"

	"github.com/bililive-go/livesched/src/configs"
	"github.com/bililive-go/livesched/src/consts"
)

// Flags 解析后的命令行参数
type Flags struct {
	Conf      string
	ServerURL string
	Bind      string
	RPC       bool
	Debug     bool
	Metrics   bool
	EnvFiles  []string
}

// Parse 解析命令行参数
func Parse(args []string) (*Flags, error) {
	f := new(Flags)
	app := kingpin.New(consts.AppName, "Real-time client for the livestream scheduling service.")
	app.Version(consts.AppVersion)
	app.HelpFlag.Short('h')

	app.Flag("config", "Config file path.").Short('c').Envar(configs.EnvConfigFile).StringVar(&f.Conf)
	app.Flag("server", "Scheduling service websocket url, e.g. ws://127.0.0.1:5000/ws.").Short('s').StringVar(&f.ServerURL)
	app.Flag("bind", "Local http api bind address.").Short('b').StringVar(&f.Bind)
	app.Flag("rpc", "Enable the local http api.").Default("true").BoolVar(&f.RPC)
	app.Flag("metrics", "Expose prometheus metrics on /metrics.").Default("true").BoolVar(&f.Metrics)
	app.Flag("debug", "Enable debug log.").Short('d').BoolVar(&f.Debug)
	app.Flag("env-file", "Extra .env files to load.").StringsVar(&f.EnvFiles)

	if _, err := app.Parse(args); err != nil {
		return nil, err
	}
	return f, nil
}

// GenConfigFromFlags 未指定配置文件时由参数生成配置
func (f *Flags) GenConfigFromFlags() *configs.Config {
	c := configs.NewConfig()
	c.RPC.Enable = f.RPC
	c.Metrics.Enable = f.Metrics
	f.Override(c)
	return c
}

// Override 显式给出的参数覆盖配置文件
func (f *Flags) Override(c *configs.Config) {
	if f.ServerURL != "" {
		c.Server.URL = f.ServerURL
	}
	if f.Bind != "" {
		c.RPC.Bind = f.Bind
	}
	if f.Debug {
		c.Debug = true
	}
}

package main

import (
	"flag"
	"fmt"
	"io"
	"time"
)

const defaultAddr = "0.0.0.0:4221"

// Config 是启动时确定、运行期间只读的服务器配置
type Config struct {
	Addr           string
	Directory      string // /files/ 路由的根目录，为空时文件路由一律 404
	ReadBufferSize int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	LogLevel       string
	LogFormat      string
}

// parseConfig 解析命令行参数，示例：./your_program.sh --directory /tmp/data/
func parseConfig(args []string, output io.Writer) (*Config, error) {
	cfg := &Config{}
	fs := flag.NewFlagSet("http-server", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.StringVar(&cfg.Addr, "addr", defaultAddr, "listen address")
	fs.StringVar(&cfg.Directory, "directory", "", "root directory for /files/")
	fs.IntVar(&cfg.ReadBufferSize, "read-buffer", defaultReadBufferSize, "size of the single request read, in bytes")
	fs.DurationVar(&cfg.ReadTimeout, "read-timeout", 0, "per-connection read timeout (0 disables)")
	fs.DurationVar(&cfg.WriteTimeout, "write-timeout", 0, "per-connection write timeout (0 disables)")
	fs.StringVar(&cfg.LogLevel, "log-level", "info", "log level: trace, debug, info, warn, error")
	fs.StringVar(&cfg.LogFormat, "log-format", "console", "log format: console or json")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	if cfg.ReadBufferSize <= 0 {
		return nil, fmt.Errorf("invalid -read-buffer %d", cfg.ReadBufferSize)
	}
	return cfg, nil
}

// Package config 从 YAML 文件、.env 与环境变量加载配置，环境变量优先。
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"klinechart/internal/model"
)

// 配置路径
const (
	DefaultConfigPath = "config.yaml"
	EnvConfigPath     = "CONFIG_PATH"
	dotEnvPath        = ".env"
)

// 环境变量名（便于维护与文档）
const (
	envProvider      = "KLINECHART_PROVIDER"
	envBaseURL       = "KLINECHART_BASE_URL"
	envTimeoutMS     = "KLINECHART_TIMEOUT_MS"
	envDelayMS       = "KLINECHART_API_DELAY_MS"
	envJitterMS      = "KLINECHART_API_JITTER_MS"
	envMaxConcurrent = "KLINECHART_API_MAX_CONCURRENT"
	envServerAddr    = "KLINECHART_ADDR"
	envReportCodes   = "KLINECHART_REPORT_CODES"
	envReportCron    = "KLINECHART_REPORT_CRON"
	envSMTPServer    = "SMTP_SERVER"
	envSMTPPort      = "SMTP_PORT"
	envSMTPUser      = "SMTP_USER"
	envSMTPPassword  = "SMTP_PASSWORD"
	envSMTPAuthCode  = "SMTP_AUTH_CODE"
	envSMTPFrom      = "SMTP_FROM"
	envSMTPTo        = "SMTP_TO"
)

// 数据源
const (
	ProviderEastMoney = "eastmoney"
	ProviderBackend   = "backend"
)

// 默认值
const (
	defaultTimeoutMS     = 5000
	defaultDelayMS       = 200
	defaultJitterMS      = 150
	defaultMaxConcurrent = 4
	defaultLimit         = 120
	defaultAddr          = ":8080"
	defaultWidth         = "1200px"
	defaultPanelHeight   = "900px"
	defaultUpColor       = "#ec0000"
	defaultDownColor     = "#00da3c"
	defaultReportCron    = "0 30 15 * * 1-5"
	defaultReportWorkers = 4
)

// cronParser 与调度器一致：六段，首段为秒
var cronParser = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

type Config struct {
	API struct {
		Provider      string `yaml:"provider"`
		BaseURL       string `yaml:"base_url"`
		TimeoutMS     int    `yaml:"timeout_ms"`
		DelayMS       int    `yaml:"delay_ms"`  // 负数表示不限速
		JitterMS      int    `yaml:"jitter_ms"` // 负数表示无抖动
		MaxConcurrent int    `yaml:"max_concurrent"`
		Limit         int    `yaml:"limit"`
	} `yaml:"api"`
	// Units 各辅助源涨跌幅单位：fraction | percent
	Units map[string]string `yaml:"units"`
	Chart struct {
		Title     string `yaml:"title"`
		Width     string `yaml:"width"`
		Height    string `yaml:"height"`
		UpColor   string `yaml:"up_color"`
		DownColor string `yaml:"down_color"`
	} `yaml:"chart"`
	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`
	SMTP   SMTP `yaml:"smtp"`
	Report struct {
		Codes       []string `yaml:"codes"` // "600519" 或 "510300:etf"
		Indicators  []string `yaml:"indicators"`
		Cron        string   `yaml:"cron"`
		Concurrency int      `yaml:"concurrency"`
	} `yaml:"report"`
}

type SMTP struct {
	Server   string `yaml:"server"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
	To       string `yaml:"to"`
}

func (s *SMTP) Enabled() bool {
	srv := strings.TrimSpace(s.Server)
	from := strings.TrimSpace(s.From)
	to := strings.TrimSpace(s.To)
	return srv != "" && from != "" && to != ""
}

// Path 配置文件路径：显式参数优先，其次 CONFIG_PATH，最后默认 config.yaml。
func Path(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p
	}
	return DefaultConfigPath
}

// Load 先加载 .env（不覆盖已有环境变量），再读 YAML，最后被环境变量覆盖并补默认值。
// 文件不存在不算错误。
func Load(path string) (*Config, error) {
	if err := godotenv.Load(dotEnvPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", dotEnvPath, err)
	}
	cfg := &Config{}
	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	cfg.applyEnv()
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() {
	envString(envProvider, &c.API.Provider)
	envString(envBaseURL, &c.API.BaseURL)
	envInt(envTimeoutMS, &c.API.TimeoutMS)
	envInt(envDelayMS, &c.API.DelayMS)
	envInt(envJitterMS, &c.API.JitterMS)
	envInt(envMaxConcurrent, &c.API.MaxConcurrent)
	envString(envServerAddr, &c.Server.Addr)
	envString(envReportCron, &c.Report.Cron)
	if v := os.Getenv(envReportCodes); v != "" {
		c.Report.Codes = splitList(v)
	}

	envString(envSMTPServer, &c.SMTP.Server)
	envInt(envSMTPPort, &c.SMTP.Port)
	envString(envSMTPUser, &c.SMTP.User)
	envString(envSMTPPassword, &c.SMTP.Password)
	envString(envSMTPAuthCode, &c.SMTP.Password)
	envString(envSMTPFrom, &c.SMTP.From)
	envString(envSMTPTo, &c.SMTP.To)
}

func (c *Config) applyDefaults() {
	c.API.Provider = strings.ToLower(strings.TrimSpace(c.API.Provider))
	if c.API.Provider == "" {
		c.API.Provider = ProviderEastMoney
	}
	if c.API.TimeoutMS <= 0 {
		c.API.TimeoutMS = defaultTimeoutMS
	}
	if c.API.DelayMS == 0 {
		c.API.DelayMS = defaultDelayMS
	}
	if c.API.JitterMS == 0 {
		c.API.JitterMS = defaultJitterMS
	}
	if c.API.MaxConcurrent <= 0 {
		c.API.MaxConcurrent = defaultMaxConcurrent
	}
	if c.API.Limit <= 0 {
		c.API.Limit = defaultLimit
	}
	if c.Chart.Width == "" {
		c.Chart.Width = defaultWidth
	}
	if c.Chart.Height == "" {
		c.Chart.Height = defaultPanelHeight
	}
	if c.Chart.UpColor == "" {
		c.Chart.UpColor = defaultUpColor
	}
	if c.Chart.DownColor == "" {
		c.Chart.DownColor = defaultDownColor
	}
	if c.Server.Addr == "" {
		c.Server.Addr = defaultAddr
	}
	if c.Report.Cron == "" {
		c.Report.Cron = defaultReportCron
	}
	if c.Report.Concurrency <= 0 {
		c.Report.Concurrency = defaultReportWorkers
	}
	if c.SMTP.From == "" && c.SMTP.User != "" {
		c.SMTP.From = c.SMTP.User
	}
}

// Validate 检查取值是否可用。
func (c *Config) Validate() error {
	switch c.API.Provider {
	case ProviderEastMoney:
	case ProviderBackend:
		if strings.TrimSpace(c.API.BaseURL) == "" {
			return fmt.Errorf("api.base_url is required for provider %q", ProviderBackend)
		}
	default:
		return fmt.Errorf("api.provider %q is not supported", c.API.Provider)
	}
	for source, u := range c.Units {
		if !model.RateUnit(u).Valid() {
			return fmt.Errorf("units.%s: %q is not fraction or percent", source, u)
		}
	}
	if strings.TrimSpace(c.Server.Addr) == "" {
		return fmt.Errorf("server.addr is required")
	}
	if _, err := cronParser.Parse(c.Report.Cron); err != nil {
		return fmt.Errorf("report.cron: %w", err)
	}
	return nil
}

// Timeout 单次 HTTP 请求超时。
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.API.TimeoutMS) * time.Millisecond
}

// RateUnits 已声明单位的辅助源。
func (c *Config) RateUnits() map[string]model.RateUnit {
	out := make(map[string]model.RateUnit, len(c.Units))
	for k, v := range c.Units {
		out[k] = model.RateUnit(v)
	}
	return out
}

// Target 批量报告中的一个标的。
type Target struct {
	Code string
	Kind model.InstrumentKind
}

// ParseTarget 解析 "code" 或 "code:kind"。
func ParseTarget(s string) Target {
	code, kind, _ := strings.Cut(strings.TrimSpace(s), ":")
	return Target{Code: strings.TrimSpace(code), Kind: model.ParseKind(kind)}
}

// Targets 报告标的列表，空项跳过。
func (c *Config) Targets() []Target {
	out := make([]Target, 0, len(c.Report.Codes))
	for _, s := range c.Report.Codes {
		if t := ParseTarget(s); t.Code != "" {
			out = append(out, t)
		}
	}
	return out
}

func envString(name string, dst *string) {
	if v := os.Getenv(name); v != "" {
		*dst = v
	}
}

func envInt(name string, dst *int) {
	if v := os.Getenv(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

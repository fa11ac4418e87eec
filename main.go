// Package main 是 K 线对比图程序的入口：拉取主序列与辅助序列，对齐后输出图表、表格、HTTP 服务或邮件日报。
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/guregu/null/v6"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"klinechart/internal/api"
	"klinechart/internal/config"
	"klinechart/internal/mail"
	"klinechart/internal/model"
	"klinechart/internal/reconcile"
	"klinechart/internal/render"
	"klinechart/internal/server"
	"klinechart/internal/trace"
	"klinechart/internal/worker"
)

// 单次运行超时
const runTimeout = 2 * time.Minute

var (
	configPath string

	kind       string
	limit      int
	indicators []string
	overlays   []string
	periods    []int
	useAmount  bool
	title      string

	outputPath string
	color      bool

	addr string

	codes    []string
	schedule bool
)

func main() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)

	rootCmd := &cobra.Command{
		Use:           "klinechart",
		Short:         "K 线与比较涨跌幅多子图",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "配置文件路径（默认 $CONFIG_PATH 或 config.yaml）")

	chartCmd := &cobra.Command{
		Use:   "chart <code>",
		Short: "生成 HTML 图表",
		Args:  cobra.ExactArgs(1),
		RunE:  runChart,
	}
	addChartFlags(chartCmd)
	chartCmd.Flags().StringVarP(&outputPath, "output", "o", "", "输出文件（默认 <code>.html）")

	tableCmd := &cobra.Command{
		Use:   "table <code>",
		Short: "在终端打印派生行",
		Args:  cobra.ExactArgs(1),
		RunE:  runTable,
	}
	addChartFlags(tableCmd)
	tableCmd.Flags().BoolVar(&color, "color", false, "涨红跌绿")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "启动 HTTP 服务",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
	serveCmd.Flags().StringVar(&addr, "addr", "", "监听地址（覆盖配置）")

	reportCmd := &cobra.Command{
		Use:   "report",
		Short: "批量计算比较涨跌幅并发送邮件",
		Args:  cobra.NoArgs,
		RunE:  runReport,
	}
	reportCmd.Flags().StringSliceVar(&codes, "codes", nil, "标的列表，如 600519,510300:etf（覆盖配置）")
	reportCmd.Flags().BoolVar(&schedule, "cron", false, "按 report.cron 常驻调度")

	rootCmd.AddCommand(chartCmd, tableCmd, serveCmd, reportCmd)
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		log.Printf("klinechart: %v", err)
		os.Exit(1)
	}
}

func addChartFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&kind, "kind", "k", string(model.KindStock), "证券类型：stock | etf | index | fund")
	cmd.Flags().IntVar(&limit, "limit", 0, "K 线条数（默认取配置）")
	cmd.Flags().StringSliceVarP(&indicators, "indicators", "i", nil, "独立子图指标，如 main,large（最多 5 个）")
	cmd.Flags().StringSliceVar(&overlays, "overlay", nil, "映射到价格区间叠加的指标")
	cmd.Flags().IntSliceVar(&periods, "ma", nil, "均线周期，如 5,10,20")
	cmd.Flags().BoolVar(&useAmount, "amount", false, "量图改用成交额")
	cmd.Flags().StringVarP(&title, "title", "t", "", "图表标题")
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(config.Path(configPath))
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// newFetcher 按配置选择数据源，共用一个带节流的 HTTP 客户端。
func newFetcher(cfg *config.Config) api.Fetcher {
	client := api.NewClient(cfg.Timeout(), api.Pacing{
		Gap:           millis(cfg.API.DelayMS),
		Jitter:        millis(cfg.API.JitterMS),
		MaxConcurrent: cfg.API.MaxConcurrent,
	})
	if cfg.API.Provider == config.ProviderBackend {
		return api.NewBackend(client, cfg.API.BaseURL, cfg.RateUnits())
	}
	return api.NewEastMoney(client)
}

// millis 负数表示关闭。
func millis(ms int) time.Duration {
	if ms <= 0 {
		return 0
	}
	return time.Duration(ms) * time.Millisecond
}

func style(cfg *config.Config) render.Style {
	return render.Style{
		Width:     cfg.Chart.Width,
		Height:    cfg.Chart.Height,
		UpColor:   cfg.Chart.UpColor,
		DownColor: cfg.Chart.DownColor,
	}
}

// chartRequest 由命令行参数组装单只标的请求。
func chartRequest(cfg *config.Config, code string) worker.Request {
	n := limit
	if n <= 0 {
		n = cfg.API.Limit
	}
	t := title
	if t == "" {
		t = cfg.Chart.Title
	}
	if t == "" {
		t = code
	}
	return worker.Request{
		Request: api.Request{Code: code, Kind: model.ParseKind(kind), Limit: n},
		Options: reconcile.Options{
			Title:          t,
			Indicators:     indicators,
			Overlays:       overlays,
			MovingAverages: periods,
			UseAmount:      useAmount,
		},
	}
}

func loadOne(cmd *cobra.Command, code string) (*config.Config, *reconcile.Result, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), runTimeout)
	defer cancel()
	ctx = trace.WithTraceID(ctx, trace.NewTraceID())
	f := newFetcher(cfg)
	trace.Log(ctx, "main: %s %s via %s", cmd.Name(), code, f.Name())
	res, err := worker.NewLoader(f, nil).Load(ctx, worker.Token{}, chartRequest(cfg, code))
	if err != nil {
		return nil, nil, err
	}
	return cfg, res, nil
}

func runChart(cmd *cobra.Command, args []string) error {
	code := args[0]
	cfg, res, err := loadOne(cmd, code)
	if err != nil {
		return err
	}
	path := outputPath
	if path == "" {
		path = code + ".html"
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	if err := render.HTML(f, res.Chart, style(cfg)); err != nil {
		_ = f.Close()
		return fmt.Errorf("render: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close output: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %d 行, %d 个子图 -> %s\n", code, len(res.Rows), res.Chart.Layout.PanelCount, path)
	return nil
}

func runTable(cmd *cobra.Command, args []string) error {
	code := args[0]
	_, res, err := loadOne(cmd, code)
	if err != nil {
		return err
	}
	render.Table(cmd.OutOrStdout(), res.Rows, render.TableOptions{
		Title:      res.Chart.Title,
		Indicators: indicators,
		Color:      color,
	})
	return nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if addr != "" {
		cfg.Server.Addr = addr
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = trace.WithTraceID(ctx, trace.NewTraceID())

	gens := worker.NewGenerations()
	loader := worker.NewLoader(newFetcher(cfg), gens)
	srv := server.New(server.Config{
		Addr:  cfg.Server.Addr,
		Title: cfg.Chart.Title,
		Limit: cfg.API.Limit,
		Style: style(cfg),
	}, loader, gens)
	return srv.Run(ctx)
}

func runReport(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if len(codes) > 0 {
		cfg.Report.Codes = codes
	}
	if len(cfg.Targets()) == 0 {
		return fmt.Errorf("no report codes: set report.codes or --codes")
	}
	loader := worker.NewLoader(newFetcher(cfg), nil)
	if !schedule {
		ctx, cancel := context.WithTimeout(cmd.Context(), runTimeout)
		defer cancel()
		runReportOnce(ctx, cfg, loader, cmd.OutOrStdout())
		return nil
	}
	return runScheduler(cmd.Context(), cfg, loader, cmd.OutOrStdout())
}

// runScheduler 常驻进程，按 report.cron（六段，首段为秒）执行日报，收到信号后退出。
func runScheduler(parent context.Context, cfg *config.Config, loader *worker.Loader, out io.Writer) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = trace.WithTraceID(ctx, trace.NewTraceID())

	c := cron.New(cron.WithSeconds())
	if _, err := c.AddFunc(cfg.Report.Cron, func() {
		runCtx, cancel := context.WithTimeout(ctx, runTimeout)
		defer cancel()
		runReportOnce(runCtx, cfg, loader, out)
	}); err != nil {
		return fmt.Errorf("register report task: %w", err)
	}
	c.Start()
	trace.Log(ctx, "main: 调度模式启动 cron=%q codes=%d", cfg.Report.Cron, len(cfg.Report.Codes))
	<-ctx.Done()
	<-c.Stop().Done()
	trace.Log(ctx, "main: 调度已停止")
	return nil
}

func runReportOnce(ctx context.Context, cfg *config.Config, loader *worker.Loader, out io.Writer) {
	ctx = trace.WithTraceID(ctx, trace.NewTraceID())
	targets := cfg.Targets()
	reqs := make([]worker.Request, len(targets))
	for i, t := range targets {
		reqs[i] = worker.Request{
			Request: api.Request{Code: t.Code, Kind: t.Kind, Limit: cfg.API.Limit},
			Options: reconcile.Options{Title: t.Code, Indicators: cfg.Report.Indicators},
		}
	}
	trace.Log(ctx, "main: report start codes=%d", len(reqs))
	outs := worker.Batch(ctx, worker.Config{Concurrency: cfg.Report.Concurrency}, loader, reqs)
	entries := mail.Entries(outs)
	for _, e := range entries {
		if e.Row == nil {
			fmt.Fprintf(out, "%s 失败: %v\n", e.Code, e.Err)
			continue
		}
		fmt.Fprintf(out, "%s %s 收盘=%s 比较涨跌幅=%s\n", e.Code, e.Row.Date, e.Row.Close.StringFixed(2), percent(e.Row.ComparativeChange))
	}
	mail.MustSendReport(ctx, buildMailConfig(&cfg.SMTP), "", entries)
	trace.Log(ctx, "main: report end, 共 %d 只", len(entries))
}

// percent 小数口径的涨跌幅按百分比展示，缺失为 "-"。
func percent(v null.Float) string {
	p := reconcile.ToPercent(v)
	if !p.Valid {
		return "-"
	}
	return fmt.Sprintf("%.2f%%", p.Float64)
}

func buildMailConfig(smtpCfg *config.SMTP) *mail.SMTPConfig {
	if smtpCfg == nil {
		smtpCfg = &config.SMTP{}
	}
	return &mail.SMTPConfig{
		Server:   smtpCfg.Server,
		Port:     smtpCfg.Port,
		User:     smtpCfg.User,
		Password: smtpCfg.Password,
		From:     smtpCfg.From,
		To:       smtpCfg.To,
	}
}

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"burnex/internal/config"
	"burnex/internal/diag"
	"burnex/internal/pipeline"
	"burnex/internal/rate"
	"burnex/internal/selector"
	"burnex/pkg/contract"
	"burnex/plugins/enricher/snomed"
	"burnex/plugins/extractor/gemini"
	"burnex/plugins/extractor/mock"
	"burnex/plugins/extractor/openai"
	"burnex/plugins/writer/filesystem"
)

// 退出码：0 整轮完成（允许含单文档失败）；1 运行中断（取消/选择失败）；
// 3 启动级错误（配置/凭据/输出目录）。

const (
	exitOK      = 0
	exitRun     = 1
	exitStartup = 3
)

var pipelineRun = pipeline.Run

type flags struct {
	config        string
	input         string
	output        string
	glossary      string
	backend       string
	limit         int
	idFrom        int
	idTo          int
	yearFrom      int
	yearTo        int
	skipProcessed bool
	noEnrich      bool
}

// newRootCmd 构造根命令；最终退出码经 code 指针带出（cobra 的 RunE 错误
// 语义与“运行完成但含失败文档”不同轨，分开表达）。
func newRootCmd(code *int) (*cobra.Command, *flags) {
	fl := &flags{}
	root := &cobra.Command{
		Use:           "burnex",
		Short:         "从临床出院记录批量抽取结构化烧伤数据",
		Long:          "选择输入文档 → 生成式后端抽取并严格校验 → 同部位合并 → SNOMED CT 术语富集 → 逐文档落盘 JSON。",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			*code = runBatch(cmd, *fl)
			return nil
		},
	}

	pf := root.Flags()
	pf.StringVar(&fl.config, "config", "", "配置文件路径（YAML）；缺省读取 ./config.yaml（若存在）")
	pf.StringVar(&fl.input, "input", "", "输入目录（覆盖配置）")
	pf.StringVar(&fl.output, "output", "", "输出目录（覆盖配置）")
	pf.StringVar(&fl.glossary, "glossary", "", "术语表文件路径（覆盖配置）")
	pf.StringVar(&fl.backend, "backend", "", "抽取后端：gemini | openai | mock（覆盖配置）")
	pf.IntVar(&fl.limit, "limit", 0, "最多处理前 N 份（过滤后截取；0 表示不限）")
	pf.IntVar(&fl.idFrom, "id-from", 0, "数字文件名区间下界（与 --id-to 成对）")
	pf.IntVar(&fl.idTo, "id-to", 0, "数字文件名区间上界（与 --id-from 成对）")
	pf.IntVar(&fl.yearFrom, "year-from", 0, "年份区间下界（文件名前两位；与 --year-to 成对）")
	pf.IntVar(&fl.yearTo, "year-to", 0, "年份区间上界（与 --year-from 成对）")
	pf.BoolVar(&fl.skipProcessed, "skip-processed", true, "产出已存在时跳过该文档（断点续跑）")
	pf.BoolVar(&fl.noEnrich, "no-enrich", false, "关闭术语富集（离线联调）")
	return root, fl
}

func execute() int {
	code := exitOK
	root, _ := newRootCmd(&code)

	initCmd := &cobra.Command{
		Use:   "init [dir]",
		Short: "在指定目录生成 config.yaml 与 .env 模板（已存在则跳过，不覆盖）",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			if err := config.WriteTemplate(dir); err != nil {
				fmt.Fprintf(os.Stderr, "生成默认配置失败: %v\n", err)
				code = exitStartup
			}
			return nil
		},
	}
	root.AddCommand(initCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return exitStartup
	}
	return code
}

func runBatch(cmd *cobra.Command, fl flags) int {
	start := time.Now()

	cfgPath := fl.config
	if cfgPath == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			cfgPath = "config.yaml"
		}
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "配置解析失败: %v\n", err)
		return exitStartup
	}
	applyOverrides(&cfg, cmd, fl)
	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "配置校验失败: %v\n", err)
		return exitStartup
	}

	runID := uuid.NewString()
	logger := diag.NewLogger(runID, cfg.Logging.Level)

	comp, err := assemble(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "装配失败: %v\n", err)
		logger.Error("cli", string(diag.Classify(err)), err.Error(), "")
		return exitStartup
	}

	glossary := loadGlossary(cfg.GlossaryPath, logger)

	set := pipeline.Settings{
		InputDir: cfg.InputDir,
		Filter: selector.Filter{
			IDRange:   cfg.Select.IDRange(),
			YearRange: cfg.Select.YearRange(),
			Limit:     cfg.Select.Limit,
		},
		Glossary:      glossary,
		SkipProcessed: cfg.SkipProcessed,
		ExtractGate:   rate.New("extract", cfg.Extractor.RPM, logger),
		EnrichGate:    rate.New("enrich", cfg.Enricher.RPM, logger),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sum, err := pipelineRun(ctx, comp, set, logger)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, "已取消。")
		} else {
			fmt.Fprintf(os.Stderr, "运行失败: %v\n", err)
		}
		logger.Error("cli", string(diag.Classify(err)), err.Error(), "")
		return exitRun
	}

	renderSummary(os.Stdout, sum, time.Since(start))
	logger.Info("cli", fmt.Sprintf("run complete: %d processed, %d succeeded, %d failed, %d skipped",
		sum.Processed, sum.Succeeded, sum.Failed, sum.Skipped), "")
	return exitOK
}

// applyOverrides: CLI > 配置文件 > 默认值。仅显式设置的旗标参与覆盖。
func applyOverrides(cfg *config.Config, cmd *cobra.Command, fl flags) {
	if fl.input != "" {
		cfg.InputDir = fl.input
	}
	if fl.output != "" {
		cfg.OutputDir = fl.output
	}
	if fl.glossary != "" {
		cfg.GlossaryPath = fl.glossary
	}
	if fl.backend != "" {
		cfg.Extractor.Backend = strings.ToLower(fl.backend)
	}
	if cmd.Flags().Changed("limit") {
		cfg.Select.Limit = fl.limit
	}
	if cmd.Flags().Changed("id-from") || cmd.Flags().Changed("id-to") {
		from, to := fl.idFrom, fl.idTo
		cfg.Select.IDFrom, cfg.Select.IDTo = &from, &to
		cfg.Select.YearFrom, cfg.Select.YearTo = nil, nil
	}
	if cmd.Flags().Changed("year-from") || cmd.Flags().Changed("year-to") {
		from, to := fl.yearFrom, fl.yearTo
		cfg.Select.YearFrom, cfg.Select.YearTo = &from, &to
	}
	if cmd.Flags().Changed("skip-processed") {
		cfg.SkipProcessed = fl.skipProcessed
	}
	if fl.noEnrich {
		cfg.Enricher.Enabled = false
	}
}

// assemble 按配置装配外部依赖；任何失败都是启动级错误。
func assemble(cfg config.Config, logger *diag.Logger) (pipeline.Components, error) {
	var comp pipeline.Components

	switch cfg.Extractor.Backend {
	case "gemini":
		ext, err := gemini.New(gemini.Options{
			BaseURL:        cfg.Extractor.BaseURL,
			Model:          cfg.Extractor.Model,
			APIKeyEnv:      cfg.Extractor.APIKeyEnv,
			TimeoutSeconds: cfg.Extractor.TimeoutSeconds,
		})
		if err != nil {
			return comp, err
		}
		comp.Extractor = ext
	case "openai":
		ext, err := openai.New(openai.Options{
			BaseURL:        cfg.Extractor.BaseURL,
			Model:          cfg.Extractor.Model,
			APIKeyEnv:      cfg.Extractor.APIKeyEnv,
			TimeoutSeconds: cfg.Extractor.TimeoutSeconds,
		})
		if err != nil {
			return comp, err
		}
		comp.Extractor = ext
	case "mock":
		comp.Extractor = mock.New(mock.Options{Dir: cfg.Extractor.MockDir})
	default:
		return comp, fmt.Errorf("%w: unknown backend %q", contract.ErrInvalidInput, cfg.Extractor.Backend)
	}

	if cfg.Enricher.Enabled {
		enr, err := snomed.New(snomed.Options{
			BaseURL:        cfg.Enricher.BaseURL,
			MaxAttempts:    cfg.Enricher.MaxAttempts,
			BaseDelay:      time.Duration(cfg.Enricher.BaseDelayMS) * time.Millisecond,
			TimeoutSeconds: cfg.Enricher.TimeoutSeconds,
		}, logger)
		if err != nil {
			return comp, err
		}
		comp.Enricher = enr
	}

	w, err := filesystem.New(filesystem.Options{OutputDir: cfg.OutputDir})
	if err != nil {
		return comp, fmt.Errorf("output dir %s: %w", cfg.OutputDir, err)
	}
	comp.Writer = w
	return comp, nil
}

// loadGlossary: 术语表缺失不阻断运行，仅告警后以空表继续。
func loadGlossary(path string, logger *diag.Logger) string {
	if strings.TrimSpace(path) == "" {
		return ""
	}
	b, err := os.ReadFile(path)
	if err != nil {
		logger.Warn("cli", "glossary not readable, continuing without: "+err.Error(), "")
		fmt.Fprintf(os.Stderr, "提示：术语表不可读（已跳过）：%v\n", err)
		return ""
	}
	return string(b)
}

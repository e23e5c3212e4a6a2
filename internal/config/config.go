package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// 运行期只读配置：一次加载（默认值 + YAML 文件 + CLI 覆盖），运行期不变。
// 凭据不入配置文件，按 api_key_env 指定的环境变量读取。
// 结构校验失败属于启动级错误，在处理任何文档之前终止整轮运行。

// Config 为顶层配置。
type Config struct {
	InputDir     string `yaml:"input_dir" validate:"required"`
	OutputDir    string `yaml:"output_dir" validate:"required"`
	GlossaryPath string `yaml:"glossary_path"`
	// SkipProcessed: 工件已存在时整体跳过该文档（幂等续跑，不再花费外部配额）。
	SkipProcessed bool `yaml:"skip_processed"`

	Select    Select    `yaml:"select"`
	Extractor Extractor `yaml:"extractor"`
	Enricher  Enricher  `yaml:"enricher"`
	Logging   Logging   `yaml:"logging"`
}

// Select: 文件选择过滤。ID 区间与年份区间互斥。
type Select struct {
	IDFrom   *int `yaml:"id_from"`
	IDTo     *int `yaml:"id_to"`
	YearFrom *int `yaml:"year_from"`
	YearTo   *int `yaml:"year_to"`
	Limit    int  `yaml:"limit" validate:"gte=0"`
}

// Extractor: 抽取后端配置。
type Extractor struct {
	Backend        string `yaml:"backend" validate:"oneof=gemini openai mock"`
	Model          string `yaml:"model"`
	BaseURL        string `yaml:"base_url"`
	APIKeyEnv      string `yaml:"api_key_env"`
	RPM            int    `yaml:"rpm"`
	TimeoutSeconds int    `yaml:"timeout_seconds" validate:"gte=0"`
	// MockDir: backend=mock 时读取罐装响应的目录。
	MockDir string `yaml:"mock_dir"`
}

// Enricher: 术语富集后端配置（FHIR 术语服务）。Enabled=false 时 base_url 允许留空。
type Enricher struct {
	BaseURL        string `yaml:"base_url" validate:"required_if=Enabled true,omitempty,url"`
	RPM            int    `yaml:"rpm"`
	MaxAttempts    int    `yaml:"max_attempts" validate:"gte=1"`
	BaseDelayMS    int    `yaml:"base_delay_ms" validate:"gte=1"`
	TimeoutSeconds int    `yaml:"timeout_seconds" validate:"gte=0"`
	// Enabled: 关闭后不做任何术语查询（离线联调用）。
	Enabled bool `yaml:"enabled"`
}

// Logging: 仅日志等级可配置；输出路径与轮转策略为固定默认。
type Logging struct {
	Level string `yaml:"level" validate:"oneof=debug info warn error"`
}

// Defaults 返回内置默认配置。
func Defaults() Config {
	return Config{
		SkipProcessed: true,
		Extractor: Extractor{
			Backend:        "gemini",
			Model:          "gemini-2.5-flash",
			BaseURL:        "https://generativelanguage.googleapis.com",
			APIKeyEnv:      "GEMINI_API_KEY",
			RPM:            10,
			TimeoutSeconds: 60,
		},
		Enricher: Enricher{
			BaseURL:        "https://r4.ontoserver.csiro.au/fhir",
			RPM:            30,
			MaxAttempts:    3,
			BaseDelayMS:    1000,
			TimeoutSeconds: 20,
			Enabled:        true,
		},
		Logging: Logging{Level: "info"},
	}
}

// Load 读取 YAML 文件并叠加在默认值之上；path 为空时仅返回默认值。
func Load(path string) (Config, error) {
	cfg := Defaults()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// Validate 运行结构校验与跨字段规则。
func Validate(cfg Config) error {
	v := validator.New()
	if err := v.Struct(cfg); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return validateSelect(cfg.Select)
}

func validateSelect(s Select) error {
	idSet := s.IDFrom != nil || s.IDTo != nil
	yearSet := s.YearFrom != nil || s.YearTo != nil
	if idSet && yearSet {
		return errors.New("config: id range and year range are mutually exclusive")
	}
	if (s.IDFrom == nil) != (s.IDTo == nil) {
		return errors.New("config: id_from and id_to must be set together")
	}
	if (s.YearFrom == nil) != (s.YearTo == nil) {
		return errors.New("config: year_from and year_to must be set together")
	}
	if idSet && *s.IDFrom > *s.IDTo {
		return errors.New("config: id_from must be <= id_to")
	}
	return nil
}

// IDRange 返回选择器用的闭区间（未配置时 nil）。
func (s Select) IDRange() *[2]int {
	if s.IDFrom == nil || s.IDTo == nil {
		return nil
	}
	return &[2]int{*s.IDFrom, *s.IDTo}
}

// YearRange 同上；回绕语义由选择器处理。
func (s Select) YearRange() *[2]int {
	if s.YearFrom == nil || s.YearTo == nil {
		return nil
	}
	return &[2]int{*s.YearFrom, *s.YearTo}
}

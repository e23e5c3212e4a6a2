package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// 初始化模板：在目标目录生成 config.yaml 与 .env 骨架；已存在的文件不覆盖。

const configTemplate = `# burnex 配置（YAML）。未列出的键采用内置默认。
input_dir: ./data/markdown
output_dir: ./data/json
glossary_path: ./documentation/PT-glossario.md
skip_processed: true

select:
  # id_from/id_to 与 year_from/year_to 互斥；limit 在区间过滤之后截取前 N。
  # id_from: 2301
  # id_to: 2315
  # year_from: 2023
  # year_to: 2024
  limit: 0

extractor:
  backend: gemini            # gemini | openai | mock
  model: gemini-2.5-flash
  base_url: https://generativelanguage.googleapis.com
  api_key_env: GEMINI_API_KEY
  rpm: 10
  timeout_seconds: 60

enricher:
  base_url: https://r4.ontoserver.csiro.au/fhir
  rpm: 30
  max_attempts: 3
  base_delay_ms: 1000
  timeout_seconds: 20
  enabled: true

logging:
  level: info
`

const envTemplate = `# 抽取后端凭据（按 extractor.api_key_env 读取）。
GEMINI_API_KEY=
# backend=openai 时使用：
OPENAI_API_KEY=
`

// WriteTemplate 在 dir 下生成 config.yaml 与 .env；文件已存在时跳过。
func WriteTemplate(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("config: init dir: %w", err)
	}
	if err := writeIfAbsent(filepath.Join(dir, "config.yaml"), configTemplate); err != nil {
		return err
	}
	return writeIfAbsent(filepath.Join(dir, ".env"), envTemplate)
}

func writeIfAbsent(path, content string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	return os.WriteFile(path, []byte(content), 0o644)
}

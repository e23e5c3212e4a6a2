package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"burnex/internal/consolidate"
	"burnex/internal/diag"
	"burnex/internal/rate"
	"burnex/internal/selector"
	"burnex/pkg/contract"
)

// 编排层：选择 → 逐文档（断点检查 → 读取 → 限速 → 抽取 → 合并 → 富集 → 落盘）。
// 严格串行，无并发；单文档失败记账后继续，绝不中断整轮。
// 仅两类错误会终止运行：输入目录不可枚举（启动级）与 ctx 取消（文档间检查）。

// Components: 注入的外部依赖。Enricher 可为 nil（富集关停）。
type Components struct {
	Extractor contract.Extractor
	Enricher  contract.Enricher
	Writer    contract.Writer
}

// Settings: 单轮运行参数。
type Settings struct {
	InputDir      string
	Filter        selector.Filter
	Glossary      string
	SkipProcessed bool
	// ExtractGate/EnrichGate: 各外部依赖独立的固定间隔节流器。
	ExtractGate *rate.Limiter
	EnrichGate  *rate.Limiter
}

// 单文档结局。
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
	StatusSkipped   = "skipped"
)

// Outcome: 单文档结果行（汇总表用）。
type Outcome struct {
	ID     contract.DocID
	Status string
	// Reason: 失败归类码（diag.Code），成功/跳过为空。
	Reason string
}

// Summary: 整轮记账。恒有 Processed = Succeeded + Failed；Skipped 不计入 Processed。
type Summary struct {
	Found     int
	Skipped   int
	Processed int
	Succeeded int
	Failed    int
	Outcomes  []Outcome
}

// Run 执行一轮批处理。返回的 error 仅代表运行本身中断（启动失败或取消）；
// 单文档失败只体现在 Summary 里。
func Run(ctx context.Context, comp Components, set Settings, logger *diag.Logger) (Summary, error) {
	var sum Summary

	docs, err := selector.Select(set.InputDir, set.Filter, logger)
	if err != nil {
		return sum, err
	}
	sum.Found = len(docs)
	logger.Info("pipeline", fmt.Sprintf("selected %d documents", len(docs)), "")

	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return sum, err
		}

		// 断点续跑：产出已在则跳过，不触达任何外部依赖，不计入 processed。
		if set.SkipProcessed && comp.Writer.Exists(doc.ID) {
			sum.Skipped++
			sum.Outcomes = append(sum.Outcomes, Outcome{ID: doc.ID, Status: StatusSkipped})
			logger.Info("pipeline", "output exists, skipped", string(doc.ID))
			continue
		}

		outcome := runOne(ctx, comp, set, doc, logger)
		if ctx.Err() != nil {
			return sum, ctx.Err()
		}
		sum.Processed++
		switch outcome.Status {
		case StatusSucceeded:
			sum.Succeeded++
		default:
			sum.Failed++
		}
		sum.Outcomes = append(sum.Outcomes, outcome)
	}
	return sum, nil
}

func runOne(ctx context.Context, comp Components, set Settings, doc contract.Document, logger *diag.Logger) Outcome {
	fail := func(err error) Outcome {
		code := string(diag.Classify(err))
		logger.Error("pipeline", code, err.Error(), string(doc.ID))
		return Outcome{ID: doc.ID, Status: StatusFailed, Reason: code}
	}

	text, err := os.ReadFile(doc.Path)
	if err != nil {
		return fail(err)
	}
	doc.Text = string(text)

	if set.ExtractGate != nil {
		if err := set.ExtractGate.Wait(ctx); err != nil {
			return fail(err)
		}
	}
	t := logger.Start("extract", "calling extraction backend", string(doc.ID))
	record, err := comp.Extractor.Extract(ctx, doc, set.Glossary)
	if err != nil {
		return fail(err)
	}
	t.Finish("extraction validated", int64(len(record.Burns)))

	record.Burns = consolidate.Consolidate(record.Burns)

	enrich(ctx, comp.Enricher, set.EnrichGate, &record, string(doc.ID), logger)
	if ctx.Err() != nil {
		return fail(ctx.Err())
	}

	artifact := contract.Artifact{ID: string(doc.ID), BurnsRecord: record}
	payload, err := json.MarshalIndent(&artifact, "", "  ")
	if err != nil {
		return fail(err)
	}
	if err := comp.Writer.Write(ctx, doc.ID, bytes.NewReader(payload)); err != nil {
		return fail(err)
	}
	logger.Info("pipeline", "artifact written", string(doc.ID))
	return Outcome{ID: doc.ID, Status: StatusSucceeded}
}

// enrich 尽力补全术语编码：每处烧伤的部位 + 记录级介质。
// 查询失败只降级为缺码，绝不改变该文档的成功结局（取消除外）。
func enrich(ctx context.Context, enr contract.Enricher, gate *rate.Limiter, record *contract.BurnsRecord, docID string, logger *diag.Logger) {
	if enr == nil {
		return
	}
	lookup := func(name, ecl string) *contract.Concept {
		if gate != nil {
			if err := gate.Wait(ctx); err != nil {
				return nil
			}
		}
		c, err := enr.Lookup(ctx, name, ecl)
		if err != nil {
			// 仅取消会走到这里；外层统一收尾。
			return nil
		}
		return c
	}

	for i := range record.Burns {
		if ctx.Err() != nil {
			return
		}
		if c := lookup(string(record.Burns[i].Location), contract.ECLBodyStructure); c != nil {
			record.Burns[i].LocationCode = c
		} else {
			logger.Info("enricher", "no body-structure match for "+string(record.Burns[i].Location), docID)
		}
	}
	if record.Agent != nil && *record.Agent != "" && ctx.Err() == nil {
		if c := lookup(*record.Agent, contract.ECLSubstance); c != nil {
			record.AgentCode = c
		} else {
			logger.Info("enricher", "no substance match for "+*record.Agent, docID)
		}
	}
}

package selector

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"burnex/internal/diag"
	"burnex/pkg/contract"
)

// 文档选择：枚举输入目录、按 ID 区间或年份区间过滤、截取前 N。
// 两种区间互斥；同时给出时 ID 区间优先。limit 作用于过滤后的有序列表。
// 当前过滤器要求的词干不可解析时跳过该文件并告警——对整轮运行非致命。

// Filter: 选择过滤器。区间均为闭区间。
type Filter struct {
	// IDRange: 数字词干区间，nil 表示不过滤。
	IDRange *[2]int
	// YearRange: 两位年份区间（词干前两位，如 "23"→2023）；支持 99→02 式回绕。
	YearRange *[2]int
	// Limit: 过滤后保留的最大数量；<=0 表示不限。
	Limit int
}

// 可识别的文档扩展名。
var docExts = map[string]struct{}{".md": {}, ".txt": {}}

// Select 返回确定性的、按词干字典序排序的文档列表（尚未读入正文）。
// 输入目录不可读是启动级错误，直接上抛。
func Select(dir string, f Filter, logger *diag.Logger) ([]contract.Document, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("selector: read input dir: %w", err)
	}

	docs := make([]contract.Document, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if _, ok := docExts[ext]; !ok {
			continue
		}
		stem := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		docs = append(docs, contract.Document{
			ID:   contract.DocID(stem),
			Path: filepath.Join(dir, e.Name()),
		})
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })

	switch {
	case f.IDRange != nil:
		docs = filterByID(docs, *f.IDRange, logger)
	case f.YearRange != nil:
		docs = filterByYear(docs, *f.YearRange, logger)
	}

	if f.Limit > 0 && len(docs) > f.Limit {
		docs = docs[:f.Limit]
	}
	return docs, nil
}

func filterByID(docs []contract.Document, r [2]int, logger *diag.Logger) []contract.Document {
	out := docs[:0]
	for _, d := range docs {
		id, err := strconv.Atoi(string(d.ID))
		if err != nil {
			if logger != nil {
				logger.Warn("selector", "non-numeric stem, skipped for id-range filter", string(d.ID))
			}
			continue
		}
		if id >= r[0] && id <= r[1] {
			out = append(out, d)
		}
	}
	return out
}

func filterByYear(docs []contract.Document, r [2]int, logger *diag.Logger) []contract.Document {
	// 四位年份归一为两位（2023→23）。
	startYY := r[0] % 100
	endYY := r[1] % 100
	out := docs[:0]
	for _, d := range docs {
		p := d.ID.YearPrefix()
		yy, err := strconv.Atoi(p)
		if err != nil || len(p) != 2 {
			if logger != nil {
				logger.Warn("selector", "stem lacks two-digit year prefix, skipped for year-range filter", string(d.ID))
			}
			continue
		}
		if inYearRange(yy, startYY, endYY) {
			out = append(out, d)
		}
	}
	return out
}

// inYearRange 处理两位年份的回绕区间（例如 99..02）。
func inYearRange(yy, start, end int) bool {
	if start <= end {
		return yy >= start && yy <= end
	}
	return yy >= start || yy <= end
}

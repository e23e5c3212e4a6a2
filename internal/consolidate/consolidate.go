package consolidate

import (
	"sort"
	"strings"

	"burnex/pkg/contract"
)

// 同部位多处提及的确定性合并。纯函数，无 I/O，与输入顺序无关：
//  1. 按 location 分组；单元素组原样通过；
//  2. 基底实体 = 组内 (SeverityRank(depth), circumferencial) 最大者；
//  3. 侧别合并：{left,right} 或显式 bilateral → bilateral；仅 left → left；
//     仅 right → right；否则保留基底实体自身侧别（可能是 unspecified）；
//  4. 标志合并：组内逻辑或；
//  5. 佐证合并：去重后按首次出现序以 " | " 连接，空串不参与；
//  6. 其余属性取自基底实体。
// 输出按部位受控域的稳定序排列，K 个不同部位恰得 K 条记录。

const provenanceSep = " | "

// Consolidate 合并子实体列表；len(out) <= len(in)。
func Consolidate(injuries []contract.BurnInjury) []contract.BurnInjury {
	if len(injuries) == 0 {
		return nil
	}

	groups := make(map[contract.Location][]contract.BurnInjury)
	order := make([]contract.Location, 0, len(injuries))
	for _, inj := range injuries {
		if _, seen := groups[inj.Location]; !seen {
			order = append(order, inj.Location)
		}
		groups[inj.Location] = append(groups[inj.Location], inj)
	}
	// 稳定序：按受控域序；未知部位（不应出现在已校验记录里）排末尾。
	sort.Slice(order, func(i, j int) bool {
		oi, oj := order[i].Ordinal(), order[j].Ordinal()
		if oi == oj {
			return order[i] < order[j]
		}
		if oi < 0 {
			return false
		}
		if oj < 0 {
			return true
		}
		return oi < oj
	})

	out := make([]contract.BurnInjury, 0, len(order))
	for _, loc := range order {
		out = append(out, mergeGroup(groups[loc]))
	}
	return out
}

func mergeGroup(group []contract.BurnInjury) contract.BurnInjury {
	if len(group) == 1 {
		return group[0]
	}

	merged := base(group)
	merged.Laterality = mergeLaterality(group, merged.Laterality)

	anyFlag := false
	for _, inj := range group {
		if inj.Flag() {
			anyFlag = true
			break
		}
	}
	merged.Circumferential = &anyFlag

	merged.Provenance = mergeProvenance(group)
	return merged
}

// base 选取严重度元组最大的成员。元组相同时按 (侧别, 佐证) 字典序决胜，
// 保证任意输入排列得到同一基底。
func base(group []contract.BurnInjury) contract.BurnInjury {
	best := group[0]
	for _, inj := range group[1:] {
		if severer(inj, best) {
			best = inj
		}
	}
	return best
}

func severer(a, b contract.BurnInjury) bool {
	ra, rb := a.Depth.SeverityRank(), b.Depth.SeverityRank()
	if ra != rb {
		return ra > rb
	}
	if a.Flag() != b.Flag() {
		return a.Flag()
	}
	if a.Laterality != b.Laterality {
		return a.Laterality < b.Laterality
	}
	return a.Provenance < b.Provenance
}

func mergeLaterality(group []contract.BurnInjury, own contract.Laterality) contract.Laterality {
	var hasLeft, hasRight, hasBilateral bool
	for _, inj := range group {
		switch inj.Laterality {
		case contract.LateralityLeft:
			hasLeft = true
		case contract.LateralityRight:
			hasRight = true
		case contract.LateralityBilateral:
			hasBilateral = true
		}
	}
	switch {
	case hasLeft && hasRight, hasBilateral:
		return contract.LateralityBilateral
	case hasLeft:
		return contract.LateralityLeft
	case hasRight:
		return contract.LateralityRight
	default:
		return own
	}
}

// mergeProvenance 去重（精确匹配）、保首次出现序、固定分隔符连接。
// 与输入排列无关的要求由组内先按稳定序整理实现。
func mergeProvenance(group []contract.BurnInjury) string {
	ordered := make([]contract.BurnInjury, len(group))
	copy(ordered, group)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Depth.SeverityRank() != ordered[j].Depth.SeverityRank() {
			return ordered[i].Depth.SeverityRank() < ordered[j].Depth.SeverityRank()
		}
		if ordered[i].Laterality != ordered[j].Laterality {
			return ordered[i].Laterality < ordered[j].Laterality
		}
		return ordered[i].Provenance < ordered[j].Provenance
	})

	seen := make(map[string]struct{}, len(ordered))
	parts := make([]string, 0, len(ordered))
	for _, inj := range ordered {
		p := inj.Provenance
		if p == "" {
			continue
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		parts = append(parts, p)
	}
	return strings.Join(parts, provenanceSep)
}

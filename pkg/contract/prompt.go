package contract

import (
	"fmt"
	"strings"
)

// BuildPrompt 构造抽取提示词：任务说明 + 原文围栏 + 词汇表围栏 + 逐字段指令。
// 文档 ID 仅作上下文说明，明确要求不出现在模型输出里（由编排层落盘时补入）。
// 两个抽取后端共用同一提示词，保证可比性。
func BuildPrompt(doc Document, glossary string) string {
	if strings.TrimSpace(glossary) == "" {
		glossary = "No glossary provided."
	}
	var b strings.Builder
	b.WriteString("You are a specialized medical data extraction assistant. ")
	b.WriteString("Analyze the following clinical case text, written in European Portuguese, ")
	b.WriteString("and extract burn injury information.\n\n")

	b.WriteString("--- START TEXT ---\n")
	b.WriteString(doc.Text)
	b.WriteString("\n--- END TEXT ---\n\n")

	b.WriteString("--- START GLOSSARY ---\n")
	b.WriteString(glossary)
	b.WriteString("\n--- END GLOSSARY ---\n\n")

	b.WriteString("Extract the required information and structure it precisely according to the response schema. ")
	b.WriteString("Adhere strictly to field names, types and enum values.\n\n")

	b.WriteString("Key information to extract:\n")
	fmt.Fprintf(&b, "1. tbsa: total body surface area affected (percentage, e.g. 15.5); null if not mentioned.\n")
	fmt.Fprintf(&b, "2. mechanism: one of %s; null if unclear.\n", quoteJoin(stringsOfMechanisms()))
	fmt.Fprintf(&b, "3. type_of_accident: one of %s; null if unclear.\n", quoteJoin(stringsOfAccidents()))
	b.WriteString("4. agent: the specific agent causing the burn (e.g. fire, hot water, sulfuric acid); null if not mentioned.\n")
	b.WriteString("5. wildfire, bonfire, fireplace, violence, suicide_attempt, escharotomy: boolean flags; null when the text is silent.\n")
	b.WriteString("6. associated_trauma: list of concurrent non-burn injuries; empty list when none.\n")
	fmt.Fprintf(&b, "7. burns: one entry per distinct burn area, with location (one of %s), ", quoteJoin(stringsOfLocations()))
	fmt.Fprintf(&b, "laterality (one of %s), ", quoteJoin(stringsOfLateralities()))
	fmt.Fprintf(&b, "depth (one of %s), ", quoteJoin(stringsOfDepths()))
	b.WriteString("circumferencial flag, and provenance: the exact source sentence(s) supporting the entry, quoted verbatim in the original Portuguese.\n\n")

	b.WriteString("Return only a single valid JSON object matching the schema. ")
	b.WriteString("Do not guess or infer information not present in the text. ")
	fmt.Fprintf(&b, "The patient identifier for this case is %s; do not include it in the JSON output.\n", doc.ID)
	return b.String()
}

func quoteJoin(vals []string) string {
	q := make([]string, len(vals))
	for i, v := range vals {
		q[i] = fmt.Sprintf("%q", v)
	}
	return strings.Join(q, ", ")
}

func stringsOfMechanisms() []string {
	out := make([]string, len(Mechanisms))
	for i, v := range Mechanisms {
		out[i] = string(v)
	}
	return out
}

func stringsOfAccidents() []string {
	out := make([]string, len(AccidentTypes))
	for i, v := range AccidentTypes {
		out[i] = string(v)
	}
	return out
}

func stringsOfLocations() []string {
	out := make([]string, len(Locations))
	for i, v := range Locations {
		out[i] = string(v)
	}
	return out
}

func stringsOfDepths() []string {
	out := make([]string, len(Depths))
	for i, v := range Depths {
		out[i] = string(v)
	}
	return out
}

func stringsOfLateralities() []string {
	out := make([]string, len(Lateralities))
	for i, v := range Lateralities {
		out[i] = string(v)
	}
	return out
}

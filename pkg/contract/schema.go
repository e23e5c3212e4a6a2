package contract

import (
	"encoding/json"
	"sync"
)

// 响应模式：随请求下发，约束后端只产出符合 BurnsRecord 的 JSON。
// 单一事实来源是上方的受控词表切片；模式与校验共用同一域，避免漂移。
// 标准 JSON Schema 方言，两个后端（generateContent / chat completions）均接受。

var (
	schemaOnce sync.Once
	schemaRaw  json.RawMessage
)

// ResponseSchema 返回抽取响应的 JSON Schema（进程内只构建一次，只读共享）。
func ResponseSchema() json.RawMessage {
	schemaOnce.Do(func() {
		schemaRaw, _ = json.Marshal(buildSchema())
	})
	return schemaRaw
}

func buildSchema() map[string]any {
	nullable := func(t string) map[string]any {
		return map[string]any{"type": []string{t, "null"}}
	}
	enumOf := func(vals ...string) map[string]any {
		anyVals := make([]any, 0, len(vals)+1)
		for _, v := range vals {
			anyVals = append(anyVals, v)
		}
		anyVals = append(anyVals, nil)
		return map[string]any{"enum": anyVals}
	}

	mech := make([]string, len(Mechanisms))
	for i, v := range Mechanisms {
		mech[i] = string(v)
	}
	acc := make([]string, len(AccidentTypes))
	for i, v := range AccidentTypes {
		acc[i] = string(v)
	}
	loc := make([]string, len(Locations))
	for i, v := range Locations {
		loc[i] = string(v)
	}
	dep := make([]string, len(Depths))
	for i, v := range Depths {
		dep[i] = string(v)
	}
	lat := make([]string, len(Lateralities))
	for i, v := range Lateralities {
		lat[i] = string(v)
	}

	injury := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"location":        map[string]any{"enum": toAny(loc)},
			"laterality":      enumOf(lat...),
			"depth":           enumOf(dep...),
			"circumferencial": nullable("boolean"),
			"provenance":      nullable("string"),
		},
		"required": []string{"location", "laterality", "depth", "circumferencial", "provenance"},
	}

	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"tbsa": map[string]any{
				"type":    []string{"number", "null"},
				"minimum": 0,
				"maximum": 100,
			},
			"mechanism":        enumOf(mech...),
			"type_of_accident": enumOf(acc...),
			"agent":            nullable("string"),
			"wildfire":         nullable("boolean"),
			"bonfire":          nullable("boolean"),
			"fireplace":        nullable("boolean"),
			"violence":         nullable("boolean"),
			"suicide_attempt":  nullable("boolean"),
			"escharotomy":      nullable("boolean"),
			"associated_trauma": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string"},
			},
			"burns": map[string]any{
				"type":  "array",
				"items": injury,
			},
		},
		"required": []string{
			"tbsa", "mechanism", "type_of_accident", "agent",
			"wildfire", "bonfire", "fireplace", "violence",
			"suicide_attempt", "escharotomy", "associated_trauma", "burns",
		},
	}
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

package contract

import (
	"encoding/json"
	"fmt"
)

// 严格解析-后-校验：先整体解析 JSON，再对照受控域逐字段检查。
// 任何缺失键、类型不符、越域枚举值都以字段路径形式汇入 ValidationError；
// 不做静默纠偏，不接受 best-effort 局部记录。

// ParseRecord 解析抽取后端的响应文本并严格校验。
// 返回错误二选一：ErrResponseInvalid（非法 JSON）或 *ValidationError（含违例路径）。
func ParseRecord(text []byte) (BurnsRecord, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(text, &obj); err != nil {
		return BurnsRecord{}, fmt.Errorf("parse: %w", ErrResponseInvalid)
	}
	v := &recordValidator{obj: obj}
	rec := v.record()
	if len(v.paths) > 0 {
		return BurnsRecord{}, &ValidationError{Paths: v.paths}
	}
	return rec, nil
}

type recordValidator struct {
	obj   map[string]json.RawMessage
	paths []string
}

func (v *recordValidator) fail(path string) { v.paths = append(v.paths, path) }

// field 取必需键的原始值；缺键记为违例并返回 nil。
// JSON null 以字面量 "null" 形式存在于 RawMessage 中，视为“已声明但无值”。
func (v *recordValidator) field(obj map[string]json.RawMessage, key, path string) json.RawMessage {
	raw, ok := obj[key]
	if !ok {
		v.fail(path)
		return nil
	}
	return raw
}

func isNull(raw json.RawMessage) bool { return string(raw) == "null" }

func (v *recordValidator) record() BurnsRecord {
	var rec BurnsRecord
	rec.TBSA = v.tbsa("tbsa")
	rec.Mechanism = v.mechanism("mechanism")
	rec.TypeOfAccident = v.accidentType("type_of_accident")
	rec.Agent = v.optString(v.obj, "agent", "agent")
	rec.Wildfire = v.optBool(v.obj, "wildfire", "wildfire")
	rec.Bonfire = v.optBool(v.obj, "bonfire", "bonfire")
	rec.Fireplace = v.optBool(v.obj, "fireplace", "fireplace")
	rec.Violence = v.optBool(v.obj, "violence", "violence")
	rec.SuicideAttempt = v.optBool(v.obj, "suicide_attempt", "suicide_attempt")
	rec.Escharotomy = v.optBool(v.obj, "escharotomy", "escharotomy")
	rec.AssociatedTrauma = v.stringList("associated_trauma")
	rec.Burns = v.burns("burns")
	return rec
}

func (v *recordValidator) tbsa(path string) *float64 {
	raw := v.field(v.obj, path, path)
	if raw == nil || isNull(raw) {
		return nil
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		v.fail(path)
		return nil
	}
	if f < 0 || f > 100 {
		v.fail(path)
		return nil
	}
	return &f
}

func (v *recordValidator) mechanism(path string) *Mechanism {
	raw := v.field(v.obj, path, path)
	if raw == nil || isNull(raw) {
		return nil
	}
	var m Mechanism
	if err := json.Unmarshal(raw, &m); err != nil || !m.Known() {
		v.fail(path)
		return nil
	}
	return &m
}

func (v *recordValidator) accidentType(path string) *AccidentType {
	raw := v.field(v.obj, path, path)
	if raw == nil || isNull(raw) {
		return nil
	}
	var a AccidentType
	if err := json.Unmarshal(raw, &a); err != nil || !a.Known() {
		v.fail(path)
		return nil
	}
	return &a
}

func (v *recordValidator) optString(obj map[string]json.RawMessage, key, path string) *string {
	raw := v.field(obj, key, path)
	if raw == nil || isNull(raw) {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		v.fail(path)
		return nil
	}
	if s == "" {
		return nil
	}
	return &s
}

func (v *recordValidator) optBool(obj map[string]json.RawMessage, key, path string) *bool {
	raw := v.field(obj, key, path)
	if raw == nil || isNull(raw) {
		return nil
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err != nil {
		v.fail(path)
		return nil
	}
	return &b
}

// stringList: 列表字段必须以数组形式声明；null 不等价于空列表。
func (v *recordValidator) stringList(path string) []string {
	raw := v.field(v.obj, path, path)
	if raw == nil {
		return []string{}
	}
	if isNull(raw) {
		v.fail(path)
		return []string{}
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		v.fail(path)
		return []string{}
	}
	if out == nil {
		out = []string{}
	}
	return out
}

func (v *recordValidator) burns(path string) []BurnInjury {
	raw := v.field(v.obj, path, path)
	if raw == nil {
		return []BurnInjury{}
	}
	if isNull(raw) {
		v.fail(path)
		return []BurnInjury{}
	}
	var elems []map[string]json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		v.fail(path)
		return []BurnInjury{}
	}
	out := make([]BurnInjury, 0, len(elems))
	for i, e := range elems {
		out = append(out, v.injury(e, fmt.Sprintf("%s[%d]", path, i)))
	}
	return out
}

func (v *recordValidator) injury(obj map[string]json.RawMessage, path string) BurnInjury {
	var inj BurnInjury

	// location 是分组键，不可为 null。
	raw := v.field(obj, "location", path+".location")
	if raw != nil {
		if isNull(raw) {
			v.fail(path + ".location")
		} else if err := json.Unmarshal(raw, &inj.Location); err != nil || !inj.Location.Known() {
			v.fail(path + ".location")
		}
	}

	if raw := v.field(obj, "laterality", path+".laterality"); raw != nil && !isNull(raw) {
		if err := json.Unmarshal(raw, &inj.Laterality); err != nil || !inj.Laterality.Known() {
			v.fail(path + ".laterality")
		}
	}

	if raw := v.field(obj, "depth", path+".depth"); raw != nil && !isNull(raw) {
		if err := json.Unmarshal(raw, &inj.Depth); err != nil || !inj.Depth.Known() {
			v.fail(path + ".depth")
		}
	}

	inj.Circumferential = v.optBool(obj, "circumferencial", path+".circumferencial")
	if s := v.optString(obj, "provenance", path+".provenance"); s != nil {
		inj.Provenance = *s
	}
	return inj
}

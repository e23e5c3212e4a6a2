package contract

// Concept: 术语富集结果 {code, preferredTerm}。缺失用 nil 表达，绝不作为错误态下传。
type Concept struct {
	SCTID string `json:"sctid"`
	Term  string `json:"term"`
}

// BurnInjury: 单处烧伤子实体。
// location 为合并分组键；depth 为严重度可比属性；circumferencial 为布尔标志；
// provenance 为支持该条抽取的原文片段（审计用，保留原文措辞）。
// JSON 键名沿用数据集既有拼写 circumferencial。
type BurnInjury struct {
	Location        Location   `json:"location"`
	Laterality      Laterality `json:"laterality,omitempty"`
	Depth           Depth      `json:"depth,omitempty"`
	Circumferential *bool      `json:"circumferencial,omitempty"`
	Provenance      string     `json:"provenance,omitempty"`
	// LocationCode: 富集阶段按身体结构层级查得的编码；查不到则省略。
	LocationCode *Concept `json:"location_code,omitempty"`
}

// Flag 返回 circumferencial 的合并语义值（缺失视为 false）。
func (b BurnInjury) Flag() bool {
	return b.Circumferential != nil && *b.Circumferential
}

// BurnsRecord: 单文档抽取结果（经严格校验后才存在）。
// 序列化约定：未提及的标量/布尔字段整体省略；列表字段空时输出 []。
type BurnsRecord struct {
	TBSA             *float64      `json:"tbsa,omitempty"`
	Mechanism        *Mechanism    `json:"mechanism,omitempty"`
	TypeOfAccident   *AccidentType `json:"type_of_accident,omitempty"`
	Agent            *string       `json:"agent,omitempty"`
	AgentCode        *Concept      `json:"agent_code,omitempty"`
	Wildfire         *bool         `json:"wildfire,omitempty"`
	Bonfire          *bool         `json:"bonfire,omitempty"`
	Fireplace        *bool         `json:"fireplace,omitempty"`
	Violence         *bool         `json:"violence,omitempty"`
	SuicideAttempt   *bool         `json:"suicide_attempt,omitempty"`
	Escharotomy      *bool         `json:"escharotomy,omitempty"`
	AssociatedTrauma []string      `json:"associated_trauma"`
	Burns            []BurnInjury  `json:"burns"`
}

// Artifact: 落盘工件 = 记录 + 文档ID（ID 由编排层补入，不由模型产出）。
type Artifact struct {
	ID string `json:"ID"`
	BurnsRecord
}

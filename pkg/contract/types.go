package contract

// DocID: 逻辑文档ID（文件名词干，数字串；前两位兼作两位年份）。
type DocID string

// Document: 待处理源文档（读入后不可变）。
type Document struct {
	ID   DocID
	Path string
	Text string
}

// YearPrefix 返回 ID 的前两位（仅用于年份过滤；不足两位返回空串）。
func (d DocID) YearPrefix() string {
	if len(d) < 2 {
		return ""
	}
	return string(d[:2])
}

// Mechanism: 烧伤机制受控词表（封闭枚举，含显式 unknown 成员）。
type Mechanism string

const (
	MechanismHeat       Mechanism = "Heat"
	MechanismElectrical Mechanism = "Electrical discharge"
	MechanismFriction   Mechanism = "Friction"
	MechanismChemicals  Mechanism = "Chemicals"
	MechanismRadiation  Mechanism = "Radiation"
	MechanismUnknown    Mechanism = "unknown or unspecified"
)

// Mechanisms: 全量域（顺序稳定，供 schema 生成与校验共用）。
var Mechanisms = []Mechanism{
	MechanismHeat, MechanismElectrical, MechanismFriction,
	MechanismChemicals, MechanismRadiation, MechanismUnknown,
}

func (m Mechanism) Known() bool {
	for _, v := range Mechanisms {
		if m == v {
			return true
		}
	}
	return false
}

// AccidentType: 事故类型受控词表。
type AccidentType string

const (
	AccidentDomestic  AccidentType = "domestic"
	AccidentWorkplace AccidentType = "workplace"
	AccidentOther     AccidentType = "other"
)

var AccidentTypes = []AccidentType{AccidentDomestic, AccidentWorkplace, AccidentOther}

func (a AccidentType) Known() bool {
	for _, v := range AccidentTypes {
		if a == v {
			return true
		}
	}
	return false
}

// Location: 解剖部位受控词表（合并分组键）。
type Location string

const (
	LocationHead           Location = "head"
	LocationNeck           Location = "neck"
	LocationFace           Location = "face"
	LocationUpperExtremity Location = "upper extremity"
	LocationHand           Location = "hand"
	LocationTrunk          Location = "trunk"
	LocationThorax         Location = "thorax"
	LocationAbdomen        Location = "abdomen"
	LocationBack           Location = "back of trunk"
	LocationPerineum       Location = "perineum"
	LocationLowerExtremity Location = "lower extremity"
	LocationFoot           Location = "foot"
)

var Locations = []Location{
	LocationHead, LocationNeck, LocationFace, LocationUpperExtremity,
	LocationHand, LocationTrunk, LocationThorax, LocationAbdomen,
	LocationBack, LocationPerineum, LocationLowerExtremity, LocationFoot,
}

func (l Location) Known() bool {
	return l.ordinal() >= 0
}

// ordinal 返回部位在域中的序（未知为 -1）；用于合并输出的稳定排序。
func (l Location) ordinal() int {
	for i, v := range Locations {
		if l == v {
			return i
		}
	}
	return -1
}

// Ordinal 对外暴露稳定序。
func (l Location) Ordinal() int { return l.ordinal() }

// Depth: 烧伤深度受控词表（序数严重度刻度）。
type Depth string

const (
	DepthFirst         Depth = "1st_degree"
	DepthSecondPartial Depth = "2nd_degree_partial"
	DepthSecondFull    Depth = "2nd_degree_full"
	DepthThird         Depth = "3rd_degree"
	DepthFourth        Depth = "4th_degree"
	DepthUnspecified   Depth = "unspecified"
)

var Depths = []Depth{
	DepthFirst, DepthSecondPartial, DepthSecondFull,
	DepthThird, DepthFourth, DepthUnspecified,
}

func (d Depth) Known() bool {
	for _, v := range Depths {
		if d == v {
			return true
		}
	}
	return false
}

// SeverityRank 把序数深度映射为整数严重度；unspecified（含空值）恒为最低 0。
func (d Depth) SeverityRank() int {
	switch d {
	case DepthFirst:
		return 1
	case DepthSecondPartial:
		return 2
	case DepthSecondFull:
		return 3
	case DepthThird:
		return 4
	case DepthFourth:
		return 5
	default:
		return 0
	}
}

// Laterality: 侧别受控词表。
type Laterality string

const (
	LateralityLeft        Laterality = "left"
	LateralityRight       Laterality = "right"
	LateralityBilateral   Laterality = "bilateral"
	LateralityUnspecified Laterality = "unspecified"
)

var Lateralities = []Laterality{
	LateralityLeft, LateralityRight, LateralityBilateral, LateralityUnspecified,
}

func (l Laterality) Known() bool {
	for _, v := range Lateralities {
		if l == v {
			return true
		}
	}
	return false
}

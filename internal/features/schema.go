// Package features defines the ordered column schemas shared by the input
// spreadsheet, both regressors and the blended output, and validates uploaded
// tables against them before any prediction runs.
package features

import "fmt"

// Feature column names, in the order the regressors were trained on.
const (
	FeedMassFlow         = "原料质量流量t/h"
	FeedAromatics        = "原料芳烃含量wt%"
	FeedNickel           = "原料镍含量ppmwt"
	FeedVanadium         = "原料钒含量ppmwt"
	FeedCarbonResidue    = "原料残炭含量 wt%"
	FeedPreheatTemp      = "原料预热温度℃"
	ReactorPressure      = "反应压力bar_g"
	ReactorTemp          = "反应温度℃"
	CatalystMicroActive  = "催化剂微反活性t%"
	FreshCatalystActive  = "新鲜催化剂活性 wt%"
	ReactorCatalystStock = "反应器密相催化剂藏量kg"
	RegeneratorBedTemp   = "再生器床温℃"
	FeedDensity          = "原料比重g/cm3"
	FeedNitrogen         = "原料氮含量wt%"
	FeedSulfur           = "原料硫含量wt%"
	CatalystMakeupRate   = "催化剂补充速率tonne/d"
	LiftSteamRate        = "提升蒸汽注入量tonne/hr"
	AtomizingSteamRate   = "雾化蒸汽注入量tonne/hr"
	StrippingSteamRate   = "汽提蒸汽注入量tonne/hr"
)

// Target column names, in the order both regressors emit them.
const (
	GasolineYield     = "汽油收率wt%"
	GasolineAromatics = "汽油芳烃含量vol %"
	GasolineOlefins   = "汽油烯烃含量vol%"
	GasolineRON       = "汽油RON"
	GasolineEndPoint  = "汽油干点℃"
	LPGYield          = "液化气收率wt%"
	LPGPropylene      = "液化气丙烯含量wt%"
	LPGC5Ratio        = "液化气C5体积比 vol%"
	CO2EmissionRate   = "烟气中CO2排放量t/h"
	DieselD86T95      = "柴油ASTM D8695% ℃"
)

// Schema is an ordered list of numeric column names.
type Schema struct {
	names []string
	index map[string]int
}

// NewSchema builds a schema from names. Names must be unique.
func NewSchema(names ...string) (Schema, error) {
	s := Schema{
		names: make([]string, len(names)),
		index: make(map[string]int, len(names)),
	}
	for i, n := range names {
		if _, dup := s.index[n]; dup {
			return Schema{}, fmt.Errorf("duplicate column %q in schema", n)
		}
		s.names[i] = n
		s.index[n] = i
	}
	return s, nil
}

// MustSchema is NewSchema for package-level schemas.
func MustSchema(names ...string) Schema {
	s, err := NewSchema(names...)
	if err != nil {
		panic(err)
	}
	return s
}

// Names returns a copy of the column names in order.
func (s Schema) Names() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

func (s Schema) Len() int { return len(s.names) }

// Index returns the position of name, or -1.
func (s Schema) Index(name string) int {
	if i, ok := s.index[name]; ok {
		return i
	}
	return -1
}

func (s Schema) Has(name string) bool {
	_, ok := s.index[name]
	return ok
}

// Equal reports whether names matches the schema exactly, order included.
func (s Schema) Equal(names []string) bool {
	if len(names) != len(s.names) {
		return false
	}
	for i, n := range names {
		if s.names[i] != n {
			return false
		}
	}
	return true
}

// FeatureSchema is the input contract of both regressors.
var FeatureSchema = MustSchema(
	FeedMassFlow,
	FeedAromatics,
	FeedNickel,
	FeedVanadium,
	FeedCarbonResidue,
	FeedPreheatTemp,
	ReactorPressure,
	ReactorTemp,
	CatalystMicroActive,
	FreshCatalystActive,
	ReactorCatalystStock,
	RegeneratorBedTemp,
	FeedDensity,
	FeedNitrogen,
	FeedSulfur,
	CatalystMakeupRate,
	LiftSteamRate,
	AtomizingSteamRate,
	StrippingSteamRate,
)

// TargetSchema is the output contract of both regressors and of the blend.
var TargetSchema = MustSchema(
	GasolineYield,
	GasolineAromatics,
	GasolineOlefins,
	GasolineRON,
	GasolineEndPoint,
	LPGYield,
	LPGPropylene,
	LPGC5Ratio,
	CO2EmissionRate,
	DieselD86T95,
)

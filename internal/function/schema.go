package function

import "strconv"

// ParamKind describes the form control rendered for a parameter.
type ParamKind string

const (
	ParamNumber ParamKind = "number"
	ParamToggle ParamKind = "toggle"
)

// Param describes one configurable option of a function.
type Param struct {
	Key     string    `json:"key" yaml:"key"`
	Label   string    `json:"label" yaml:"label"`
	Kind    ParamKind `json:"kind" yaml:"kind"`
	Min     float64   `json:"min,omitempty" yaml:"min,omitempty"`
	Max     float64   `json:"max,omitempty" yaml:"max,omitempty"`
	Step    float64   `json:"step,omitempty" yaml:"step,omitempty"`
	Integer bool      `json:"integer,omitempty" yaml:"integer,omitempty"`
	// Default is the number default for ParamNumber; for ParamToggle any
	// non-zero value means checked.
	Default float64 `json:"default" yaml:"default"`
}

// Checked reports the default state of a toggle.
func (p Param) Checked() bool {
	return p.Kind == ParamToggle && p.Default != 0
}

// DefaultString formats the default the way the form input shows it.
func (p Param) DefaultString() string {
	if p.Kind == ParamToggle {
		return strconv.FormatBool(p.Checked())
	}
	return formatNumber(p.Default)
}

// Feedback is the message shown when a value falls outside the bounds.
func (p Param) Feedback() string {
	kind := "a number"
	if p.Integer {
		kind = "an integer"
	}
	msg := "Value must be " + kind + " between " + formatNumber(p.Min) + " and " + formatNumber(p.Max)
	if !p.Integer && p.Step > 0 {
		msg += " (with step of " + formatNumber(p.Step) + ")"
	}
	return msg
}

// Schema is the option form of one function.
type Schema struct {
	Function Function `json:"function" yaml:"function"`
	Label    string   `json:"label" yaml:"label"`
	Params   []Param  `json:"params" yaml:"params"`
}

func (s Schema) Empty() bool {
	return len(s.Params) == 0
}

func (s Schema) Param(key string) (Param, bool) {
	for _, p := range s.Params {
		if p.Key == key {
			return p, true
		}
	}
	return Param{}, false
}

func sizeParam(label string, def float64) Param {
	return Param{Key: "size", Label: label, Kind: ParamNumber, Min: 1, Max: 200, Step: 1, Integer: true, Default: def}
}

func toggleParam(key, label string, checked bool) Param {
	p := Param{Key: key, Label: label, Kind: ParamToggle}
	if checked {
		p.Default = 1
	}
	return p
}

func shapesParams() []Param {
	return []Param{
		toggleParam("gif", "Animated", true),
		{Key: "density", Label: "Shape amount", Kind: ParamNumber, Min: 1, Max: 20000, Step: 1, Integer: true, Default: 10000},
		{Key: "block", Label: "Size of shape", Kind: ParamNumber, Min: 1, Max: 50, Step: 1, Integer: true, Default: 10},
	}
}

// ParamsFor returns the parameter definitions of fn. Functions without
// configurable options return nil.
func ParamsFor(fn Function) []Param {
	switch fn {
	case Lego:
		return []Param{sizeParam("Brick amount", 40)}
	case Minecraft:
		return []Param{sizeParam("Block amount", 70)}
	case Paint:
		return []Param{
			{Key: "radius", Label: "Radius of paint particle", Kind: ParamNumber, Min: 1, Max: 20, Step: 1, Integer: true, Default: 5},
			{Key: "intensity", Label: "Intensity", Kind: ParamNumber, Min: 1, Max: 100, Step: 0.01, Default: 60},
		}
	case Braille:
		return []Param{
			toggleParam("invert", "Inverted", false),
			{Key: "threshold", Label: "Threshold", Kind: ParamNumber, Min: 0, Max: 255, Step: 1, Integer: true, Default: 90},
			sizeParam("Character count", 130),
		}
	case ASCII:
		return []Param{
			toggleParam("invert", "Inverted", false),
			sizeParam("Character count", 130),
		}
	case Matrix:
		return []Param{
			toggleParam("num_only", "Numbers only", false),
			sizeParam("Character count", 80),
		}
	case Lines, Balls, Squares:
		return shapesParams()
	default:
		return nil
	}
}

func SchemaFor(fn Function) Schema {
	return Schema{
		Function: fn,
		Label:    fn.Label(),
		Params:   ParamsFor(fn),
	}
}

func Schemas() []Schema {
	out := make([]Schema, 0, len(all))
	for _, fn := range all {
		out = append(out, SchemaFor(fn))
	}
	return out
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

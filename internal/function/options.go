package function

import (
	"fmt"
	"math"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

type ValueKind int

const (
	KindText ValueKind = iota
	KindNumber
	KindBool
)

// Value is a single option value: a number, a boolean or a raw string.
type Value struct {
	kind ValueKind
	num  float64
	flag bool
	text string
}

func NumberValue(v float64) Value { return Value{kind: KindNumber, num: v} }
func BoolValue(v bool) Value      { return Value{kind: KindBool, flag: v} }
func TextValue(v string) Value    { return Value{kind: KindText, text: v} }

func (v Value) Kind() ValueKind { return v.kind }

func (v Value) Number() (float64, bool) {
	return v.num, v.kind == KindNumber
}

func (v Value) Bool() (bool, bool) {
	return v.flag, v.kind == KindBool
}

// String is the query-string encoding of the value.
func (v Value) String() string {
	switch v.kind {
	case KindNumber:
		return formatNumber(v.num)
	case KindBool:
		return strconv.FormatBool(v.flag)
	default:
		return v.text
	}
}

// Options maps an option key to its value.
type Options map[string]Value

func (o Options) Clone() Options {
	out := make(Options, len(o))
	for k, v := range o {
		out[k] = v
	}
	return out
}

func (o Options) Keys() []string {
	keys := make([]string, 0, len(o))
	for k := range o {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (o Options) Query() url.Values {
	q := make(url.Values, len(o))
	for k, v := range o {
		q.Set(k, v.String())
	}
	return q
}

// Encode returns the URL-encoded query string, sorted by key.
func (o Options) Encode() string {
	return o.Query().Encode()
}

// Raw returns the options as plain strings, the form used in queue payloads.
func (o Options) Raw() map[string]string {
	out := make(map[string]string, len(o))
	for k, v := range o {
		out[k] = v.String()
	}
	return out
}

type InputKind string

const (
	InputCheckbox InputKind = "checkbox"
	InputNumber   InputKind = "number"
	InputText     InputKind = "text"
)

// Input is one element of an options form as submitted by the user.
type Input struct {
	ID      string
	Kind    InputKind
	Value   string
	Checked bool
}

// Coerce converts a form input into an option value. Checkboxes become
// booleans, number inputs become numbers when they parse and keep their raw
// text otherwise.
func Coerce(in Input) Value {
	switch in.Kind {
	case InputCheckbox:
		return BoolValue(in.Checked)
	case InputNumber:
		raw := strings.TrimSpace(in.Value)
		if f, err := strconv.ParseFloat(raw, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
			return NumberValue(f)
		}
		return TextValue(in.Value)
	default:
		return TextValue(in.Value)
	}
}

// OptionError reports an option that does not satisfy the function schema.
type OptionError struct {
	Key     string
	Message string
}

func (e *OptionError) Error() string {
	return fmt.Sprintf("option %s: %s", e.Key, e.Message)
}

// Build coerces inputs and validates them against the schema. Every input is
// keyed by its ID; inputs with an empty ID are skipped.
func Build(schema Schema, inputs []Input) (Options, error) {
	out := make(Options, len(inputs))
	for _, in := range inputs {
		id := strings.TrimSpace(in.ID)
		if id == "" {
			continue
		}
		out[id] = Coerce(in)
	}
	if err := Validate(schema, out); err != nil {
		return nil, err
	}
	return out, nil
}

func Validate(schema Schema, opts Options) error {
	for _, key := range opts.Keys() {
		value := opts[key]
		param, ok := schema.Param(key)
		if !ok {
			return &OptionError{Key: key, Message: fmt.Sprintf("not an option of %s", schema.Function)}
		}

		switch param.Kind {
		case ParamToggle:
			if _, ok := value.Bool(); !ok {
				return &OptionError{Key: key, Message: "must be a checkbox value"}
			}
		case ParamNumber:
			n, ok := value.Number()
			if !ok {
				return &OptionError{Key: key, Message: param.Feedback()}
			}
			if n < param.Min || n > param.Max {
				return &OptionError{Key: key, Message: param.Feedback()}
			}
			if param.Integer && n != math.Trunc(n) {
				return &OptionError{Key: key, Message: param.Feedback()}
			}
			if !param.Integer && param.Step > 0 && !onStep(n, param.Min, param.Step) {
				return &OptionError{Key: key, Message: param.Feedback()}
			}
		}
	}
	return nil
}

func onStep(v, min, step float64) bool {
	r := (v - min) / step
	return math.Abs(r-math.Round(r)) < 1e-6
}

// ParseAssignments splits key=value pairs such as the CLI --opt flags.
func ParseAssignments(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid option %q: expected key=value", pair)
		}
		out[key] = strings.TrimSpace(value)
	}
	return out, nil
}

// InputsFor turns raw key/value pairs into form inputs, choosing the input
// kind from the schema. Keys the schema does not know become text inputs so
// validation reports them.
func InputsFor(schema Schema, raw map[string]string) ([]Input, error) {
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	inputs := make([]Input, 0, len(raw))
	for _, key := range keys {
		value := raw[key]
		param, ok := schema.Param(key)
		switch {
		case !ok:
			inputs = append(inputs, Input{ID: key, Kind: InputText, Value: value})
		case param.Kind == ParamToggle:
			checked, err := parseToggle(value)
			if err != nil {
				return nil, &OptionError{Key: key, Message: err.Error()}
			}
			inputs = append(inputs, Input{ID: key, Kind: InputCheckbox, Checked: checked})
		default:
			inputs = append(inputs, Input{ID: key, Kind: InputNumber, Value: value})
		}
	}
	return inputs, nil
}

func parseToggle(value string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "on", "yes":
		return true, nil
	case "off", "no":
		return false, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("expected a boolean, got %q", value)
	}
	return b, nil
}

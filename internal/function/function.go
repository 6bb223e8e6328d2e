package function

import (
	"errors"
	"fmt"
	"strings"
)

// Function names a transformation endpoint on the stylize backend.
type Function string

const (
	Lego       Function = "lego"
	Minecraft  Function = "minecraft"
	Paint      Function = "paint"
	Frost      Function = "frost"
	Braille    Function = "braille"
	ASCII      Function = "ascii"
	Matrix     Function = "matrix"
	Lines      Function = "lines"
	Balls      Function = "balls"
	Squares    Function = "squares"
	BlackWhite Function = "black_white"
	Edge       Function = "edge"
	Emboss     Function = "emboss"
	HueRotate  Function = "hue_rotate"
)

// Placeholder is the label of the empty select option.
const Placeholder = "Select a function"

var ErrUnknownFunction = errors.New("unknown function")

var all = []Function{
	Lego,
	Minecraft,
	Paint,
	Frost,
	Braille,
	ASCII,
	Matrix,
	Lines,
	Balls,
	Squares,
	BlackWhite,
	Edge,
	Emboss,
	HueRotate,
}

func All() []Function {
	out := make([]Function, len(all))
	copy(out, all)
	return out
}

// Parse resolves a select value to a Function. The placeholder and the empty
// string resolve to ("", false, nil).
func Parse(value string) (Function, bool, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" || value == strings.ToLower(Placeholder) {
		return "", false, nil
	}
	for _, fn := range all {
		if string(fn) == value {
			return fn, true, nil
		}
	}
	return "", false, fmt.Errorf("%w: %q", ErrUnknownFunction, value)
}

func (f Function) Valid() bool {
	for _, fn := range all {
		if fn == f {
			return true
		}
	}
	return false
}

// Path is the request path of the function endpoint.
func (f Function) Path() string {
	return "/" + string(f)
}

func (f Function) Label() string {
	switch f {
	case Lego:
		return "Lego"
	case Minecraft:
		return "Minecraft"
	case Paint:
		return "Paint"
	case Frost:
		return "Frost"
	case Braille:
		return "Braille"
	case ASCII:
		return "ASCII"
	case Matrix:
		return "Matrix"
	case Lines:
		return "Lines"
	case Balls:
		return "Balls"
	case Squares:
		return "Squares"
	case BlackWhite:
		return "Black & White"
	case Edge:
		return "Edge detect"
	case Emboss:
		return "Emboss"
	case HueRotate:
		return "Hue rotate"
	default:
		return string(f)
	}
}

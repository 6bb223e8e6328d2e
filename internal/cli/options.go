package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/dunamismax/stylize/internal/function"
	"gopkg.in/yaml.v3"
)

// optionsFile is the --options-file format:
//
//	function: paint
//	options:
//	  radius: 4
//	  intensity: 12.5
type optionsFile struct {
	Function string         `yaml:"function"`
	Options  map[string]any `yaml:"options"`
}

type optionFlags struct {
	function string
	file     string
	pairs    []string
}

// resolve merges the options file with --opt pairs. Pairs win over the file
// and --function wins over the file's function.
func (f optionFlags) resolve() (string, map[string]string, error) {
	fn := strings.TrimSpace(f.function)
	raw := make(map[string]string)

	if f.file != "" {
		data, err := os.ReadFile(f.file)
		if err != nil {
			return "", nil, fmt.Errorf("read options file: %w", err)
		}
		var doc optionsFile
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return "", nil, fmt.Errorf("parse options file %s: %w", f.file, err)
		}
		if fn == "" {
			fn = doc.Function
		}
		for k, v := range doc.Options {
			raw[k] = fmt.Sprint(v)
		}
	}

	pairs, err := function.ParseAssignments(f.pairs)
	if err != nil {
		return "", nil, err
	}
	for k, v := range pairs {
		raw[k] = v
	}

	if fn == "" {
		return "", nil, fmt.Errorf("a function is required (--function or options file)")
	}
	return fn, raw, nil
}

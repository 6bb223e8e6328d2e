package web

import (
	"html/template"

	"github.com/dunamismax/stylize/internal/function"
)

var templateFuncs = template.FuncMap{
	"valueFor": func(p function.Param, opts map[string]string) string {
		if v, ok := opts[p.Key]; ok {
			return v
		}
		return p.DefaultString()
	},
	"checkedFor": func(p function.Param, opts map[string]string) bool {
		if v, ok := opts[p.Key]; ok {
			return v == "true"
		}
		return p.Checked()
	},
	"isToggle": func(p function.Param) bool {
		return p.Kind == function.ParamToggle
	},
}

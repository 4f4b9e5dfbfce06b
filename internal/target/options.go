package target

import (
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/gocty"

	"github.com/specialistvlad/vxgrid/internal/status"
)

// Options are the per-target settings from configuration, keyed by name.
type Options map[string]cty.Value

// Int returns option name as an int, or def when it is not set.
func (o Options) Int(name string, def int) (int, error) {
	v, ok := o[name]
	if !ok || v.IsNull() {
		return def, nil
	}
	if !v.Type().Equals(cty.Number) {
		return 0, status.Errorf(status.InvalidType, "option %s is %s, want number", name, v.Type().FriendlyName())
	}
	if !v.AsBigFloat().IsInt() {
		return 0, status.Errorf(status.InvalidValue, "option %s is not a whole number", name)
	}
	var n int
	if err := gocty.FromCtyValue(v, &n); err != nil {
		return 0, status.Wrap(status.InvalidValue, err, "option "+name)
	}
	return n, nil
}

// Bool returns option name as a bool, or def when it is not set.
func (o Options) Bool(name string, def bool) (bool, error) {
	v, ok := o[name]
	if !ok || v.IsNull() {
		return def, nil
	}
	if !v.Type().Equals(cty.Bool) {
		return false, status.Errorf(status.InvalidType, "option %s is %s, want bool", name, v.Type().FriendlyName())
	}
	return v.True(), nil
}

// Unknown returns the option names not in known.
func (o Options) Unknown(known ...string) []string {
	var out []string
	for name := range o {
		found := false
		for _, k := range known {
			if k == name {
				found = true
				break
			}
		}
		if !found {
			out = append(out, name)
		}
	}
	return out
}

package dao

// Parameter narrows a List call.
type Parameter struct {
	Name  string
	Value interface{}
}

// NewParameter creates a parameter; several values match any of them.
func NewParameter(name string, values ...string) *Parameter {
	if len(values) == 1 {
		return &Parameter{Name: name, Value: values[0]}
	}
	return &Parameter{Name: name, Value: values}
}

// Matches reports whether actual satisfies the parameter value.
func (p *Parameter) Matches(actual string) bool {
	switch expected := p.Value.(type) {
	case string:
		return expected == actual
	case []string:
		for _, candidate := range expected {
			if candidate == actual {
				return true
			}
		}
		return false
	}
	return true
}

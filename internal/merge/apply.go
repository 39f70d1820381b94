package merge

// applyFields resolves every scalar field and assigns the result to
// base.Values. It returns one entry per field and the changed values keyed
// by column. Choices must already have passed Plan.check.
func applyFields(schema *Schema, base, other *Record, choices map[string]ScalarChoice, overrides map[string]any) ([]AppliedField, map[string]any) {
	applied := make([]AppliedField, 0, len(schema.Fields))
	changes := map[string]any{}

	for _, f := range schema.Fields {
		old := base.Values[f.Name]
		side := SideBase
		value := old

		if choice, ok := choices[f.Name]; ok {
			side = choice.Side
			switch choice.Side {
			case SideOther:
				value = other.Values[f.Name]
			case SideCombine:
				value = combineText(old, other.Values[f.Name])
			case SideOverride:
				value = overrides[f.Name]
			}
		}

		changed := value != old
		if changed {
			base.Values[f.Name] = value
			changes[f.column()] = value
		}
		applied = append(applied, AppliedField{Field: f.Name, Side: side, Old: old, New: value, Changed: changed})
	}
	return applied, changes
}

// combineText joins two text values with a newline, keeping base alone when
// other adds nothing.
func combineText(base, other any) any {
	b, o := asString(base), asString(other)
	switch {
	case o == "" || o == b:
		return base
	case b == "":
		return other
	}
	return b + "\n" + o
}

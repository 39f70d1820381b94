package merge

// DetectConflicts returns the fields, in the order given, whose values
// differ between base and other.
func DetectConflicts(base, other *Record, fields []string) []string {
	var conflicts []string
	for _, name := range fields {
		if base.Values[name] != other.Values[name] {
			conflicts = append(conflicts, name)
		}
	}
	return conflicts
}

// unresolved returns conflicts that have no entry in choices.
func unresolved(conflicts []string, choices map[string]ScalarChoice) []string {
	var out []string
	for _, name := range conflicts {
		if _, ok := choices[name]; !ok {
			out = append(out, name)
		}
	}
	return out
}

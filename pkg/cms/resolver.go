package cms

// mergeValues layers a split's sparse overrides over the default values of
// one field. Languages present in the override replace the default for that
// language; languages absent from the override keep the default. Neither
// input map is mutated.
func mergeValues(defaults, overrides map[string]*string) map[string]*string {
	merged := make(map[string]*string, len(defaults)+len(overrides))
	for lang, v := range defaults {
		merged[lang] = v
	}
	for lang, v := range overrides {
		merged[lang] = v
	}
	return merged
}

// diffAgainstDefault computes the sparse split row that results from
// applying submitted language values on top of an existing split row.
// Submitted languages whose value differs from the default are kept;
// submitted languages matching the default are dropped, including any
// previously stored override for that language. Unsubmitted languages keep
// their existing override.
//
// An empty result means the split row should not exist (delete-on-collapse).
func diffAgainstDefault(existing, submitted, defaults map[string]*string) map[string]*string {
	result := make(map[string]*string, len(existing)+len(submitted))
	for lang, v := range existing {
		result[lang] = v
	}

	for lang, v := range submitted {
		if valueEqual(v, defaults[lang]) {
			delete(result, lang)
		} else {
			result[lang] = v
		}
	}

	return result
}

func valueEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

package cms

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func strPtr(s string) *string { return &s }

func TestMergeValues(t *testing.T) {
	t.Run("override replaces only its languages", func(t *testing.T) {
		defaults := map[string]*string{"en": strPtr("Hello"), "de": strPtr("Hallo")}
		overrides := map[string]*string{"en": strPtr("Hi")}

		merged := mergeValues(defaults, overrides)

		assert.Equal(t, "Hi", *merged["en"])
		assert.Equal(t, "Hallo", *merged["de"])
	})

	t.Run("nil override means explicitly empty", func(t *testing.T) {
		defaults := map[string]*string{"en": strPtr("Hello")}
		overrides := map[string]*string{"en": nil}

		merged := mergeValues(defaults, overrides)

		assert.Contains(t, merged, "en")
		assert.Nil(t, merged["en"])
	})

	t.Run("does not mutate inputs", func(t *testing.T) {
		defaults := map[string]*string{"en": strPtr("Hello")}
		overrides := map[string]*string{"en": strPtr("Hi")}

		mergeValues(defaults, overrides)

		assert.Equal(t, "Hello", *defaults["en"])
	})

	t.Run("no overrides yields defaults", func(t *testing.T) {
		defaults := map[string]*string{"en": strPtr("Hello")}
		assert.Equal(t, defaults, mergeValues(defaults, nil))
	})
}

func TestDiffAgainstDefault(t *testing.T) {
	defaults := map[string]*string{"en": strPtr("Hello"), "de": strPtr("Hallo")}

	t.Run("keeps only differing languages", func(t *testing.T) {
		submitted := map[string]*string{"en": strPtr("Hi"), "de": strPtr("Hallo")}

		diff := diffAgainstDefault(nil, submitted, defaults)

		assert.Len(t, diff, 1)
		assert.Equal(t, "Hi", *diff["en"])
	})

	t.Run("submitting the default removes an existing override", func(t *testing.T) {
		existing := map[string]*string{"en": strPtr("Hi")}
		submitted := map[string]*string{"en": strPtr("Hello")}

		diff := diffAgainstDefault(existing, submitted, defaults)

		assert.Empty(t, diff)
	})

	t.Run("unsubmitted languages keep their override", func(t *testing.T) {
		existing := map[string]*string{"en": strPtr("Hi"), "de": strPtr("Servus")}
		submitted := map[string]*string{"en": strPtr("Hello")}

		diff := diffAgainstDefault(existing, submitted, defaults)

		assert.Len(t, diff, 1)
		assert.Equal(t, "Servus", *diff["de"])
	})

	t.Run("nil differs from a set default", func(t *testing.T) {
		submitted := map[string]*string{"en": nil}

		diff := diffAgainstDefault(nil, submitted, defaults)

		assert.Contains(t, diff, "en")
		assert.Nil(t, diff["en"])
	})
}

// Resolving after a save round-trips: layering the stored diff over the
// defaults reproduces exactly what was submitted, and a submission equal to
// the defaults leaves no stored diff at all.
func TestDiffMergeRoundTrip(t *testing.T) {
	defaults := map[string]*string{"en": strPtr("Hello"), "de": strPtr("Hallo"), "fr": strPtr("Bonjour")}

	t.Run("submitted values survive the round trip", func(t *testing.T) {
		submitted := map[string]*string{"en": strPtr("Hi"), "de": strPtr("Hallo"), "fr": nil}

		diff := diffAgainstDefault(nil, submitted, defaults)
		merged := mergeValues(defaults, diff)

		for lang, want := range submitted {
			got := merged[lang]
			if want == nil {
				assert.Nil(t, got, lang)
			} else {
				assert.Equal(t, *want, *got, lang)
			}
		}
	})

	t.Run("all-default submission collapses to nothing", func(t *testing.T) {
		existing := map[string]*string{"en": strPtr("Hi"), "de": strPtr("Servus")}

		diff := diffAgainstDefault(existing, defaults, defaults)

		assert.Empty(t, diff)
	})
}

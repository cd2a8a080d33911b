package files

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAncestorPaths(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		expected []string
	}{
		{"three segments", "/a/b/c", []string{"/a", "/a/b"}},
		{"two segments", "/a/b", []string{"/a"}},
		{"single segment", "/a", nil},
		{"empty segments discarded", "//a///b/c", []string{"/a", "/a/b"}},
		{"trailing slash", "/a/b/", []string{"/a"}},
		{"root", "/", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ancestorPaths(tt.path))
		})
	}
}

func TestNormalizePath(t *testing.T) {
	assert.Equal(t, "/a/b/c", normalizePath("a/b/c/"))
	assert.Equal(t, "/a/b", normalizePath("//a//b"))
	assert.Equal(t, "", normalizePath("/"))
}

func TestGrantsPermission(t *testing.T) {
	entry := &Entry{UserCanEdit: true, UserCanDelete: false}

	assert.True(t, grantsPermission(entry, ActionEdit))
	assert.False(t, grantsPermission(entry, ActionDelete))
	assert.False(t, grantsPermission(nil, ActionEdit))
}

func TestPermittedAt_AncestorGrantsCreate(t *testing.T) {
	// /a grants edit, the immediate parent /a/b denies it: creation at
	// /a/b/c.txt must still succeed because permission is OR'd across all
	// ancestors.
	records := []*Entry{
		{Name: "/a", ContentType: ContentTypeFolder, UserCanEdit: true},
		{Name: "/a/b", ContentType: ContentTypeFolder, UserCanEdit: false},
	}

	assert.True(t, permittedAt(records, "/a/b/c.txt", ActionEdit, nil))
}

func TestPermittedAt_NoGrantFails(t *testing.T) {
	records := []*Entry{
		{Name: "/a", ContentType: ContentTypeFolder, UserCanEdit: false},
		{Name: "/a/b", ContentType: ContentTypeFolder, UserCanEdit: false},
	}

	assert.False(t, permittedAt(records, "/a/b/c.txt", ActionEdit, nil))
	assert.False(t, permittedAt(records, "/x/y.txt", ActionEdit, nil))
}

func TestPermittedAt_TargetOwnFlag(t *testing.T) {
	// No ancestor grants delete, but the target's own flag does (edit/delete
	// of an existing entry).
	records := []*Entry{
		{Name: "/a", ContentType: ContentTypeFolder, UserCanDelete: false},
	}
	target := &Entry{Name: "/a/f.txt", UserCanDelete: true}

	assert.True(t, permittedAt(records, "/a/f.txt", ActionDelete, target))

	target.UserCanDelete = false
	assert.False(t, permittedAt(records, "/a/f.txt", ActionDelete, target))
}

func TestPermittedAt_MechanismsAgree(t *testing.T) {
	// The eager fan-out copies a folder's flags onto descendants; the live
	// walk derives the same answer from the ancestor record. Simulate both
	// and check they agree for every descendant.
	folder := &Entry{Name: "/docs", ContentType: ContentTypeFolder, UserCanDelete: true}
	descendants := []*Entry{
		{Name: "/docs/2026", ContentType: ContentTypeFolder},
		{Name: "/docs/2026/q1.pdf", ContentType: ContentTypeFile},
		{Name: "/docs/readme.txt", ContentType: ContentTypeText},
	}

	records := append([]*Entry{folder}, descendants...)

	for _, d := range descendants {
		// Live walk answer, flags untouched
		liveWalk := permittedAt(records, d.Name, ActionDelete, d)

		// Fan-out answer: the copied flag alone
		copied := *d
		copied.UserCanDelete = folder.UserCanDelete
		fanOut := grantsPermission(&copied, ActionDelete)

		assert.Equal(t, fanOut, liveWalk, "mechanisms disagree for %s", d.Name)
	}
}

// Package cms implements the headless content layer: pages, fields,
// localized values, and project-wide A/B splits.
//
// Content resolution layers a split's sparse overrides over the default
// values per field and language. Split rows store only the languages that
// differ from the default; saving a split value back to the default value
// shrinks the row, and a row with no remaining differences is deleted.
//
// Client sites in listening mode register their pages and fields through
// the public endpoints, keyed by the project CMS key. Registration is
// additive and never overwrites existing content.
package cms

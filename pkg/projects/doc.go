// Package projects manages client projects within an organization. Creating
// a project seeds its file manager folders and issues the CMS key that the
// client site uses against the public content endpoints.
package projects

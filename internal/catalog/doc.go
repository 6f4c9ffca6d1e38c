// Package catalog defines the Entry record shared by every pipeline stage and
// the parser that turns JSON or XML catalog exports into entries.
package catalog

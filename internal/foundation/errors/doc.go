// Package errors provides the classified error type used across docweave.
//
// Errors carry a category (config, parse, render, filesystem, ...), a severity
// and a small key/value context. The category decides how far an error travels:
// configuration errors abort a run before any file is touched, while parse,
// render and filesystem errors are recorded against a single input file.
//
// Example usage:
//
//	err := errors.WrapError(cause, errors.CategoryParse, "parse input document").
//		WithContext("input", "news/item.xml").
//		Build()
package errors

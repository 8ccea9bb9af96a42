// Package watch delivers filesystem events from the source roots to a
// pipeline of watchers. It monitors the roots recursively, debounces rapid
// events per file, and hands each settled event to the pipeline from a
// single goroutine.
package watch

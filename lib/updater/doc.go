// Package updater contains the built-in merge functions of the store and a parser
// that resolves them by name, so processes that cannot receive a Go closure (a
// coordinator started from the command line) can still pick their aggregation.
//
// Available updaters:
//
//	sum         stored += incoming (default)
//	max         stored = max(stored, incoming)
//	min         stored = min(stored, incoming)
//	assign      stored = incoming
//	sgd(lr)     stored -= lr * incoming
//	avg(n)      stored += incoming / n
package updater

// Package count implements Count, an immutable multiset mapping toppings to
// slice counts. Every operation returns a new Count and leaves its inputs
// untouched, so Counts owned by different participants can be combined from
// concurrent readers without locking.
package count

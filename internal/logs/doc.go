// Package logs reads kura.log for the `kura logs` command.
//
// Console-format records span several lines (a header plus indented fields),
// so the tail helpers work on whole records rather than raw lines. Negative
// offsets mean "last N records"; follow mode polls until new records arrive
// or the caller's context ends.
package logs

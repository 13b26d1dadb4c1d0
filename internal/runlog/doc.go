// Package runlog records completed and failed conversion runs in a small
// SQLite database so the history command can report on past work.
package runlog

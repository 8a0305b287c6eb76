/*
Package roster stores the student records that the roster pages display.

Records live in a single SQLite table. Every write goes through a prepared,
parameterized statement, and every text field is sanitized before it is stored so
that rendered pages can substitute the values without further escaping. Both the
pure-Go modernc.org/sqlite driver and github.com/mattn/go-sqlite3 are supported;
the caller opens the *sql.DB with whichever it prefers.
*/
package roster

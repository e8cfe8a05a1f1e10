// Package plipsql is a thin layer over database/sql that adds two things the raw interface lacks: named, repeatable :name placeholders that are rewritten to positional markers at prepare time, and a LIFO release Stack that closes a chain of connections, statements and cursors exactly once each, reporting every failure instead of stopping at the first.
package plipsql

// Package vm implements the Javelin bytecode execution engine: a
// frame-at-a-time interpreter for a subset of the JVM instruction set.
// It consumes resolved class metadata (package classfile) and reproduces
// the numeric, dispatch, and exception semantics the JVM specification
// mandates. Raw class-file parsing, verification, garbage collection, and
// real threading are collaborator concerns and live outside this package.
package vm

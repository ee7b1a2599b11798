/*
Package nodeid defines the identifier syntax shared by nodes and mechanisms.

An identifier is a dot-separated sequence of segments, e.g. `minimum_wage` or
`digital.broadband_access`. Each segment is made of letters, digits, `_` and
`-`. Identifiers are stable: once issued they are never reassigned, which is
why parsing is strict and there is no normalisation beyond trimming.
*/
package nodeid

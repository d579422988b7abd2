// Package compare decides whether an actual trace matches a reference.
//
// Two strategies share the [Strategy] interface. [Numeric] parses both
// traces, removes the startup offset with [Normalize] and compares every
// field exactly. [Textual] compares raw lines and is meant for captured
// text fixtures. In both, the first line of a source is a header and is not
// compared.
//
// Row 0 of a numeric trace keeps its timestamp through normalization; only
// rows 1..n are shifted by row 1's timestamp.
package compare

package models

// ============================================================================
// POSITION CONSTANTS
// ============================================================================

// AppendPosition is a target index that always lands at the end of a column.
// Store indexes are clamped to column bounds, so any large value would do.
const AppendPosition = int(^uint(0) >> 1)

// ============================================================================
// ID CONSTANTS
// ============================================================================

// MaxEntityIDLength bounds opaque entity identifiers
const MaxEntityIDLength = 128

// MaxTitleLength bounds entity titles
const MaxTitleLength = 255

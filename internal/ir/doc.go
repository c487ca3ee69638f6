// Package ir provides the foundational types of the word rule engine.
//
// This package contains type definitions only. All other internal packages
// import ir; ir imports nothing internal. This keeps ir the bottom layer with
// no circular dependencies.
//
// Key design constraints:
//   - Set elements are atomic strings; a multi-character element never
//     matches partially
//   - Matching is case-insensitive, storage is case-preserving
//   - Persistence records use snake_case JSON tags and encode local sets as
//     [name, [elements...]] tuples
//   - Every engine failure is an *Error carrying one of four kinds
package ir

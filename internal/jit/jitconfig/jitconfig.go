// Package jitconfig holds process-wide tunables for the JIT core, mirroring
// the teacher's internal/config package-var style: cheap global state set
// once at startup rather than threaded through every call.
package jitconfig

// MaxCandidateCount bounds the height of the Selection and
// ClassOrSubclass-resolution lattices (spec §9's "bounded lattice
// heights"). Exceeding it widens the result to Any instead of growing
// the set further, which is what makes the type analyzer's fixed point
// terminate.
var MaxCandidateCount = 8

// CrossCheckDominators enables running the Cooper dominator finder
// alongside Lengauer-Tarjan and asserting they agree (spec §4.2, §9).
// Mirrors the teacher's DEBUG-gated behavior.
var CrossCheckDominators = false

// IsTestMode mirrors config.IsTestMode. No package in the core reads
// or sets it.
var IsTestMode = false

// NamedBlocks is a switch for debug block names. No package in the core
// reads it: the Builder and the Inliner name the blocks they label
// whatever its value.
var NamedBlocks = false

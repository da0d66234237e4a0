// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI provides a multi-view workflow for reviewing uncertain matches before finalize:
//  1. [ReviewListView] : Browse tracks awaiting a decision
//  2. [CandidateView] : Inspect search candidates and pick one
//  3. [ConfirmFinalizeView] : Confirm the finalize operation
//  4. [FinalizeView] : Monitor real-time progress updates
//  5. [ResultView] : Display the completion report or failure
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern.
// Decisions are written through the item store as they are made, so quitting
// mid-review loses nothing. Finalize progress flows through a channel from the
// ImportEngine, providing non-blocking status reporting.
//
// Keyboard navigation uses vim-style bindings (j/k, enter, esc, y/n, f, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui

// Package models defines domain entities and persistence interfaces for the portage playlist import service.
//
// The package contains two categories of types:
//
// 1. Data Transfer Objects (DTOs): Lightweight structs representing external catalog data
//   - [SourceTrack] : Playlist entry read from the source catalog, with ISRC when available
//   - [Candidate] : Search result from a target catalog, annotated with a match score
//   - [ImportReport] : Summary of a finished import, persisted on the job row
//
// 2. Persistent Entities: Database-backed models with full lifecycle management
//   - [User] : Accounts created implicitly by tenant sessions
//   - [Connection] : Per-provider credentials, one per user and provider
//   - [ImportJob] : Import operations moving through the QUEUED → DONE lifecycle
//   - [ImportItem] : Per-track match state, candidates, and review decisions
//
// All persistent entities implement the Model interface providing ID generation, timestamps, validation, and soft delete support.
// The Repository[T] interface defines standard CRUD operations for database access.
package models

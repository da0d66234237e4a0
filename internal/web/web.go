// Package web implements an HTMX-based browser front end over the import API.
//
// # HTMX Web Application Implementation Plan
//
// # Architecture
//
// The web app wraps the JSON API in internal/server with server-rendered
// views so an import can be driven end to end from a browser. Each step of
// the job lifecycle corresponds to a template and handler:
//
//  1. Connections: provider cards with connect/rotate forms
//  2. New Import: playlist URL + target picker posting to the imports API
//  3. Job Board: owner's jobs with status badges, polled via hx-get
//  4. Review: uncertain and not-found items with candidate pickers
//  5. Report: inserted/missed/duplicates breakdown after finalize
//
// Core Components
//
//   - HTTP Server: net/http server with html/template rendering
//   - Handler Integration: reuses the repositories and tasks.Queue already
//     wired into the API handlers, not a second data path
//   - Session Management: the same TenantMiddleware cookie as the API, so
//     browser and CLI sessions resolve the same user row
//   - Poll Fragments: hx-get partials refresh job status while the queue
//     workers run the match and finalize stages
//
// Routes
//
//	GET  /                      → Job board (jobs newest first)
//	GET  /connections           → Provider connection cards
//	POST /connections/{p}       → Store credentials, re-render the card
//	GET  /imports/new           → New import form
//	POST /imports               → Create jobs, redirect to the board
//	GET  /imports/{id}          → Job detail with item-status counts
//	GET  /imports/{id}/fragment → HTMX partial: status badge + counts
//	GET  /imports/{id}/review   → Review table with candidate pickers
//	POST /imports/{id}/review   → Apply decisions, re-render the table
//	POST /imports/{id}/finalize → Trigger finalize, redirect to detail
//	GET  /imports/{id}/report   → Report view
//
// Templates
//
//   - base.html: layout with navigation and connection status
//   - jobs.html: board table with hx-get polling on RUNNING/IMPORTING rows
//   - review.html: item rows with per-candidate confirm buttons and an
//     override-id input for not-found rescues
//   - report.html: inserted count, missed tracks, duplicates section
//
// # State Management
//
// All state lives in the stores the API already uses:
//   - Session cookie: tenant user id (HMAC-signed)
//   - ImportJob/ImportItem rows: job progress across requests
//   - No in-memory view state; every fragment re-reads the repositories
//
// # Review Flow
//
// The review table renders one row per UNCERTAIN or NOT_FOUND item with its
// stored candidates and scores. Confirm buttons post a single-decision
// apply_decisions call and swap the row; the finalize button appears once
// no undecided rows remain, posting to the finalize endpoint and redirecting
// to the detail view that polls until DONE.
//
// Dependencies
//
//   - html/template: server-side rendering
//   - net/http: HTTP server
//   - internal/server: TenantMiddleware, BasicRouter, and the handlers'
//     repositories
//
// # Testing Strategy
//
// Use httptest:
//   - Seed jobs/items through the repositories against :memory: sqlite
//   - Validate rendered fragments contain status badges and counts
//   - Exercise the review post → row swap cycle without a live queue
package web

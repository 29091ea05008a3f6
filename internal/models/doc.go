// Package models defines domain entities and persistence interfaces for nrx.
//
// The package contains two categories of types:
//
// 1. Values produced by the release pipeline
//   - [Album] : A release that survived the time window and deduplication
//   - [Playlist] : The playlist created on the provider
//
// 2. Persistent Entities
//   - [Run] : One pipeline execution with its outcome and stage counts
//
// Persistent entities implement the Model interface. The Repository[T] interface defines standard CRUD operations for database access.
package models

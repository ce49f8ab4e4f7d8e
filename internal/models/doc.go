// Package models defines domain entities and persistence interfaces for the series catalog service.
//
// Persistent entities:
//   - [User] : accounts with unique username and email, hashed password and profile fields
//   - [Favorite] : a user's saved reference to a TMDB series, with a name/poster snapshot
//   - [Session] : server-held login state keyed by a cookie token
//
// [User] and [Favorite] keep their fields private behind accessors and implement [Model].
// Their JSON form uses the wire names of the REST surface (korime, serija_id, ...).
// The [Repository] interface defines standard CRUD operations for database access.
package models

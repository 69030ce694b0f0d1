// Package models defines the core domain models for tripmate.
//
// # Models
//
//   - RoomData: the root persisted document for one shared trip ("room")
//   - SubRoom: an independently editable itinerary/notes workspace nested in a room
//   - ItineraryItem: one scheduled stop on a given day
//   - NoteItem: a shopping or place note with a checked flag
//   - Expense: one entry of the room-wide, multi-currency ledger
//   - WeatherInfo: forecast payload returned by the forecast boundary
//
// Participants are identified by display name strings. There are no user accounts;
// a room is protected only by an optional plaintext password.
//
// # Design Principles
//
// 1. **One document per room**: everything a room owns lives in RoomData and is
// persisted as a single value.
// 2. **Values, not pointers**: lists hold struct values so that a shallow copy of a
// document shares every list it did not replace.
// 3. **Scoped ownership**: itinerary and notes belong either to the main room or to
// exactly one sub-room; expenses and members always belong to the room root.
package models

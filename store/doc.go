// Package store persists MentorBridge users, messages and feedback with gorm.
//
// [Store] implements [mentorbridge.CredentialStore], [mentorbridge.MessageStore]
// and [mentorbridge.FeedbackStore] over SQLite (file or :memory:) or
// PostgreSQL. Bookings are not stored here; they live in Redis behind the
// booking state machine.
//
// Skills and expertise are kept as comma-joined columns. The users table has a
// unique email index and feedback is unique per (session, author).
package store

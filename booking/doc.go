// Package booking owns the lifecycle of a mentorship session booking.
//
// A booking is created pending by a student against a mentor and moves along a
// fixed edge set:
//
//	pending   -> confirmed   (the booking's mentor)
//	pending   -> cancelled   (the booking's mentor, or its student when Policy allows)
//	confirmed -> completed   (either participant, or the mentor only, per Policy)
//
// completed and cancelled are terminal. A transition is a read, a check against
// the edge table, and a compare-and-set of the stored status. Two requests that
// race from the same status can never both win: the loser's compare-and-set
// fails and is reported as [ErrConflict].
//
// # Storage
//
// [RedisStore] keeps each booking in a hash and performs the status
// compare-and-set in a Lua script. [MemoryStore] is a mutex-guarded map with
// the same contract, used for single-process deployments and tests.
//
// # Accepted gaps
//
// There is no double-booking check. Two pending bookings for the same mentor,
// date and time are both accepted.
package booking

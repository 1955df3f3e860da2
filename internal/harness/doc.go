// Package harness runs end-to-end fishsync scenarios.
//
// A scenario drives a fresh instance (in-memory store, manual clock,
// sequential ids, and an in-process remote hub) through the feature service
// and the deep-link resolver, then checks the trace, the emitted notices
// and the final collections.
//
// # Scenario Format
//
//	name: catch_sequence
//	description: "Catches below, at and over the limit"
//	clock: "2025-05-10T08:00:00Z"   # optional
//	mode: remote                    # optional, default local
//	poll: {attempts: 20, interval: 10ms}
//	setup:
//	  - action: event.create
//	    as: ev
//	    args: {name: "Jarní závody", date: "2025-05-10", catchLimit: 2}
//	flow:
//	  - invoke: catch.record
//	    args: {event: $ev, entrant: $jan}
//	    expect:
//	      case: UNDER
//	      result: {count: 1}
//	assertions:
//	  - type: final_state
//	    collection: catches
//	    where: {entrantId: $jan}
//	    count: 3
//
// "as" binds the id a step produced; "$name" refers to it in later step
// args and in assertions. Generated ids are sequential: id-000001,
// id-000002, and so on.
//
// # Cases
//
// Accepted actions complete with OK unless they have a more specific
// outcome: catch.record and catch.club complete with UNDER, AT_LIMIT or
// OVER; link.resolve with the step kind; angler.checkin with CREATED or
// EXISTING. Rejections complete with their code (EVENT_FULL,
// DUPLICATE_CHECKIN, NOT_FOUND, CONFIRMATION_REQUIRED, NO_ACTION, ...).
//
// # Assertion Types
//
//   - trace_contains: an invocation of action with matching args
//   - trace_order: actions invoked in this order
//   - trace_count: action invoked exactly count times
//   - final_state: records of a collection matching where
//   - notice: a notice with code whose message contains message
package harness

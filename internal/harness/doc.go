// Package harness runs end-to-end scenarios against the document pipeline.
//
// A scenario loads a rule bundle, feeds documents through one entity in
// order and checks each outcome, then asserts on the stored records and the
// event outbox.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	definitions: orders.yaml   # relative to the scenario file
//	entity: orders
//	clock:
//	  start: "2025-01-01T00:00:00Z"
//	  step: 1s
//	steps:
//	  - document: { orderId: "A-1", status: "A" }
//	    expect:
//	      operation: insert
//	      event: entity.created
//	      final: { id: "A-1", state: "active" }
//	  - document: { orderId: "A-1", status: "I" }
//	    expect:
//	      operation: update
//	      changes: [state]
//	assertions:
//	  - type: record_count
//	    count: 1
//	  - type: record
//	    where: { id: "A-1" }
//	    expect: { state: "inactive" }
//	  - type: event_order
//	    events: [entity.created, entity.updated]
//
// # Assertion Types
//
//   - record_count: the entity has exactly N stored records
//   - record: a stored record matching where has the expected fields
//   - event_order: event types appear in the outbox in this order
//   - event_count: an event type appears exactly N times
//
// # Deterministic Testing
//
// Every run uses a fresh in-memory SQLite store, a stepping clock
// (testutil.DeterministicClock) and sequential ids
// (testutil.SequenceGenerator), so two runs of a scenario produce the same
// timestamps, event ids and outbox order. RunWithGolden snapshots that
// output as canonical JSON.
package harness

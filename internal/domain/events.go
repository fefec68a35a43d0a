package domain

// Channel names the work-queue topic an Event is published on (spec.md §6).
type Channel string

const (
	ChannelExpressions Channel = "expressions"
	ChannelVariables   Channel = "variables"
	ChannelErrors      Channel = "errors"
)

// EventKind names the payload shape within a Channel (spec.md §6).
type EventKind string

const (
	EventUpdate     EventKind = "update"
	EventDelete     EventKind = "delete"
	EventForgotten  EventKind = "forgotten"
	EventEnteredTag EventKind = "entered_tag"
	EventLeftTag    EventKind = "left_tag"
	EventVarSet     EventKind = "set"
	EventVarUnset   EventKind = "unset"
	EventPoolError  EventKind = "s_expression_pool"
)

// Event is the envelope published to the work queue. Payload carries the
// kind-specific fields described in spec.md §6 (e.g. {expression}, {fei},
// {fei, parent}, {tag, fei}, {var, fei}, {error, wfid, message}).
type Event struct {
	Channel Channel
	Kind    EventKind
	Payload map[string]any
}

// NewEvent builds an Event envelope.
func NewEvent(channel Channel, kind EventKind, payload map[string]any) Event {
	if payload == nil {
		payload = map[string]any{}
	}
	return Event{Channel: channel, Kind: kind, Payload: payload}
}

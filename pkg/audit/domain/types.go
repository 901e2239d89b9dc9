// Package domain defines the core audit trail types shared by every other
// package in the module: events as callers describe them, entries as they are
// persisted, chain linkage, and the storage contract.
package domain

import "time"

// EventType classifies an audit event.
type EventType string

const (
	EventAuth          EventType = "auth"
	EventAuthz         EventType = "authz"
	EventDataAccess    EventType = "data_access"
	EventDataModify    EventType = "data_modify"
	EventConfigChange  EventType = "config_change"
	EventAdminAction   EventType = "admin_action"
	EventSecurity      EventType = "security_event"
	EventUserLifecycle EventType = "user_lifecycle"
	EventAPIAccess     EventType = "api_access"
	EventSystem        EventType = "system"
	EventCustom        EventType = "custom"
)

// Outcome records how the audited action ended.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
	OutcomePending Outcome = "pending"
	OutcomeUnknown Outcome = "unknown"
)

// Actor captures information about the entity performing the action.
type Actor struct {
	ID        string         `json:"id"`
	Type      string         `json:"type,omitempty"`
	Name      string         `json:"name,omitempty"`
	IP        string         `json:"ip,omitempty"`
	UserAgent string         `json:"user_agent,omitempty"`
	SessionID string         `json:"session_id,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Resource describes the resource that was acted upon.
type Resource struct {
	ID       string         `json:"id"`
	Type     string         `json:"type,omitempty"`
	Name     string         `json:"name,omitempty"`
	Path     string         `json:"path,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// TraceContext carries distributed tracing identifiers supplied by the caller.
type TraceContext struct {
	TraceID      string `json:"trace_id"`
	SpanID       string `json:"span_id,omitempty"`
	ParentSpanID string `json:"parent_span_id,omitempty"`
	Flags        string `json:"flags,omitempty"`
	State        string `json:"state,omitempty"`
}

// ErrorDetail is the failure block attached to events with a failure outcome.
type ErrorDetail struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
	Stack   string `json:"stack,omitempty"`
}

// AuditEvent is the caller-supplied description of an auditable action.
//
// Actor and Resource may be given either as full objects or through the
// flattened shorthand fields (ActorID, ActorType, ActorIP, ResourceID,
// ResourceType). Normalize reconciles the two forms; the full object always
// wins when both are present.
type AuditEvent struct {
	Type        EventType `json:"type"`
	Action      string    `json:"action"`
	Outcome     Outcome   `json:"outcome"`
	Description string    `json:"description,omitempty"`

	Actor    *Actor    `json:"actor,omitempty"`
	Resource *Resource `json:"resource,omitempty"`

	ActorID      string `json:"actor_id,omitempty"`
	ActorType    string `json:"actor_type,omitempty"`
	ActorIP      string `json:"actor_ip,omitempty"`
	ResourceID   string `json:"resource_id,omitempty"`
	ResourceType string `json:"resource_type,omitempty"`

	Trace      *TraceContext  `json:"trace,omitempty"`
	RequestID  string         `json:"request_id,omitempty"`
	Data       map[string]any `json:"data,omitempty"`
	Tags       []string       `json:"tags,omitempty"`
	DurationMS int64          `json:"duration_ms,omitempty"`
	Error      *ErrorDetail   `json:"error,omitempty"`
}

// Normalize folds shorthand actor/resource fields into the nested objects.
// Shorthand values are only promoted when the corresponding object is absent.
func (e *AuditEvent) Normalize() {
	if e.Actor == nil && (e.ActorID != "" || e.ActorType != "" || e.ActorIP != "") {
		e.Actor = &Actor{ID: e.ActorID, Type: e.ActorType, IP: e.ActorIP}
	}
	if e.Resource == nil && (e.ResourceID != "" || e.ResourceType != "") {
		e.Resource = &Resource{ID: e.ResourceID, Type: e.ResourceType}
	}
	if e.Outcome == "" {
		e.Outcome = OutcomeUnknown
	}
	if e.Type == "" {
		e.Type = EventCustom
	}
}

// NormalizedActorID returns the actor id regardless of which form the caller used.
func (e *AuditEvent) NormalizedActorID() string {
	if e.Actor != nil && e.Actor.ID != "" {
		return e.Actor.ID
	}
	return e.ActorID
}

// NormalizedResourceID returns the resource id from either form.
func (e *AuditEvent) NormalizedResourceID() string {
	if e.Resource != nil && e.Resource.ID != "" {
		return e.Resource.ID
	}
	return e.ResourceID
}

// NormalizedResourceType returns the resource type from either form.
func (e *AuditEvent) NormalizedResourceType() string {
	if e.Resource != nil && e.Resource.Type != "" {
		return e.Resource.Type
	}
	return e.ResourceType
}

// ServiceInfo is the service identity snapshot stamped onto each entry.
type ServiceInfo struct {
	Name        string `json:"name"`
	Version     string `json:"version,omitempty"`
	Environment string `json:"environment,omitempty"`
}

// ChainEntry is the hash chain linkage attached to an entry when chaining is
// enabled. Sequence is gapless within one chain instance.
type ChainEntry struct {
	Hash         string `json:"hash"`
	PreviousHash string `json:"previous_hash"`
	Sequence     int    `json:"sequence"`
}

// AuditEntry is a persisted audit record. Once written its ID, Timestamp,
// Event and Chain values never change.
type AuditEntry struct {
	ID        string      `json:"id"`
	Timestamp time.Time   `json:"timestamp"`
	Event     AuditEvent  `json:"event"`
	Service   ServiceInfo `json:"service"`
	Chain     *ChainEntry `json:"chain,omitempty"`
	Signature string      `json:"signature,omitempty"`
}

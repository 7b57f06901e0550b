// Package errs classifies service failures so HTTP handlers can map them to
// status codes and structured bodies without inspecting error strings.
package errs

import "fmt"

type Kind string

const (
	KindInvalidConfig     Kind = "invalid_config"      // 400, never retried
	KindNotFound          Kind = "not_found"           // 404
	KindTierLimitExceeded Kind = "tier_limit_exceeded" // 402
	KindAlreadyCancelled  Kind = "already_cancelled"   // 400 conflict
	KindPersistence       Kind = "persistence_error"   // 500
)

// Error is a classified failure surfaced to API clients. Details carries
// machine-readable context such as the allowed-value set that would have
// passed validation, or an upgrade pointer for quota failures.
type Error struct {
	Kind    Kind
	Reason  string // stable machine-readable token, e.g. "invalid_polling_interval"
	Message string
	Details map[string]any
}

func (e *Error) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s: %s", e.Reason, e.Message)
	}
	return e.Message
}

// KindOf returns the classification of err, or "" for unclassified errors.
func KindOf(err error) Kind {
	if e, ok := err.(*Error); ok {
		return e.Kind
	}
	return ""
}

func InvalidConfig(reason, message string, details map[string]any) *Error {
	return &Error{Kind: KindInvalidConfig, Reason: reason, Message: message, Details: details}
}

func NotFound(entity, id string) *Error {
	return &Error{
		Kind:    KindNotFound,
		Reason:  entity + "_not_found",
		Message: fmt.Sprintf("%s %q not found", entity, id),
	}
}

func TierLimitExceeded(message string, details map[string]any) *Error {
	return &Error{Kind: KindTierLimitExceeded, Reason: "free_tier_limit", Message: message, Details: details}
}

func AlreadyCancelled(id string) *Error {
	return &Error{
		Kind:    KindAlreadyCancelled,
		Reason:  "already_cancelled",
		Message: fmt.Sprintf("watcher %q is already cancelled", id),
	}
}

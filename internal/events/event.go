// Package events defines the change notifications emitted by the settings
// state manager.
package events

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/JakeFAU/site-shields/internal/sitesettings"
)

// Kind names the state mutation an Event reports.
type Kind string

// Supported event kinds.
const (
	KindSiteSettingChanged  Kind = "SITE_SETTING_CHANGED"
	KindSiteSettingRemoved  Kind = "SITE_SETTING_REMOVED"
	KindSiteSettingsCleared Kind = "SITE_SETTINGS_CLEARED"
	KindFlashAllowed        Kind = "FLASH_ALLOWED"
	KindPublisherEnabled    Kind = "PUBLISHER_ENABLED"
	KindPinPercentage       Kind = "LEDGER_PIN_CHANGED"
	KindSettingChanged      Kind = "SETTING_CHANGED"
	KindResourceToggled     Kind = "RESOURCE_TOGGLED"
	KindNoScriptExceptions  Kind = "NOSCRIPT_EXCEPTIONS_CHANGED"
)

// Scope tells which part of the state a change touched.
type Scope string

// Supported scopes.
const (
	ScopePersistent Scope = "persistent"
	ScopeTemporary  Scope = "temporary"
	ScopeGlobal     Scope = "global"
)

// ScopeFor maps the temporary flag of a site-setting action to its scope.
func ScopeFor(temporary bool) Scope {
	if temporary {
		return ScopeTemporary
	}
	return ScopePersistent
}

// Event records one applied mutation.
type Event struct {
	ID    uuid.UUID
	TS    time.Time
	Kind  Kind
	Scope Scope
	// Pattern is the host pattern touched; empty for global changes and
	// store-wide clears.
	Pattern string
	Key     string
	// Value is the new value; invalid for removals.
	Value    sitesettings.Value
	SkipSync bool
	// Note carries low-volume context such as the toggled resource state or
	// the origins of a noScript exception change.
	Note string
}

// New stamps an event of the given kind with a time-ordered ID.
func New(kind Kind, scope Scope, ts time.Time) Event {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return Event{ID: id, TS: ts.UTC(), Kind: kind, Scope: scope}
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.ID == uuid.Nil {
		return errors.New("event id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Scope {
	case ScopePersistent, ScopeTemporary, ScopeGlobal:
	default:
		return fmt.Errorf("unknown scope %q", e.Scope)
	}
	switch e.Kind {
	case KindSiteSettingChanged, KindSiteSettingRemoved, KindPinPercentage, KindNoScriptExceptions:
		if e.Pattern == "" || e.Key == "" {
			return fmt.Errorf("%s requires pattern and key", e.Kind)
		}
	case KindFlashAllowed, KindPublisherEnabled:
		if e.Pattern == "" {
			return fmt.Errorf("%s requires pattern", e.Kind)
		}
	case KindSiteSettingsCleared, KindSettingChanged, KindResourceToggled:
		if e.Key == "" {
			return fmt.Errorf("%s requires key", e.Kind)
		}
	default:
		return fmt.Errorf("unknown kind %q", e.Kind)
	}
	return nil
}

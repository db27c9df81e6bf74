package state

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/JakeFAU/site-shields/internal/events"
	"github.com/JakeFAU/site-shields/internal/hostpattern"
)

// KeyNoScriptExceptions is the site-setting key under which script exceptions
// are addressed by RemoveSiteSetting and ClearSiteSettings. The exceptions
// themselves are origin maps, so they live beside the primitive-only stores.
const KeyNoScriptExceptions = "noScriptExceptions"

// exceptions maps host pattern to origin to allowed.
type exceptions map[string]map[string]bool

// NoScriptExceptionsChange records which third-party script origins a page may
// run despite noScript. They are never synced or persisted across restarts.
type NoScriptExceptionsChange struct {
	HostPattern string          `json:"hostPattern"`
	Origins     map[string]bool `json:"origins"`
	Temporary   bool            `json:"temporary"`
}

// AddNoScriptExceptions merges c.Origins into the exceptions of c.HostPattern.
// An empty origin set clears them.
func (m *Manager) AddNoScriptExceptions(c NoScriptExceptionsChange) error {
	pattern, err := validPattern(c.HostPattern)
	if err != nil {
		return err
	}
	for origin := range c.Origins {
		if strings.TrimSpace(origin) == "" {
			return fmt.Errorf("%w: empty noScript exception origin", ErrInvalidURL)
		}
	}

	m.mu.Lock()
	current := m.exceptions(c.Temporary)
	next := maps.Clone(current)
	if next == nil {
		next = make(exceptions, 1)
	}
	if len(c.Origins) == 0 {
		delete(next, pattern)
	} else {
		merged := maps.Clone(current[pattern])
		if merged == nil {
			merged = make(map[string]bool, len(c.Origins))
		}
		maps.Copy(merged, c.Origins)
		next[pattern] = merged
	}
	m.setExceptions(c.Temporary, next)
	m.mu.Unlock()

	evt := m.event(events.KindNoScriptExceptions, events.ScopeFor(c.Temporary))
	evt.Pattern, evt.Key = pattern, KeyNoScriptExceptions
	evt.Note = "cleared"
	if len(c.Origins) > 0 {
		evt.Note = "origins=" + strings.Join(slices.Sorted(maps.Keys(c.Origins)), ",")
	}
	m.emit(evt)
	return nil
}

// NoScriptExceptions returns a copy of the exceptions stored for pattern. For
// private pages temporary exceptions override persistent ones per origin.
func (m *Manager) NoScriptExceptions(pattern string, private bool) map[string]bool {
	pattern = hostpattern.NormalizePattern(pattern)
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := maps.Clone(m.persistentNoScript[pattern])
	if private {
		if temp := m.temporaryNoScript[pattern]; len(temp) > 0 {
			if out == nil {
				out = make(map[string]bool, len(temp))
			}
			maps.Copy(out, temp)
		}
	}
	if out == nil {
		out = map[string]bool{}
	}
	return out
}

func (m *Manager) exceptions(temporary bool) exceptions {
	if temporary {
		return m.temporaryNoScript
	}
	return m.persistentNoScript
}

func (m *Manager) setExceptions(temporary bool, next exceptions) {
	if temporary {
		m.temporaryNoScript = next
		return
	}
	m.persistentNoScript = next
}

// dropExceptions handles removal of the noScriptExceptions key. An empty
// pattern clears every pattern. Callers hold mu.
func (m *Manager) dropExceptions(temporary bool, key, pattern string) {
	if key != KeyNoScriptExceptions {
		return
	}
	current := m.exceptions(temporary)
	if pattern == "" {
		m.setExceptions(temporary, nil)
		return
	}
	if _, ok := current[pattern]; !ok {
		return
	}
	next := maps.Clone(current)
	delete(next, pattern)
	m.setExceptions(temporary, next)
}

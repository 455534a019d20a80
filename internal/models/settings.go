// internal/models/settings.go
package models

import (
	"fmt"
	"math"
)

// Setting keys accepted by ApplySettings. They double as the keys of the returned change map.
const (
	SettingMode         = "mode"
	SettingName         = "name"
	SettingPublicAccess = "publicAccess"
	SettingGameTime     = "gameTime"
)

// ApplySettings updates the lobby from a decoded JSON object. Keys that are missing or null keep the
// old value. The returned map reports, for every known key, whether the value changed.
// Nothing is modified when an error is returned.
func (l *Lobby) ApplySettings(newSettings map[string]interface{}) (map[string]bool, error) {
	updates := map[string]bool{
		SettingMode:         false,
		SettingName:         false,
		SettingPublicAccess: false,
		SettingGameTime:     false,
	}

	next := *l
	var ok bool

	if val, exists := newSettings[SettingMode]; exists && val != nil {
		s, isString := val.(string)
		if !isString {
			return updates, fmt.Errorf("invalid type for %s", SettingMode)
		}
		mode, err := ParseGameMode(s)
		if err != nil {
			return updates, err
		}
		next.Mode = mode
	}

	if val, exists := newSettings[SettingName]; exists && val != nil {
		next.Name, ok = val.(string)
		if !ok {
			return updates, fmt.Errorf("invalid type for %s", SettingName)
		}
		if next.Name == "" {
			return updates, fmt.Errorf("%s must not be empty", SettingName)
		}
	}

	if val, exists := newSettings[SettingPublicAccess]; exists && val != nil {
		next.Public, ok = val.(bool)
		if !ok {
			return updates, fmt.Errorf("invalid type for %s", SettingPublicAccess)
		}
	}

	if val, exists := newSettings[SettingGameTime]; exists && val != nil {
		// JSON numbers decode as float64
		switch n := val.(type) {
		case float64:
			if n != math.Trunc(n) || n < 0 || n > math.MaxInt32 {
				return updates, fmt.Errorf("%s must be a whole number of seconds, got %v", SettingGameTime, n)
			}
			next.TimeLimit = int(n)
		case int:
			next.TimeLimit = n
		default:
			return updates, fmt.Errorf("invalid type for %s", SettingGameTime)
		}
		if next.TimeLimit < 0 {
			return updates, fmt.Errorf("%s must be non-negative", SettingGameTime)
		}
	}

	updates[SettingMode] = next.Mode != l.Mode
	updates[SettingName] = next.Name != l.Name
	updates[SettingPublicAccess] = next.Public != l.Public
	updates[SettingGameTime] = next.TimeLimit != l.TimeLimit

	l.Mode, l.Name, l.Public, l.TimeLimit = next.Mode, next.Name, next.Public, next.TimeLimit
	return updates, nil
}

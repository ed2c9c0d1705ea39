package storage

// SettingsOverrides carries optional config-level confirmation toggles.
// A nil field defers to the stored settings document; a set field wins
// over it.
type SettingsOverrides struct {
	RequireConfirmation            *bool
	RequireConfirmationForEdits    *bool
	RequireConfirmationForNewRules *bool
}

// OverrideStore wraps a Store and overlays config-provided settings on
// LoadSettings. Every other document passes through unchanged.
type OverrideStore struct {
	Store
	Overrides SettingsOverrides
}

var _ Store = OverrideStore{}

func (s OverrideStore) LoadSettings() (Settings, error) {
	settings, err := s.Store.LoadSettings()
	if err != nil {
		return settings, err
	}
	if v := s.Overrides.RequireConfirmation; v != nil {
		settings.RequireConfirmation = *v
	}
	if v := s.Overrides.RequireConfirmationForEdits; v != nil {
		settings.RequireConfirmationForEdits = *v
	}
	if v := s.Overrides.RequireConfirmationForNewRules; v != nil {
		settings.RequireConfirmationForNewRules = *v
	}
	return settings, nil
}

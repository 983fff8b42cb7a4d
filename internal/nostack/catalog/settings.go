package catalog

// SettingsKey is the settings key the per-model preferences are stored under.
const SettingsKey = "modelSettings"

// JSONStore is the part of the settings store the catalog needs.
type JSONStore interface {
	GetJSON(key string, v any) (bool, error)
	SetJSON(key string, v any) error
}

// ModelSetting is the stored preference of one model.
type ModelSetting struct {
	ID             string `json:"id"`
	Hidden         bool   `json:"hidden"`
	IsDefaultModel bool   `json:"isDefaultModel"`
}

// LoadSettings applies stored preferences. Entries for models that are
// no longer in the catalog are ignored.
func (c *Catalog) LoadSettings(st JSONStore) error {
	var stored []ModelSetting
	if _, err := st.GetJSON(SettingsKey, &stored); err != nil {
		return err
	}

	for _, s := range stored {
		if m := c.FindByID(s.ID); m != nil {
			m.Hidden = s.Hidden
		}
	}
	for _, s := range stored {
		if s.IsDefaultModel && c.FindByID(s.ID) != nil {
			return c.SetDefault(s.ID)
		}
	}
	return nil
}

// SaveSettings stores the preferences of every model.
func (c *Catalog) SaveSettings(st JSONStore) error {
	stored := make([]ModelSetting, 0, len(c.models))
	for _, m := range c.models {
		stored = append(stored, ModelSetting{
			ID:             m.ID,
			Hidden:         m.Hidden,
			IsDefaultModel: m.IsDefault,
		})
	}
	return st.SetJSON(SettingsKey, stored)
}

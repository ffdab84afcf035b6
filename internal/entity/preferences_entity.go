package entity

type FurnitureTier string

const (
	FurnitureTierAny         FurnitureTier = "any"
	FurnitureTierAffordable  FurnitureTier = "affordable"
	FurnitureTierLuxury      FurnitureTier = "luxury"
	FurnitureTierSustainable FurnitureTier = "sustainable"
)

type Preferences struct {
	ColorPalette  string        `json:"color_palette"`
	FurnitureTier FurnitureTier `json:"furniture_tier"`
	Material      string        `json:"material"`
}

// PreferencesPatch carries only the fields to overwrite; nil means keep.
type PreferencesPatch struct {
	ColorPalette  *string
	FurnitureTier *FurnitureTier
	Material      *string
}

func DefaultPreferences() Preferences {
	return Preferences{FurnitureTier: FurnitureTierAny}
}

// Apply returns p with the non-nil fields of patch merged in.
func (p Preferences) Apply(patch PreferencesPatch) Preferences {
	if patch.ColorPalette != nil {
		p.ColorPalette = *patch.ColorPalette
	}
	if patch.FurnitureTier != nil {
		p.FurnitureTier = *patch.FurnitureTier
	}
	if patch.Material != nil {
		p.Material = *patch.Material
	}
	return p
}

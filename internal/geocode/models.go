package geocode

type Component struct {
	LongName  string   `json:"long_name"`
	ShortName string   `json:"short_name"`
	Types     []string `json:"types"`
}

type Result struct {
	PlaceID          string      `json:"place_id"`
	Name             string      `json:"name,omitempty"`
	FormattedAddress string      `json:"formatted_address"`
	Components       []Component `json:"address_components"`
}

// Component returns the long name of the first component carrying any of types.
func (r Result) Component(types ...string) string {
	for _, c := range r.Components {
		for _, have := range c.Types {
			for _, want := range types {
				if have == want {
					return c.LongName
				}
			}
		}
	}
	return ""
}

type Prediction struct {
	PlaceID     string `json:"place_id"`
	Description string `json:"description"`
}

type Place struct {
	PlaceID          string      `json:"place_id"`
	Name             string      `json:"name"`
	FormattedAddress string      `json:"formatted_address"`
	Lat              float64     `json:"lat"`
	Lng              float64     `json:"lng"`
	Components       []Component `json:"address_components"`
}

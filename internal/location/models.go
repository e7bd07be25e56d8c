package location

type SavedLocation struct {
	ID        string  `json:"id"`
	Name      string  `json:"name" validate:"required,max=120"`
	Address   string  `json:"address" validate:"max=300"`
	Lat       float64 `json:"lat" validate:"latitude"`
	Lng       float64 `json:"lng" validate:"longitude"`
	PlaceID   string  `json:"placeId,omitempty"`
	CreatedAt int64   `json:"createdAt"`
}

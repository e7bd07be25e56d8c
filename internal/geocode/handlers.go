package geocode

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, client *Client) {
	r.Get("/search", func(c *fiber.Ctx) error {
		q := c.Query("q")
		if q == "" {
			return fiber.NewError(fiber.StatusBadRequest, "q required")
		}
		predictions, err := client.SearchPlaceText(c.Context(), q)
		if err != nil {
			return fiber.NewError(fiber.StatusBadGateway, err.Error())
		}
		return c.JSON(predictions)
	})

	r.Get("/details/:id", func(c *fiber.Ctx) error {
		place, err := client.PlaceDetails(c.Context(), c.Params("id"))
		if errors.Is(err, ErrNoResults) {
			return fiber.NewError(fiber.StatusNotFound, "place not found")
		}
		if err != nil {
			return fiber.NewError(fiber.StatusBadGateway, err.Error())
		}
		return c.JSON(place)
	})

	r.Get("/reverse", func(c *fiber.Ctx) error {
		lat, errLat := strconv.ParseFloat(c.Query("lat"), 64)
		lng, errLng := strconv.ParseFloat(c.Query("lng"), 64)
		if errLat != nil || errLng != nil {
			return fiber.NewError(fiber.StatusBadRequest, "lat and lng required")
		}
		result, err := client.ReverseGeocode(c.Context(), lat, lng)
		if errors.Is(err, ErrNoResults) {
			return fiber.NewError(fiber.StatusNotFound, "no address for location")
		}
		if err != nil {
			return fiber.NewError(fiber.StatusBadGateway, err.Error())
		}
		return c.JSON(result)
	})
}

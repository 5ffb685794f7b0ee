package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v3"

	"github.com/seuros/scout/internal/database"
)

// HandleHealth reports liveness and the number of open sessions.
func (a *API) HandleHealth(c fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":   "healthy",
		"service":  "scout",
		"sessions": a.registry.Len(),
	})
}

// HandleUp is the container health probe. With a data source configured it
// also requires the database to answer.
func (a *API) HandleUp(c fiber.Ctx) error {
	if a.repo != nil {
		if err := database.Ping(); err != nil {
			return c.Status(http.StatusServiceUnavailable).SendString("database unavailable")
		}
	}
	return c.SendStatus(http.StatusOK)
}

// HandleVersion returns the build version.
func (a *API) HandleVersion(c fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"version": a.version,
	})
}

// HandleSchema lists the filterable dimensions and their hierarchies.
func (a *API) HandleSchema(c fiber.Ctx) error {
	schema := a.registry.Schema()
	return c.JSON(SchemaResponse{
		Dimensions:  schema.Dimensions(),
		Hierarchies: schema.Hierarchies(),
	})
}

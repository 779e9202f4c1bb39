package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/nanafox/tiny-cart/internal/apperr"
	"github.com/nanafox/tiny-cart/internal/repositories"
)

// pageFromQuery reads skip, limit, order_by and join from the query string.
// Range checks are left to the repository.
func pageFromQuery(c *fiber.Ctx) (repositories.Page, error) {
	var page repositories.Page
	var err error

	if page.Skip, err = queryInt(c, "skip"); err != nil {
		return page, err
	}
	if page.Limit, err = queryInt(c, "limit"); err != nil {
		return page, err
	}
	page.OrderBy = c.Query("order_by")
	page.Join = c.Query("join")
	return page, nil
}

func queryInt(c *fiber.Ctx, key string) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperr.Wrap(apperr.InvalidQuery, err, "%s must be an integer", key)
	}
	return n, nil
}

func paramID(c *fiber.Ctx, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(name))
	if err != nil {
		return uuid.Nil, apperr.Wrap(apperr.InvalidInput, err, "%s must be a valid UUID", name)
	}
	return id, nil
}

func parseBody(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return apperr.Wrap(apperr.BadRequest, err, "Invalid request body")
	}
	return nil
}

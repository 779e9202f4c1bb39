package handlers

import (
	"io"
	"mime/multipart"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/nanafox/tiny-cart/internal/apperr"
	"github.com/nanafox/tiny-cart/internal/middleware"
	"github.com/nanafox/tiny-cart/internal/services"
)

// ProductHandler handles HTTP requests for products.
type ProductHandler struct {
	service *services.ProductService
}

// NewProductHandler creates a new ProductHandler.
func NewProductHandler(service *services.ProductService) *ProductHandler {
	return &ProductHandler{
		service: service,
	}
}

// RegisterRoutes registers the product routes, all behind auth.
func (h *ProductHandler) RegisterRoutes(router fiber.Router, auth fiber.Handler) {
	productRoutes := router.Group("/products", auth)
	productRoutes.Get("/", h.HandleGetProducts)
	productRoutes.Get("/:id", h.HandleGetProductByID)
	productRoutes.Get("/:id/orders", h.HandleGetProductOrders)
	productRoutes.Post("/", middleware.RequireSeller(), h.HandleCreateProduct)
	productRoutes.Put("/:id", h.HandleUpdateProduct)
	productRoutes.Delete("/:id", h.HandleDeleteProduct)
}

// HandleGetProducts retrieves one page of products.
func (h *ProductHandler) HandleGetProducts(c *fiber.Ctx) error {
	page, err := pageFromQuery(c)
	if err != nil {
		return err
	}
	products, err := h.service.List(c.UserContext(), page)
	if err != nil {
		return err
	}
	return respondList(c, products)
}

// HandleGetProductByID retrieves a single product by its ID.
func (h *ProductHandler) HandleGetProductByID(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	product, err := h.service.Get(c.UserContext(), id)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, "", product)
}

// HandleCreateProduct lists a new product from a multipart form with any
// number of "images" files.
func (h *ProductHandler) HandleCreateProduct(c *fiber.Ctx) error {
	form, err := readProductForm(c)
	if err != nil {
		return err
	}
	if form.name == nil || form.unitPrice == nil || form.numberInStock == nil {
		return apperr.New(apperr.InvalidInput, "name, unit_price and number_in_stock are required")
	}

	in := services.ProductCreate{
		Name:          *form.name,
		UnitPrice:     *form.unitPrice,
		InStock:       form.inStock,
		NumberInStock: *form.numberInStock,
	}
	if form.description != nil {
		in.Description = *form.description
	}

	product, err := h.service.Create(c.UserContext(), middleware.CurrentUser(c).ID, in, form.uploads)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusCreated, "Product created successfully.", product)
}

// HandleUpdateProduct applies a partial update. Only the owner may do so.
func (h *ProductHandler) HandleUpdateProduct(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	form, err := readProductForm(c)
	if err != nil {
		return err
	}

	in := services.ProductUpdate{
		Name:          form.name,
		Description:   form.description,
		UnitPrice:     form.unitPrice,
		InStock:       form.inStock,
		NumberInStock: form.numberInStock,
	}
	product, err := h.service.Update(c.UserContext(), id, middleware.CurrentUser(c).ID, in, form.uploads)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, "Product updated successfully", product)
}

// HandleDeleteProduct removes a product with its images and orders.
func (h *ProductHandler) HandleDeleteProduct(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	if err := h.service.Delete(c.UserContext(), id, middleware.CurrentUser(c).ID); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// HandleGetProductOrders lists the order lines placed for a product.
func (h *ProductHandler) HandleGetProductOrders(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	page, err := pageFromQuery(c)
	if err != nil {
		return err
	}
	orders, err := h.service.Orders(c.UserContext(), id, page)
	if err != nil {
		return err
	}
	return respondList(c, orders)
}

// productForm holds the product fields present in a request. Absent fields are nil.
type productForm struct {
	name          *string
	description   *string
	unitPrice     *decimal.Decimal
	inStock       *bool
	numberInStock *int
	uploads       []services.Upload
}

func readProductForm(c *fiber.Ctx) (*productForm, error) {
	values := map[string]string{}
	var files []*multipart.FileHeader

	if strings.HasPrefix(string(c.Request().Header.ContentType()), fiber.MIMEMultipartForm) {
		mf, err := c.MultipartForm()
		if err != nil {
			return nil, apperr.Wrap(apperr.BadRequest, err, "Invalid multipart form")
		}
		for key, vs := range mf.Value {
			if len(vs) > 0 {
				values[key] = vs[0]
			}
		}
		files = mf.File["images"]
	} else {
		c.Request().PostArgs().VisitAll(func(key, value []byte) {
			values[string(key)] = string(value)
		})
	}

	form := &productForm{}
	if v, ok := values["name"]; ok {
		form.name = &v
	}
	if v, ok := values["description"]; ok {
		form.description = &v
	}
	if v, ok := values["unit_price"]; ok {
		price, err := decimal.NewFromString(v)
		if err != nil {
			return nil, apperr.Wrap(apperr.InvalidInput, err, "unit_price must be a number")
		}
		form.unitPrice = &price
	}
	if v, ok := values["in_stock"]; ok {
		inStock, err := strconv.ParseBool(v)
		if err != nil {
			return nil, apperr.Wrap(apperr.InvalidInput, err, "in_stock must be a boolean")
		}
		form.inStock = &inStock
	}
	if v, ok := values["number_in_stock"]; ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, apperr.Wrap(apperr.InvalidInput, err, "number_in_stock must be an integer")
		}
		form.numberInStock = &n
	}

	for _, fh := range files {
		form.uploads = append(form.uploads, services.Upload{
			Filename: fh.Filename,
			Open:     func() (io.ReadCloser, error) { return fh.Open() },
		})
	}
	return form, nil
}

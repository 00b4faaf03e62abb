package controllers

import (
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/shashiranjanraj/dukaan/app/models"
	"github.com/shashiranjanraj/dukaan/app/repositories"
	"github.com/shashiranjanraj/dukaan/pkg/bind"
	"github.com/shashiranjanraj/dukaan/pkg/logger"
	"github.com/shashiranjanraj/dukaan/pkg/middleware"
	"github.com/shashiranjanraj/dukaan/pkg/response"
	"github.com/shashiranjanraj/dukaan/pkg/workerpool"
	"github.com/shashiranjanraj/dukaan/pkg/ws"
)

// ProductStore is the slice of the product repository the handlers use.
type ProductStore interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Product, error)
	List(ctx context.Context, sortBy, order string, limit int64) ([]*models.Product, error)
	ListRelated(ctx context.Context, product *models.Product, limit int64) ([]*models.Product, error)
	DistinctCategories(ctx context.Context) ([]models.Category, error)
	Search(ctx context.Context, filter bson.M, sortBy, order string, skip, limit int64) ([]*models.Product, error)
	NameSearch(ctx context.Context, search, category string) ([]*models.Product, error)
	DecreaseQuantity(ctx context.Context, items []repositories.OrderItem) error
	ByUser(ctx context.Context, sellerID primitive.ObjectID) ([]*models.Product, error)
	Create(ctx context.Context, product *models.Product) error
	Save(ctx context.Context, product *models.Product) error
	Delete(ctx context.Context, id primitive.ObjectID) error
}

// PhotoUploader moves photo bytes in and out of object storage.
type PhotoUploader interface {
	Upload(ctx context.Context, prefix, name, contentType string, data []byte) (models.Photo, error)
	Remove(ctx context.Context, key string) error
	DiskName() string
}

// IntentLog records storage delete intents for the reconciliation sweep.
type IntentLog interface {
	Record(ctx context.Context, disk string, keys ...string) error
	Clear(ctx context.Context, keys ...string) error
}

// ProductController serves the catalog endpoints.
type ProductController struct {
	products  ProductStore
	intents   IntentLog
	photos    PhotoUploader
	pool      *workerpool.Pool
	hub       *ws.Hub
	maxUpload int64
}

// NewProductController wires the catalog handlers. hub may be nil when no
// realtime consumers exist (CLI runs, tests).
func NewProductController(products ProductStore, intents IntentLog, photos PhotoUploader, pool *workerpool.Pool, hub *ws.Hub, maxUpload int64) *ProductController {
	return &ProductController{
		products:  products,
		intents:   intents,
		photos:    photos,
		pool:      pool,
		hub:       hub,
		maxUpload: maxUpload,
	}
}

type productInput struct {
	Name        string  `json:"name"        validate:"required"`
	Description string  `json:"description" validate:"required"`
	Price       float64 `json:"price"       validate:"required,gte=0"`
	Category    string  `json:"category"    validate:"required"`
	Quantity    int     `json:"quantity"    validate:"required,integer"`
	Shipping    string  `json:"shipping"    validate:"required,in=Yes,No,yes,no,true,false,1,0"`
}

// Create handles the multipart product-create form. All six fields and at
// least one photo are required; every photo must fit the configured size
// limit. Uploads fan out through the worker pool, and the document is saved
// exactly once after every upload has finished.
func (c *ProductController) Create(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(c.maxUpload); err != nil {
		response.Validation(w, "Image could not be uploaded")
		return
	}

	var input productInput
	errs, err := bind.Form(r, &input)
	if err != nil || len(errs) > 0 {
		response.Validation(w, "All fields are required")
		return
	}

	categoryID, err := primitive.ObjectIDFromHex(input.Category)
	if err != nil {
		response.Validation(w, "Invalid category")
		return
	}

	sellerID, ok := sellerFromRequest(r)
	if !ok {
		response.Unauthorized(w)
		return
	}

	files := multipartFiles(r)
	if len(files) == 0 {
		response.Validation(w, "All fields are required")
		return
	}
	for _, fh := range files {
		if fh.Size > c.maxUpload {
			response.Validation(w, "Image exceeds the upload size limit")
			return
		}
	}

	shipping, _ := strconv.ParseBool(normalizeBool(input.Shipping))
	product := &models.Product{
		Name:        input.Name,
		Description: input.Description,
		Price:       input.Price,
		Category:    categoryID,
		Quantity:    input.Quantity,
		Shipping:    shipping,
		SoldBy:      sellerID,
	}

	// Fan the uploads out, gather every result, then save once.
	var (
		mu        sync.Mutex
		photos    []models.Photo
		uploadErr error
		wg        sync.WaitGroup
	)
	for _, fh := range files {
		fh := fh
		wg.Add(1)
		task := func() {
			defer wg.Done()
			photo, err := c.uploadOne(r.Context(), fh)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				uploadErr = err
				return
			}
			photos = append(photos, photo)
		}
		if err := c.pool.Submit(task); err != nil {
			// pool saturated or shut down; run inline rather than drop the file
			task()
		}
	}
	wg.Wait()

	if uploadErr != nil {
		logger.WithCtx(r.Context()).Error("product create: upload failed", "error", uploadErr)
		response.Validation(w, "File upload failed")
		return
	}

	product.Photos = photos
	if err := c.products.Create(r.Context(), product); err != nil {
		response.Upstream(w, err)
		return
	}
	response.Success(w, product)
}

func (c *ProductController) uploadOne(ctx context.Context, fh *multipartFile) (models.Photo, error) {
	return c.photos.Upload(ctx, "products", fh.Name, fh.ContentType, fh.Data)
}

// Read returns one product with its category populated.
func (c *ProductController) Read(w http.ResponseWriter, r *http.Request) {
	product, ok := c.load(w, r)
	if !ok {
		return
	}
	response.Success(w, product)
}

// Update merges submitted form fields onto the product. An optional "photo"
// file (same size limit as create) replaces the entire photo list: the old
// objects are intent-logged and deleted, the new one uploaded, and the
// document saved once.
func (c *ProductController) Update(w http.ResponseWriter, r *http.Request) {
	product, ok := c.load(w, r)
	if !ok {
		return
	}
	if !c.authorize(w, r, product) {
		return
	}

	if err := r.ParseMultipartForm(c.maxUpload); err != nil {
		response.Validation(w, "Image could not be uploaded")
		return
	}

	// Pre-fill from the stored document so absent fields keep their values.
	input := productInput{
		Name:        product.Name,
		Description: product.Description,
		Price:       product.Price,
		Category:    product.Category.Hex(),
		Quantity:    product.Quantity,
		Shipping:    strconv.FormatBool(product.Shipping),
	}
	if errs, err := bind.Form(r, &input); err != nil || len(errs) > 0 {
		response.Validation(w, "All fields are required")
		return
	}

	categoryID, err := primitive.ObjectIDFromHex(input.Category)
	if err != nil {
		response.Validation(w, "Invalid category")
		return
	}
	shipping, _ := strconv.ParseBool(normalizeBool(input.Shipping))

	product.Name = input.Name
	product.Description = input.Description
	product.Price = input.Price
	product.Category = categoryID
	product.Quantity = input.Quantity
	product.Shipping = shipping

	if fh := singleFile(r, "photo"); fh != nil {
		if fh.Size > c.maxUpload {
			response.Validation(w, "Image exceeds the upload size limit")
			return
		}

		oldKeys := photoKeys(product.Photos)
		if err := c.intents.Record(r.Context(), c.photos.DiskName(), oldKeys...); err != nil {
			response.Upstream(w, err)
			return
		}
		cleared := []string{}
		for _, key := range oldKeys {
			if err := c.photos.Remove(r.Context(), key); err != nil {
				logger.WithCtx(r.Context()).Warn("product update: old photo delete deferred to sweep",
					"key", key, "error", err)
				continue
			}
			cleared = append(cleared, key)
		}
		if err := c.intents.Clear(r.Context(), cleared...); err != nil {
			logger.WithCtx(r.Context()).Warn("product update: clearing intents failed", "error", err)
		}

		photo, err := c.uploadOne(r.Context(), fh)
		if err != nil {
			response.Validation(w, "File upload failed")
			return
		}
		product.Photos = []models.Photo{photo}
	}

	if err := c.products.Save(r.Context(), product); err != nil {
		response.Upstream(w, err)
		return
	}
	response.Success(w, product)
}

// Remove deletes the product document, then its storage objects. Object keys
// are intent-logged before any delete, so a storage failure after the
// document is gone leaves a marker the sweep retries; the failure is still
// surfaced to the caller.
func (c *ProductController) Remove(w http.ResponseWriter, r *http.Request) {
	product, ok := c.load(w, r)
	if !ok {
		return
	}
	if !c.authorize(w, r, product) {
		return
	}

	keys := photoKeys(product.Photos)
	if err := c.intents.Record(r.Context(), c.photos.DiskName(), keys...); err != nil {
		response.Upstream(w, err)
		return
	}

	if err := c.products.Delete(r.Context(), product.ID); err != nil {
		response.Upstream(w, err)
		return
	}

	cleared := []string{}
	var storageErr error
	for _, key := range keys {
		if err := c.photos.Remove(r.Context(), key); err != nil {
			storageErr = err
			continue
		}
		cleared = append(cleared, key)
	}
	if err := c.intents.Clear(r.Context(), cleared...); err != nil {
		logger.WithCtx(r.Context()).Warn("product remove: clearing intents failed", "error", err)
	}

	if storageErr != nil {
		logger.WithCtx(r.Context()).Warn("product remove: storage delete deferred to sweep",
			"product", product.ID.Hex(), "error", storageErr)
		response.Validation(w, "Product delete failed")
		return
	}
	response.Success(w, map[string]string{"message": "Product deleted successfully"})
}

// List returns products sorted and limited by query parameters.
func (c *ProductController) List(w http.ResponseWriter, r *http.Request) {
	sortBy := r.URL.Query().Get("sortBy")
	order := r.URL.Query().Get("order")
	limit := queryInt64(r, "limit", 6)

	products, err := c.products.List(r.Context(), sortBy, order, limit)
	if err != nil {
		response.NotFound(w, "Products not found")
		return
	}
	response.Success(w, products)
}

// ListRelated returns other products in the same category.
func (c *ProductController) ListRelated(w http.ResponseWriter, r *http.Request) {
	product, ok := c.load(w, r)
	if !ok {
		return
	}

	limit := queryInt64(r, "limit", 6)
	products, err := c.products.ListRelated(r.Context(), product, limit)
	if err != nil {
		response.NotFound(w, "Products not found")
		return
	}
	response.Success(w, products)
}

// ListCategories returns the distinct categories in use.
func (c *ProductController) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := c.products.DistinctCategories(r.Context())
	if err != nil {
		response.NotFound(w, "Categories not found")
		return
	}
	response.Success(w, categories)
}

type searchBody struct {
	Order   string                   `json:"order"`
	SortBy  string                   `json:"sortBy"`
	Limit   int64                    `json:"limit"`
	Skip    int64                    `json:"skip"`
	Filters map[string][]interface{} `json:"filters"`
}

// ListBySearch runs the storefront filter query and answers {size, data}.
func (c *ProductController) ListBySearch(w http.ResponseWriter, r *http.Request) {
	var body searchBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.Validation(w, "invalid request body")
		return
	}

	filter := repositories.SearchFilter(body.Filters)
	products, err := c.products.Search(r.Context(), filter, body.SortBy, body.Order, body.Skip, body.Limit)
	if err != nil {
		response.NotFound(w, "Products not found")
		return
	}
	response.Success(w, map[string]interface{}{
		"size": len(products),
		"data": products,
	})
}

// ListSearch is the typeahead query. A missing search term answers an
// explicit empty list instead of leaving the request hanging.
func (c *ProductController) ListSearch(w http.ResponseWriter, r *http.Request) {
	search := r.URL.Query().Get("search")
	category := r.URL.Query().Get("category")

	products, err := c.products.NameSearch(r.Context(), search, category)
	if err != nil {
		response.Upstream(w, err)
		return
	}
	response.Success(w, products)
}

type orderBody struct {
	Order struct {
		Products []repositories.OrderItem `json:"products"`
	} `json:"order"`
}

// DecreaseQuantity applies an order's quantity decrements and hands the
// request to the next handler in the fulfillment chain. Stock deltas are
// broadcast to websocket subscribers after the write.
func (c *ProductController) DecreaseQuantity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body orderBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			response.Validation(w, "invalid request body")
			return
		}

		items := body.Order.Products
		if err := c.products.DecreaseQuantity(r.Context(), items); err != nil {
			response.Validation(w, "Could not update product")
			return
		}
		c.broadcastStock(items)
		next.ServeHTTP(w, r)
	})
}

// OrderProcessed terminates the fulfillment chain.
func (c *ProductController) OrderProcessed(w http.ResponseWriter, r *http.Request) {
	response.Success(w, map[string]string{"message": "Order processed"})
}

func (c *ProductController) broadcastStock(items []repositories.OrderItem) {
	if c.hub == nil {
		return
	}
	for _, item := range items {
		msg, err := json.Marshal(map[string]interface{}{
			"product_id":     item.ProductID.Hex(),
			"quantity_delta": -item.Count,
			"sold_delta":     item.Count,
		})
		if err != nil {
			continue
		}
		c.hub.Broadcast <- msg
	}
}

// Photo serves the vestigial in-document binary photo, for products created
// before object storage.
func (c *ProductController) Photo(w http.ResponseWriter, r *http.Request) {
	product, ok := c.load(w, r)
	if !ok {
		return
	}
	if product.Inline == nil || len(product.Inline.Data) == 0 {
		response.NotFound(w, "Photo not found")
		return
	}
	w.Header().Set("Content-Type", product.Inline.ContentType)
	w.Write(product.Inline.Data)
}

// ByUser lists one seller's products.
func (c *ProductController) ByUser(w http.ResponseWriter, r *http.Request) {
	sellerID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "userId"))
	if err != nil {
		response.NotFound(w, "User not found")
		return
	}

	products, err := c.products.ByUser(r.Context(), sellerID)
	if err != nil {
		response.Upstream(w, err)
		return
	}
	response.Success(w, products)
}

// ─── helpers ─────────────────────────────────────────────────────────────────

// load resolves the productId URL parameter. On failure it has already
// answered the request.
func (c *ProductController) load(w http.ResponseWriter, r *http.Request) (*models.Product, bool) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "productId"))
	if err != nil {
		response.NotFound(w, "Product not found")
		return nil, false
	}
	product, err := c.products.FindByID(r.Context(), id)
	if err != nil {
		response.NotFound(w, "Product not found")
		return nil, false
	}
	return product, true
}

// authorize enforces the seller guard: the product owner or an admin may
// mutate. On failure it has already answered 403.
func (c *ProductController) authorize(w http.ResponseWriter, r *http.Request, product *models.Product) bool {
	userID, okID := middleware.UserIDFromCtx(r)
	role, _ := middleware.RoleFromCtx(r)

	sameUser := okID && product.SoldBy.Hex() == userID
	admin := role == models.RoleAdmin
	if !sameUser && !admin {
		response.Forbidden(w, "User is not authorized")
		return false
	}
	return true
}

func sellerFromRequest(r *http.Request) (primitive.ObjectID, bool) {
	userID, ok := middleware.UserIDFromCtx(r)
	if !ok {
		return primitive.NilObjectID, false
	}
	id, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return primitive.NilObjectID, false
	}
	return id, true
}

// multipartFile is one uploaded file read into memory.
type multipartFile struct {
	Name        string
	ContentType string
	Size        int64
	Data        []byte
}

// multipartFiles flattens every uploaded file across all form keys.
func multipartFiles(r *http.Request) []*multipartFile {
	if r.MultipartForm == nil {
		return nil
	}
	var out []*multipartFile
	for _, headers := range r.MultipartForm.File {
		for _, fh := range headers {
			if f := readFile(fh); f != nil {
				out = append(out, f)
			}
		}
	}
	return out
}

func singleFile(r *http.Request, field string) *multipartFile {
	if r.MultipartForm == nil {
		return nil
	}
	headers := r.MultipartForm.File[field]
	if len(headers) == 0 {
		return nil
	}
	return readFile(headers[0])
}

func readFile(fh *multipart.FileHeader) *multipartFile {
	f, err := fh.Open()
	if err != nil {
		return nil
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil
	}
	return &multipartFile{
		Name:        fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
		Data:        data,
	}
}

func photoKeys(photos []models.Photo) []string {
	keys := make([]string, 0, len(photos))
	for _, p := range photos {
		keys = append(keys, p.Key)
	}
	return keys
}

func queryInt64(r *http.Request, key string, fallback int64) int64 {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}

// normalizeBool maps the storefront's Yes/No shipping values onto ParseBool
// input.
func normalizeBool(s string) string {
	switch s {
	case "Yes", "yes":
		return "true"
	case "No", "no":
		return "false"
	}
	return s
}

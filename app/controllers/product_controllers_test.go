package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/shashiranjanraj/dukaan/app/models"
	"github.com/shashiranjanraj/dukaan/app/repositories"
	"github.com/shashiranjanraj/dukaan/pkg/middleware"
	"github.com/shashiranjanraj/dukaan/pkg/workerpool"
)

// ─── fakes ───────────────────────────────────────────────────────────────────

type fakeStore struct {
	products map[primitive.ObjectID]*models.Product
	creates  int
	saves    int
	deletes  int
}

func newFakeStore(products ...*models.Product) *fakeStore {
	s := &fakeStore{products: map[primitive.ObjectID]*models.Product{}}
	for _, p := range products {
		s.products[p.ID] = p
	}
	return s
}

func (s *fakeStore) FindByID(_ context.Context, id primitive.ObjectID) (*models.Product, error) {
	p, ok := s.products[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *fakeStore) List(context.Context, string, string, int64) ([]*models.Product, error) {
	out := []*models.Product{}
	for _, p := range s.products {
		out = append(out, p)
	}
	return out, nil
}

func (s *fakeStore) ListRelated(_ context.Context, product *models.Product, _ int64) ([]*models.Product, error) {
	out := []*models.Product{}
	for _, p := range s.products {
		if p.ID != product.ID && p.Category == product.Category {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *fakeStore) DistinctCategories(context.Context) ([]models.Category, error) {
	return []models.Category{}, nil
}

func (s *fakeStore) Search(context.Context, bson.M, string, string, int64, int64) ([]*models.Product, error) {
	out := []*models.Product{}
	for _, p := range s.products {
		out = append(out, p)
	}
	return out, nil
}

func (s *fakeStore) NameSearch(_ context.Context, search, _ string) ([]*models.Product, error) {
	out := []*models.Product{}
	if search == "" {
		return out, nil
	}
	for _, p := range s.products {
		if strings.Contains(strings.ToLower(p.Name), strings.ToLower(search)) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *fakeStore) DecreaseQuantity(_ context.Context, items []repositories.OrderItem) error {
	for _, item := range items {
		p, ok := s.products[item.ProductID]
		if !ok {
			continue
		}
		p.Quantity -= item.Count
		p.Sold += item.Count
	}
	return nil
}

func (s *fakeStore) ByUser(_ context.Context, sellerID primitive.ObjectID) ([]*models.Product, error) {
	out := []*models.Product{}
	for _, p := range s.products {
		if p.SoldBy == sellerID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *fakeStore) Create(_ context.Context, product *models.Product) error {
	s.creates++
	if product.ID.IsZero() {
		product.ID = primitive.NewObjectID()
	}
	cp := *product
	s.products[product.ID] = &cp
	return nil
}

func (s *fakeStore) Save(_ context.Context, product *models.Product) error {
	s.saves++
	cp := *product
	s.products[product.ID] = &cp
	return nil
}

func (s *fakeStore) Delete(_ context.Context, id primitive.ObjectID) error {
	s.deletes++
	delete(s.products, id)
	return nil
}

type fakeUploader struct {
	uploads    int
	removed    []string
	failRemove bool
}

func (u *fakeUploader) Upload(_ context.Context, prefix, name, contentType string, _ []byte) (models.Photo, error) {
	u.uploads++
	key := prefix + "/" + name
	return models.Photo{URL: "http://store.test/" + key, Key: key, Name: name, ContentType: contentType}, nil
}

func (u *fakeUploader) Remove(_ context.Context, key string) error {
	if u.failRemove {
		return errors.New("storage unavailable")
	}
	u.removed = append(u.removed, key)
	return nil
}

func (u *fakeUploader) DiskName() string { return "fake" }

type fakeIntents struct {
	recorded []string
	cleared  []string
}

func (i *fakeIntents) Record(_ context.Context, _ string, keys ...string) error {
	i.recorded = append(i.recorded, keys...)
	return nil
}

func (i *fakeIntents) Clear(_ context.Context, keys ...string) error {
	i.cleared = append(i.cleared, keys...)
	return nil
}

// ─── helpers ─────────────────────────────────────────────────────────────────

func newController(store *fakeStore, uploader *fakeUploader, intents *fakeIntents) *ProductController {
	return NewProductController(store, intents, uploader, workerpool.New(4), nil, 2<<20)
}

func withIdentity(r *http.Request, id primitive.ObjectID, role string) *http.Request {
	return r.WithContext(middleware.WithIdentity(r.Context(), id.Hex(), role))
}

func withProductParam(r *http.Request, id primitive.ObjectID) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("productId", id.Hex())
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// multipartBody builds a product form with the given fields and photo files.
func multipartBody(t *testing.T, fields map[string]string, files int) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	for i := 0; i < files; i++ {
		part, err := w.CreateFormFile(fmt.Sprintf("photo%d", i), fmt.Sprintf("photo%d.jpg", i))
		require.NoError(t, err)
		_, err = part.Write([]byte("jpeg-bytes"))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func allFields() map[string]string {
	return map[string]string{
		"name":        "Blue Kurta",
		"description": "Hand-woven cotton",
		"price":       "499.5",
		"category":    primitive.NewObjectID().Hex(),
		"quantity":    "10",
		"shipping":    "Yes",
	}
}

func errBody(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body["error"]
}

// ─── create ──────────────────────────────────────────────────────────────────

func TestCreateMissingFieldRejected(t *testing.T) {
	store := newFakeStore()
	uploader := &fakeUploader{}
	c := newController(store, uploader, &fakeIntents{})

	fields := allFields()
	delete(fields, "description")
	body, ct := multipartBody(t, fields, 1)

	req := httptest.NewRequest(http.MethodPost, "/api/product/create", body)
	req.Header.Set("Content-Type", ct)
	req = withIdentity(req, primitive.NewObjectID(), models.RoleSubscriber)

	rec := httptest.NewRecorder()
	c.Create(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "All fields are required", errBody(t, rec))
	assert.Zero(t, store.creates, "no document may be created")
	assert.Zero(t, uploader.uploads, "no object may be uploaded")
}

func TestCreateWithoutFilesRejected(t *testing.T) {
	store := newFakeStore()
	c := newController(store, &fakeUploader{}, &fakeIntents{})

	body, ct := multipartBody(t, allFields(), 0)
	req := httptest.NewRequest(http.MethodPost, "/api/product/create", body)
	req.Header.Set("Content-Type", ct)
	req = withIdentity(req, primitive.NewObjectID(), models.RoleSubscriber)

	rec := httptest.NewRecorder()
	c.Create(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, store.creates)
}

func TestCreateGathersUploadsAndSavesOnce(t *testing.T) {
	store := newFakeStore()
	uploader := &fakeUploader{}
	c := newController(store, uploader, &fakeIntents{})

	seller := primitive.NewObjectID()
	body, ct := multipartBody(t, allFields(), 3)
	req := httptest.NewRequest(http.MethodPost, "/api/product/create", body)
	req.Header.Set("Content-Type", ct)
	req = withIdentity(req, seller, models.RoleSubscriber)

	rec := httptest.NewRecorder()
	c.Create(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 3, uploader.uploads)
	assert.Equal(t, 1, store.creates, "all photos gathered, document saved exactly once")

	var created models.Product
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Len(t, created.Photos, 3)
	assert.Equal(t, seller, created.SoldBy)
	assert.True(t, created.Shipping)
}

func TestCreateAcceptsLowercaseShippingValues(t *testing.T) {
	store := newFakeStore()
	c := newController(store, &fakeUploader{}, &fakeIntents{})

	fields := allFields()
	fields["shipping"] = "no"
	body, ct := multipartBody(t, fields, 1)

	req := httptest.NewRequest(http.MethodPost, "/api/product/create", body)
	req.Header.Set("Content-Type", ct)
	req = withIdentity(req, primitive.NewObjectID(), models.RoleSubscriber)

	rec := httptest.NewRecorder()
	c.Create(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var created models.Product
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.False(t, created.Shipping)
}

func TestCreateOversizedPhotoRejected(t *testing.T) {
	store := newFakeStore()
	uploader := &fakeUploader{}
	c := NewProductController(store, &fakeIntents{}, uploader, workerpool.New(4), nil, 4)

	body, ct := multipartBody(t, allFields(), 1) // payload is larger than 4 bytes
	req := httptest.NewRequest(http.MethodPost, "/api/product/create", body)
	req.Header.Set("Content-Type", ct)
	req = withIdentity(req, primitive.NewObjectID(), models.RoleSubscriber)

	rec := httptest.NewRecorder()
	c.Create(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Image exceeds the upload size limit", errBody(t, rec))
	assert.Zero(t, uploader.uploads)
	assert.Zero(t, store.creates)
}

func TestCreateUnauthenticatedRejected(t *testing.T) {
	store := newFakeStore()
	c := newController(store, &fakeUploader{}, &fakeIntents{})

	body, ct := multipartBody(t, allFields(), 1)
	req := httptest.NewRequest(http.MethodPost, "/api/product/create", body)
	req.Header.Set("Content-Type", ct)

	rec := httptest.NewRecorder()
	c.Create(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Zero(t, store.creates)
}

// ─── ownership guard ─────────────────────────────────────────────────────────

func TestUpdateForbiddenForNonOwner(t *testing.T) {
	owner := primitive.NewObjectID()
	product := &models.Product{
		ID:       primitive.NewObjectID(),
		Name:     "Sneakers",
		Category: primitive.NewObjectID(),
		SoldBy:   owner,
	}
	store := newFakeStore(product)
	c := newController(store, &fakeUploader{}, &fakeIntents{})

	body, ct := multipartBody(t, map[string]string{"name": "Hijacked"}, 0)
	req := httptest.NewRequest(http.MethodPut, "/api/product/"+product.ID.Hex(), body)
	req.Header.Set("Content-Type", ct)
	req = withProductParam(req, product.ID)
	req = withIdentity(req, primitive.NewObjectID(), models.RoleSubscriber)

	rec := httptest.NewRecorder()
	c.Update(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "User is not authorized", errBody(t, rec))
	assert.Zero(t, store.saves, "no mutation on forbidden request")
	assert.Equal(t, "Sneakers", store.products[product.ID].Name)
}

func TestUpdateMergesFieldsAndReplacesPhoto(t *testing.T) {
	owner := primitive.NewObjectID()
	product := &models.Product{
		ID:          primitive.NewObjectID(),
		Name:        "Sneakers",
		Description: "Lightweight trainers",
		Price:       80,
		Category:    primitive.NewObjectID(),
		Quantity:    5,
		SoldBy:      owner,
		Photos:      []models.Photo{{Key: "products/old.jpg"}},
	}
	store := newFakeStore(product)
	uploader := &fakeUploader{}
	intents := &fakeIntents{}
	c := newController(store, uploader, intents)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	require.NoError(t, w.WriteField("name", "Runners"))
	part, err := w.CreateFormFile("photo", "new.jpg")
	require.NoError(t, err)
	_, err = part.Write([]byte("jpeg-bytes"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPut, "/api/product/"+product.ID.Hex(), &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req = withProductParam(req, product.ID)
	req = withIdentity(req, owner, models.RoleSubscriber)

	rec := httptest.NewRecorder()
	c.Update(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// submitted field applied, absent fields keep their stored values
	assert.Equal(t, 1, store.saves, "document saved exactly once")
	updated := store.products[product.ID]
	assert.Equal(t, "Runners", updated.Name)
	assert.Equal(t, "Lightweight trainers", updated.Description)
	assert.Equal(t, float64(80), updated.Price)
	assert.Equal(t, 5, updated.Quantity)

	// old object intent-logged, deleted and cleared; photo list overwritten
	require.Len(t, updated.Photos, 1)
	assert.Equal(t, "new.jpg", updated.Photos[0].Name)
	assert.Equal(t, 1, uploader.uploads)
	assert.Equal(t, []string{"products/old.jpg"}, intents.recorded)
	assert.Equal(t, []string{"products/old.jpg"}, uploader.removed)
	assert.Equal(t, []string{"products/old.jpg"}, intents.cleared)
}

func TestUpdateWithoutPhotoKeepsStoredPhotos(t *testing.T) {
	owner := primitive.NewObjectID()
	product := &models.Product{
		ID:          primitive.NewObjectID(),
		Name:        "Sneakers",
		Description: "Lightweight trainers",
		Price:       80,
		Category:    primitive.NewObjectID(),
		Quantity:    5,
		SoldBy:      owner,
		Photos:      []models.Photo{{Key: "products/keep.jpg"}},
	}
	store := newFakeStore(product)
	uploader := &fakeUploader{}
	intents := &fakeIntents{}
	c := newController(store, uploader, intents)

	body, ct := multipartBody(t, map[string]string{"price": "120"}, 0)
	req := httptest.NewRequest(http.MethodPut, "/api/product/"+product.ID.Hex(), body)
	req.Header.Set("Content-Type", ct)
	req = withProductParam(req, product.ID)
	req = withIdentity(req, owner, models.RoleSubscriber)

	rec := httptest.NewRecorder()
	c.Update(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	updated := store.products[product.ID]
	assert.Equal(t, float64(120), updated.Price)
	assert.Equal(t, []models.Photo{{Key: "products/keep.jpg"}}, updated.Photos)
	assert.Zero(t, uploader.uploads)
	assert.Empty(t, intents.recorded, "no photo submitted, nothing intent-logged")
}

func TestRemoveForbiddenForNonOwner(t *testing.T) {
	product := &models.Product{
		ID:     primitive.NewObjectID(),
		SoldBy: primitive.NewObjectID(),
	}
	store := newFakeStore(product)
	c := newController(store, &fakeUploader{}, &fakeIntents{})

	req := httptest.NewRequest(http.MethodDelete, "/api/product/"+product.ID.Hex(), nil)
	req = withProductParam(req, product.ID)
	req = withIdentity(req, primitive.NewObjectID(), models.RoleSubscriber)

	rec := httptest.NewRecorder()
	c.Remove(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Zero(t, store.deletes)
}

func TestAdminMayRemoveAnyProduct(t *testing.T) {
	product := &models.Product{
		ID:     primitive.NewObjectID(),
		SoldBy: primitive.NewObjectID(),
		Photos: []models.Photo{{Key: "products/a.jpg"}},
	}
	store := newFakeStore(product)
	uploader := &fakeUploader{}
	intents := &fakeIntents{}
	c := newController(store, uploader, intents)

	req := httptest.NewRequest(http.MethodDelete, "/api/product/"+product.ID.Hex(), nil)
	req = withProductParam(req, product.ID)
	req = withIdentity(req, primitive.NewObjectID(), models.RoleAdmin)

	rec := httptest.NewRecorder()
	c.Remove(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, store.deletes)
	assert.Equal(t, []string{"products/a.jpg"}, uploader.removed)
	assert.Equal(t, []string{"products/a.jpg"}, intents.cleared)
}

// ─── two-phase delete ────────────────────────────────────────────────────────

func TestRemoveStorageFailureLeavesIntent(t *testing.T) {
	owner := primitive.NewObjectID()
	product := &models.Product{
		ID:     primitive.NewObjectID(),
		SoldBy: owner,
		Photos: []models.Photo{{Key: "products/b.jpg"}},
	}
	store := newFakeStore(product)
	uploader := &fakeUploader{failRemove: true}
	intents := &fakeIntents{}
	c := newController(store, uploader, intents)

	req := httptest.NewRequest(http.MethodDelete, "/api/product/"+product.ID.Hex(), nil)
	req = withProductParam(req, product.ID)
	req = withIdentity(req, owner, models.RoleSubscriber)

	rec := httptest.NewRecorder()
	c.Remove(rec, req)

	// Document is gone, storage failure is surfaced, intent stays for the sweep.
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 1, store.deletes)
	assert.Equal(t, []string{"products/b.jpg"}, intents.recorded)
	assert.Empty(t, intents.cleared)
}

// ─── listings ────────────────────────────────────────────────────────────────

func TestListSearchEmptyTermAnswersEmptyList(t *testing.T) {
	store := newFakeStore(&models.Product{ID: primitive.NewObjectID(), Name: "Shoes"})
	c := newController(store, &fakeUploader{}, &fakeIntents{})

	req := httptest.NewRequest(http.MethodGet, "/api/products/search", nil)
	rec := httptest.NewRecorder()
	c.ListSearch(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestListSearchMatchesByName(t *testing.T) {
	store := newFakeStore(
		&models.Product{ID: primitive.NewObjectID(), Name: "Running Shoes"},
		&models.Product{ID: primitive.NewObjectID(), Name: "Kettle"},
	)
	c := newController(store, &fakeUploader{}, &fakeIntents{})

	req := httptest.NewRequest(http.MethodGet, "/api/products/search?search=shoe", nil)
	rec := httptest.NewRecorder()
	c.ListSearch(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got []models.Product
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "Running Shoes", got[0].Name)
}

func TestListBySearchShape(t *testing.T) {
	store := newFakeStore(
		&models.Product{ID: primitive.NewObjectID(), Name: "A"},
		&models.Product{ID: primitive.NewObjectID(), Name: "B"},
	)
	c := newController(store, &fakeUploader{}, &fakeIntents{})

	payload := `{"filters":{"price":[0,100]}}`
	req := httptest.NewRequest(http.MethodPost, "/api/products/by/search", strings.NewReader(payload))
	rec := httptest.NewRecorder()
	c.ListBySearch(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got struct {
		Size int               `json:"size"`
		Data []json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, 2, got.Size)
	assert.Len(t, got.Data, 2)
}

func TestReadUnknownProduct(t *testing.T) {
	c := newController(newFakeStore(), &fakeUploader{}, &fakeIntents{})

	id := primitive.NewObjectID()
	req := httptest.NewRequest(http.MethodGet, "/api/product/"+id.Hex(), nil)
	req = withProductParam(req, id)

	rec := httptest.NewRecorder()
	c.Read(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Product not found", errBody(t, rec))
}

// ─── order fulfillment ───────────────────────────────────────────────────────

func TestDecreaseQuantityAppliesDeltasAndChains(t *testing.T) {
	shoes := &models.Product{ID: primitive.NewObjectID(), Name: "Shoes", Quantity: 10, Sold: 0}
	other := &models.Product{ID: primitive.NewObjectID(), Name: "Kettle", Quantity: 5, Sold: 1}
	store := newFakeStore(shoes, other)
	c := newController(store, &fakeUploader{}, &fakeIntents{})

	nextCalled := false
	handler := c.DecreaseQuantity(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		nextCalled = true
		w.WriteHeader(http.StatusOK)
	}))

	payload := fmt.Sprintf(`{"order":{"products":[{"_id":%q,"count":2}]}}`, shoes.ID.Hex())
	req := httptest.NewRequest(http.MethodPost, "/api/order", strings.NewReader(payload))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.True(t, nextCalled, "chain continues after the decrement")
	assert.Equal(t, 8, store.products[shoes.ID].Quantity)
	assert.Equal(t, 2, store.products[shoes.ID].Sold)
	// untouched line items stay untouched
	assert.Equal(t, 5, store.products[other.ID].Quantity)
	assert.Equal(t, 1, store.products[other.ID].Sold)
}

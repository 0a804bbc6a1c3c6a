package services

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"realestate/internal/domain"
	"realestate/internal/storage"
	"realestate/internal/testutil"
	apperrors "realestate/pkg/errors"
)

type fakeImages struct {
	err     error
	name    string
	content string
}

func (f *fakeImages) Upload(_ context.Context, originalName, _ string, content io.Reader) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	b, _ := io.ReadAll(content)
	f.name = originalName
	f.content = string(b)
	return "https://cdn.test/property-images/" + originalName, nil
}

func newPropertyService(t *testing.T, images ImageStore) (*PropertyService, *gorm.DB) {
	t.Helper()
	db := testutil.NewDB(t)
	settings := NewSettingsService(db, nil, testGateway)
	return NewPropertyService(db, images, NewAnalyticsService(db, settings), newWebhooks(db), NewTasks()), db
}

func listing(title, location, kind string, price float64, bedrooms int, featured bool) PropertyInput {
	return PropertyInput{
		Title:    title,
		Location: location,
		Type:     kind,
		Status:   domain.PropertyStatusForSale,
		Price:    price,
		Bedrooms: bedrooms,
		Featured: featured,
	}
}

func TestPropertyCRUD(t *testing.T) {
	svc, _ := newPropertyService(t, nil)
	ctx := context.Background()

	in := listing(" Apartamento Vila Mariana ", "São Paulo, SP", domain.PropertyTypeApartment, 850000, 3, true)
	in.Images = []string{"https://cdn.test/a.jpg", "  "}
	created, err := svc.Create(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, "Apartamento Vila Mariana", created.Title)
	assert.Equal(t, []string{"https://cdn.test/a.jpg"}, []string(created.Images))

	got, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, 850000.0, got.Price)

	in.Status = domain.PropertyStatusSold
	in.Price = 800000
	updated, err := svc.Update(ctx, created.ID, in)
	require.NoError(t, err)
	assert.Equal(t, domain.PropertyStatusSold, updated.Status)
	assert.Equal(t, 800000.0, updated.Price)

	require.NoError(t, svc.Delete(ctx, created.ID))
	_, err = svc.Get(ctx, created.ID)
	assert.True(t, apperrors.IsNotFound(err))
	assert.True(t, apperrors.IsNotFound(svc.Delete(ctx, created.ID)))
}

func TestPropertyValidation(t *testing.T) {
	svc, _ := newPropertyService(t, nil)
	ctx := context.Background()

	cases := map[string]PropertyInput{
		"missing title":  listing("", "Santos", domain.PropertyTypeHouse, 1, 1, false),
		"bad type":       listing("Casa", "Santos", "castle", 1, 1, false),
		"negative price": listing("Casa", "Santos", domain.PropertyTypeHouse, -1, 1, false),
		"missing place":  listing("Casa", " ", domain.PropertyTypeHouse, 1, 1, false),
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Create(ctx, in)
			assert.True(t, apperrors.IsValidation(err), "got %v", err)
		})
	}

	bad := listing("Casa", "Santos", domain.PropertyTypeHouse, 1, 1, false)
	bad.Status = "leased"
	_, err := svc.Create(ctx, bad)
	assert.True(t, apperrors.IsValidation(err))
}

func TestPropertyListFilters(t *testing.T) {
	svc, _ := newPropertyService(t, nil)
	ctx := context.Background()

	for _, in := range []PropertyInput{
		listing("Cobertura", "São Paulo, SP", domain.PropertyTypeApartment, 1200000, 4, true),
		listing("Casa de praia", "Guarujá, SP", domain.PropertyTypeHouse, 650000, 3, false),
		listing("Sala comercial", "São Paulo, SP", domain.PropertyTypeCommercial, 300000, 0, false),
	} {
		_, err := svc.Create(ctx, in)
		require.NoError(t, err)
	}

	featured := true
	got, err := svc.List(ctx, PropertyFilter{Featured: &featured})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Cobertura", got[0].Title)

	got, err = svc.List(ctx, PropertyFilter{Location: "são paulo"})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = svc.List(ctx, PropertyFilter{Type: domain.PropertyTypeHouse})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Casa de praia", got[0].Title)

	minPrice, maxPrice := 500000.0, 1000000.0
	got, err = svc.List(ctx, PropertyFilter{MinPrice: &minPrice, MaxPrice: &maxPrice})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Casa de praia", got[0].Title)

	bedrooms := 3
	got, err = svc.List(ctx, PropertyFilter{MinBedrooms: &bedrooms})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = svc.List(ctx, PropertyFilter{})
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestPropertyRecordView(t *testing.T) {
	svc, db := newPropertyService(t, nil)
	ctx := context.Background()
	target := newHookTarget(t, http.StatusOK, nil)
	registerHook(t, db, "views", target.URL, domain.EventPropertyView, true)

	property, err := svc.Create(ctx, listing("Casa", "Campinas", domain.PropertyTypeHouse, 500000, 3, false))
	require.NoError(t, err)

	require.NoError(t, svc.RecordView(ctx, property.ID, RequestMeta{}))
	svc.Wait()

	var events []domain.AnalyticsEvent
	require.NoError(t, db.Where("event_type = ?", domain.AnalyticsViewItem).Find(&events).Error)
	require.Len(t, events, 1)
	require.NotNil(t, events[0].PropertyID)
	assert.Equal(t, property.ID, *events[0].PropertyID)
	assert.Contains(t, string(events[0].EventData), `"currency":"BRL"`)

	envs := target.received()
	require.Len(t, envs, 1)
	assert.Equal(t, domain.EventPropertyView, envs[0]["eventType"])

	assert.True(t, apperrors.IsNotFound(svc.RecordView(ctx, "missing", RequestMeta{})))
}

func TestPropertyUploadImage(t *testing.T) {
	images := &fakeImages{}
	svc, _ := newPropertyService(t, images)
	ctx := context.Background()

	url, err := svc.UploadImage(ctx, "fachada.jpg", "image/jpeg", strings.NewReader("pixels"))
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.test/property-images/fachada.jpg", url)
	assert.Equal(t, "pixels", images.content)

	_, err = svc.UploadImage(ctx, "planta.pdf", "application/pdf", strings.NewReader("x"))
	assert.True(t, apperrors.IsValidation(err))

	images.err = storage.ErrNotConfigured
	_, err = svc.UploadImage(ctx, "a.png", "image/png", strings.NewReader("x"))
	assert.Equal(t, apperrors.ErrCodeBadRequest, apperrors.CodeOf(err))

	images.err = errors.New("bucket unavailable")
	_, err = svc.UploadImage(ctx, "a.png", "image/png", strings.NewReader("x"))
	assert.Equal(t, apperrors.ErrCodeInternalError, apperrors.CodeOf(err))

	noStore, _ := newPropertyService(t, nil)
	_, err = noStore.UploadImage(ctx, "a.png", "image/png", strings.NewReader("x"))
	assert.Equal(t, apperrors.ErrCodeBadRequest, apperrors.CodeOf(err))
}

package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cdm-registrar/registrar-api/internal/models"
	appErrors "github.com/cdm-registrar/registrar-api/pkg/errors"
)

type stubDocumentTypeStore struct {
	types     []models.DocumentType
	listCalls int
}

func (m *stubDocumentTypeStore) ListActive(ctx context.Context) ([]models.DocumentType, error) {
	m.listCalls++
	return m.types, nil
}

func (m *stubDocumentTypeStore) GetActiveByID(ctx context.Context, id int64) (*models.DocumentType, error) {
	for _, dt := range m.types {
		if dt.ID == id {
			return &dt, nil
		}
	}
	return nil, sql.ErrNoRows
}

type memoryCache struct {
	entries map[string][]byte
	getErr  error
}

func (m *memoryCache) Get(ctx context.Context, key string, dest interface{}) error {
	if m.getErr != nil {
		return m.getErr
	}
	data, ok := m.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(data, dest)
}

func (m *memoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if m.entries == nil {
		m.entries = make(map[string][]byte)
	}
	m.entries[key] = data
	return nil
}

func TestDocumentTypeListWarmsCache(t *testing.T) {
	store := &stubDocumentTypeStore{types: []models.DocumentType{
		{ID: 1, Name: "Certificate of Enrollment", Active: true},
		{ID: 2, Name: "Transcript of Records", RequiresPayment: true, Amount: 150, Active: true},
	}}
	cache := &memoryCache{}
	svc := NewDocumentTypeService(store, cache, time.Minute, zap.NewNop())

	types, err := svc.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, types, 2)
	assert.Equal(t, 1, store.listCalls)

	// Second read comes from the cache.
	types, err = svc.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, types, 2)
	assert.Equal(t, 1, store.listCalls)
}

func TestDocumentTypeListSurvivesCacheFailure(t *testing.T) {
	store := &stubDocumentTypeStore{types: []models.DocumentType{{ID: 1, Name: "Form 137", Active: true}}}
	cache := &memoryCache{getErr: errors.New("redis gone")}
	svc := NewDocumentTypeService(store, cache, time.Minute, zap.NewNop())

	types, err := svc.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, types, 1)
}

func TestDocumentTypeListWithoutCache(t *testing.T) {
	store := &stubDocumentTypeStore{types: []models.DocumentType{{ID: 1, Name: "Form 137", Active: true}}}
	svc := NewDocumentTypeService(store, nil, time.Minute, zap.NewNop())

	types, err := svc.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, types, 1)
}

func TestGetActiveDocumentType(t *testing.T) {
	store := &stubDocumentTypeStore{types: []models.DocumentType{{ID: 2, Name: "Transcript of Records", Active: true}}}
	svc := NewDocumentTypeService(store, nil, time.Minute, zap.NewNop())

	dt, err := svc.GetActive(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, "Transcript of Records", dt.Name)

	_, err = svc.GetActive(context.Background(), 99)
	assert.ErrorIs(t, err, appErrors.ErrInvalidDocumentType)
}

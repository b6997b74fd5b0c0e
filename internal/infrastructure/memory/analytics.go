package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/agro-inventario/internal/domain"
	"github.com/jhoicas/agro-inventario/internal/domain/entity"
	"github.com/jhoicas/agro-inventario/internal/domain/inventory"
	"github.com/jhoicas/agro-inventario/internal/domain/repository"
)

var (
	_ repository.AnalyticsRepository = (*AnalyticsRepository)(nil)
	_ repository.DocumentStore       = (*DocumentStore)(nil)
)

// AnalyticsRepository lecturas de valoración sobre el Store.
type AnalyticsRepository struct {
	store *Store
}

func NewAnalyticsRepository(store *Store) *AnalyticsRepository {
	return &AnalyticsRepository{store: store}
}

func (r *AnalyticsRepository) CurrentValuation(_ context.Context) (decimal.Decimal, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	total := decimal.Zero
	for _, p := range r.store.st.products {
		if p.Active {
			total = total.Add(p.Valuation())
		}
	}
	return total, nil
}

func (r *AnalyticsRepository) MonthlyTotals(_ context.Context, from, to time.Time) ([]inventory.MonthlyTotals, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	byMonth := map[time.Time]*inventory.MonthlyTotals{}
	for _, m := range r.store.st.movements {
		if !m.IsLive() || m.Date.Before(from) || !m.Date.Before(to) {
			continue
		}
		key := inventory.MonthStart(m.Date.In(from.Location()))
		t, ok := byMonth[key]
		if !ok {
			t = &inventory.MonthlyTotals{Month: key, Entries: decimal.Zero, Exits: decimal.Zero}
			byMonth[key] = t
		}
		if m.Type == entity.MovementTypeEntry {
			t.Entries = t.Entries.Add(m.Value)
		} else {
			t.Exits = t.Exits.Add(m.Value)
		}
	}

	out := make([]inventory.MonthlyTotals, 0, len(byMonth))
	for _, t := range byMonth {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month.Before(out[j].Month) })
	return out, nil
}

type document struct {
	filename    string
	contentType string
	data        []byte
}

// DocumentStore almacén de blobs en memoria. FailDelete simula una caída del almacén al borrar.
type DocumentStore struct {
	mu         sync.Mutex
	docs       map[string]document
	FailDelete error
}

func NewDocumentStore() *DocumentStore {
	return &DocumentStore{docs: make(map[string]document)}
}

func (s *DocumentStore) Put(_ context.Context, filename, contentType string, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("leer documento: %w", err)
	}
	ref := uuid.New().String()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[ref] = document{filename: filename, contentType: contentType, data: data}
	return ref, nil
}

func (s *DocumentStore) Open(_ context.Context, ref string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.docs[ref]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(d.data)), nil
}

func (s *DocumentStore) Delete(_ context.Context, ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailDelete != nil {
		return s.FailDelete
	}
	if _, ok := s.docs[ref]; !ok {
		return domain.ErrNotFound
	}
	delete(s.docs, ref)
	return nil
}

// Has indica si el documento existe.
func (s *DocumentStore) Has(ref string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.docs[ref]
	return ok
}

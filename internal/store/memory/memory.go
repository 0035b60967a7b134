// Package memory is an in-process implementation of store.Store used for the
// "memory" environment and in tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"go-pos-engine/internal/apperr"
	"go-pos-engine/internal/models"
	"go-pos-engine/internal/store"
)

type Store struct {
	mu         sync.RWMutex
	seq        map[string]uint
	products   map[uint]models.Product
	promotions map[uint]models.Promotion
	links      map[uint]map[uint]bool // productID -> promotionIDs
	sales      map[uint]models.Sale
	movements  []models.StockMovement
	auditLogs  []models.AuditLog
	incidents  []models.Incident
	users      map[string]models.User
	now        func() time.Time
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		seq:        map[string]uint{},
		products:   map[uint]models.Product{},
		promotions: map[uint]models.Promotion{},
		links:      map[uint]map[uint]bool{},
		sales:      map[uint]models.Sale{},
		users:      map[string]models.User{},
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) nextID(kind string) uint {
	s.seq[kind]++
	return s.seq[kind]
}

// --- products ---

func (s *Store) CreateProduct(_ context.Context, p *models.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.ID = s.nextID("product")
	p.CreatedAt = s.now()
	p.UpdatedAt = p.CreatedAt
	s.products[p.ID] = *p
	return nil
}

func (s *Store) GetProduct(_ context.Context, id uint) (*models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return &p, nil
}

func (s *Store) ListProducts(_ context.Context) ([]models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) UpdateProduct(_ context.Context, id uint, patch store.ProductPatch) (*models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	if patch.Name != nil {
		p.Name = *patch.Name
	}
	if patch.Category != nil {
		p.Category = *patch.Category
	}
	if patch.Price != nil {
		p.Price = *patch.Price
	}
	if patch.MinimumStock != nil {
		p.MinimumStock = *patch.MinimumStock
	}
	if patch.ImageURL != nil {
		p.ImageURL = *patch.ImageURL
	}
	p.UpdatedAt = s.now()
	s.products[id] = p
	return &p, nil
}

func (s *Store) DeleteProduct(_ context.Context, id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[id]; !ok {
		return apperr.ErrNotFound
	}
	delete(s.products, id)
	delete(s.links, id)
	return nil
}

func (s *Store) CompareAndSetStock(_ context.Context, id uint, expected, next int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return false, apperr.ErrNotFound
	}
	if p.StockQuantity != expected {
		return false, nil
	}
	p.StockQuantity = next
	p.UpdatedAt = s.now()
	s.products[id] = p
	return true, nil
}

// --- promotions ---

func (s *Store) CreatePromotion(_ context.Context, p *models.Promotion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.ID = s.nextID("promotion")
	p.CreatedAt = s.now()
	p.UpdatedAt = p.CreatedAt
	s.promotions[p.ID] = *p
	return nil
}

func (s *Store) GetPromotion(_ context.Context, id uint) (*models.Promotion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.promotions[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return &p, nil
}

func (s *Store) ListPromotions(_ context.Context) ([]models.Promotion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Promotion, 0, len(s.promotions))
	for _, p := range s.promotions {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) SetPromotionActive(_ context.Context, id uint, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.promotions[id]
	if !ok {
		return apperr.ErrNotFound
	}
	p.IsActive = active
	p.UpdatedAt = s.now()
	s.promotions[id] = p
	return nil
}

func (s *Store) DeletePromotion(_ context.Context, id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.promotions[id]; !ok {
		return apperr.ErrNotFound
	}
	delete(s.promotions, id)
	for _, promos := range s.links {
		delete(promos, id)
	}
	return nil
}

func (s *Store) LinkProduct(_ context.Context, promotionID, productID uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.promotions[promotionID]; !ok {
		return apperr.ErrNotFound
	}
	if _, ok := s.products[productID]; !ok {
		return apperr.ErrNotFound
	}
	if s.links[productID] == nil {
		s.links[productID] = map[uint]bool{}
	}
	s.links[productID][promotionID] = true
	return nil
}

func (s *Store) UnlinkProduct(_ context.Context, promotionID, productID uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.links[productID], promotionID)
	return nil
}

func (s *Store) ActivePromotionsForProduct(_ context.Context, productID uint, at time.Time) ([]models.Promotion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Promotion
	for id := range s.links[productID] {
		p, ok := s.promotions[id]
		if ok && p.EffectiveAt(at) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// --- sales ---

func (s *Store) CreateSale(_ context.Context, sale *models.Sale) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sale.ID = s.nextID("sale")
	sale.CreatedAt = s.now()
	s.sales[sale.ID] = *sale
	return nil
}

func (s *Store) GetSale(_ context.Context, id uint) (*models.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sale, ok := s.sales[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return &sale, nil
}

func (s *Store) ListSales(_ context.Context, limit int) ([]models.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Sale, 0, len(s.sales))
	for _, sale := range s.sales {
		out = append(out, sale)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SaleDate.Equal(out[j].SaleDate) {
			return out[i].ID > out[j].ID
		}
		return out[i].SaleDate.After(out[j].SaleDate)
	})
	if limit = store.ClampLimit(limit); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) DeleteSale(_ context.Context, id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sales[id]; !ok {
		return apperr.ErrNotFound
	}
	delete(s.sales, id)
	return nil
}

// --- movements ---

func (s *Store) CreateMovement(_ context.Context, m *models.StockMovement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m.ID = s.nextID("movement")
	m.CreatedAt = s.now()
	s.movements = append(s.movements, *m)
	return nil
}

func (s *Store) ListMovements(_ context.Context, productID uint, limit int) ([]models.StockMovement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.StockMovement
	for i := len(s.movements) - 1; i >= 0; i-- {
		if s.movements[i].ProductID == productID {
			out = append(out, s.movements[i])
		}
	}
	if limit = store.ClampLimit(limit); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) FindMovementByReference(_ context.Context, refType string, refID uint, movementType models.MovementType) (*models.StockMovement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.movements {
		if m.ReferenceType == refType && m.ReferenceID != nil && *m.ReferenceID == refID && m.MovementType == movementType {
			found := m
			return &found, nil
		}
	}
	return nil, apperr.ErrNotFound
}

// --- audit ---

func (s *Store) CreateAuditLog(_ context.Context, entry *models.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry.ID = s.nextID("audit")
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now()
	}
	s.auditLogs = append(s.auditLogs, *entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, limit int) ([]models.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	limit = store.ClampLimit(limit)
	out := make([]models.AuditLog, 0, limit)
	for i := len(s.auditLogs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.auditLogs[i])
	}
	return out, nil
}

func (s *Store) DeleteAuditLogsExcept(_ context.Context, keepID uint) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var kept []models.AuditLog
	for _, entry := range s.auditLogs {
		if entry.ID == keepID {
			kept = append(kept, entry)
		}
	}
	deleted := int64(len(s.auditLogs) - len(kept))
	s.auditLogs = kept
	return deleted, nil
}

// --- incidents ---

func (s *Store) CreateIncident(_ context.Context, inc *models.Incident) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	inc.ID = s.nextID("incident")
	inc.CreatedAt = s.now()
	s.incidents = append(s.incidents, *inc)
	return nil
}

func (s *Store) ListIncidents(_ context.Context, limit int) ([]models.Incident, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	limit = store.ClampLimit(limit)
	out := make([]models.Incident, 0, limit)
	for i := len(s.incidents) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.incidents[i])
	}
	return out, nil
}

// --- users ---

func (s *Store) CreateUser(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[u.Username]; exists {
		return apperr.Invalid("username", "already exists")
	}
	u.ID = s.nextID("user")
	u.CreatedAt = s.now()
	s.users[u.Username] = *u
	return nil
}

func (s *Store) FindUserByUsername(_ context.Context, username string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[username]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return &u, nil
}

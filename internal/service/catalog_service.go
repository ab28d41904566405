package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/Freeeeeet/felanocare/internal/advice"
	"github.com/Freeeeeet/felanocare/internal/identity"
	"github.com/Freeeeeet/felanocare/internal/ledger"
	"github.com/Freeeeeet/felanocare/internal/metrics"
	"github.com/Freeeeeet/felanocare/internal/model"
	"github.com/Freeeeeet/felanocare/internal/store"
)

// LabelSearcher ищет этикетки препаратов
type LabelSearcher interface {
	Search(ctx context.Context, term string) ([]advice.DrugRecord, error)
}

// CatalogService - каталог аптеки. Читать могут все, пополняют специалисты.
type CatalogService struct {
	products store.ProductStore
	labels   LabelSearcher
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

func NewCatalogService(products store.ProductStore, labels LabelSearcher, m *metrics.Metrics, logger *zap.Logger) *CatalogService {
	if m == nil {
		m = metrics.NewUnregistered()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogService{
		products: products,
		labels:   labels,
		metrics:  m,
		logger:   logger,
	}
}

// List - весь каталог по имени
func (s *CatalogService) List(ctx context.Context, sess identity.Session) ([]model.Product, error) {
	if !sess.Valid() {
		return nil, fmt.Errorf("list products: %w", ledger.ErrUnauthorized)
	}
	return s.load(ctx)
}

// Get - позиция каталога по ID
func (s *CatalogService) Get(ctx context.Context, id string) (*model.Product, error) {
	p, err := s.products.Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, unavailable("get product", err)
	}
	return p, nil
}

// Candidates ищет этикетки в OpenFDA и оставляет те, которых ещё нет в каталоге
func (s *CatalogService) Candidates(ctx context.Context, sess identity.Session, term string) ([]advice.Label, error) {
	if !sess.IsProfessional() {
		return nil, fmt.Errorf("search candidates: %w", ledger.ErrUnauthorized)
	}
	if s.labels == nil {
		return nil, ErrDrugSearchDisabled
	}

	records, err := s.labels.Search(ctx, term)
	if err != nil {
		return nil, err
	}

	labels := make([]advice.Label, 0, len(records))
	ids := make([]string, 0, len(records))
	for _, rec := range records {
		label, err := advice.ParseLabel(rec)
		if err != nil {
			s.logger.Warn("Skipping unreadable label", zap.String("term", term), zap.Error(err))
			continue
		}
		id := label.ProductID()
		if slices.Contains(ids, id) {
			continue
		}
		labels = append(labels, label)
		ids = append(ids, id)
	}

	known, err := s.products.Exists(ctx, ids)
	if err != nil {
		return nil, unavailable("check products", err)
	}
	return slices.DeleteFunc(labels, func(l advice.Label) bool {
		return known[l.ProductID()]
	}), nil
}

// Import добавляет препарат по этикетке. Цена и остаток нулевые, пока их не задаст SetStock.
func (s *CatalogService) Import(ctx context.Context, sess identity.Session, label advice.Label) (*model.Product, error) {
	if !sess.IsProfessional() {
		return nil, fmt.Errorf("import product: %w", ledger.ErrUnauthorized)
	}
	name := strings.TrimSpace(label.GenericName)
	if name == "" {
		return nil, &ledger.ValidationError{Field: "generic_name", Reason: "required"}
	}
	label.GenericName = name

	p := &model.Product{
		ID:           label.ProductID(),
		Name:         name,
		BrandNames:   label.BrandNames,
		Manufacturer: label.Manufacturer,
		Category:     model.ProductCategoryPrescription,
		Purpose:      label.Purpose,
		Dosage:       label.Dosage,
		RxCUI:        strings.TrimSpace(label.RxCUI),
	}
	if err := s.products.Create(ctx, p); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, ErrProductExists
		}
		return nil, unavailable("import product", err)
	}

	s.logger.Info("Product imported",
		zap.String("product_id", p.ID),
		zap.String("name", p.Name),
		zap.String("by", sess.UserID),
	)
	return p, nil
}

// SetStock задаёт цену в копейках и остаток
func (s *CatalogService) SetStock(ctx context.Context, sess identity.Session, id string, price int64, stock int) (*model.Product, error) {
	if !sess.IsProfessional() {
		return nil, fmt.Errorf("set stock: %w", ledger.ErrUnauthorized)
	}
	if price < 0 {
		return nil, &ledger.ValidationError{Field: "price", Reason: "must not be negative"}
	}
	if stock < 0 {
		return nil, &ledger.ValidationError{Field: "stock", Reason: "must not be negative"}
	}

	p, err := s.products.SetStock(ctx, id, price, stock)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, unavailable("set stock", err)
	}
	return p, nil
}

// Watch - живой каталог
func (s *CatalogService) Watch(ctx context.Context, sess identity.Session) (*ledger.Stream[[]model.Product], error) {
	if !sess.Valid() {
		return nil, fmt.Errorf("watch products: %w", ledger.ErrUnauthorized)
	}

	sub, err := s.products.Watch(ctx)
	if err != nil {
		return nil, unavailable("watch products", err)
	}
	return ledger.Follow(ctx, sub, ledger.StreamOptions{
		Name:    "products",
		Key:     sess.UserID,
		Metrics: s.metrics,
		Logger:  s.logger,
	}, s.load, func(a, b []model.Product) bool {
		return slices.EqualFunc(a, b, func(x, y model.Product) bool { return x.Equal(&y) })
	}), nil
}

func (s *CatalogService) load(ctx context.Context) ([]model.Product, error) {
	products, err := s.products.List(ctx)
	if err != nil {
		return nil, unavailable("list products", err)
	}
	result := make([]model.Product, 0, len(products))
	for _, p := range products {
		result = append(result, *p)
	}
	return result, nil
}

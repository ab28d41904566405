package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Freeeeeet/felanocare/internal/model"
	"github.com/Freeeeeet/felanocare/internal/repository/base"
	"github.com/Freeeeeet/felanocare/internal/store"
)

// ProductChangesChannel - канал NOTIFY триггера products_notify_change, payload - id позиции
const ProductChangesChannel = "product_changes"

const productColumns = `id, name, brand_names, manufacturer, category, purpose, dosage,
	price_cents, stock, rxcui, created_at`

// ProductRepository - каталог аптеки в PostgreSQL
type ProductRepository struct {
	*base.Repository
	hub *store.Hub
}

func NewProductRepository(pool *pgxpool.Pool, hub *store.Hub) *ProductRepository {
	return &ProductRepository{
		Repository: base.NewRepository(pool),
		hub:        hub,
	}
}

// Create добавляет позицию с заданным ID
func (r *ProductRepository) Create(ctx context.Context, p *model.Product) error {
	query := `
		INSERT INTO products (id, name, brand_names, manufacturer, category, purpose, dosage, price_cents, stock, rxcui)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at
	`

	brands := p.BrandNames
	if brands == nil {
		brands = []string{}
	}

	err := r.QueryRow(
		ctx, query,
		p.ID,
		p.Name,
		brands,
		p.Manufacturer,
		p.Category,
		p.Purpose,
		p.Dosage,
		p.Price,
		p.Stock,
		p.RxCUI,
	).Scan(&p.CreatedAt)

	if err != nil {
		if base.IsUniqueViolation(err) {
			return store.ErrConflict
		}
		return fmt.Errorf("insert product: %w", err)
	}

	return nil
}

// Get получает позицию по ID
func (r *ProductRepository) Get(ctx context.Context, id string) (*model.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	p, err := scanProduct(r.QueryRow(ctx, query, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("get product by id: %w", err)
	}

	return p, nil
}

// Exists отмечает ID, которые уже есть в каталоге
func (r *ProductRepository) Exists(ctx context.Context, ids []string) (map[string]bool, error) {
	found := make(map[string]bool, len(ids))
	if len(ids) == 0 {
		return found, nil
	}

	rows, err := r.Query(ctx, `SELECT id FROM products WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("query product ids: %w", err)
	}

	existing, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan product ids: %w", err)
	}
	for _, id := range existing {
		found[id] = true
	}

	return found, nil
}

// List получает весь каталог по имени
func (r *ProductRepository) List(ctx context.Context) ([]*model.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products ORDER BY name, id`

	rows, err := r.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	products := make([]*model.Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}

	return products, nil
}

// SetStock обновляет цену и остаток
func (r *ProductRepository) SetStock(ctx context.Context, id string, price int64, stock int) (*model.Product, error) {
	query := `
		UPDATE products
		SET price_cents = $2, stock = $3
		WHERE id = $1
		RETURNING ` + productColumns

	p, err := scanProduct(r.QueryRow(ctx, query, id, price, stock))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("update product stock: %w", err)
	}

	return p, nil
}

// Watch подписывается на уведомления канала product_changes
func (r *ProductRepository) Watch(context.Context) (store.Subscription, error) {
	return r.hub.Subscribe(store.AllOwners), nil
}

func scanProduct(row pgx.Row) (*model.Product, error) {
	var p model.Product
	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.BrandNames,
		&p.Manufacturer,
		&p.Category,
		&p.Purpose,
		&p.Dosage,
		&p.Price,
		&p.Stock,
		&p.RxCUI,
		&p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

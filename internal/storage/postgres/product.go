package postgres

import (
	"context"
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/catalog-service/internal/domain/product"
)

// SQLSTATE codes translated into domain errors.
const (
	uniqueViolation   = "23505"
	checkViolation    = "23514"
	stringTooLong     = "22001"
	numericOutOfRange = "22003"
)

const productColumns = `id, name, description, price, category, image_url, available, created_at, updated_at`

const (
	getProductByIDSQL = `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	getProductByNameSQL = `SELECT ` + productColumns + ` FROM products
	WHERE lower(name) = lower($1)`

	insertProductSQL = `INSERT INTO products
	(name, description, price, category, image_url, available, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	RETURNING ` + productColumns

	updateProductSQL = `UPDATE products SET
	name = $2, description = $3, price = $4, category = $5,
	image_url = $6, available = $7, updated_at = $8
	WHERE id = $1
	RETURNING ` + productColumns

	deleteProductSQL = `DELETE FROM products WHERE id = $1`

	existsProductSQL = `SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)`

	countProductsSQL = `SELECT count(*) FROM products`
)

// sortColumns maps allow-listed sort fields to column identifiers. Client
// input never reaches the ORDER BY clause directly.
var sortColumns = map[product.SortField]string{
	product.SortByID:        "id",
	product.SortByName:      "name",
	product.SortByPrice:     "price",
	product.SortByCategory:  "category",
	product.SortByAvailable: "available",
	product.SortByCreatedAt: "created_at",
	product.SortByUpdatedAt: "updated_at",
}

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository backed by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// FindByID returns product.ErrNotFound when no row matches.
func (r *ProductRepository) FindByID(ctx context.Context, id int64) (*product.Product, error) {
	p, err := scanProduct(r.pool.QueryRow(ctx, getProductByIDSQL, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get product %d", id)
	}
	return p, nil
}

// FindAll returns a page of all products.
func (r *ProductRepository) FindAll(ctx context.Context, req product.PageRequest) (product.Page[product.Product], error) {
	return r.page(ctx, req, "", nil)
}

// FindByCategory returns a page of products whose category matches exactly.
func (r *ProductRepository) FindByCategory(ctx context.Context, category string, req product.PageRequest) (product.Page[product.Product], error) {
	return r.page(ctx, req, "category = $1", []any{category})
}

// FindByNameContaining returns a page of products whose name contains substr,
// ignoring case. LIKE wildcards in substr match literally.
func (r *ProductRepository) FindByNameContaining(ctx context.Context, substr string, req product.PageRequest) (product.Page[product.Product], error) {
	pattern := "%" + escapeLike(substr) + "%"
	return r.page(ctx, req, `name ILIKE $1 ESCAPE '\'`, []any{pattern})
}

// FindByExactName matches name case-insensitively.
func (r *ProductRepository) FindByExactName(ctx context.Context, name string) (*product.Product, error) {
	p, err := scanProduct(r.pool.QueryRow(ctx, getProductByNameSQL, name))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get product by name %q", name)
	}
	return p, nil
}

// Save inserts p when its ID is zero and updates the existing row otherwise.
// A name collision reported by the unique index surfaces as
// product.ErrDuplicateName.
func (r *ProductRepository) Save(ctx context.Context, p *product.Product) (*product.Product, error) {
	var row pgx.Row
	if p.ID == 0 {
		row = r.pool.QueryRow(ctx, insertProductSQL,
			p.Name, p.Description, p.Price, p.Category, p.ImageURL, p.Available, p.CreatedAt, p.UpdatedAt,
		)
	} else {
		row = r.pool.QueryRow(ctx, updateProductSQL,
			p.ID, p.Name, p.Description, p.Price, p.Category, p.ImageURL, p.Available, p.UpdatedAt,
		)
	}

	saved, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			if derr := constraintError(pgErr, p); derr != nil {
				return nil, derr
			}
		}
		return nil, errors.Wrapf(err, "save product %q", p.Name)
	}
	return saved, nil
}

// constraintError maps column constraint failures to domain errors, or
// returns nil for anything else.
func constraintError(pgErr *pgconn.PgError, p *product.Product) error {
	field := pgErr.ColumnName
	switch pgErr.Code {
	case uniqueViolation:
		return &product.DuplicateNameError{Name: p.Name}
	case checkViolation, numericOutOfRange:
		if field == "" {
			field = "price"
		}
		return &product.ValidationError{Fields: map[string]string{
			field: "Product " + field + " is out of range",
		}}
	case stringTooLong:
		if field == "" {
			field = "product"
		}
		return &product.ValidationError{Fields: map[string]string{
			field: "Product " + field + " is too long",
		}}
	}
	return nil
}

// DeleteByID returns product.ErrNotFound when no row was removed.
func (r *ProductRepository) DeleteByID(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, deleteProductSQL, id)
	if err != nil {
		return errors.Wrapf(err, "delete product %d", id)
	}
	if tag.RowsAffected() == 0 {
		return product.ErrNotFound
	}
	return nil
}

// ExistsByID reports whether a product with id exists.
func (r *ProductRepository) ExistsByID(ctx context.Context, id int64) (bool, error) {
	var ok bool
	if err := r.pool.QueryRow(ctx, existsProductSQL, id).Scan(&ok); err != nil {
		return false, errors.Wrapf(err, "check product %d", id)
	}
	return ok, nil
}

// Count returns the number of stored products.
func (r *ProductRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.pool.QueryRow(ctx, countProductsSQL).Scan(&n); err != nil {
		return 0, errors.Wrap(err, "count products")
	}
	return n, nil
}

func (r *ProductRepository) page(ctx context.Context, req product.PageRequest, where string, args []any) (product.Page[product.Product], error) {
	countSQL := countProductsSQL
	if where != "" {
		countSQL += " WHERE " + where
	}

	var total int64
	if err := r.pool.QueryRow(ctx, countSQL, args...).Scan(&total); err != nil {
		return product.Page[product.Product]{}, errors.Wrap(err, "count products")
	}
	if total == 0 || req.Offset() >= total {
		return product.NewPage[product.Product](nil, req, total), nil
	}

	query, qargs := listQuery(req, where, args)
	rows, err := r.pool.Query(ctx, query, qargs...)
	if err != nil {
		return product.Page[product.Product]{}, errors.Wrap(err, "list products")
	}
	products, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (product.Product, error) {
		p, err := scanProduct(row)
		if err != nil {
			return product.Product{}, err
		}
		return *p, nil
	})
	if err != nil {
		return product.Page[product.Product]{}, errors.Wrap(err, "scan products")
	}

	return product.NewPage(products, req, total), nil
}

// listQuery builds the page query. Placeholders for LIMIT and OFFSET follow
// the filter arguments.
func listQuery(req product.PageRequest, where string, args []any) (string, []any) {
	column, ok := sortColumns[req.Sort]
	if !ok {
		column = "id"
	}
	dir := "ASC"
	if req.Direction == product.Desc {
		dir = "DESC"
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(productColumns)
	b.WriteString(" FROM products")
	if where != "" {
		b.WriteString(" WHERE ")
		b.WriteString(where)
	}
	b.WriteString(" ORDER BY ")
	b.WriteString(column)
	b.WriteString(" ")
	b.WriteString(dir)
	if column != "id" {
		b.WriteString(", id ASC")
	}

	n := len(args)
	b.WriteString(" LIMIT $")
	b.WriteString(strconv.Itoa(n + 1))
	b.WriteString(" OFFSET $")
	b.WriteString(strconv.Itoa(n + 2))

	out := make([]any, 0, n+2)
	out = append(out, args...)
	out = append(out, req.Size, req.Offset())
	return b.String(), out
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func scanProduct(row pgx.Row) (*product.Product, error) {
	var p product.Product
	err := row.Scan(
		&p.ID, &p.Name, &p.Description, &p.Price, &p.Category,
		&p.ImageURL, &p.Available, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return &p, nil
}

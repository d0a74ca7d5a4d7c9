// Package mysql persists sales, orders and the customer registry in
// MySQL/MariaDB. Implements the same ports as the Supabase adapter.
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/boddenberg/lavanderia-crm-go/internal/domain"
)

var tracer = otel.Tracer("mysql")

const schema = `
CREATE TABLE IF NOT EXISTS sales (
	id             VARCHAR(64) PRIMARY KEY,
	date           DATETIME(3) NOT NULL,
	store          VARCHAR(255) NOT NULL DEFAULT '',
	customer_name  VARCHAR(255) NOT NULL DEFAULT '',
	customer_phone VARCHAR(64)  NOT NULL DEFAULT '',
	customer_id    VARCHAR(64)  NULL,
	product        VARCHAR(255) NOT NULL DEFAULT '',
	value          DECIMAL(12,2) NOT NULL,
	payment_method VARCHAR(64)  NOT NULL DEFAULT '',
	card_brand     VARCHAR(64)  NOT NULL DEFAULT '',
	birth_date     DATE NULL,
	age            INT NULL,
	INDEX idx_sales_date (date)
);
CREATE TABLE IF NOT EXISTS sale_items (
	sale_id    VARCHAR(64) NOT NULL,
	id         VARCHAR(64) NOT NULL,
	machine    VARCHAR(255) NOT NULL DEFAULT '',
	service    VARCHAR(255) NOT NULL DEFAULT '',
	status     VARCHAR(64)  NOT NULL DEFAULT '',
	start_time DATETIME(3) NOT NULL,
	value      DECIMAL(12,2) NOT NULL,
	PRIMARY KEY (sale_id, id)
);
CREATE TABLE IF NOT EXISTS orders (
	id            VARCHAR(64) PRIMARY KEY,
	date          DATETIME(3) NOT NULL,
	store         VARCHAR(255) NOT NULL DEFAULT '',
	customer_name VARCHAR(255) NOT NULL DEFAULT '',
	machine       VARCHAR(255) NOT NULL DEFAULT '',
	service       VARCHAR(255) NOT NULL DEFAULT '',
	status        VARCHAR(64)  NOT NULL DEFAULT '',
	value         DECIMAL(12,2) NOT NULL,
	birth_date    DATE NULL,
	age           INT NULL,
	gender        VARCHAR(8)  NOT NULL DEFAULT '',
	source        VARCHAR(16) NOT NULL DEFAULT '',
	INDEX idx_orders_date (date)
);
CREATE TABLE IF NOT EXISTS customers (
	id            VARCHAR(64) PRIMARY KEY,
	name          VARCHAR(255) NOT NULL,
	phone         VARCHAR(64)  NOT NULL DEFAULT '',
	gender        VARCHAR(8)   NOT NULL DEFAULT '',
	registered_at DATETIME(3) NULL,
	cpf           VARCHAR(32)  NOT NULL DEFAULT '',
	email         VARCHAR(255) NOT NULL DEFAULT '',
	birth_date    DATE NULL
);`

// Store is a database/sql backed SaleStore, OrderStore and CustomerRegistry.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

// Open accepts a native driver DSN or a mysql:// / mariadb:// URL.
func Open(dsn string, logger *zap.Logger) (*Store, error) {
	driverDSN, err := toMySQLDSN(dsn)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("mysql", driverDSN)
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	return &Store{db: db, logger: logger}, nil
}

// toMySQLDSN converts URL-style DSNs to the driver format, forcing
// parseTime and UTC. Native DSNs pass through unchanged.
func toMySQLDSN(dsn string) (string, error) {
	if !strings.HasPrefix(dsn, "mariadb://") && !strings.HasPrefix(dsn, "mysql://") {
		return dsn, nil
	}
	u, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("parse dsn: %w", err)
	}
	cfg := mysql.NewConfig()
	if u.User != nil {
		cfg.User = u.User.Username()
		cfg.Passwd, _ = u.User.Password()
	}
	cfg.Net = "tcp"
	cfg.Addr = u.Host
	cfg.DBName = strings.TrimPrefix(u.Path, "/")
	if cfg.User == "" || cfg.Addr == "" || cfg.DBName == "" {
		return "", fmt.Errorf("incomplete dsn: user, host and database are required")
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	cfg.InterpolateParams = true
	cfg.MultiStatements = true
	return cfg.FormatDSN(), nil
}

// Close releases the pool.
func (s *Store) Close() error { return s.db.Close() }

// Ping checks connectivity for readiness probes.
func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// EnsureSchema creates the tables when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (s *Store) wrap(op string, err error) error {
	s.logger.Error("mysql: "+op+" failed", zap.Error(err))
	return &domain.ErrExternalService{Service: "mysql", Err: fmt.Errorf("%s: %w", op, err)}
}

// ListSales returns every sale ordered by date, items attached.
func (s *Store) ListSales(ctx context.Context) ([]domain.Sale, error) {
	ctx, span := tracer.Start(ctx, "MySQL.ListSales")
	defer span.End()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, date, store, customer_name, customer_phone, customer_id, product,
		       value, payment_method, card_brand, birth_date, age
		FROM sales ORDER BY date, id`)
	if err != nil {
		return nil, s.wrap("list sales", err)
	}
	defer rows.Close()

	var out []domain.Sale
	pos := make(map[string]int)
	for rows.Next() {
		var (
			sale       domain.Sale
			customerID sql.NullString
			birth      sql.NullTime
			age        sql.NullInt64
		)
		if err := rows.Scan(&sale.ID, &sale.Date, &sale.Store, &sale.CustomerName, &sale.CustomerPhone,
			&customerID, &sale.Product, &sale.Value, &sale.PaymentMethod, &sale.CardBrand, &birth, &age); err != nil {
			return nil, s.wrap("scan sale", err)
		}
		sale.CustomerID = customerID.String
		sale.BirthDate = nullTime(birth)
		sale.Age = nullInt(age)
		pos[sale.ID] = len(out)
		out = append(out, sale)
	}
	if err := rows.Err(); err != nil {
		return nil, s.wrap("list sales", err)
	}

	items, err := s.db.QueryContext(ctx, `
		SELECT sale_id, id, machine, service, status, start_time, value
		FROM sale_items ORDER BY sale_id, start_time, id`)
	if err != nil {
		return nil, s.wrap("list sale items", err)
	}
	defer items.Close()
	for items.Next() {
		var (
			saleID string
			it     domain.CycleItem
		)
		if err := items.Scan(&saleID, &it.ID, &it.Machine, &it.Service, &it.Status, &it.StartTime, &it.Value); err != nil {
			return nil, s.wrap("scan sale item", err)
		}
		if i, ok := pos[saleID]; ok {
			out[i].Items = append(out[i].Items, it)
		}
	}
	if err := items.Err(); err != nil {
		return nil, s.wrap("list sale items", err)
	}

	span.SetAttributes(attribute.Int("mysql.sales", len(out)))
	return out, nil
}

// SaveSales upserts sales and replaces their items in one transaction.
func (s *Store) SaveSales(ctx context.Context, sales []domain.Sale) error {
	ctx, span := tracer.Start(ctx, "MySQL.SaveSales")
	defer span.End()
	span.SetAttributes(attribute.Int("mysql.sales", len(sales)))

	return s.inTx(ctx, "save sales", func(tx *sql.Tx) error {
		upsertSale, err := tx.PrepareContext(ctx, `
			INSERT INTO sales (id, date, store, customer_name, customer_phone, customer_id, product,
			                   value, payment_method, card_brand, birth_date, age)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON DUPLICATE KEY UPDATE
				date = VALUES(date), store = VALUES(store), customer_name = VALUES(customer_name),
				customer_phone = VALUES(customer_phone), customer_id = VALUES(customer_id),
				product = VALUES(product), value = VALUES(value), payment_method = VALUES(payment_method),
				card_brand = VALUES(card_brand), birth_date = VALUES(birth_date), age = VALUES(age)`)
		if err != nil {
			return err
		}
		defer upsertSale.Close()

		clearItems, err := tx.PrepareContext(ctx, `DELETE FROM sale_items WHERE sale_id = ?`)
		if err != nil {
			return err
		}
		defer clearItems.Close()

		insertItem, err := tx.PrepareContext(ctx, `
			INSERT INTO sale_items (sale_id, id, machine, service, status, start_time, value)
			VALUES (?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer insertItem.Close()

		for _, sale := range sales {
			if _, err := upsertSale.ExecContext(ctx, sale.ID, sale.Date.UTC(), sale.Store, sale.CustomerName,
				sale.CustomerPhone, nullString(sale.CustomerID), sale.Product, sale.Value, sale.PaymentMethod,
				sale.CardBrand, dateArg(sale.BirthDate), intArg(sale.Age)); err != nil {
				return err
			}
			if _, err := clearItems.ExecContext(ctx, sale.ID); err != nil {
				return err
			}
			for _, it := range sale.Items {
				if _, err := insertItem.ExecContext(ctx, sale.ID, it.ID, it.Machine, it.Service, it.Status,
					it.StartTime.UTC(), it.Value); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// ListOrders returns every order ordered by date.
func (s *Store) ListOrders(ctx context.Context) ([]domain.Order, error) {
	ctx, span := tracer.Start(ctx, "MySQL.ListOrders")
	defer span.End()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, date, store, customer_name, machine, service, status, value,
		       birth_date, age, gender, source
		FROM orders ORDER BY date, id`)
	if err != nil {
		return nil, s.wrap("list orders", err)
	}
	defer rows.Close()

	var out []domain.Order
	for rows.Next() {
		var (
			o     domain.Order
			birth sql.NullTime
			age   sql.NullInt64
		)
		if err := rows.Scan(&o.ID, &o.Date, &o.Store, &o.CustomerName, &o.Machine, &o.Service, &o.Status,
			&o.Value, &birth, &age, &o.Gender, &o.Source); err != nil {
			return nil, s.wrap("scan order", err)
		}
		o.BirthDate = nullTime(birth)
		o.Age = nullInt(age)
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, s.wrap("list orders", err)
	}
	return out, nil
}

// SaveOrders upserts orders by id.
func (s *Store) SaveOrders(ctx context.Context, orders []domain.Order) error {
	ctx, span := tracer.Start(ctx, "MySQL.SaveOrders")
	defer span.End()
	span.SetAttributes(attribute.Int("mysql.orders", len(orders)))

	return s.inTx(ctx, "save orders", func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO orders (id, date, store, customer_name, machine, service, status, value,
			                    birth_date, age, gender, source)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON DUPLICATE KEY UPDATE
				date = VALUES(date), store = VALUES(store), customer_name = VALUES(customer_name),
				machine = VALUES(machine), service = VALUES(service), status = VALUES(status),
				value = VALUES(value), birth_date = VALUES(birth_date), age = VALUES(age),
				gender = VALUES(gender), source = VALUES(source)`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, o := range orders {
			if _, err := stmt.ExecContext(ctx, o.ID, o.Date.UTC(), o.Store, o.CustomerName, o.Machine, o.Service,
				o.Status, o.Value, dateArg(o.BirthDate), intArg(o.Age), o.Gender, o.Source); err != nil {
				return err
			}
		}
		return nil
	})
}

// ListCustomers returns the registry ordered by name.
func (s *Store) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	ctx, span := tracer.Start(ctx, "MySQL.ListCustomers")
	defer span.End()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, phone, gender, registered_at, cpf, email, birth_date
		FROM customers ORDER BY name, id`)
	if err != nil {
		return nil, s.wrap("list customers", err)
	}
	defer rows.Close()

	var out []domain.Customer
	for rows.Next() {
		var (
			c          domain.Customer
			registered sql.NullTime
			birth      sql.NullTime
		)
		if err := rows.Scan(&c.ID, &c.Name, &c.Phone, &c.Gender, &registered, &c.CPF, &c.Email, &birth); err != nil {
			return nil, s.wrap("scan customer", err)
		}
		c.RegisteredAt = nullTime(registered)
		c.BirthDate = nullTime(birth)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, s.wrap("list customers", err)
	}
	return out, nil
}

func (s *Store) inTx(ctx context.Context, op string, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return s.wrap(op, err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return s.wrap(op, err)
	}
	if err := tx.Commit(); err != nil {
		return s.wrap(op, err)
	}
	return nil
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func nullInt(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func dateArg(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format("2006-01-02")
}

func intArg(n *int) any {
	if n == nil {
		return nil
	}
	return *n
}

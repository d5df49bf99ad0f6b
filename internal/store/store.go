package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"

	"github.com/iurnickita/shopdash/internal/model"
	"github.com/iurnickita/shopdash/internal/store/config"
)

type Store interface {
	OrderPost(ctx context.Context, order model.Order) error
	OrderGet(ctx context.Context, since time.Time) ([]model.Order, error)
	Close() error
}

var (
	ErrNoDSN         = errors.New("database dsn is empty")
	ErrAlreadyExists = errors.New("already exists")
)

type store struct {
	database *sql.DB
}

func NewStore(cfg config.Config) (Store, error) {
	if cfg.DBDsn == "" {
		return nil, ErrNoDSN
	}
	db, err := sql.Open("pgx", cfg.DBDsn)
	if err != nil {
		return nil, err
	}

	// Таблица заказов для аналитики
	_, err = db.Exec(
		"CREATE TABLE IF NOT EXISTS dashboard_order (" +
			" id VARCHAR (64) PRIMARY KEY," +
			" date TIMESTAMPTZ NOT NULL," +
			" customer VARCHAR (200) NOT NULL," +
			" total NUMERIC (12, 2) NOT NULL," +
			" status VARCHAR (20) NOT NULL" +
			" );")
	if err != nil {
		db.Close()
		return nil, err
	}

	// Позиции заказа, порядок хранится в position
	_, err = db.Exec(
		"CREATE TABLE IF NOT EXISTS dashboard_order_item (" +
			" order_id VARCHAR (64) REFERENCES dashboard_order (id) ON DELETE CASCADE," +
			" position INTEGER NOT NULL," +
			" name VARCHAR (200) NOT NULL," +
			" quantity INTEGER NOT NULL," +
			" price NUMERIC (12, 2) NOT NULL," +
			" PRIMARY KEY (order_id, position)" +
			" );")
	if err != nil {
		db.Close()
		return nil, err
	}

	return &store{
		database: db,
	}, nil
}

func (store *store) Close() error {
	return store.database.Close()
}

func (store *store) OrderPost(ctx context.Context, order model.Order) error {
	tx, err := store.database.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	//Запись нового заказа
	_, err = tx.ExecContext(ctx,
		"INSERT INTO dashboard_order (id, date, customer, total, status)"+
			" VALUES ($1, $2, $3, $4, $5)",
		order.ID,
		order.Date.Time,
		order.Customer,
		order.Total,
		string(order.Status))
	if err != nil {
		// Проверка: уже существует
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrAlreadyExists
		}
		return err
	}

	//Позиции
	for i, item := range order.Items {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO dashboard_order_item (order_id, position, name, quantity, price)"+
				" VALUES ($1, $2, $3, $4, $5)",
			order.ID,
			i,
			item.Name,
			item.Quantity,
			item.Price)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// OrderGet returns orders dated at or after since, newest first. A zero since returns all orders.
func (store *store) OrderGet(ctx context.Context, since time.Time) ([]model.Order, error) {
	rows, err := store.database.QueryContext(ctx,
		"SELECT o.id, o.date, o.customer, o.total, o.status,"+
			"       i.name, i.quantity, i.price"+
			" FROM dashboard_order AS o"+
			" LEFT JOIN dashboard_order_item AS i ON i.order_id = o.id"+
			" WHERE o.date >= $1"+
			" ORDER BY o.date DESC, o.id, i.position",
		since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := []model.Order{}
	for rows.Next() {
		var (
			orderRow model.Order
			date     time.Time
			status   string
			name     sql.NullString
			quantity sql.NullInt64
			price    decimal.NullDecimal
		)
		err := rows.Scan(&orderRow.ID,
			&date,
			&orderRow.Customer,
			&orderRow.Total,
			&status,
			&name,
			&quantity,
			&price)
		if err != nil {
			return nil, err
		}
		orderRow.Date = model.NewTimestamp(date)
		orderRow.Status = model.OrderStatus(status)

		// строки одного заказа идут подряд
		if n := len(orders); n == 0 || orders[n-1].ID != orderRow.ID {
			orders = append(orders, orderRow)
		}
		if name.Valid {
			last := &orders[len(orders)-1]
			last.Items = append(last.Items, model.Item{
				Name:     name.String,
				Quantity: int(quantity.Int64),
				Price:    price.Decimal,
			})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return orders, nil
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/cargofret/billing/internal/model"
	"github.com/cargofret/billing/internal/store/config"
)

type Store interface {
	InvoiceCreate(ctx context.Context, invoice model.Invoice) (model.Invoice, error)
	InvoiceGet(ctx context.Context, id string) (model.Invoice, error)
	InvoiceGetByNumber(ctx context.Context, number string) (model.Invoice, error)
	InvoiceList(ctx context.Context, filter model.InvoiceFilter) ([]model.Invoice, error)
	InvoiceUpdate(ctx context.Context, invoice model.Invoice) (model.Invoice, error)
	InvoiceDelete(ctx context.Context, id string) error

	PaymentAdd(ctx context.Context, payment model.Payment) (model.Payment, model.Invoice, error)
	PaymentGet(ctx context.Context, id string) (model.Payment, error)
	PaymentList(ctx context.Context, filter model.PaymentFilter) ([]model.Payment, error)
	PaymentRemove(ctx context.Context, id string) (model.Invoice, error)

	TariffCreate(ctx context.Context, tariff model.TariffRule) (model.TariffRule, error)
	TariffGet(ctx context.Context, id string) (model.TariffRule, error)
	TariffList(ctx context.Context, filter model.TariffFilter) ([]model.TariffRule, error)
	TariffUpdate(ctx context.Context, tariff model.TariffRule) (model.TariffRule, error)
	TariffDelete(ctx context.Context, id string) error
	TariffFindActive(ctx context.Context, origin string, destination string) (model.TariffRule, error)

	InvoiceStats(ctx context.Context) (model.InvoiceStats, error)
	PaymentStats(ctx context.Context) (model.PaymentStats, error)
	RevenueReport(ctx context.Context, from *time.Time, to *time.Time) (model.RevenueReport, error)
	OutstandingReport(ctx context.Context, now time.Time) (model.OutstandingReport, error)
	PaymentMethodBreakdown(ctx context.Context) (model.MethodBreakdown, error)
}

var (
	ErrNoRows          = errors.New("no rows")
	ErrAmountIncorrect = errors.New("payment amount must be positive")
	ErrExceedsBalance  = errors.New("payment amount exceeds invoice balance")
	ErrHasPayments     = errors.New("invoice has payments")
)

type store struct {
	database *sql.DB
}

func NewStore(cfg config.Config) (Store, error) {
	// без строки подключения работаем в памяти
	if cfg.DBDsn == "" {
		return NewMemStore(), nil
	}

	db, err := sql.Open("pgx", cfg.DBDsn)
	if err != nil {
		return nil, err
	}

	// Таблица счетов.
	// Уникальный индекс по invoice_number страхует от гонки при
	// параллельной генерации номеров (см. InvoiceCreate)
	_, err = db.Exec(
		"CREATE TABLE IF NOT EXISTS invoices (" +
			" id VARCHAR (36) PRIMARY KEY," +
			" invoice_number VARCHAR (20) NOT NULL UNIQUE," +
			" shipment_id VARCHAR (36) NOT NULL," +
			" client_id VARCHAR (36) NOT NULL," +
			" subtotal DOUBLE PRECISION NOT NULL," +
			" tax DOUBLE PRECISION NOT NULL DEFAULT 0," +
			" discount DOUBLE PRECISION NOT NULL DEFAULT 0," +
			" total DOUBLE PRECISION NOT NULL," +
			" amount_paid DOUBLE PRECISION NOT NULL DEFAULT 0," +
			" balance DOUBLE PRECISION NOT NULL DEFAULT 0," +
			" status VARCHAR (10) NOT NULL," +
			" due_date TIMESTAMP," +
			" paid_at TIMESTAMP," +
			" created_at TIMESTAMP NOT NULL," +
			" updated_at TIMESTAMP NOT NULL" +
			" );")
	if err != nil {
		return nil, err
	}

	// Таблица платежей.
	// Записи не редактируются: платеж создается и удаляется целиком
	_, err = db.Exec(
		"CREATE TABLE IF NOT EXISTS payments (" +
			" id VARCHAR (36) PRIMARY KEY," +
			" invoice_id VARCHAR (36) NOT NULL," +
			" amount DOUBLE PRECISION NOT NULL," +
			" method VARCHAR (20) NOT NULL," +
			" transaction_id VARCHAR (100) NOT NULL DEFAULT ''," +
			" reference VARCHAR (100) NOT NULL DEFAULT ''," +
			" notes TEXT NOT NULL DEFAULT ''," +
			" processed_by VARCHAR (36) NOT NULL DEFAULT ''," +
			" created_at TIMESTAMP NOT NULL" +
			" );")
	if err != nil {
		return nil, err
	}

	// Таблица тарифных правил
	_, err = db.Exec(
		"CREATE TABLE IF NOT EXISTS tariff_rules (" +
			" id VARCHAR (36) PRIMARY KEY," +
			" name VARCHAR (100) NOT NULL," +
			" origin VARCHAR (100) NOT NULL," +
			" destination VARCHAR (100) NOT NULL," +
			" base_rate DOUBLE PRECISION NOT NULL," +
			" rate_per_kg DOUBLE PRECISION NOT NULL," +
			" rate_per_cbm DOUBLE PRECISION NOT NULL DEFAULT 0," +
			" insurance_rate DOUBLE PRECISION NOT NULL DEFAULT 0," +
			" is_active BOOLEAN NOT NULL DEFAULT TRUE," +
			" created_at TIMESTAMP NOT NULL," +
			" updated_at TIMESTAMP NOT NULL" +
			" );")
	if err != nil {
		return nil, err
	}

	return &store{
		database: db,
	}, nil
}

const invoiceColumns = "id, invoice_number, shipment_id, client_id, subtotal, tax, discount," +
	" total, amount_paid, balance, status, due_date, paid_at, created_at, updated_at"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInvoice(row rowScanner) (model.Invoice, error) {
	var invoice model.Invoice
	var dueDate, paidAt sql.NullTime
	err := row.Scan(&invoice.ID,
		&invoice.InvoiceNumber,
		&invoice.ShipmentID,
		&invoice.ClientID,
		&invoice.Subtotal,
		&invoice.Tax,
		&invoice.Discount,
		&invoice.Total,
		&invoice.AmountPaid,
		&invoice.Balance,
		&invoice.Status,
		&dueDate,
		&paidAt,
		&invoice.CreatedAt,
		&invoice.UpdatedAt)
	if err != nil {
		return model.Invoice{}, err
	}
	if dueDate.Valid {
		invoice.DueDate = &dueDate.Time
	}
	if paidAt.Valid {
		invoice.PaidAt = &paidAt.Time
	}
	return invoice, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func (store *store) InvoiceCreate(ctx context.Context, invoice model.Invoice) (model.Invoice, error) {
	// Номер счета: порядковый номер внутри месяца. Между подсчетом и
	// вставкой возможна гонка - ловим нарушение уникальности и повторяем
	for attempt := 0; attempt < 3; attempt++ {
		created, err := store.invoiceCreateOnce(ctx, invoice)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				continue
			}
			return model.Invoice{}, err
		}
		return created, nil
	}
	return model.Invoice{}, fmt.Errorf("invoice number generation: retries exhausted")
}

func (store *store) invoiceCreateOnce(ctx context.Context, invoice model.Invoice) (model.Invoice, error) {
	tx, err := store.database.BeginTx(ctx, nil)
	if err != nil {
		return model.Invoice{}, err
	}
	defer tx.Rollback()

	// следующий номер - максимум выданного за месяц плюс один:
	// счетчик не откатывается при удалении счетов
	now := time.Now()
	prefix := model.InvoiceNumberPrefix(now)

	var seq int
	row := tx.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(CAST(SPLIT_PART(invoice_number, '-', 3) AS INTEGER)), 0)"+
			" FROM invoices WHERE invoice_number LIKE $1",
		prefix+"%")
	if err := row.Scan(&seq); err != nil {
		return model.Invoice{}, err
	}

	invoice.ID = uuid.NewString()
	invoice.InvoiceNumber = model.FormatInvoiceNumber(now, seq+1)
	invoice.AmountPaid = 0
	invoice.Balance = invoice.Total
	invoice.Status = model.InvoiceStatusPending
	invoice.PaidAt = nil
	invoice.CreatedAt = now
	invoice.UpdatedAt = now

	_, err = tx.ExecContext(ctx,
		"INSERT INTO invoices ("+invoiceColumns+")"+
			" VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)",
		invoice.ID,
		invoice.InvoiceNumber,
		invoice.ShipmentID,
		invoice.ClientID,
		invoice.Subtotal,
		invoice.Tax,
		invoice.Discount,
		invoice.Total,
		invoice.AmountPaid,
		invoice.Balance,
		invoice.Status,
		nullTime(invoice.DueDate),
		nullTime(invoice.PaidAt),
		invoice.CreatedAt,
		invoice.UpdatedAt)
	if err != nil {
		return model.Invoice{}, err
	}

	if err := tx.Commit(); err != nil {
		return model.Invoice{}, err
	}
	return invoice, nil
}

func (store *store) InvoiceGet(ctx context.Context, id string) (model.Invoice, error) {
	row := store.database.QueryRowContext(ctx,
		"SELECT "+invoiceColumns+" FROM invoices"+
			" WHERE id = $1",
		id)
	invoice, err := scanInvoice(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Invoice{}, ErrNoRows
		}
		return model.Invoice{}, err
	}
	return invoice, nil
}

func (store *store) InvoiceGetByNumber(ctx context.Context, number string) (model.Invoice, error) {
	row := store.database.QueryRowContext(ctx,
		"SELECT "+invoiceColumns+" FROM invoices"+
			" WHERE invoice_number = $1",
		number)
	invoice, err := scanInvoice(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Invoice{}, ErrNoRows
		}
		return model.Invoice{}, err
	}
	return invoice, nil
}

func (store *store) InvoiceList(ctx context.Context, filter model.InvoiceFilter) ([]model.Invoice, error) {
	query := "SELECT " + invoiceColumns + " FROM invoices WHERE 1=1"
	var args []any
	if filter.ClientID != "" {
		args = append(args, filter.ClientID)
		query += " AND client_id = $" + strconv.Itoa(len(args))
	}
	if filter.ShipmentID != "" {
		args = append(args, filter.ShipmentID)
		query += " AND shipment_id = $" + strconv.Itoa(len(args))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		query += " AND status = $" + strconv.Itoa(len(args))
	}
	if filter.DateFrom != nil {
		args = append(args, *filter.DateFrom)
		query += " AND created_at >= $" + strconv.Itoa(len(args))
	}
	if filter.DateTo != nil {
		args = append(args, *filter.DateTo)
		query += " AND created_at <= $" + strconv.Itoa(len(args))
	}
	query += " ORDER BY created_at DESC"

	rows, err := store.database.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var invoices []model.Invoice
	for rows.Next() {
		invoice, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, invoice)
	}
	return invoices, rows.Err()
}

func (store *store) InvoiceUpdate(ctx context.Context, invoice model.Invoice) (model.Invoice, error) {
	invoice.UpdatedAt = time.Now()
	result, err := store.database.ExecContext(ctx,
		"UPDATE invoices SET"+
			" shipment_id = $1, client_id = $2, subtotal = $3, tax = $4, discount = $5,"+
			" total = $6, amount_paid = $7, balance = $8, status = $9,"+
			" due_date = $10, paid_at = $11, updated_at = $12"+
			" WHERE id = $13",
		invoice.ShipmentID,
		invoice.ClientID,
		invoice.Subtotal,
		invoice.Tax,
		invoice.Discount,
		invoice.Total,
		invoice.AmountPaid,
		invoice.Balance,
		invoice.Status,
		nullTime(invoice.DueDate),
		nullTime(invoice.PaidAt),
		invoice.UpdatedAt,
		invoice.ID)
	if err != nil {
		return model.Invoice{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return model.Invoice{}, err
	}
	if affected == 0 {
		return model.Invoice{}, ErrNoRows
	}
	return invoice, nil
}

func (store *store) InvoiceDelete(ctx context.Context, id string) error {
	tx, err := store.database.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// Счет с платежами не удаляется
	var payments int
	row := tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM payments"+
			" WHERE invoice_id = $1",
		id)
	if err := row.Scan(&payments); err != nil {
		return err
	}
	if payments > 0 {
		return ErrHasPayments
	}

	result, err := tx.ExecContext(ctx,
		"DELETE FROM invoices WHERE id = $1",
		id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNoRows
	}

	return tx.Commit()
}

func (store *store) PaymentAdd(ctx context.Context, payment model.Payment) (model.Payment, model.Invoice, error) {
	if payment.Amount <= 0 {
		return model.Payment{}, model.Invoice{}, ErrAmountIncorrect
	}

	tx, err := store.database.BeginTx(ctx, nil)
	if err != nil {
		return model.Payment{}, model.Invoice{}, err
	}
	defer tx.Rollback()

	// Блокировка счета: проверка остатка и обновление - одна единица работы
	row := tx.QueryRowContext(ctx,
		"SELECT "+invoiceColumns+" FROM invoices"+
			" WHERE id = $1"+
			" FOR UPDATE",
		payment.InvoiceID)
	invoice, err := scanInvoice(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Payment{}, model.Invoice{}, ErrNoRows
		}
		return model.Payment{}, model.Invoice{}, err
	}

	if payment.Amount > invoice.Balance {
		return model.Payment{}, model.Invoice{}, ErrExceedsBalance
	}

	now := time.Now()
	payment.ID = uuid.NewString()
	payment.CreatedAt = now
	_, err = tx.ExecContext(ctx,
		"INSERT INTO payments (id, invoice_id, amount, method, transaction_id, reference, notes, processed_by, created_at)"+
			" VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)",
		payment.ID,
		payment.InvoiceID,
		payment.Amount,
		payment.Method,
		payment.TransactionID,
		payment.Reference,
		payment.Notes,
		payment.ProcessedBy,
		payment.CreatedAt)
	if err != nil {
		return model.Payment{}, model.Invoice{}, err
	}

	invoice.AmountPaid += payment.Amount
	invoice.Settle(now)
	invoice.UpdatedAt = now
	_, err = tx.ExecContext(ctx,
		"UPDATE invoices SET amount_paid = $1, balance = $2, status = $3, paid_at = $4, updated_at = $5"+
			" WHERE id = $6",
		invoice.AmountPaid,
		invoice.Balance,
		invoice.Status,
		nullTime(invoice.PaidAt),
		invoice.UpdatedAt,
		invoice.ID)
	if err != nil {
		return model.Payment{}, model.Invoice{}, err
	}

	if err := tx.Commit(); err != nil {
		return model.Payment{}, model.Invoice{}, err
	}
	return payment, invoice, nil
}

func scanPayment(row rowScanner) (model.Payment, error) {
	var payment model.Payment
	err := row.Scan(&payment.ID,
		&payment.InvoiceID,
		&payment.Amount,
		&payment.Method,
		&payment.TransactionID,
		&payment.Reference,
		&payment.Notes,
		&payment.ProcessedBy,
		&payment.CreatedAt)
	if err != nil {
		return model.Payment{}, err
	}
	return payment, nil
}

const paymentColumns = "id, invoice_id, amount, method, transaction_id, reference, notes, processed_by, created_at"

func (store *store) PaymentGet(ctx context.Context, id string) (model.Payment, error) {
	row := store.database.QueryRowContext(ctx,
		"SELECT "+paymentColumns+" FROM payments"+
			" WHERE id = $1",
		id)
	payment, err := scanPayment(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Payment{}, ErrNoRows
		}
		return model.Payment{}, err
	}
	return payment, nil
}

func (store *store) PaymentList(ctx context.Context, filter model.PaymentFilter) ([]model.Payment, error) {
	query := "SELECT " + paymentColumns + " FROM payments WHERE 1=1"
	var args []any
	if filter.InvoiceID != "" {
		args = append(args, filter.InvoiceID)
		query += " AND invoice_id = $" + strconv.Itoa(len(args))
	}
	if filter.Method != "" {
		args = append(args, filter.Method)
		query += " AND method = $" + strconv.Itoa(len(args))
	}
	query += " ORDER BY created_at DESC"

	rows, err := store.database.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []model.Payment
	for rows.Next() {
		payment, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, payment)
	}
	return payments, rows.Err()
}

func (store *store) PaymentRemove(ctx context.Context, id string) (model.Invoice, error) {
	tx, err := store.database.BeginTx(ctx, nil)
	if err != nil {
		return model.Invoice{}, err
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx,
		"SELECT "+paymentColumns+" FROM payments"+
			" WHERE id = $1",
		id)
	payment, err := scanPayment(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Invoice{}, ErrNoRows
		}
		return model.Invoice{}, err
	}

	row = tx.QueryRowContext(ctx,
		"SELECT "+invoiceColumns+" FROM invoices"+
			" WHERE id = $1"+
			" FOR UPDATE",
		payment.InvoiceID)
	invoice, err := scanInvoice(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Invoice{}, ErrNoRows
		}
		return model.Invoice{}, err
	}

	now := time.Now()
	invoice.AmountPaid -= payment.Amount
	invoice.Revert()
	invoice.UpdatedAt = now
	_, err = tx.ExecContext(ctx,
		"UPDATE invoices SET amount_paid = $1, balance = $2, status = $3, paid_at = $4, updated_at = $5"+
			" WHERE id = $6",
		invoice.AmountPaid,
		invoice.Balance,
		invoice.Status,
		nullTime(invoice.PaidAt),
		invoice.UpdatedAt,
		invoice.ID)
	if err != nil {
		return model.Invoice{}, err
	}

	_, err = tx.ExecContext(ctx,
		"DELETE FROM payments WHERE id = $1",
		payment.ID)
	if err != nil {
		return model.Invoice{}, err
	}

	if err := tx.Commit(); err != nil {
		return model.Invoice{}, err
	}
	return invoice, nil
}

const tariffColumns = "id, name, origin, destination, base_rate, rate_per_kg, rate_per_cbm, insurance_rate, is_active, created_at, updated_at"

func scanTariff(row rowScanner) (model.TariffRule, error) {
	var tariff model.TariffRule
	err := row.Scan(&tariff.ID,
		&tariff.Name,
		&tariff.Origin,
		&tariff.Destination,
		&tariff.BaseRate,
		&tariff.RatePerKg,
		&tariff.RatePerCbm,
		&tariff.InsuranceRate,
		&tariff.IsActive,
		&tariff.CreatedAt,
		&tariff.UpdatedAt)
	if err != nil {
		return model.TariffRule{}, err
	}
	return tariff, nil
}

func (store *store) TariffCreate(ctx context.Context, tariff model.TariffRule) (model.TariffRule, error) {
	now := time.Now()
	tariff.ID = uuid.NewString()
	tariff.CreatedAt = now
	tariff.UpdatedAt = now
	_, err := store.database.ExecContext(ctx,
		"INSERT INTO tariff_rules ("+tariffColumns+")"+
			" VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)",
		tariff.ID,
		tariff.Name,
		tariff.Origin,
		tariff.Destination,
		tariff.BaseRate,
		tariff.RatePerKg,
		tariff.RatePerCbm,
		tariff.InsuranceRate,
		tariff.IsActive,
		tariff.CreatedAt,
		tariff.UpdatedAt)
	if err != nil {
		return model.TariffRule{}, err
	}
	return tariff, nil
}

func (store *store) TariffGet(ctx context.Context, id string) (model.TariffRule, error) {
	row := store.database.QueryRowContext(ctx,
		"SELECT "+tariffColumns+" FROM tariff_rules"+
			" WHERE id = $1",
		id)
	tariff, err := scanTariff(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.TariffRule{}, ErrNoRows
		}
		return model.TariffRule{}, err
	}
	return tariff, nil
}

func (store *store) TariffList(ctx context.Context, filter model.TariffFilter) ([]model.TariffRule, error) {
	query := "SELECT " + tariffColumns + " FROM tariff_rules WHERE 1=1"
	var args []any
	if filter.Origin != "" {
		args = append(args, filter.Origin)
		query += " AND origin = $" + strconv.Itoa(len(args))
	}
	if filter.Destination != "" {
		args = append(args, filter.Destination)
		query += " AND destination = $" + strconv.Itoa(len(args))
	}
	if filter.IsActive != nil {
		args = append(args, *filter.IsActive)
		query += " AND is_active = $" + strconv.Itoa(len(args))
	}
	query += " ORDER BY name"

	rows, err := store.database.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tariffs []model.TariffRule
	for rows.Next() {
		tariff, err := scanTariff(rows)
		if err != nil {
			return nil, err
		}
		tariffs = append(tariffs, tariff)
	}
	return tariffs, rows.Err()
}

func (store *store) TariffUpdate(ctx context.Context, tariff model.TariffRule) (model.TariffRule, error) {
	tariff.UpdatedAt = time.Now()
	result, err := store.database.ExecContext(ctx,
		"UPDATE tariff_rules SET"+
			" name = $1, origin = $2, destination = $3, base_rate = $4,"+
			" rate_per_kg = $5, rate_per_cbm = $6, insurance_rate = $7, is_active = $8, updated_at = $9"+
			" WHERE id = $10",
		tariff.Name,
		tariff.Origin,
		tariff.Destination,
		tariff.BaseRate,
		tariff.RatePerKg,
		tariff.RatePerCbm,
		tariff.InsuranceRate,
		tariff.IsActive,
		tariff.UpdatedAt,
		tariff.ID)
	if err != nil {
		return model.TariffRule{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return model.TariffRule{}, err
	}
	if affected == 0 {
		return model.TariffRule{}, ErrNoRows
	}
	return tariff, nil
}

func (store *store) TariffDelete(ctx context.Context, id string) error {
	result, err := store.database.ExecContext(ctx,
		"DELETE FROM tariff_rules WHERE id = $1",
		id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNoRows
	}
	return nil
}

func (store *store) TariffFindActive(ctx context.Context, origin string, destination string) (model.TariffRule, error) {
	// При нескольких активных правилах с одним ключом детерминированно
	// побеждает самое старое
	row := store.database.QueryRowContext(ctx,
		"SELECT "+tariffColumns+" FROM tariff_rules"+
			" WHERE origin = $1 AND destination = $2 AND is_active"+
			" ORDER BY created_at, id"+
			" LIMIT 1",
		origin, destination)
	tariff, err := scanTariff(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.TariffRule{}, ErrNoRows
		}
		return model.TariffRule{}, err
	}
	return tariff, nil
}

func (store *store) InvoiceStats(ctx context.Context) (model.InvoiceStats, error) {
	var stats model.InvoiceStats

	rows, err := store.database.QueryContext(ctx,
		"SELECT status, COUNT(*) FROM invoices GROUP BY status")
	if err != nil {
		return model.InvoiceStats{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return model.InvoiceStats{}, err
		}
		stats.TotalInvoices += count
		switch status {
		case model.InvoiceStatusPending:
			stats.ByStatus.Pending = count
		case model.InvoiceStatusPartial:
			stats.ByStatus.Partial = count
		case model.InvoiceStatusPaid:
			stats.ByStatus.Paid = count
		case model.InvoiceStatusCancelled:
			stats.ByStatus.Cancelled = count
		}
	}
	if err := rows.Err(); err != nil {
		return model.InvoiceStats{}, err
	}

	row := store.database.QueryRowContext(ctx,
		"SELECT"+
			" COALESCE(SUM(total) FILTER (WHERE status <> $1), 0),"+
			" COALESCE(SUM(amount_paid), 0),"+
			" COALESCE(SUM(balance) FILTER (WHERE status IN ($2, $3)), 0)"+
			" FROM invoices",
		model.InvoiceStatusCancelled,
		model.InvoiceStatusPending,
		model.InvoiceStatusPartial)
	err = row.Scan(&stats.TotalAmount, &stats.TotalPaid, &stats.TotalOutstanding)
	if err != nil {
		return model.InvoiceStats{}, err
	}

	return stats, nil
}

func (store *store) PaymentStats(ctx context.Context) (model.PaymentStats, error) {
	var stats model.PaymentStats

	row := store.database.QueryRowContext(ctx,
		"SELECT COUNT(*), COALESCE(SUM(amount), 0) FROM payments")
	if err := row.Scan(&stats.TotalPayments, &stats.TotalAmount); err != nil {
		return model.PaymentStats{}, err
	}

	rows, err := store.database.QueryContext(ctx,
		"SELECT method, COUNT(*), COALESCE(SUM(amount), 0)"+
			" FROM payments GROUP BY method ORDER BY method")
	if err != nil {
		return model.PaymentStats{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var stat model.MethodStat
		if err := rows.Scan(&stat.Method, &stat.Count, &stat.TotalAmount); err != nil {
			return model.PaymentStats{}, err
		}
		stats.ByMethod = append(stats.ByMethod, stat)
	}
	if err := rows.Err(); err != nil {
		return model.PaymentStats{}, err
	}

	return stats, nil
}

func (store *store) RevenueReport(ctx context.Context, from *time.Time, to *time.Time) (model.RevenueReport, error) {
	query := "SELECT COUNT(*), COALESCE(SUM(total), 0) FROM invoices WHERE status = $1"
	args := []any{model.InvoiceStatusPaid}
	if from != nil {
		args = append(args, *from)
		query += " AND paid_at >= $" + strconv.Itoa(len(args))
	}
	if to != nil {
		args = append(args, *to)
		query += " AND paid_at <= $" + strconv.Itoa(len(args))
	}

	report := model.RevenueReport{StartDate: from, EndDate: to}
	var revenue float64
	row := store.database.QueryRowContext(ctx, query, args...)
	if err := row.Scan(&report.TotalInvoices, &revenue); err != nil {
		return model.RevenueReport{}, err
	}
	report.TotalRevenue = math.Round(revenue)
	if report.TotalInvoices > 0 {
		report.AverageInvoiceValue = math.Round(revenue / float64(report.TotalInvoices))
	}
	return report, nil
}

func (store *store) OutstandingReport(ctx context.Context, now time.Time) (model.OutstandingReport, error) {
	rows, err := store.database.QueryContext(ctx,
		"SELECT invoice_number, client_id, balance, due_date FROM invoices"+
			" WHERE status IN ($1, $2)"+
			" ORDER BY due_date ASC NULLS LAST",
		model.InvoiceStatusPending,
		model.InvoiceStatusPartial)
	if err != nil {
		return model.OutstandingReport{}, err
	}
	defer rows.Close()

	var report model.OutstandingReport
	var totalOutstanding, totalOverdue float64
	for rows.Next() {
		var item model.OutstandingInvoice
		var dueDate sql.NullTime
		if err := rows.Scan(&item.InvoiceNumber, &item.ClientID, &item.Balance, &dueDate); err != nil {
			return model.OutstandingReport{}, err
		}
		if dueDate.Valid {
			item.DueDate = &dueDate.Time
			item.IsOverdue = dueDate.Time.Before(now)
		}
		report.TotalInvoices++
		totalOutstanding += item.Balance
		if item.IsOverdue {
			report.OverdueInvoices++
			totalOverdue += item.Balance
		}
		report.Invoices = append(report.Invoices, item)
	}
	if err := rows.Err(); err != nil {
		return model.OutstandingReport{}, err
	}

	report.TotalOutstanding = math.Round(totalOutstanding)
	report.TotalOverdue = math.Round(totalOverdue)
	return report, nil
}

func (store *store) PaymentMethodBreakdown(ctx context.Context) (model.MethodBreakdown, error) {
	rows, err := store.database.QueryContext(ctx,
		"SELECT method, COUNT(*), COALESCE(SUM(amount), 0)"+
			" FROM payments GROUP BY method ORDER BY method")
	if err != nil {
		return model.MethodBreakdown{}, err
	}
	defer rows.Close()

	var breakdown model.MethodBreakdown
	var total float64
	for rows.Next() {
		var stat model.MethodStat
		if err := rows.Scan(&stat.Method, &stat.Count, &stat.TotalAmount); err != nil {
			return model.MethodBreakdown{}, err
		}
		total += stat.TotalAmount
		breakdown.Breakdown = append(breakdown.Breakdown, stat)
	}
	if err := rows.Err(); err != nil {
		return model.MethodBreakdown{}, err
	}

	for i := range breakdown.Breakdown {
		if total > 0 {
			share := breakdown.Breakdown[i].TotalAmount / total * 100
			breakdown.Breakdown[i].Percentage = math.Round(share*100) / 100
		}
	}
	breakdown.TotalAmount = math.Round(total)
	return breakdown, nil
}

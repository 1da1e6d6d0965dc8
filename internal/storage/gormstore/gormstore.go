package gormstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"assistant/internal/booking"
)

type Customer struct {
	ID    int64  `gorm:"column:customer_id;primaryKey;autoIncrement"`
	Name  string `gorm:"column:name"`
	Email string `gorm:"column:email"`
	Phone string `gorm:"column:phone"`
}

func (Customer) TableName() string { return "customers" }

type Booking struct {
	ID          int64     `gorm:"column:id;primaryKey;autoIncrement"`
	CustomerID  int64     `gorm:"column:customer_id;index"`
	Customer    Customer  `gorm:"foreignKey:CustomerID;references:ID"`
	BookingType string    `gorm:"column:booking_type"`
	Date        string    `gorm:"column:date"`
	Time        string    `gorm:"column:time"`
	Status      string    `gorm:"column:status"`
	CreatedAt   time.Time `gorm:"column:created_at;index"`
}

func (Booking) TableName() string { return "bookings" }

// Connect opens PostgreSQL for postgres:// DSNs and SQLite otherwise.
func Connect(l *zap.Logger, dsn string) (*gorm.DB, error) {
	cfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)}
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		l.Info("Connecting to PostgreSQL")
		return gorm.Open(postgres.Open(dsn), cfg)
	}
	l.Info("Using SQLite", zap.String("dsn", dsn))
	return gorm.Open(sqlite.Open(dsn), cfg)
}

// Store saves each booking as a customer row plus a booking row.
type Store struct {
	db *gorm.DB
}

// New migrates the schema and returns a ready store.
func New(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&Customer{}, &Booking{}); err != nil {
		return nil, fmt.Errorf("migrate booking tables: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Save(ctx context.Context, b *booking.CompletedBooking) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		customer := Customer{Name: b.Name, Email: b.Email, Phone: b.Phone}
		if err := tx.Create(&customer).Error; err != nil {
			return fmt.Errorf("insert customer: %w", err)
		}
		row := Booking{
			CustomerID:  customer.ID,
			BookingType: b.BookingType,
			Date:        b.Date,
			Time:        b.Time,
			Status:      b.Status,
			CreatedAt:   b.CreatedAt,
		}
		if err := tx.Omit(clause.Associations).Create(&row).Error; err != nil {
			return fmt.Errorf("insert booking: %w", err)
		}
		b.ID = row.ID
		return nil
	})
}

func (s *Store) List(ctx context.Context) ([]booking.CompletedBooking, error) {
	var rows []Booking
	err := s.db.WithContext(ctx).
		Preload("Customer").
		Order("created_at DESC").
		Order("id DESC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	out := make([]booking.CompletedBooking, 0, len(rows))
	for _, r := range rows {
		out = append(out, booking.CompletedBooking{
			ID:          r.ID,
			Name:        r.Customer.Name,
			Email:       r.Customer.Email,
			Phone:       r.Customer.Phone,
			BookingType: r.BookingType,
			Date:        r.Date,
			Time:        r.Time,
			Status:      r.Status,
			CreatedAt:   r.CreatedAt.UTC(),
		})
	}
	return out, nil
}

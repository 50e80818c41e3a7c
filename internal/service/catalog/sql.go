package catalog

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/epir-jewellery/shop-assistant/backend/internal/model/catalog"
)

type productRecord struct {
	ID          uint   `gorm:"primaryKey"`
	Position    int    `gorm:"index;not null"`
	ProductID   string `gorm:"size:64"`
	Title       string `gorm:"not null"`
	Description string `gorm:"type:text"`
	RefreshedAt time.Time
}

func (productRecord) TableName() string { return "catalog_products" }

// SQLSnapshot keeps the catalog in a relational table.
type SQLSnapshot struct {
	db *gorm.DB
}

// NewSQLSnapshot migrates the catalog table.
func NewSQLSnapshot(db *gorm.DB) (*SQLSnapshot, error) {
	if err := db.AutoMigrate(&productRecord{}); err != nil {
		return nil, fmt.Errorf("migrate catalog table: %w", err)
	}
	return &SQLSnapshot{db: db}, nil
}

// Load returns the rows in their original order.
func (s *SQLSnapshot) Load(ctx context.Context) ([]catalog.Product, error) {
	var records []productRecord
	if err := s.db.WithContext(ctx).Order("position asc").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("read catalog snapshot: %w", err)
	}

	products := make([]catalog.Product, len(records))
	for i, record := range records {
		products[i] = catalog.Product{ID: record.ProductID, Title: record.Title, Description: record.Description}
	}
	return products, nil
}

// Save replaces every row inside one transaction.
func (s *SQLSnapshot) Save(ctx context.Context, products []catalog.Product) error {
	now := time.Now().UTC()
	records := make([]productRecord, len(products))
	for i, product := range products {
		records[i] = productRecord{
			Position:    i,
			ProductID:   product.ID,
			Title:       product.Title,
			Description: product.Description,
			RefreshedAt: now,
		}
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&productRecord{}).Error; err != nil {
			return fmt.Errorf("clear catalog table: %w", err)
		}
		if len(records) == 0 {
			return nil
		}
		if err := tx.CreateInBatches(records, 100).Error; err != nil {
			return fmt.Errorf("insert catalog rows: %w", err)
		}
		return nil
	})
}

package entkv

import (
	"context"
	"fmt"

	"entgo.io/ent/dialect"
	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"
)

const (
	entriesTable = "kv_entries"

	columnKey       = "key"
	columnValue     = "value"
	columnExpiresAt = "expires_at"
)

var (
	// entriesColumns holds the columns of kv_entries. expires_at is unix
	// nanoseconds, 0 meaning the key never expires.
	entriesColumns = []*schema.Column{
		{Name: columnKey, Type: field.TypeString, Size: 512},
		{Name: columnValue, Type: field.TypeBytes},
		{Name: columnExpiresAt, Type: field.TypeInt64, Default: 0},
	}

	entriesSchema = &schema.Table{
		Name:       entriesTable,
		Columns:    entriesColumns,
		PrimaryKey: []*schema.Column{entriesColumns[0]},
		Indexes: []*schema.Index{
			{
				Name:    "kventry_expires_at",
				Columns: []*schema.Column{entriesColumns[2]},
			},
		},
	}

	tables = []*schema.Table{entriesSchema}
)

// migrate creates or updates kv_entries. Changes are append-only.
func migrate(ctx context.Context, drv dialect.Driver) error {
	m, err := schema.NewMigrate(drv)
	if err != nil {
		return fmt.Errorf("failed to prepare migration: %w", err)
	}
	if err := m.Create(ctx, tables...); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Package models defines the domain models for Lifeboard.
//
// # Tenancy
//
// Every scoped resource (wallets, categories, transactions, budgets, loans,
// universes) carries a nullable OrganizationID. A nil OrganizationID means the
// row belongs to the creator's personal space; otherwise it belongs to the
// organization. The partition is fixed when the row is created and is never
// migrated when the active tenancy changes later.
//
// # Drafts
//
// Each resource has a Draft type holding the fields a caller may submit on
// create. Drafts never carry identity or audit fields: the backend assigns
// ID, CreatedAt and UpdatedAt, and the resource hooks inject UserID and
// OrganizationID from the session and the tenancy context.
//
// # Wire format
//
// JSON tags match the backend column names. Money is carried as
// decimal.Decimal and travels as a string.
package models

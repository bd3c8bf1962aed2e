package sqlstore

import (
	"fmt"
	"regexp"
)

// RelationKind is the cardinality of a relation
type RelationKind int

const (
	BelongsTo RelationKind = iota
	HasMany
	HasOne
)

// String returns the string representation of the relation kind
func (k RelationKind) String() string {
	switch k {
	case BelongsTo:
		return "belongs_to"
	case HasMany:
		return "has_many"
	case HasOne:
		return "has_one"
	default:
		return "unknown"
	}
}

// Relation describes how a related table joins to its parent.
//
// For BelongsTo, ForeignKey lives on the parent and OwnerKey on the related
// table. For HasMany and HasOne, ForeignKey lives on the related table and
// OwnerKey on the parent. OwnerKey defaults to "id".
type Relation struct {
	Kind       RelationKind
	Table      string
	ForeignKey string
	OwnerKey   string
}

func (r Relation) ownerKey() string {
	if r.OwnerKey == "" {
		return "id"
	}
	return r.OwnerKey
}

// parentKey is the parent column matched against the related table
func (r Relation) parentKey() string {
	if r.Kind == BelongsTo {
		return r.ForeignKey
	}
	return r.ownerKey()
}

// relatedKey is the related column matched against the parent
func (r Relation) relatedKey() string {
	if r.Kind == BelongsTo {
		return r.ownerKey()
	}
	return r.ForeignKey
}

// joinCondition links alias (the related table) to parent
func (r Relation) joinCondition(alias, parent string) string {
	return fmt.Sprintf("%s.%s = %s.%s", alias, r.relatedKey(), parent, r.parentKey())
}

// Table describes a mapped table
type Table struct {
	Name string
	// PrimaryKey defaults to "id"
	PrimaryKey string
	Relations  map[string]Relation
	// SoftDeletes filters rows with a non-null deleted_at and turns deletes
	// into updates
	SoftDeletes bool
	// Timestamps maintains created_at and updated_at
	Timestamps bool
	// UUIDKeys generates a UUID primary key on insert when none is given
	UUIDKeys bool
}

const (
	createdAtColumn = "created_at"
	updatedAtColumn = "updated_at"
	deletedAtColumn = "deleted_at"
)

func (t *Table) primaryKey() string {
	if t.PrimaryKey == "" {
		return "id"
	}
	return t.PrimaryKey
}

func (t *Table) relation(name string) (Relation, error) {
	rel, ok := t.Relations[name]
	if !ok {
		return Relation{}, fmt.Errorf("%w: %s on %s", ErrUnknownRelation, name, t.Name)
	}
	if !isValidIdentifier(rel.Table) || !isValidIdentifier(rel.parentKey()) || !isValidIdentifier(rel.relatedKey()) {
		return Relation{}, fmt.Errorf("%w: %s on %s", ErrInvalidIdentifier, name, t.Name)
	}
	return rel, nil
}

// column qualifies a column with the table name
func (t *Table) column(name string) string {
	return t.Name + "." + name
}

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func isValidIdentifier(s string) bool {
	return identifierPattern.MatchString(s)
}

package errors

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

type constraintRule struct {
	code    Code
	message string
}

// Named table constraints from the migrations, keyed by constraint name.
var constraintRules = map[string]constraintRule{
	"inventory_items_stock_s_nonneg":   {CodeInvariant, "stock cannot go negative"},
	"inventory_items_stock_m_nonneg":   {CodeInvariant, "stock cannot go negative"},
	"inventory_items_stock_l_nonneg":   {CodeInvariant, "stock cannot go negative"},
	"inventory_items_stock_xl_nonneg":  {CodeInvariant, "stock cannot go negative"},
	"inventory_items_product_id_key":   {CodeConflict, "inventory item already exists for product"},
	"inventory_audit_adjust_reason":    {CodeValidation, "reason is required for adjustments"},
	"restock_requests_code_hash_key":   {CodeConflict, "restock code already issued"},
	"restock_requests_nonzero":         {CodeValidation, "at least one size must be requested"},
	"restock_requests_single_terminal": {CodeStateConflict, "restock request is already closed"},
}

type ErrorDump struct {
	TopMessage string `json:"top_message"`
	Code       Code   `json:"code,omitempty"`

	Chain []string `json:"chain,omitempty"`

	// Rule is the domain rule behind PGConstraint, when the constraint is one of ours.
	Rule string `json:"rule,omitempty"`

	PGCode       string `json:"pg_code,omitempty"`
	PGConstraint string `json:"pg_constraint,omitempty"`
	PGTable      string `json:"pg_table,omitempty"`
	PGColumn     string `json:"pg_column,omitempty"`
	PGDetail     string `json:"pg_detail,omitempty"`
	PGMessage    string `json:"pg_message,omitempty"`
}

// WrapStore wraps a storage error. Violations of a known table constraint keep the
// code of the rule it enforces; anything else is internal.
func WrapStore(err error, message string) *Error {
	if typed := As(err); typed != nil {
		return typed
	}
	name := constraintName(err)
	if rule, ok := constraintRules[name]; ok {
		return Wrap(rule.code, err, rule.message).WithDetails(map[string]any{"constraint": name})
	}
	return Wrap(CodeInternal, err, message)
}

// constraintName extracts the violated constraint from a pgx or lib/pq error. Other
// drivers (sqlite) only name it in the message text.
func constraintName(err error) string {
	if err == nil {
		return ""
	}
	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) {
		return pgxErr.ConstraintName
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Constraint
	}
	msg := err.Error()
	for name := range constraintRules {
		if strings.Contains(msg, name) {
			return name
		}
	}
	return ""
}

func Dump(err error) ErrorDump {
	if err == nil {
		return ErrorDump{}
	}

	d := ErrorDump{
		TopMessage: err.Error(),
	}

	if te := As(err); te != nil {
		d.Code = te.Code()
	}

	for e := err; e != nil; e = errors.Unwrap(e) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", e, e))
	}

	var pgxErr *pgconn.PgError
	var pqErr *pq.Error
	switch {
	case errors.As(err, &pgxErr):
		d.PGCode = pgxErr.Code
		d.PGConstraint = pgxErr.ConstraintName
		d.PGTable = pgxErr.TableName
		d.PGColumn = pgxErr.ColumnName
		d.PGDetail = pgxErr.Detail
		d.PGMessage = pgxErr.Message
	case errors.As(err, &pqErr):
		d.PGCode = string(pqErr.Code)
		d.PGConstraint = pqErr.Constraint
		d.PGTable = pqErr.Table
		d.PGColumn = pqErr.Column
		d.PGDetail = pqErr.Detail
		d.PGMessage = pqErr.Message
	default:
		d.PGConstraint = constraintName(err)
	}
	if rule, ok := constraintRules[d.PGConstraint]; ok {
		d.Rule = rule.message
	}
	return d
}

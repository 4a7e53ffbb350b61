// Package patch applies batches of id-addressed edit operations to a document.
package patch

import (
	"fmt"
	"strings"

	"github.com/bytedance/sonic"

	"diagram_engine/pkg"
)

// Operation is one of Add, Update or Delete
type Operation interface {
	Kind() string
	Target() string
	isOperation()
}

// Add inserts a new cell. Payload is the markup of exactly one cell whose id is ID.
type Add struct {
	ID      string
	Payload string
}

// Update replaces an existing cell wholesale.
type Update struct {
	ID      string
	Payload string
}

// Delete removes a cell, its descendants and every edge touching them.
type Delete struct {
	ID string
}

func (Add) Kind() string    { return pkg.OperationAdd }
func (Update) Kind() string { return pkg.OperationUpdate }
func (Delete) Kind() string { return pkg.OperationDelete }

func (o Add) Target() string    { return o.ID }
func (o Update) Target() string { return o.ID }
func (o Delete) Target() string { return o.ID }

func (Add) isOperation()    {}
func (Update) isOperation() {}
func (Delete) isOperation() {}

// FromRecords converts boundary records into operations. Every bad record is
// reported, each with its 1-based position.
func FromRecords(records []pkg.OperationRecord) ([]Operation, error) {
	ops := make([]Operation, 0, len(records))
	var diags []pkg.Diagnostic
	bad := func(i int, r pkg.OperationRecord, field, msg string) {
		diags = append(diags, pkg.Diagnostic{
			Code:      pkg.CodeInvalidOperation,
			CellID:    r.CellID,
			Field:     field,
			Operation: i + 1,
			Message:   msg,
		})
	}

	for i, r := range records {
		kind := strings.ToLower(strings.TrimSpace(r.Operation))
		if r.CellID == "" {
			bad(i, r, "cell_id", "cell_id is required")
			continue
		}
		switch kind {
		case pkg.OperationAdd, pkg.OperationUpdate:
			if strings.TrimSpace(r.NewXML) == "" {
				bad(i, r, "new_xml", fmt.Sprintf("new_xml is required for %s", kind))
				continue
			}
			if kind == pkg.OperationAdd {
				ops = append(ops, Add{ID: r.CellID, Payload: r.NewXML})
			} else {
				ops = append(ops, Update{ID: r.CellID, Payload: r.NewXML})
			}
		case pkg.OperationDelete:
			ops = append(ops, Delete{ID: r.CellID})
		case "":
			bad(i, r, "operation", "operation is required")
		default:
			bad(i, r, "operation", fmt.Sprintf("unknown operation %q, expected add, update or delete", r.Operation))
		}
	}

	if len(diags) > 0 {
		return nil, pkg.NewError(pkg.CodeInvalidOperation, fmt.Sprintf("%d invalid operation record(s)", len(diags)), diags...)
	}
	return ops, nil
}

// DecodeBatch decodes a JSON array of operation records.
func DecodeBatch(data []byte) ([]Operation, error) {
	var records []pkg.OperationRecord
	if err := sonic.Unmarshal(data, &records); err != nil {
		return nil, pkg.NewError(pkg.CodeInvalidOperation, fmt.Sprintf("operation batch is not a JSON array of records: %v", err))
	}
	return FromRecords(records)
}

// Records converts operations back into boundary records
func Records(ops []Operation) []pkg.OperationRecord {
	out := make([]pkg.OperationRecord, 0, len(ops))
	for _, op := range ops {
		r := pkg.OperationRecord{Operation: op.Kind(), CellID: op.Target()}
		switch o := op.(type) {
		case Add:
			r.NewXML = o.Payload
		case Update:
			r.NewXML = o.Payload
		}
		out = append(out, r)
	}
	return out
}

package pkg

// Wire types shared between the engine and its callers (tool layer, CLI, transport).

// Code identifies a class of diagnostic returned to the generator
type Code string

const (
	CodeMalformedFragment          Code = "MalformedFragment"
	CodeTruncated                  Code = "Truncated" // control signal, not a failure
	CodeFreshStartRejected         Code = "FreshStartRejected"
	CodeAssemblyAbandoned          Code = "AssemblyAbandoned"
	CodeDuplicateID                Code = "DuplicateId"
	CodeUnknownCell                Code = "UnknownCell"
	CodeInvalidParentReference     Code = "InvalidParentReference"
	CodeInvalidEdgeEndpoint        Code = "InvalidEdgeEndpoint"
	CodeUnresolvedReference        Code = "UnresolvedReference"
	CodeStructuralValidationFailed Code = "StructuralValidationFailed"
	CodeIllegalNesting             Code = "IllegalNesting"
	CodeReservedID                 Code = "ReservedId"
	CodeNoPendingAssembly          Code = "NoPendingAssembly"
	CodeInvalidOperation           Code = "InvalidOperation"
	CodePatchRejected              Code = "PatchRejected"
	CodeNoDocument                 Code = "NoDocument"
)

// Diagnostic describes a single problem in a form a machine consumer can act on
type Diagnostic struct {
	Code      Code   `json:"code"`
	CellID    string `json:"cell_id,omitempty"`
	Field     string `json:"field,omitempty"`     // offending attribute (parent, source, target, ...)
	Ref       string `json:"ref,omitempty"`       // referenced id or cache reference
	Operation int    `json:"operation,omitempty"` // 1-based index into an operation batch, 0 if n/a
	Message   string `json:"message"`
}

// OperationRecord is the boundary format of one entry in an edit batch
type OperationRecord struct {
	Operation string `json:"operation"` // add, update, delete
	CellID    string `json:"cell_id"`
	NewXML    string `json:"new_xml,omitempty"`
}

// Operation kinds accepted in OperationRecord.Operation
const (
	OperationAdd    = "add"
	OperationUpdate = "update"
	OperationDelete = "delete"
)

package cart

import (
	"errors"
	"fmt"
)

// Operation failures. Every error returned by Store unwraps to one of these.
var (
	ErrOutOfStock      = errors.New("out of stock")
	ErrItemNotFound    = errors.New("item not found")
	ErrOperationFailed = errors.New("operation failed")
)

// Kind is the kind of message shown to the shopper.
type Kind int

const (
	KindOutOfStock Kind = iota + 1
	KindQuantityUnavailable
	KindAddFailed
	KindRemoveFailed
	KindUpdateFailed
	KindSaveFailed
)

var kindText = map[Kind]string{
	KindOutOfStock:          "item already out of stock",
	KindQuantityUnavailable: "requested quantity unavailable",
	KindAddFailed:           "add failed",
	KindRemoveFailed:        "remove failed",
	KindUpdateFailed:        "update failed",
	KindSaveFailed:          "cart could not be saved",
}

func (k Kind) String() string {
	if s, ok := kindText[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Message is what a Notifier receives.
type Message struct {
	Kind      Kind   `json:"kind"`
	Text      string `json:"text"`
	ProductID int64  `json:"productId,omitempty"`
}

// Op names a store operation.
type Op string

const (
	OpAdd    Op = "add"
	OpRemove Op = "remove"
	OpUpdate Op = "update"
)

// Error describes a rejected or failed store operation.
type Error struct {
	Op        Op
	Kind      Kind
	ProductID int64
	// Class is one of ErrOutOfStock, ErrItemNotFound or ErrOperationFailed.
	Class error
	// Err is the underlying cause, if any.
	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("cart %s product %d: %v: %v", e.Op, e.ProductID, e.Class, e.Err)
	}
	return fmt.Sprintf("cart %s product %d: %v", e.Op, e.ProductID, e.Class)
}

// Unwrap exposes both the class sentinel and the cause to errors.Is/As.
func (e *Error) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Class, e.Err}
	}
	return []error{e.Class}
}

// Message converts the error to a shopper-facing message.
func (e *Error) Message() Message {
	return Message{Kind: e.Kind, Text: e.Kind.String(), ProductID: e.ProductID}
}

var failedKind = map[Op]Kind{
	OpAdd:    KindAddFailed,
	OpRemove: KindRemoveFailed,
	OpUpdate: KindUpdateFailed,
}

func failed(op Op, id int64, cause error) *Error {
	return &Error{Op: op, Kind: failedKind[op], ProductID: id, Class: ErrOperationFailed, Err: cause}
}

func outOfStock(op Op, kind Kind, id int64) *Error {
	return &Error{Op: op, Kind: kind, ProductID: id, Class: ErrOutOfStock}
}

func notFound(op Op, id int64) *Error {
	return &Error{Op: op, Kind: failedKind[op], ProductID: id, Class: ErrItemNotFound}
}

// MessageFor returns the shopper-facing message for err, if err came from a Store.
func MessageFor(err error) (Message, bool) {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Message(), true
	}
	return Message{}, false
}

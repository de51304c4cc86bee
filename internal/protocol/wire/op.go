package wire

import "fmt"

// Op is the operation tag carried in the first byte of a request body.
type Op uint8

const (
	OpNoop1  Op = 1
	OpNoop2  Op = 2
	OpNoop3  Op = 3
	OpNoop4  Op = 4
	OpNoop5  Op = 5
	OpGet    Op = 6
	OpPut    Op = 7
	OpDelete Op = 8
)

// NoopVariants is the closed set of probe tags in dispatch order.
var NoopVariants = [...]Op{OpNoop1, OpNoop2, OpNoop3, OpNoop4, OpNoop5}

// NoopOp maps a 1-based variant number to its tag.
func NoopOp(variant int) (Op, error) {
	if variant < 1 || variant > len(NoopVariants) {
		return 0, fmt.Errorf("wire: noop variant %d out of range 1..%d", variant, len(NoopVariants))
	}
	return NoopVariants[variant-1], nil
}

func (o Op) Valid() bool {
	return o >= OpNoop1 && o <= OpDelete
}

func (o Op) IsNoop() bool {
	return o >= OpNoop1 && o <= OpNoop5
}

// Operands is the number of length-prefixed operands a request with this tag carries.
func (o Op) Operands() int {
	switch o {
	case OpGet, OpDelete:
		return 1
	case OpPut:
		return 2
	default:
		return 0
	}
}

func (o Op) String() string {
	switch {
	case o.IsNoop():
		return fmt.Sprintf("noop%d", int(o-OpNoop1)+1)
	case o == OpGet:
		return "get"
	case o == OpPut:
		return "put"
	case o == OpDelete:
		return "delete"
	default:
		return fmt.Sprintf("op(%d)", uint8(o))
	}
}

// Status is the first byte of a response body.
type Status uint8

const (
	StatusSuccess     Status = 0
	StatusNotFound    Status = 1
	StatusBadRequest  Status = 2
	StatusUnsupported Status = 3
	StatusServerError Status = 4
)

// IsError reports whether s belongs to the error family (>= 2).
func (s Status) IsError() bool {
	return s >= StatusBadRequest
}

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusNotFound:
		return "not_found"
	case StatusBadRequest:
		return "bad_request"
	case StatusUnsupported:
		return "unsupported"
	case StatusServerError:
		return "server_error"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

package kerror

import (
	"fmt"
	"runtime/debug"
	"strings"
)

type Keypair struct {
	K string
	V interface{}
}

// Kerror is the error type used across the scheduler. Type is a stable
// machine-readable name (for exp "AlreadyRegistered"), Msg is human text.
// Details is an array instead of a map to keep ordering stable.
type Kerror struct {
	Type      string
	Msg       string
	Details   []Keypair
	Stack     string // optional, normally only the inner most error needs a full stack dump
	CausedBy  error  // optional
	ErrorCode ErrorCode
}

func Create(errType string, msg string) *Kerror {
	return &Kerror{
		Stack:     GetCallStack(1),
		Type:      errType,
		Msg:       msg,
		ErrorCode: EC_UNKNOWN,
	}
}

// Note: stack trace is expensive, only attach one when really needed.
func Wrap(err error, errType, msg string, needStack bool) *Kerror {
	ke := &Kerror{
		Type:      errType,
		Msg:       msg,
		CausedBy:  err,
		ErrorCode: EC_UNKNOWN,
	}
	if needStack {
		if _, ok := err.(*Kerror); !ok {
			ke.Stack = GetCallStack(1)
		}
	}
	return ke
}

func (ke *Kerror) With(key string, val interface{}) *Kerror {
	ke.Details = append(ke.Details, Keypair{K: key, V: val})
	return ke
}

func (ke *Kerror) WithErrorCode(code ErrorCode) *Kerror {
	ke.ErrorCode = code
	return ke
}

func (ke *Kerror) WithoutStack() *Kerror {
	ke.Stack = ""
	return ke
}

func (ke *Kerror) GetType() string {
	return ke.Type
}

func (ke *Kerror) Error() string {
	return ke.ShortString()
}

func (ke *Kerror) String() string {
	return ke.FullString()
}

// Unwrap makes Kerror work with errors.Is()/errors.As().
func (ke *Kerror) Unwrap() error {
	return ke.CausedBy
}

func (ke *Kerror) ShortString() string {
	var b strings.Builder
	ke.buildString(&b, false /*withStack*/, false /*withCause*/)
	return b.String()
}

func (ke *Kerror) FullString() string {
	var b strings.Builder
	ke.buildString(&b, true /*withStack*/, true /*withCause*/)
	return b.String()
}

func (ke *Kerror) buildString(b *strings.Builder, withStack, withCause bool) {
	fmt.Fprintf(b, "%s: %s", ke.Type, ke.Msg)
	for _, item := range ke.Details {
		fmt.Fprintf(b, ", %s=%v", item.K, item.V)
	}
	if withStack && ke.Stack != "" {
		fmt.Fprintf(b, ", stack=%s", ke.Stack)
	}
	if withCause && ke.CausedBy != nil {
		fmt.Fprintf(b, ";\n Caused by: ")
		if cause, ok := ke.CausedBy.(*Kerror); ok {
			cause.buildString(b, withStack, withCause)
		} else {
			fmt.Fprintf(b, "%s", ke.CausedBy.Error())
		}
	}
}

func (ke *Kerror) GetHttpErrorCode() int {
	return ke.ErrorCode.ToHttpErrorCode()
}

func GetCallStack(removeTop int) string {
	stack := string(debug.Stack())
	// skip the first few frames (debug.Stack itself plus removeTop callers)
	split := strings.SplitAfterN(stack, "\n", 6+2*removeTop)
	return split[len(split)-1]
}

package errs

import (
	"fmt"
	"strconv"

	"github.com/pkg/errors"
)

const (
	ServerInternalError = 500
	DatabaseError       = 1001
	ConfigError         = 1002
)

type CodeError struct {
	Code   int    `json:"code"`
	Msg    string `json:"msg"`
	Detail string `json:"detail,omitempty"`
}

func NewCodeError(code int, msg string) *CodeError {
	return &CodeError{
		Code: code,
		Msg:  msg,
	}
}

func (e *CodeError) WithDetail(detail string) *CodeError {
	d := detail
	if e.Detail != "" {
		d = e.Detail + ", " + detail
	}
	return &CodeError{
		Code:   e.Code,
		Msg:    e.Msg,
		Detail: d,
	}
}

func (e *CodeError) Is(err error) bool {
	codeErr, ok := err.(*CodeError)
	if !ok {
		return false
	}
	return codeErr.Code == e.Code
}

func (e *CodeError) Error() string {
	v := "[" + strconv.Itoa(e.Code) + "] " + e.Msg
	if e.Detail != "" {
		v += " " + e.Detail
	}
	return v
}

func (e *CodeError) Wrap() error {
	return errors.WithStack(e)
}

func New(msg string) error {
	return errors.New(msg)
}

func Wrap(err error) error {
	if err == nil {
		return nil
	}
	return errors.WithStack(err)
}

// WrapMsg attaches a message plus key/value context before wrapping.
func WrapMsg(err error, msg string, kv ...any) error {
	if err == nil {
		return nil
	}
	for i := 0; i+1 < len(kv); i += 2 {
		msg += fmt.Sprintf(" %v=%v", kv[i], kv[i+1])
	}
	return errors.Wrap(err, msg)
}

// Licensed to the LF AI & Data foundation under one
// or more contributor license agreements. See the NOTICE file
// distributed with this work for additional information
// regarding copyright ownership. The ASF licenses this file
// to you under the Apache License, Version 2.0 (the
// "License"); you may not use this file except in compliance
// with the License. You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package merr

import (
	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
)

const (
	CanceledCode int32 = 10000
	TimeoutCode  int32 = 10001
)

type ErrorType int32

const (
	SystemError ErrorType = 0
	InputError  ErrorType = 1
)

var ErrorTypeName = map[ErrorType]string{
	SystemError: "system_error",
	InputError:  "input_error",
}

func (err ErrorType) String() string {
	return ErrorTypeName[err]
}

// Define leaf errors here,
// WARN: take care to add new error,
// check whether you can use the errors below before adding a new one.
// Name: Err + related prefix + error name
var (
	// Type registry related
	ErrTypeNotFound      = newGardenError("type not found", 100, false, WithErrorType(InputError))
	ErrTypeMismatch      = newGardenError("type mismatch", 101, false, WithErrorType(InputError))
	ErrTypeNotAssignable = newGardenError("type not assignable", 102, false, WithErrorType(InputError))
	ErrTypeDuplicate     = newGardenError("type already registered", 103, false, WithErrorType(InputError))

	// Member tree related
	ErrMemberMalformed = newGardenError("malformed member tree", 200, false, WithErrorType(InputError))
	ErrMemberUnknown   = newGardenError("unknown member", 201, false, WithErrorType(InputError))
	ErrMemberReadOnly  = newGardenError("member not writable", 202, false, WithErrorType(InputError))
	ErrCannotConstruct = newGardenError("cannot construct instance", 203, false, WithErrorType(InputError))
	ErrIndexOutOfRange = newGardenError("index out of range", 204, false, WithErrorType(InputError))

	// Reference related
	ErrReferenceNotFound = newGardenError("reference not found", 300, false, WithErrorType(InputError))
	ErrReferenceStale    = newGardenError("reference is stale", 301, false, WithErrorType(InputError))

	// Schema/protocol related
	ErrSchemaIncompatible = newGardenError("schema version incompatible", 400, false, WithErrorType(InputError))
	ErrOpUnsupported      = newGardenError("unsupported operation", 401, false, WithErrorType(InputError))

	// Engine related
	ErrEngineNotReady = newGardenError("engine not ready", 500, true)
	ErrEngineInternal = newGardenError("engine internal error", 501, false)

	// Parameter related
	ErrParameterInvalid = newGardenError("invalid parameter", 600, false, WithErrorType(InputError))

	errUnexpected = newGardenError("unexpected error", 1001, false)
)

type gardenError struct {
	msg       string
	detail    string
	retriable bool
	errCode   int32
	errType   ErrorType
}

type errorOption func(*gardenError)

func WithDetail(detail string) errorOption {
	return func(err *gardenError) {
		err.detail = detail
	}
}

func WithErrorType(etype ErrorType) errorOption {
	return func(err *gardenError) {
		err.errType = etype
	}
}

func newGardenError(msg string, code int32, retriable bool, options ...errorOption) gardenError {
	err := gardenError{
		msg:       msg,
		detail:    msg,
		retriable: retriable,
		errCode:   code,
	}

	for _, option := range options {
		option(&err)
	}
	return err
}

func (e gardenError) code() int32 {
	return e.errCode
}

func (e gardenError) Error() string {
	return e.msg
}

func (e gardenError) Detail() string {
	return e.detail
}

func (e gardenError) Is(err error) bool {
	cause := errors.Cause(err)
	if cause, ok := cause.(gardenError); ok {
		return e.errCode == cause.errCode
	}
	return false
}

type multiErrors struct {
	errs []error
}

func (e multiErrors) Unwrap() error {
	if len(e.errs) <= 1 {
		return nil
	}
	// To make merr work for multi errors,
	// we need cause of multi errors, which defined as the last error
	if len(e.errs) == 2 {
		return e.errs[1]
	}

	return multiErrors{
		errs: e.errs[1:],
	}
}

func (e multiErrors) Error() string {
	final := e.errs[0]
	for i := 1; i < len(e.errs); i++ {
		final = errors.Wrap(e.errs[i], final.Error())
	}
	return final.Error()
}

func (e multiErrors) Is(err error) bool {
	for _, item := range e.errs {
		if errors.Is(item, err) {
			return true
		}
	}
	return false
}

func Combine(errs ...error) error {
	errs = lo.Filter(errs, func(err error, _ int) bool { return err != nil })
	if len(errs) == 0 {
		return nil
	}
	return multiErrors{
		errs,
	}
}

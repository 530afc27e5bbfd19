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
	"context"
	"strings"

	"github.com/cockroachdb/errors"
)

// Status is the wire-level summary of an error, carried in tool
// responses instead of a raw error value.
type Status struct {
	Code int32  `json:"code"`
	Msg  string `json:"msg,omitempty"`
}

// Code returns the error code of the given error,
// WARN: DO NOT use this for now
func Code(err error) int32 {
	if err == nil {
		return 0
	}

	cause := errors.Cause(err)
	switch specificErr := cause.(type) {
	case gardenError:
		return specificErr.code()

	default:
		if errors.Is(specificErr, context.Canceled) {
			return CanceledCode
		} else if errors.Is(specificErr, context.DeadlineExceeded) {
			return TimeoutCode
		} else {
			return errUnexpected.code()
		}
	}
}

func IsRetryableErr(err error) bool {
	if err, ok := err.(gardenError); ok {
		return err.retriable
	}

	return false
}

func IsCanceledOrTimeout(err error) bool {
	return errors.IsAny(err, context.Canceled, context.DeadlineExceeded)
}

// StatusOf builds a Status from the given error.
// Returns a success Status when err is nil.
func StatusOf(err error) Status {
	if err == nil {
		return Status{}
	}
	return Status{
		Code: Code(err),
		Msg:  previousLastError(err).Error(),
	}
}

func previousLastError(err error) error {
	lastErr := err
	for {
		nextErr := errors.Unwrap(err)
		if nextErr == nil {
			break
		}
		lastErr = err
		err = nextErr
	}
	return lastErr
}

// Ok reports whether the Status represents success.
func Ok(status Status) bool {
	return status.Code == 0
}

// Success returns a Status representing success.
func Success() Status {
	return Status{}
}

// Error turns a non-success Status back into an error.
func Error(status Status) error {
	if Ok(status) {
		return nil
	}
	return newGardenError(status.Msg, status.Code, false)
}

func GetErrorType(err error) ErrorType {
	if err, ok := err.(gardenError); ok {
		return err.errType
	}

	return SystemError
}

// Type registry related

func WrapErrTypeNotFound(typeName string, msg ...string) error {
	err := errors.Wrapf(ErrTypeNotFound, "type=%s", typeName)
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

func WrapErrTypeMismatch(actual, expected string, msg ...string) error {
	err := errors.Wrapf(ErrTypeMismatch, "actual=%s, expected=%s", actual, expected)
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

func WrapErrTypeNotAssignable(concrete, target string, msg ...string) error {
	err := errors.Wrapf(ErrTypeNotAssignable, "concrete=%s, target=%s", concrete, target)
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

func WrapErrTypeDuplicate(typeName string, msg ...string) error {
	err := errors.Wrapf(ErrTypeDuplicate, "type=%s", typeName)
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

// Member tree related

func WrapErrMemberMalformed(reason string, msg ...string) error {
	err := errors.Wrapf(ErrMemberMalformed, "reason=%s", reason)
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

func WrapErrMemberUnknown(name string, typeName string, msg ...string) error {
	err := errors.Wrapf(ErrMemberUnknown, "member=%s, type=%s", name, typeName)
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

func WrapErrMemberReadOnly(name string, typeName string, msg ...string) error {
	err := errors.Wrapf(ErrMemberReadOnly, "member=%s, type=%s", name, typeName)
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

func WrapErrCannotConstruct(typeName string, msg ...string) error {
	err := errors.Wrapf(ErrCannotConstruct, "type=%s", typeName)
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

func WrapErrIndexOutOfRange(index, length int, msg ...string) error {
	err := errors.Wrapf(ErrIndexOutOfRange, "index=%d, len=%d", index, length)
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

// Reference related

func WrapErrReferenceNotFound(handle any, msg ...string) error {
	err := errors.Wrapf(ErrReferenceNotFound, "handle=%v", handle)
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

func WrapErrReferenceStale(handle any, msg ...string) error {
	err := errors.Wrapf(ErrReferenceStale, "handle=%v", handle)
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

// Schema/protocol related

func WrapErrSchemaIncompatible(got, want string, msg ...string) error {
	err := errors.Wrapf(ErrSchemaIncompatible, "got=%s, want=%s", got, want)
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

func WrapErrOpUnsupported(op any, msg ...string) error {
	err := errors.Wrapf(ErrOpUnsupported, "op=%v", op)
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

// Parameter related

func WrapErrParameterInvalid[T any](expected, actual T, msg ...string) error {
	err := errors.Wrapf(ErrParameterInvalid, "expected=%v, actual=%v", expected, actual)
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

func WrapErrEngineNotReady(msg ...string) error {
	err := error(ErrEngineNotReady)
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

func WrapErrEngineInternal(msg ...string) error {
	err := error(ErrEngineInternal)
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

func WrapErrParameterInvalidMsg(fmtStr string, args ...any) error {
	return errors.Wrapf(ErrParameterInvalid, fmtStr, args...)
}

// CheckTarget validates that a populate/serialize target is usable at all.
// A nil target is call-fatal, unlike node-local failures.
func CheckTarget(target any) error {
	if target == nil {
		return WrapErrParameterInvalidMsg("target entity must not be nil")
	}
	return nil
}

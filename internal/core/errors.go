/******************************************************************************
*
*  Copyright 2023 SAP SE
*
*  Licensed under the Apache License, Version 2.0 (the "License");
*  you may not use this file except in compliance with the License.
*  You may obtain a copy of the License at
*
*      http://www.apache.org/licenses/LICENSE-2.0
*
*  Unless required by applicable law or agreed to in writing, software
*  distributed under the License is distributed on an "AS IS" BASIS,
*  WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
*  See the License for the specific language governing permissions and
*  limitations under the License.
*
******************************************************************************/

package core

import (
	"fmt"
	"net/http"
)

// ErrorKind classifies an APIError by the taxonomy of the allocation-candidate
// solver and allocation writer: BadRequest, NotFound, Conflict, Timeout, and
// InvariantViolation.
type ErrorKind int

const (
	// KindBadRequest marks malformed queries or bodies. The transaction, if any,
	// is rolled back, so no partial state is committed.
	KindBadRequest ErrorKind = iota
	// KindNotFound marks a referenced consumer or resource provider that does
	// not exist.
	KindNotFound
	// KindConflict marks a generation mismatch or a capacity overrun detected
	// at write time. Callers may retry after re-reading.
	KindConflict
	// KindTimeout marks an enumeration that was aborted because it exceeded its
	// deadline. No partial result is ever returned alongside it.
	KindTimeout
	// KindInvariantViolation marks a violation that validation should have made
	// impossible. Its transaction is aborted and it surfaces as a 500.
	KindInvariantViolation
)

// Well-known error codes from the error envelope (spec §6/§7). Callers should
// match on Code, not on the human-readable Detail string, which is free to
// change between microversions.
const (
	CodeQueryBadValue     = "placement.query.bad_value"
	CodeQueryMissingValue = "placement.query.missing_value"
	CodeConcurrentUpdate  = "placement.concurrent_update"
	CodeInventoryInUse    = "placement.inventory.inuse"
	CodeUndefined         = "placement.undefined_code"
)

// APIError is the typed error returned by every core component. The HTTP
// layer (internal/api) translates it into the `{errors:[{title,code,detail}]}`
// envelope from spec §6; nothing below internal/api needs to know about HTTP.
type APIError struct {
	Kind   ErrorKind
	Code   string
	Title  string
	Detail string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Detail == "" {
		return e.Title
	}
	return fmt.Sprintf("%s: %s", e.Title, e.Detail)
}

// HTTPStatus maps the error's Kind to the status code the API layer should
// respond with.
func (e *APIError) HTTPStatus() int {
	switch e.Kind {
	case KindBadRequest:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindTimeout:
		return http.StatusRequestTimeout
	case KindInvariantViolation:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// BadRequest builds a KindBadRequest APIError with the given code.
func BadRequest(code, detail string) *APIError {
	return &APIError{Kind: KindBadRequest, Code: code, Title: "invalid query", Detail: detail}
}

// NotFound builds a KindNotFound APIError.
func NotFound(detail string) *APIError {
	return &APIError{Kind: KindNotFound, Code: CodeUndefined, Title: "not found", Detail: detail}
}

// Conflict builds a KindConflict APIError with the given code.
func Conflict(code, detail string) *APIError {
	return &APIError{Kind: KindConflict, Code: code, Title: "conflict", Detail: detail}
}

// Timeout builds a KindTimeout APIError.
func Timeout(detail string) *APIError {
	return &APIError{Kind: KindTimeout, Code: CodeUndefined, Title: "timeout", Detail: detail}
}

// InvariantViolationf builds a KindInvariantViolation APIError. Reaching this
// means validation upstream failed to do its job; it is always a bug.
func InvariantViolationf(format string, args ...any) *APIError {
	return &APIError{Kind: KindInvariantViolation, Code: CodeUndefined, Title: "internal invariant violation", Detail: fmt.Sprintf(format, args...)}
}

// ErrorSet replaces the "error" return value in functions that can return
// multiple errors. It provides convenience functions for easily adding errors
// to the set.
type ErrorSet []error

// Add adds the given error to the set if it is non-nil.
func (errs *ErrorSet) Add(err error) {
	if err != nil {
		*errs = append(*errs, err)
	}
}

// Addf is a shorthand for errs.Add(fmt.Errorf(...)).
func (errs *ErrorSet) Addf(msg string, args ...any) {
	*errs = append(*errs, fmt.Errorf(msg, args...))
}

// Append adds all errors from the `other` ErrorSet to this one.
func (errs *ErrorSet) Append(other ErrorSet) {
	*errs = append(*errs, other...)
}

// IsEmpty returns true if no errors are in the set.
func (errs ErrorSet) IsEmpty() bool {
	return len(errs) == 0
}

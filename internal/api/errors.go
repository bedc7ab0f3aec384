/*******************************************************************************
*
* Copyright 2022 SAP SE
*
* Licensed under the Apache License, Version 2.0 (the "License");
* you may not use this file except in compliance with the License.
* You should have received a copy of the License along with this
* program. If not, you may obtain a copy of the License at
*
*     http://www.apache.org/licenses/LICENSE-2.0
*
* Unless required by applicable law or agreed to in writing, software
* distributed under the License is distributed on an "AS IS" BASIS,
* WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
* See the License for the specific language governing permissions and
* limitations under the License.
*
*******************************************************************************/

package api

import (
	"errors"
	"net/http"

	"github.com/sapcc/go-bits/logg"
	"github.com/sapcc/go-bits/respondwith"

	"github.com/sapcc/placement/internal/core"
)

// errorResponseBody is the error envelope from spec §6: `{ errors:[
// {title, code, detail} ] }`.
type errorResponseBody struct {
	Errors []errorBody `json:"errors"`
}

type errorBody struct {
	Title  string `json:"title"`
	Code   string `json:"code"`
	Detail string `json:"detail"`
}

// RespondWithError writes err to w using the error envelope from §6. A
// *core.APIError is rendered using its own Kind/Code/Title; any other error
// is treated as an InvariantViolation and logged, since §7 says it "must be
// impossible after §4.G validation".
func RespondWithError(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		return
	}

	var apiErr *core.APIError
	if !errors.As(err, &apiErr) {
		logg.Error("unexpected error while handling %s %s: %s", r.Method, r.URL.Path, err.Error())
		apiErr = &core.APIError{
			Kind:   core.KindInvariantViolation,
			Code:   core.CodeUndefined,
			Title:  "Internal Server Error",
			Detail: "an internal invariant was violated",
		}
	}

	respondwith.JSON(w, apiErr.HTTPStatus(), errorResponseBody{
		Errors: []errorBody{{
			Title:  apiErr.Title,
			Code:   apiErr.Code,
			Detail: apiErr.Detail,
		}},
	})
}

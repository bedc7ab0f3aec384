/******************************************************************************
*
*  Copyright 2017-2024 SAP SE
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

package test

import (
	"context"
	"net/http"
	"slices"
	"testing"
	"time"

	"github.com/go-gorp/gorp/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sapcc/go-bits/audittools"
	"github.com/sapcc/go-bits/easypg"
	"github.com/sapcc/go-bits/gopherpolicy"
	"github.com/sapcc/go-bits/httpapi"
	"github.com/sapcc/go-bits/logg"
	"github.com/sapcc/go-bits/mock"
	"github.com/sapcc/go-bits/osext"

	"github.com/sapcc/placement/internal/core"
	"github.com/sapcc/placement/internal/db"
)

type setupParams struct {
	DBSetupOptions []easypg.TestSetupOption
	Config         core.Config
	APIBuilder     func(*gorp.DbMap, core.Config, gopherpolicy.Validator, audittools.Auditor, func() time.Time) httpapi.API
	APIMiddlewares []httpapi.API
}

// SetupOption is an option that can be given to NewSetup().
type SetupOption func(*setupParams)

// WithDBFixtureFile is a SetupOption that prefills the test DB by executing
// the SQL statements in the given file.
func WithDBFixtureFile(file string) SetupOption {
	return func(params *setupParams) {
		params.DBSetupOptions = append(params.DBSetupOptions, easypg.LoadSQLFile(file))
	}
}

// WithConfig is a SetupOption that overrides the default test Config (a
// generous solver deadline and candidate limit).
func WithConfig(cfg core.Config) SetupOption {
	return func(params *setupParams) {
		params.Config = cfg
	}
}

// WithAPIHandler is a SetupOption that initializes a http.Handler with the
// Placement API. The apiBuilder function signature matches NewV1API(). We
// cannot call that directly because that would create an import cycle, so it
// must be given by the caller here.
func WithAPIHandler(apiBuilder func(*gorp.DbMap, core.Config, gopherpolicy.Validator, audittools.Auditor, func() time.Time) httpapi.API, middlewares ...httpapi.API) SetupOption {
	return func(params *setupParams) {
		params.APIBuilder = apiBuilder
		params.APIMiddlewares = middlewares
	}
}

// Setup contains all the pieces that are needed for most tests.
type Setup struct {
	Ctx            context.Context //nolint:containedctx // only used in tests
	DB             *gorp.DbMap
	Config         core.Config
	Clock          *mock.Clock
	Registry       *prometheus.Registry
	TokenValidator *mock.Validator[*PolicyEnforcer]
	Auditor        *audittools.MockAuditor
	// only set if WithAPIHandler was given
	Handler http.Handler
}

// GenerateDummyToken returns a fixed bearer token for test requests; the
// mock TokenValidator ignores its value and always succeeds.
func GenerateDummyToken() string {
	return "dummyToken"
}

// NewSetup prepares most or all pieces of Placement for a test.
func NewSetup(t *testing.T, opts ...SetupOption) Setup {
	logg.ShowDebug = osext.GetenvBool("PLACEMENT_DEBUG")
	params := setupParams{
		Config: core.Config{SolverDeadline: 5 * time.Second, DefaultCandidateLimit: 1000},
	}
	for _, option := range opts {
		option(&params)
	}

	var s Setup
	s.Ctx = t.Context()
	s.DB = initDatabase(t, params.DBSetupOptions)
	s.Config = params.Config
	s.Clock = mock.NewClock()
	s.Registry = prometheus.NewPedanticRegistry()

	s.TokenValidator = mock.NewValidator(AllowAll(), map[string]string{
		"user_id":             "uuid-for-alice",
		"user_name":           "alice",
		"user_domain_name":    "Default",
		"user_domain_id":      "uuid-for-default",
		"project_id":          "uuid-for-admin",
		"project_name":        "admin",
		"project_domain_name": "Default",
		"project_domain_id":   "uuid-for-default",
	})
	s.Auditor = audittools.NewMockAuditor()

	if params.APIBuilder != nil {
		s.Handler = httpapi.Compose(
			append([]httpapi.API{
				params.APIBuilder(s.DB, s.Config, s.TokenValidator, s.Auditor, s.Clock.Now),
				httpapi.WithoutLogging(),
			}, params.APIMiddlewares...)...,
		)
	}

	return s
}

func mustDo(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatal(err.Error())
	}
}

func initDatabase(t *testing.T, extraOpts []easypg.TestSetupOption) *gorp.DbMap {
	opts := append(slices.Clone(extraOpts),
		easypg.ClearTables("resource_providers", "resource_classes", "traits", "aggregates", "consumers"),
		easypg.ResetPrimaryKeys(
			"resource_providers", "resource_classes", "traits", "aggregates",
			"inventories", "resource_provider_traits", "resource_provider_aggregates",
			"consumers", "allocations",
		),
	)
	return db.InitORM(easypg.ConnectForTest(t, db.Configuration(), opts...))
}

// NewProvider is a convenience helper for tests that need a resource
// provider row without exercising the full create-via-API path.
func NewProvider(t *testing.T, dbm *gorp.DbMap, uuid, name string, parentID *db.ResourceProviderID) db.ResourceProvider {
	t.Helper()
	rp := db.ResourceProvider{UUID: uuid, Name: name, ParentID: parentID}
	mustDo(t, db.CreateResourceProvider(dbm, &rp))
	return rp
}

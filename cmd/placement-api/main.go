/*******************************************************************************
*
* Copyright 2024 SAP SE
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

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gophercloud/gophercloud"
	"github.com/gophercloud/gophercloud/openstack"
	"github.com/gophercloud/utils/openstack/clientconfig"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sapcc/go-bits/audittools"
	"github.com/sapcc/go-bits/gopherpolicy"
	"github.com/sapcc/go-bits/httpapi"
	"github.com/sapcc/go-bits/httpext"
	"github.com/sapcc/go-bits/logg"
	"github.com/sapcc/go-bits/osext"

	"github.com/sapcc/placement/internal/api"
	"github.com/sapcc/placement/internal/core"
	"github.com/sapcc/placement/internal/db"
	"github.com/sapcc/placement/internal/pprofapi"
)

func main() {
	cfg := core.NewConfigFromEnvironment()

	dbConn, err := db.Init()
	if err != nil {
		logg.Fatal(err.Error())
	}
	dbm := db.InitORM(dbConn)

	tokenValidator, err := newTokenValidator(cfg.PolicyPath)
	if err != nil {
		logg.Fatal(err.Error())
	}

	auditor, err := newAuditor(context.Background())
	if err != nil {
		logg.Fatal(err.Error())
	}

	handler := httpapi.Compose(
		api.NewV1API(dbm, cfg, tokenValidator, auditor, time.Now),
		pprofapi.API{IsAuthorized: pprofapi.IsRequestFromLocalhost},
	)
	mux := http.NewServeMux()
	mux.Handle("/", handler)
	mux.Handle("/metrics", promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{}))

	ctx := httpext.ContextWithSIGINT(context.Background(), 10*time.Second)
	logg.Info("listening on " + cfg.ListenAddress)
	err = httpext.ListenAndServeContext(ctx, cfg.ListenAddress, mux)
	if err != nil {
		logg.Fatal(err.Error())
	}
}

// newTokenValidator connects to Keystone and loads the oslo.policy file that
// guards every placement:* rule checked in internal/api.
func newTokenValidator(policyPath string) (gopherpolicy.Validator, error) {
	ao, err := clientconfig.AuthOptions(nil)
	if err != nil {
		return nil, fmt.Errorf("cannot find OpenStack credentials: %w", err)
	}
	ao.AllowReauth = true
	providerClient, err := openstack.AuthenticatedClient(*ao)
	if err != nil {
		return nil, fmt.Errorf("cannot initialize OpenStack client: %w", err)
	}
	eo := gophercloud.EndpointOpts{
		Availability: gophercloud.Availability(os.Getenv("OS_INTERFACE")),
		Region:       os.Getenv("OS_REGION_NAME"),
	}
	identityV3, err := openstack.NewIdentityV3(providerClient, eo)
	if err != nil {
		return nil, fmt.Errorf("cannot initialize Keystone v3 client: %w", err)
	}

	tv := gopherpolicy.TokenValidator{
		IdentityV3: identityV3,
		Cacher:     gopherpolicy.InMemoryCacher(),
	}
	err = tv.LoadPolicyFile(policyPath)
	if err != nil {
		return nil, err
	}
	return &tv, nil
}

// newAuditor connects to RabbitMQ when PLACEMENT_AUDIT_RABBITMQ_QUEUE_NAME
// is set, and otherwise discards audit events, mirroring how optional
// RabbitMQ wiring is typically opted into across the go-bits ecosystem.
func newAuditor(ctx context.Context) (audittools.Auditor, error) {
	queueName := os.Getenv("PLACEMENT_AUDIT_RABBITMQ_QUEUE_NAME")
	if queueName == "" {
		return audittools.NewNullAuditor(), nil
	}
	return audittools.NewAuditor(ctx, audittools.AuditorOpts{
		Observer: audittools.Observer{
			TypeURI: "service/placement",
			Name:    osext.GetenvOrDefault("PLACEMENT_AUDIT_OBSERVER_UUID", "placement"),
		},
		EnvPrefix: "PLACEMENT_AUDIT_RABBITMQ",
		Registry:  prometheus.DefaultRegisterer,
	})
}

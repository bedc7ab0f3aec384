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

// Command placement-migrate applies pending easypg migrations and exits.
// db.Init() already does this on every connect (easypg.Connect applies
// outstanding migrations before returning), so this binary exists only to
// let deployments run migrations as a separate step ahead of a rollout,
// without starting the API server.
package main

import (
	"github.com/sapcc/go-bits/logg"

	"github.com/sapcc/placement/internal/db"
)

func main() {
	dbConn, err := db.Init()
	if err != nil {
		logg.Fatal(err.Error())
	}
	err = dbConn.Close()
	if err != nil {
		logg.Fatal(err.Error())
	}
	logg.Info("migrations applied")
}

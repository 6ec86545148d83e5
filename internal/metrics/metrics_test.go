// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordCommand(t *testing.T) {
	before := testutil.ToFloat64(commandsTotal.WithLabelValues("run", "accepted"))
	RecordCommand("run", "accepted")
	RecordCommand("run", "accepted")
	assert.Equal(t, before+2, testutil.ToFloat64(commandsTotal.WithLabelValues("run", "accepted")))
}

func TestRecordPause(t *testing.T) {
	before := testutil.ToFloat64(pausesTotal.WithLabelValues("breakpoint"))
	RecordPause("breakpoint")
	assert.Equal(t, before+1, testutil.ToFloat64(pausesTotal.WithLabelValues("breakpoint")))
}

func TestSessionGauge(t *testing.T) {
	before := testutil.ToFloat64(sessionsActive)
	SessionAttached()
	assert.Equal(t, before+1, testutil.ToFloat64(sessionsActive))
	SessionDetached()
	assert.Equal(t, before, testutil.ToFloat64(sessionsActive))
}

func TestRecordScriptRun(t *testing.T) {
	before := testutil.ToFloat64(scriptRuns.WithLabelValues("completed"))
	RecordScriptRun("completed", 20*time.Millisecond)
	assert.Equal(t, before+1, testutil.ToFloat64(scriptRuns.WithLabelValues("completed")))
}

func TestHandler(t *testing.T) {
	RecordConnectFailure()
	RecordProtocolError("eval")

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "debuggee_connect_failures_total")
	assert.Contains(t, body, `debuggee_protocol_errors_total{command="eval"}`)
}

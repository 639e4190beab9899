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

/*
Package enrich runs LLM enrichment jobs over sets of records.

A Run pairs an ordered list of records with a pipeline of steps. Each step
renders a prompt from record fields, sends it through a Gateway, and writes
the response back into one field (text mode) or several fields (JSON mode).

# Scheduling

An ExecutionManager admits one Run at a time. Other submitted runs wait in
FIFO order and are promoted when the active run finishes or yields:

	mgr := enrich.NewExecutionManager()
	worker := enrich.NewWorker(run, mgr, enrich.WorkerOptions{
		Store:   store,
		Gateway: gateway,
		Config:  enrich.DefaultRunConfig(),
	})
	ctrl := enrich.NewRunController(mgr, worker)
	ctrl.Submit(ctx)
	<-ctrl.Done()

# Worker

Each Run is driven by a Worker on its own goroutine. The worker suspends at
three points: the permission gate (while the run is queued or paused), the
batch throttle (every BatchSize records), and the retry backoff after a
transient provider failure. Cancellation is observed at each of them. A
provider call that is already in flight is allowed to finish.

Writes for a record are staged and only reach the record once every step
in the pipeline has succeeded, so a retried record never carries half of a
previous attempt.
*/
package enrich

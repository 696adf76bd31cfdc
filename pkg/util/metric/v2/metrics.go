// Copyright 2024 Matrix Origin
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package v2

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	registry = prometheus.NewRegistry()
)

// GetPrometheusRegistry returns the registry holding every block metric.
func GetPrometheusRegistry() prometheus.Registerer {
	return registry
}

// GetPrometheusGatherer is used by exporters and tests.
func GetPrometheusGatherer() prometheus.Gatherer {
	return registry
}

func init() {
	initLazyMetrics()
	initSerdeMetrics()
	initPageMetrics()
	initDictMetrics()
}

func initLazyMetrics() {
	registry.MustRegister(lazyBlockLoadCounter)
	registry.MustRegister(LazyBlockLoadDurationHistogram)
}

func initSerdeMetrics() {
	registry.MustRegister(serdeBytesCounter)
	registry.MustRegister(serdePageCounter)
}

func initPageMetrics() {
	registry.MustRegister(PageBuilderFlushCounter)
	registry.MustRegister(PageLoaderTaskCounter)
}

func initDictMetrics() {
	registry.MustRegister(dictEncodeCounter)
}

// getDurationBuckets spans 1us to ~1s.
func getDurationBuckets() []float64 {
	return append(prometheus.ExponentialBuckets(0.000001, 2.0, 20), 1, 5)
}

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

import "github.com/prometheus/client_golang/prometheus"

var (
	lazyBlockLoadCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mo",
			Subsystem: "block",
			Name:      "lazy_load_total",
			Help:      "Total number of lazy block loads by result.",
		}, []string{"result"})
	LazyBlockLoadSuccessCounter       = lazyBlockLoadCounter.WithLabelValues("success")
	LazyBlockLoadFailedCounter        = lazyBlockLoadCounter.WithLabelValues("failed")
	LazyBlockLoadStaleCounter         = lazyBlockLoadCounter.WithLabelValues("stale")
	LazyBlockLoadAlreadyLoadedCounter = lazyBlockLoadCounter.WithLabelValues("already_loaded")

	LazyBlockLoadDurationHistogram = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "mo",
			Subsystem: "block",
			Name:      "lazy_load_duration_seconds",
			Help:      "Bucketed histogram of lazy block load duration.",
			Buckets:   getDurationBuckets(),
		})
)

var (
	serdeBytesCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mo",
			Subsystem: "serde",
			Name:      "page_bytes_total",
			Help:      "Total bytes of serialized pages.",
		}, []string{"type"})
	SerdeRawBytesCounter        = serdeBytesCounter.WithLabelValues("raw")
	SerdeCompressedBytesCounter = serdeBytesCounter.WithLabelValues("compressed")

	serdePageCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mo",
			Subsystem: "serde",
			Name:      "page_total",
			Help:      "Total number of pages handled by the serde.",
		}, []string{"type"})
	SerdeSerializedPageCounter   = serdePageCounter.WithLabelValues("serialized")
	SerdeDeserializedPageCounter = serdePageCounter.WithLabelValues("deserialized")
	SerdeCorruptedPageCounter    = serdePageCounter.WithLabelValues("corrupted")
)

var (
	PageBuilderFlushCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "mo",
			Subsystem: "page",
			Name:      "builder_flush_total",
			Help:      "Total number of pages built by page builders.",
		})

	PageLoaderTaskCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "mo",
			Subsystem: "page",
			Name:      "loader_task_total",
			Help:      "Total number of column load tasks submitted to the loader pool.",
		})
)

var (
	dictEncodeCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mo",
			Subsystem: "dict",
			Name:      "encode_total",
			Help:      "Total number of dictionary encode attempts by result.",
		}, []string{"result"})
	DictEncodeAcceptedCounter = dictEncodeCounter.WithLabelValues("accepted")
	DictEncodeRejectedCounter = dictEncodeCounter.WithLabelValues("rejected")
)

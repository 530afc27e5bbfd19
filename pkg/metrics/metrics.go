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

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	// gardenNamespace 是当前项目所有 Prometheus 指标使用的命名空间。
	gardenNamespace = "garden"

	objectSubsystem = "object"

	// 以下为当前使用的通用标签名。
	statusLabelName = "status"
	reasonLabelName = "reason"
	opLabelName     = "op"

	StatusSuccess = "success"
	StatusPartial = "partial"
	StatusFail    = "fail"
)

var (
	// buckets 为请求耗时直方图的桶划分，单位为毫秒。
	buckets = prometheus.ExponentialBuckets(0.01, 2, 18)

	// nodeBuckets 为单次遍历节点数的桶划分。
	nodeBuckets = []float64{1, 4, 16, 64, 256, 1024, 4096, 16384, 65536}

	SerializeTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: gardenNamespace,
			Subsystem: objectSubsystem,
			Name:      "serialize_total",
			Help:      "number of serialize calls",
		}, []string{statusLabelName})

	SerializeLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: gardenNamespace,
			Subsystem: objectSubsystem,
			Name:      "serialize_latency",
			Help:      "latency of serialize calls in milliseconds",
			Buckets:   buckets,
		})

	SerializeNodes = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: gardenNamespace,
			Subsystem: objectSubsystem,
			Name:      "serialize_nodes",
			Help:      "number of member nodes produced per serialize call",
			Buckets:   nodeBuckets,
		})

	PopulateTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: gardenNamespace,
			Subsystem: objectSubsystem,
			Name:      "populate_total",
			Help:      "number of populate calls",
		}, []string{statusLabelName})

	PopulateLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: gardenNamespace,
			Subsystem: objectSubsystem,
			Name:      "populate_latency",
			Help:      "latency of populate calls in milliseconds",
			Buckets:   buckets,
		})

	PopulateFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: gardenNamespace,
			Subsystem: objectSubsystem,
			Name:      "populate_failures",
			Help:      "per-node populate failures grouped by reason",
		}, []string{reasonLabelName})

	OpDispatchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: gardenNamespace,
			Subsystem: objectSubsystem,
			Name:      "op_dispatch_total",
			Help:      "number of dispatched tool operations",
		}, []string{opLabelName, statusLabelName})

	RegistryTypes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: gardenNamespace,
			Subsystem: objectSubsystem,
			Name:      "registry_types",
			Help:      "number of type descriptors cached in the registry",
		})

	RefTableSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: gardenNamespace,
			Subsystem: objectSubsystem,
			Name:      "ref_table_size",
			Help:      "number of live entries in the reference resolver table",
		})
)

// Register 将本包的所有指标注册到给定 Registry。
func Register(r prometheus.Registerer) {
	r.MustRegister(SerializeTotal)
	r.MustRegister(SerializeLatency)
	r.MustRegister(SerializeNodes)
	r.MustRegister(PopulateTotal)
	r.MustRegister(PopulateLatency)
	r.MustRegister(PopulateFailures)
	r.MustRegister(OpDispatchTotal)
	r.MustRegister(RegistryTypes)
	r.MustRegister(RefTableSize)
}

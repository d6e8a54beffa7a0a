// SAGE - Secure Agent Guarantee Engine
// Copyright (C) 2025 SAGE-X-project
//
// This file is part of SAGE.
//
// SAGE is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SAGE is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with SAGE. If not, see <https://www.gnu.org/licenses/>.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// namespace prefixes every metric this package registers.
const namespace = "genesis_mesh"

// Registry is the collector registry every metric in this package
// registers against, rather than prometheus's global DefaultRegisterer,
// so a node's Handler() exposes exactly this package's metrics and
// nothing pulled in by an unrelated import.
var Registry = prometheus.NewRegistry()

// ErrorsTotal counts every occurrence of each kind in the node's closed
// error taxonomy (spec.md §7), labelled by kind. This is the metric
// RecordError feeds; the per-subsystem counters in session.go,
// handshake.go, message.go and crypto.go stay alongside it for the
// operations the teacher's own services already tracked.
var ErrorsTotal = promauto.With(Registry).NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "errors",
		Name:      "total",
		Help:      "Total occurrences of each error kind in the node's error taxonomy.",
	},
	[]string{"kind"},
)

// RecordError increments the counter for kind. Call sites pick the kind
// that matches what they just classified or returned; see Classify for
// mapping an arbitrary error against the sentinel errors this repo
// already defines.
func RecordError(kind Kind) {
	ErrorsTotal.WithLabelValues(string(kind)).Inc()
}

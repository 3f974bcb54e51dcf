// Package metrics holds the Prometheus instruments shared by the resolver
// and the mount coordinator.  All collectors are registered with the
// global registry, so serving promhttp.Handler() is enough to expose them.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	ResolutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "modena_resolutions_total",
			Help: "Requests resolved to a tenant, by winning strategy (none when unresolved).",
		}, []string{"strategy"})

	ConfigConflictsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "modena_config_conflicts_total",
			Help: "Configuration conflicts met while resolving (domain or default).",
		}, []string{"kind"})

	TenantMountsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "modena_tenant_mounts_total",
			Help: "Tenant mount attempts at boot, by result.",
		}, []string{"result"})

	ExposedTenants = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "modena_exposed_tenants",
			Help: "Tenants successfully mounted on the shared router.",
		})

	RestoresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "modena_restores_total",
			Help: "Requests restored after leaving their tenant, by reason.",
		}, []string{"reason"})
)

func init() {
	prometheus.MustRegister(
		ResolutionsTotal,
		ConfigConflictsTotal,
		TenantMountsTotal,
		ExposedTenants,
		RestoresTotal,
	)
}

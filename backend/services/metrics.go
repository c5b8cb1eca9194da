package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	templateCreateMetric = promauto.NewSummary(prometheus.SummaryOpts{Name: "formhub_template_create", Help: "Template Creations"})
	templateUpdateMetric = promauto.NewSummary(prometheus.SummaryOpts{Name: "formhub_template_update", Help: "Template Updates"})
	templateListMetric   = promauto.NewSummary(prometheus.SummaryOpts{Name: "formhub_template_list", Help: "Template Listings"})

	responseSubmitMetric    = promauto.NewSummary(prometheus.SummaryOpts{Name: "formhub_response_submit", Help: "Response Submissions"})
	responseAggregateMetric = promauto.NewSummary(prometheus.SummaryOpts{Name: "formhub_response_aggregate", Help: "Response Aggregations"})

	integrationExportMetric = promauto.NewSummary(prometheus.SummaryOpts{Name: "formhub_integration_export", Help: "Integration Exports"})
)

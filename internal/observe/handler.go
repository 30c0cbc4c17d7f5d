package observe

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler serves the Prometheus scrape endpoint. The exporter installed by
// [InitProvider] registers with the default Prometheus registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

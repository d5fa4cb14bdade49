package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// portfolioCollector emits one sample per aggregated symbol at scrape time.
type portfolioCollector struct {
	src PortfolioSource

	netQty *prometheus.Desc
	value  *prometheus.Desc
	mark   *prometheus.Desc
}

func newPortfolioCollector(src PortfolioSource) *portfolioCollector {
	labels := []string{"symbol"}
	return &portfolioCollector{
		src: src,
		netQty: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "position", "net_qty"),
			"Signed net quantity per symbol.", labels, nil),
		value: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "position", "value_usd"),
			"Absolute position value at mark per symbol.", labels, nil),
		mark: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "position", "mark_price"),
			"Mark price used for valuation per symbol.", labels, nil),
	}
}

func (c *portfolioCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.netQty
	ch <- c.value
	ch <- c.mark
}

func (c *portfolioCollector) Collect(ch chan<- prometheus.Metric) {
	for symbol, row := range c.src.Aggregated() {
		ch <- prometheus.MustNewConstMetric(c.netQty, prometheus.GaugeValue, row.NetQty.InexactFloat64(), symbol)
		ch <- prometheus.MustNewConstMetric(c.value, prometheus.GaugeValue, row.PositionValue.InexactFloat64(), symbol)
		ch <- prometheus.MustNewConstMetric(c.mark, prometheus.GaugeValue, row.MarkPrice.InexactFloat64(), symbol)
	}
}

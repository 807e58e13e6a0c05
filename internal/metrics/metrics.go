package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ActiveConnections 已认证并登记的连接数
	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "matchchat_ws_active_connections",
		Help: "Authenticated websocket connections currently registered",
	})

	// OnlineUsers 至少有一个连接的用户数
	OnlineUsers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "matchchat_ws_online_users",
		Help: "Users with at least one registered websocket connection",
	})

	// AuthAttempts 按结果统计的握手认证次数
	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matchchat_ws_auth_attempts_total",
			Help: "Websocket auth attempts by result",
		},
		[]string{"result"},
	)

	// Deliveries 按结果统计的推送次数
	Deliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matchchat_ws_deliveries_total",
			Help: "new_message pushes by outcome",
		},
		[]string{"outcome"},
	)

	// Evictions 超出每用户连接上限被挤下线的连接
	Evictions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "matchchat_ws_evictions_total",
		Help: "Connections evicted by the per-user connection cap",
	})
)

func Handler() http.Handler {
	return promhttp.Handler()
}

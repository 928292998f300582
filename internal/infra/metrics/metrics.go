package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	Sweeps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "subaccess_sweeps_total",
		Help: "Проходы sweeper'а по результату.",
	}, []string{"result"}) // ok | error

	Expired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "subaccess_expired_total",
		Help: "Подписки, погашенные sweeper'ом.",
	})

	SideEffectFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "subaccess_side_effect_failures_total",
		Help: "Ошибки побочных действий по пользователю.",
	}, []string{"action"}) // revoke | mark | notify | invite | deliver

	NextCheckSeconds = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "subaccess_next_check_seconds",
		Help: "Задержка до следующей проверки истечения.",
	})

	PurchaseDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "subaccess_purchase_decisions_total",
		Help: "Решения по заявкам.",
	}, []string{"outcome"})

	PurchaseRequests = promauto.NewCounter(prometheus.CounterOpts{
		Name: "subaccess_purchase_requests_total",
		Help: "Созданные заявки на покупку.",
	})

	Updates = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "subaccess_updates_total",
		Help: "Входящие апдейты Telegram по боту.",
	}, []string{"bot", "kind"})
)

package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	rewardsGranted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "checklane",
		Subsystem: "referral",
		Name:      "rewards_granted_total",
		Help:      "Referral rewards successfully credited to referrers.",
	})
	rewardsDeferred = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "checklane",
		Subsystem: "referral",
		Name:      "rewards_deferred_total",
		Help:      "Referral conversions parked because the referrer had no chargeable subscription.",
	})
)

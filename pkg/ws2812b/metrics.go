package ws2812b

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var framesPushed = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "alphabot",
	Name:      "led_frames_count",
	Help:      "LED frames pushed to the strip by result",
}, []string{"result"})

package hal

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// mappedBlocks tracks live references per register block
	mappedBlocks = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "alphabot",
		Name:      "hal_mapped_block_refs",
		Help:      "Live references held on each mapped register block",
	}, []string{"block"})

	// channelClaims is 1 while a hardware channel is claimed
	channelClaims = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "alphabot",
		Name:      "hal_channel_claimed",
		Help:      "Hardware channel claim state (1 = claimed)",
	}, []string{"class", "channel"})

	timingStalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "alphabot",
		Name:      "hal_timing_stall_count",
		Help:      "Hardware status waits that ran out of time",
	}, []string{"op"})

	fifoWordsWritten = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "alphabot",
		Name:      "hal_pwm_fifo_words_count",
		Help:      "Words written to the PWM FIFO",
	})

	i2cTransfers = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "alphabot",
		Name:      "hal_i2c_transfer_count",
		Help:      "I2C transfers by bus, direction and result",
	}, []string{"bus", "direction", "result"})

	socTemperature = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "alphabot",
		Name:      "soc_temperature",
		Help:      "SoC temperature in degrees Celsius",
	})
)

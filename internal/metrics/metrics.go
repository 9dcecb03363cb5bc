package metrics

import (
	"net/http"
	"time"

	"sunnyisland2mqtt/internal/core/domain"
	"sunnyisland2mqtt/pkg/gxmodbus"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "sunnyisland"

var chargeStates = []domain.ChargeState{
	domain.ChargeStateIdle,
	domain.ChargeStateBulk,
	domain.ChargeStateAbsorb,
	domain.ChargeStateFloat,
	domain.ChargeStateCanceled,
}

// Collector owns a private registry so tests can create as many as they
// need.
type Collector struct {
	registry *prometheus.Registry

	chargeState    *prometheus.GaugeVec
	chargeCurrent  prometheus.Gauge
	bulkCurrent    prometheus.Gauge
	batteryVoltage prometheus.Gauge
	batteryCurrent prometheus.Gauge
	batterySOC     prometheus.Gauge
	pvCurrent      prometheus.Gauge
	canBusAlive    prometheus.Gauge
	transitions    *prometheus.CounterVec
	sampleErrors   prometheus.Counter
	modbusReads    *prometheus.HistogramVec
}

func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		chargeState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "charge_state",
			Help:      "Current charge state, 1 for the active state.",
		}, []string{"state"}),
		chargeCurrent: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "charge_current_amps",
			Help:      "Commanded charge current.",
		}),
		bulkCurrent: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "bulk_current_amps",
			Help:      "Bulk current in effect after policy and manual limit.",
		}),
		batteryVoltage: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "battery_voltage_volts",
			Help:      "Battery voltage reported by the GX.",
		}),
		batteryCurrent: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "battery_current_amps",
			Help:      "Battery current reported by the GX, positive when charging.",
		}),
		batterySOC: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "battery_soc_percent",
			Help:      "Battery state of charge.",
		}),
		pvCurrent: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pv_current_amps",
			Help:      "DC PV charger current.",
		}),
		canBusAlive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "can_bus_alive",
			Help:      "1 while inverter CAN frames are being received.",
		}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "charge_transitions_total",
			Help:      "Charge state transitions by result.",
		}, []string{"result", "to"}),
		sampleErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sample_errors_total",
			Help:      "Battery samples that could not be read or were rejected.",
		}),
		modbusReads: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "modbus_read_seconds",
			Help:      "GX Modbus read latency.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2},
		}, []string{"fn"}),
	}
	c.registry.MustRegister(
		c.chargeState,
		c.chargeCurrent,
		c.bulkCurrent,
		c.batteryVoltage,
		c.batteryCurrent,
		c.batterySOC,
		c.pvCurrent,
		c.canBusAlive,
		c.transitions,
		c.sampleErrors,
		c.modbusReads,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

func (c *Collector) ObserveChargeStatus(status domain.ChargeStatus) {
	for _, s := range chargeStates {
		v := 0.0
		if s == status.State {
			v = 1
		}
		c.chargeState.WithLabelValues(s.String()).Set(v)
	}
	c.chargeCurrent.Set(status.ChargeCurrent)
	c.bulkCurrent.Set(status.BulkCurrent)
}

func (c *Collector) ObserveTransition(result domain.TransitionResult, to domain.ChargeState) {
	if result == domain.NoChange {
		return
	}
	c.transitions.WithLabelValues(result.String(), to.String()).Inc()
}

// ObserveBatteryState only touches the gauges the GX reported.
func (c *Collector) ObserveBatteryState(bs *gxmodbus.BatteryState) {
	if bs == nil {
		return
	}
	if bs.VoltageAvailable {
		c.batteryVoltage.Set(bs.Voltage)
	}
	if bs.CurrentAvailable {
		c.batteryCurrent.Set(bs.Current)
	}
	if bs.SOCAvailable {
		c.batterySOC.Set(bs.SOC)
	}
	if bs.PVAvailable {
		c.pvCurrent.Set(bs.PVCurrent)
	}
}

func (c *Collector) IncrementSampleErrors() {
	c.sampleErrors.Inc()
}

func (c *Collector) ObserveCANBus(alive bool) {
	if alive {
		c.canBusAlive.Set(1)
	} else {
		c.canBusAlive.Set(0)
	}
}

// ModbusInstrument feeds GX read latency into the read histogram.
func (c *Collector) ModbusInstrument() *gxmodbus.ModbusInstrument {
	return &gxmodbus.ModbusInstrument{
		RecordTime: func(fnName string, readTime time.Duration) {
			c.modbusReads.WithLabelValues(fnName).Observe(readTime.Seconds())
		},
	}
}

// Package telemetry defines the record exchanged between probe and collector
// and the positional text codec that carries it over the wire.
package telemetry

// Record is one decoded measurement cycle reported by a probe.
type Record struct {
	CPUUsage           float64 `json:"cpu_usage"`
	UptimeSeconds      float64 `json:"uptime_seconds"`
	TemperatureCelsius float64 `json:"temperature_celsius"`
	ClockArmHz         float64 `json:"clock_arm_hz"`
	BitrateRecv        float64 `json:"bitrate_recv"`
	BitrateSend        float64 `json:"bitrate_send"`
}

// Values returns the record's fields in wire order.
func (r Record) Values() [FieldCount]float64 {
	return [FieldCount]float64{
		r.CPUUsage,
		r.UptimeSeconds,
		r.TemperatureCelsius,
		r.ClockArmHz,
		r.BitrateRecv,
		r.BitrateSend,
	}
}

// recordFromValues is the inverse of Values.
func recordFromValues(v [FieldCount]float64) Record {
	return Record{
		CPUUsage:           v[0],
		UptimeSeconds:      v[1],
		TemperatureCelsius: v[2],
		ClockArmHz:         v[3],
		BitrateRecv:        v[4],
		BitrateSend:        v[5],
	}
}

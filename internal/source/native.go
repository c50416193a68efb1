package source

import "fmt"

// cpuSample is one reading of the aggregate cpu line of /proc/stat, in
// seconds of CPU time.
type cpuSample struct {
	busy  float64
	total float64
}

// cpuPercent returns the busy share between two samples. Guest time is
// already counted in user time and is not added again.
func cpuPercent(prev, cur cpuSample) float64 {
	dt := cur.total - prev.total
	if dt <= 0 {
		return 0
	}
	db := cur.busy - prev.busy
	if db < 0 {
		db = 0
	}
	return db / dt * 100
}

// firstTemperature converts the first thermal zone reading from
// millidegrees.
func firstTemperature(milli []int64) (float64, error) {
	if len(milli) == 0 {
		return 0, fmt.Errorf("temperature: %w: no thermal zones", ErrNoMeasurement)
	}
	return float64(milli[0]) / 1000, nil
}

// currentKHz prefers the scaling governor's view and falls back to the
// hardware register.
func currentKHz(scaling, cpuinfo *uint64) uint64 {
	if scaling != nil && *scaling > 0 {
		return *scaling
	}
	if cpuinfo != nil {
		return *cpuinfo
	}
	return 0
}

package sensor

import (
	"encoding/json"
	"fmt"
	"time"
)

// ============================================================
// Stream frames
// ============================================================

// bmeFields, mlxFields, mpuFields and gsrFields mirror the backend's
// per-sensor wire objects (Spanish field names are part of the contract).
type bmeFields struct {
	Temperatura Float `json:"temperatura"`
	Humedad     Float `json:"humedad"`
	Presion     Float `json:"presion"`
}

type mlxFields struct {
	TempObj Float `json:"temp_obj"`
	TempAmb Float `json:"temp_amb"`
}

type vecFields struct {
	X Float `json:"x"`
	Y Float `json:"y"`
	Z Float `json:"z"`
}

type mpuFields struct {
	Aceleracion *vecFields `json:"aceleracion"`
	Giroscopio  *vecFields `json:"giroscopio"`
}

type gsrFields struct {
	Conductancia Float   `json:"conductancia"`
	Porcentaje   Float   `json:"porcentaje"`
	Estado       *string `json:"estado"`
}

// streamFrame covers both known stream shapes. A frame is either nested by
// sensor name (bme280/mpu6050/mlx90614/gsr objects) or flat (top-level
// fields); when both appear, flat values win per field (last-write-wins).
type streamFrame struct {
	BME280   *bmeFields `json:"bme280"`
	MPU6050  *mpuFields `json:"mpu6050"`
	MLX90614 *mlxFields `json:"mlx90614"`
	GSR      *gsrFields `json:"gsr"`

	// Flat form.
	Temperatura  Float      `json:"temperatura"`
	Humedad      Float      `json:"humedad"`
	Presion      Float      `json:"presion"`
	TempObj      Float      `json:"temp_obj"`
	TempAmb      Float      `json:"temp_amb"`
	Aceleracion  *vecFields `json:"aceleracion"`
	Giroscopio   *vecFields `json:"giroscopio"`
	Conductancia Float      `json:"conductancia"`
	Porcentaje   Float      `json:"porcentaje"`
	Estado       *string    `json:"estado"`
}

// NormalizeStream maps one WebSocket text frame to the canonical reading.
// Unknown keys are ignored and absent sensors stay null. A frame that is not
// valid JSON returns an error so the caller can log and drop it; it never
// panics and never produces a partial reading.
func NormalizeStream(data []byte, now time.Time) (Reading, error) {
	var f streamFrame
	if err := json.Unmarshal(data, &f); err != nil {
		return Reading{}, fmt.Errorf("decode stream frame: %w", err)
	}

	r := Reading{SourceTimestamp: now}
	mapNested(&r, f)
	mapFlat(&r, f)
	return r, nil
}

// mapNested applies the nested-by-sensor-name variant.
func mapNested(r *Reading, f streamFrame) {
	if f.BME280 != nil {
		r.Ambient.Temperature = f.BME280.Temperatura.Ptr()
		r.Ambient.Humidity = f.BME280.Humedad.Ptr()
		r.Ambient.Pressure = f.BME280.Presion.Ptr()
	}
	if f.MLX90614 != nil {
		r.Body.ObjectTemperature = f.MLX90614.TempObj.Ptr()
		r.Body.AmbientTemperature = f.MLX90614.TempAmb.Ptr()
	}
	if f.MPU6050 != nil {
		if f.MPU6050.Aceleracion != nil {
			r.Motion.Acceleration = toVec(*f.MPU6050.Aceleracion)
		}
		if f.MPU6050.Giroscopio != nil {
			r.Motion.Gyroscope = toVec(*f.MPU6050.Giroscopio)
		}
	}
	if f.GSR != nil {
		r.Hydration.Conductance = f.GSR.Conductancia.Ptr()
		r.Hydration.Percentage = f.GSR.Porcentaje.Ptr()
		r.Hydration.State = cloneString(f.GSR.Estado)
	}
}

// mapFlat applies the flat variant. Present flat fields override whatever the
// nested pass set, absent ones leave it alone.
func mapFlat(r *Reading, f streamFrame) {
	setIf(&r.Ambient.Temperature, f.Temperatura)
	setIf(&r.Ambient.Humidity, f.Humedad)
	setIf(&r.Ambient.Pressure, f.Presion)
	setIf(&r.Body.ObjectTemperature, f.TempObj)
	setIf(&r.Body.AmbientTemperature, f.TempAmb)
	if f.Aceleracion != nil {
		r.Motion.Acceleration = toVec(*f.Aceleracion)
	}
	if f.Giroscopio != nil {
		r.Motion.Gyroscope = toVec(*f.Giroscopio)
	}
	setIf(&r.Hydration.Conductance, f.Conductancia)
	setIf(&r.Hydration.Percentage, f.Porcentaje)
	if f.Estado != nil {
		r.Hydration.State = cloneString(f.Estado)
	}
}

func setIf(dst **float64, v Float) {
	if p := v.Ptr(); p != nil {
		*dst = p
	}
}

func toVec(v vecFields) Vec3 {
	return Vec3{X: v.X.Ptr(), Y: v.Y.Ptr(), Z: v.Z.Ptr()}
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

// ============================================================
// REST history arrays
// ============================================================

// BMERecord is one historical environment record from GET /bme.
type BMERecord struct {
	Temperatura Float  `json:"temperatura"`
	Humedad     Float  `json:"humedad"`
	Presion     Float  `json:"presion"`
	Timestamp   string `json:"timestamp"`
}

// GSRRecord is one historical skin-response record from GET /gsr.
type GSRRecord struct {
	Conductancia Float   `json:"conductancia"`
	Porcentaje   Float   `json:"porcentaje"`
	Estado       *string `json:"estado"`
	Timestamp    string  `json:"timestamp"`
}

// MLXRecord is one historical body-temperature record from GET /mlx.
type MLXRecord struct {
	TempObj   Float  `json:"temp_obj"`
	TempAmb   Float  `json:"temp_amb"`
	Timestamp string `json:"timestamp"`
}

// MPURecord is one historical motion record from GET /mpu.
type MPURecord struct {
	Aceleracion *vecFields `json:"aceleracion"`
	Giroscopio  *vecFields `json:"giroscopio"`
	Timestamp   string     `json:"timestamp"`
}

// RESTData holds the arrays returned by one poll cycle. A sensor whose fetch
// failed simply has a nil slice here.
type RESTData struct {
	BME []BMERecord
	GSR []GSRRecord
	MLX []MLXRecord
	MPU []MPURecord
}

// NormalizeREST builds the canonical reading from the most recent record of
// each array (the arrays are ordered oldest to newest) and computes
// min/max/avg/count aggregates over the full arrays.
func NormalizeREST(d RESTData, now time.Time) Snapshot {
	agg := newAggregator()
	r := Reading{SourceTimestamp: now}

	if n := len(d.BME); n > 0 {
		last := d.BME[n-1]
		r.Ambient.Temperature = last.Temperatura.Ptr()
		r.Ambient.Humidity = last.Humedad.Ptr()
		r.Ambient.Pressure = last.Presion.Ptr()
	}
	for _, rec := range d.BME {
		agg.add("ambient.temperature", rec.Temperatura)
		agg.add("ambient.humidity", rec.Humedad)
		agg.add("ambient.pressure", rec.Presion)
	}

	if n := len(d.GSR); n > 0 {
		last := d.GSR[n-1]
		r.Hydration.Conductance = last.Conductancia.Ptr()
		r.Hydration.Percentage = last.Porcentaje.Ptr()
		r.Hydration.State = cloneString(last.Estado)
	}
	for _, rec := range d.GSR {
		agg.add("hydration.conductance", rec.Conductancia)
		agg.add("hydration.percentage", rec.Porcentaje)
	}

	if n := len(d.MLX); n > 0 {
		last := d.MLX[n-1]
		r.Body.ObjectTemperature = last.TempObj.Ptr()
		r.Body.AmbientTemperature = last.TempAmb.Ptr()
	}
	for _, rec := range d.MLX {
		agg.add("body.objectTemperature", rec.TempObj)
		agg.add("body.ambientTemperature", rec.TempAmb)
	}

	if n := len(d.MPU); n > 0 {
		last := d.MPU[n-1]
		if last.Aceleracion != nil {
			r.Motion.Acceleration = toVec(*last.Aceleracion)
		}
		if last.Giroscopio != nil {
			r.Motion.Gyroscope = toVec(*last.Giroscopio)
		}
	}
	for _, rec := range d.MPU {
		if rec.Aceleracion != nil {
			agg.add("motion.acceleration.x", rec.Aceleracion.X)
			agg.add("motion.acceleration.y", rec.Aceleracion.Y)
			agg.add("motion.acceleration.z", rec.Aceleracion.Z)
		}
		if rec.Giroscopio != nil {
			agg.add("motion.gyroscope.x", rec.Giroscopio.X)
			agg.add("motion.gyroscope.y", rec.Giroscopio.Y)
			agg.add("motion.gyroscope.z", rec.Giroscopio.Z)
		}
	}

	return Snapshot{Reading: r, Stats: agg.summary()}
}

// aggregator accumulates values per field key.
type aggregator struct {
	values map[string][]float64
}

func newAggregator() *aggregator {
	return &aggregator{values: map[string][]float64{}}
}

func (a *aggregator) add(key string, v Float) {
	if p := v.Ptr(); p != nil {
		a.values[key] = append(a.values[key], *p)
	}
}

func (a *aggregator) summary() map[string]Stats {
	out := make(map[string]Stats, len(a.values))
	for key, vs := range a.values {
		s := Stats{Min: vs[0], Max: vs[0], Count: len(vs)}
		var sum float64
		for _, v := range vs {
			if v < s.Min {
				s.Min = v
			}
			if v > s.Max {
				s.Max = v
			}
			sum += v
		}
		s.Avg = sum / float64(len(vs))
		out[key] = s
	}
	return out
}

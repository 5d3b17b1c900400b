package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// MeasurementEntityState holds one point per entity state change.
const MeasurementEntityState = "entity_state"

// WriteEntityState records the attributes that changed on an entity.
//
// Strings, booleans and numbers become fields. Other values are skipped
// and a point without fields is not written.
func (c *Client) WriteEntityState(adapterID, entityID, domain string, changes map[string]any) {
	if !c.IsConnected() {
		return
	}

	fields := EntityStateFields(changes)
	if len(fields) == 0 {
		return
	}

	c.writeAPI.WritePoint(write.NewPoint(
		MeasurementEntityState,
		map[string]string{
			"adapter_id": adapterID,
			"entity_id":  entityID,
			"domain":     domain,
		},
		fields,
		time.Now(),
	))
}

// EntityStateFields converts attribute changes into InfluxDB field values.
func EntityStateFields(changes map[string]any) map[string]any {
	fields := make(map[string]any, len(changes))
	for key, value := range changes {
		switch v := value.(type) {
		case string, bool, float64, float32, int64, int32, uint64, uint32:
			fields[key] = v
		case int:
			fields[key] = int64(v)
		}
	}
	return fields
}

package wire

import (
	"errors"
	"fmt"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/catpoint/internal/domain/alarm"
	"github.com/oshokin/catpoint/internal/notify"
)

// Field names used in every document.
const (
	FieldAlarmStatus  = "alarm_status"
	FieldArmingStatus = "arming_status"
	FieldSensors      = "sensors"
	FieldUpdatedAt    = "updated_at"
	FieldName         = "name"
	FieldType         = "type"
	FieldActive       = "active"
	FieldKind         = "kind"
	FieldCatDetected  = "cat_detected"
	FieldSensor       = "sensor"
	FieldTimestamp    = "timestamp"
	FieldID           = "id"
	FieldEvents       = "events"
)

var (
	// ErrNilDocument is returned when a nil struct is decoded.
	ErrNilDocument = errors.New("document is nil")
	// ErrMissingName is returned when a sensor document has no name.
	ErrMissingName = errors.New("sensor name is required")
)

// SensorToStruct encodes a sensor.
func SensorToStruct(s alarm.Sensor) *structpb.Struct {
	return &structpb.Struct{Fields: sensorFields(s)}
}

// SensorFromStruct decodes and validates a sensor.
func SensorFromStruct(doc *structpb.Struct) (alarm.Sensor, error) {
	if doc == nil {
		return alarm.Sensor{}, ErrNilDocument
	}

	fields := doc.GetFields()

	name := fields[FieldName].GetStringValue()
	if name == "" {
		return alarm.Sensor{}, ErrMissingName
	}

	sensorType, err := alarm.ParseSensorType(fields[FieldType].GetStringValue())
	if err != nil {
		return alarm.Sensor{}, err
	}

	return alarm.Sensor{
		Name:   name,
		Type:   sensorType,
		Active: fields[FieldActive].GetBoolValue(),
	}, nil
}

// SnapshotToStruct encodes a snapshot.
func SnapshotToStruct(s *alarm.Snapshot) *structpb.Struct {
	if s == nil {
		s = alarm.DefaultSnapshot()
	}

	sensors := make([]*structpb.Value, 0, len(s.Sensors))
	for _, sensor := range s.Sensors {
		sensors = append(sensors, structpb.NewStructValue(SensorToStruct(sensor)))
	}

	fields := map[string]*structpb.Value{
		FieldAlarmStatus:  structpb.NewStringValue(s.AlarmStatus.String()),
		FieldArmingStatus: structpb.NewStringValue(s.ArmingStatus.String()),
		FieldSensors:      structpb.NewListValue(&structpb.ListValue{Values: sensors}),
		FieldCatDetected:  structpb.NewBoolValue(s.CatDetected),
	}

	if !s.UpdatedAt.IsZero() {
		fields[FieldUpdatedAt] = structpb.NewStringValue(s.UpdatedAt.UTC().Format(time.RFC3339Nano))
	}

	return &structpb.Struct{Fields: fields}
}

// SnapshotFromStruct decodes a snapshot. Sensors are returned in canonical order.
func SnapshotFromStruct(doc *structpb.Struct) (*alarm.Snapshot, error) {
	if doc == nil {
		return nil, ErrNilDocument
	}

	fields := doc.GetFields()

	alarmStatus, err := alarm.ParseAlarmStatus(fields[FieldAlarmStatus].GetStringValue())
	if err != nil {
		return nil, err
	}

	armingStatus, err := alarm.ParseArmingStatus(fields[FieldArmingStatus].GetStringValue())
	if err != nil {
		return nil, err
	}

	snapshot := &alarm.Snapshot{
		AlarmStatus:  alarmStatus,
		ArmingStatus: armingStatus,
		CatDetected:  fields[FieldCatDetected].GetBoolValue(),
	}

	for i, v := range fields[FieldSensors].GetListValue().GetValues() {
		sensor, err := SensorFromStruct(v.GetStructValue())
		if err != nil {
			return nil, fmt.Errorf("sensor %d: %w", i, err)
		}

		snapshot.Sensors = append(snapshot.Sensors, sensor)
	}

	alarm.SortSensors(snapshot.Sensors)

	if ts := fields[FieldUpdatedAt].GetStringValue(); ts != "" {
		snapshot.UpdatedAt, err = time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", FieldUpdatedAt, err)
		}
	}

	return snapshot, nil
}

// EventToStruct encodes a notification event. Only the field matching the kind is set.
func EventToStruct(id string, e notify.Event) *structpb.Struct {
	fields := map[string]*structpb.Value{
		FieldKind:      structpb.NewStringValue(string(e.Kind)),
		FieldTimestamp: structpb.NewStringValue(e.Timestamp.UTC().Format(time.RFC3339Nano)),
	}

	if id != "" {
		fields[FieldID] = structpb.NewStringValue(id)
	}

	switch e.Kind {
	case notify.KindAlarmStatus:
		fields[FieldAlarmStatus] = structpb.NewStringValue(e.AlarmStatus.String())
	case notify.KindArmingStatus:
		fields[FieldArmingStatus] = structpb.NewStringValue(e.ArmingStatus.String())
	case notify.KindSensor, notify.KindSensorAdded, notify.KindSensorRemoved:
		fields[FieldSensor] = structpb.NewStructValue(SensorToStruct(e.Sensor))
	case notify.KindCatDetection:
		fields[FieldCatDetected] = structpb.NewBoolValue(e.CatDetected)
	}

	return &structpb.Struct{Fields: fields}
}

// EventFromStruct decodes a notification event and its id.
func EventFromStruct(doc *structpb.Struct) (string, notify.Event, error) {
	if doc == nil {
		return "", notify.Event{}, ErrNilDocument
	}

	var (
		fields = doc.GetFields()
		event  = notify.Event{Kind: notify.Kind(fields[FieldKind].GetStringValue())}
		err    error
	)

	if ts := fields[FieldTimestamp].GetStringValue(); ts != "" {
		if event.Timestamp, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return "", notify.Event{}, fmt.Errorf("parse %s: %w", FieldTimestamp, err)
		}
	}

	switch event.Kind {
	case notify.KindAlarmStatus:
		event.AlarmStatus, err = alarm.ParseAlarmStatus(fields[FieldAlarmStatus].GetStringValue())
	case notify.KindArmingStatus:
		event.ArmingStatus, err = alarm.ParseArmingStatus(fields[FieldArmingStatus].GetStringValue())
	case notify.KindSensor, notify.KindSensorAdded, notify.KindSensorRemoved:
		event.Sensor, err = SensorFromStruct(fields[FieldSensor].GetStructValue())
	case notify.KindCatDetection:
		event.CatDetected = fields[FieldCatDetected].GetBoolValue()
	}

	if err != nil {
		return "", notify.Event{}, err
	}

	return fields[FieldID].GetStringValue(), event, nil
}

// sensorFields builds the field map of a sensor document.
func sensorFields(s alarm.Sensor) map[string]*structpb.Value {
	return map[string]*structpb.Value{
		FieldName:   structpb.NewStringValue(s.Name),
		FieldType:   structpb.NewStringValue(s.Type.String()),
		FieldActive: structpb.NewBoolValue(s.Active),
	}
}

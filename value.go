package rosbridge

import "time"

// Value is the open recursive JSON value every Topic/Service payload is
// built from: nil | bool | float64 | string | []Value | map[string]Value.
// The engine never enforces a schema on it; it is opaque and
// JSON-serializable end to end.
type Value = any

// Header builds a std_msgs/Header-shaped value. stamp is stored as given;
// Header does not check that it holds integer secs/nsecs (Time and Now
// build such values).
func Header(seq uint32, stamp Value, frameID string) Value {
	return map[string]Value{
		"seq":      seq,
		"stamp":    stamp,
		"frame_id": frameID,
	}
}

// Time builds a ROS Time/Duration-shaped value. secs and nsecs are always
// integers on the wire, never floats.
func Time(secs, nsecs int32) Value {
	return map[string]Value{
		"secs":  secs,
		"nsecs": nsecs,
	}
}

// Now returns the current time as a ROS Time value.
func Now() Value {
	t := time.Now()
	return Time(int32(t.Unix()), int32(t.Nanosecond()))
}

// Pose builds a geometry_msgs/Pose-shaped value from a position and
// orientation, both given as {x,y,z[,w]} maps, per the design note on
// ergonomic constructors for common ROS types.
func Pose(position, orientation Value) Value {
	return map[string]Value{
		"position":    position,
		"orientation": orientation,
	}
}

// Point builds a geometry_msgs/Point-shaped value.
func Point(x, y, z float64) Value {
	return map[string]Value{"x": x, "y": y, "z": z}
}

// Quaternion builds a geometry_msgs/Quaternion-shaped value.
func Quaternion(x, y, z, w float64) Value {
	return map[string]Value{"x": x, "y": y, "z": z, "w": w}
}

func asMap(v Value) (map[string]Value, bool) {
	m, ok := v.(map[string]Value)
	if ok {
		return m, true
	}
	m2, ok := v.(map[string]any)
	return m2, ok
}

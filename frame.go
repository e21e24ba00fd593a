package rosbridge

import (
	"encoding/json"

	"github.com/buger/jsonparser"
	"github.com/pkg/errors"
)

// outFrame is the untyped envelope every outgoing op is built from. A
// plain map keeps optional fields (id, compression, throttle_rate, ...)
// out of the payload entirely rather than serializing them as
// JSON null/zero values, matching how real rosbridge clients build their
// wire frames.
type outFrame map[string]Value

func newFrame(op string) outFrame {
	return outFrame{"op": op}
}

func (f outFrame) withID(id string) outFrame {
	if id != "" {
		f["id"] = id
	}
	return f
}

func (f outFrame) marshal() (string, error) {
	data, err := json.Marshal(map[string]Value(f))
	if err != nil {
		return "", errors.Wrap(err, "marshal outgoing frame")
	}
	return string(data), nil
}

func frameAdvertise(id, topic, msgType string) outFrame {
	return newFrame("advertise").withID(id).with("topic", topic).with("type", msgType)
}

func frameUnadvertise(id, topic string) outFrame {
	return newFrame("unadvertise").withID(id).with("topic", topic)
}

func framePublish(topic string, msg Value) outFrame {
	return newFrame("publish").with("topic", topic).with("msg", msg)
}

func frameSubscribe(id, topic, msgType string, throttleMs, queueLength int, compression string) outFrame {
	f := newFrame("subscribe").withID(id).with("topic", topic)
	if msgType != "" {
		f.with("type", msgType)
	}
	if throttleMs > 0 {
		f.with("throttle_rate", throttleMs)
	}
	if queueLength > 0 {
		f.with("queue_length", queueLength)
	}
	if compression != "" {
		f.with("compression", compression)
	}
	return f
}

func frameUnsubscribe(id, topic string) outFrame {
	return newFrame("unsubscribe").withID(id).with("topic", topic)
}

func frameCallService(id, service string, args Value, compression string) outFrame {
	f := newFrame("call_service").withID(id).with("service", service)
	if args != nil {
		f.with("args", args)
	}
	if compression != "" {
		f.with("compression", compression)
	}
	return f
}

func frameAdvertiseService(service, msgType string) outFrame {
	return newFrame("advertise_service").with("service", service).with("type", msgType)
}

func frameUnadvertiseService(service string) outFrame {
	return newFrame("unadvertise_service").with("service", service)
}

func frameServiceResponse(id, service string, values Value, result bool) outFrame {
	return newFrame("service_response").withID(id).with("service", service).
		with("values", values).with("result", result)
}

func frameAuth(auth Value) outFrame {
	f := newFrame("auth")
	if m, ok := asMap(auth); ok {
		for k, v := range m {
			f[k] = v
		}
	}
	return f
}

func (f outFrame) with(key string, v Value) outFrame {
	f[key] = v
	return f
}

// peekOp cheaply extracts the "op" field from a raw inbound frame before
// committing to a full decode, the same jsonparser-based scan style the
// teacher uses for ROS message fields.
func peekOp(data []byte) (string, error) {
	op, err := jsonparser.GetString(data, "op")
	if err != nil {
		return "", errors.Wrap(err, "missing or non-string \"op\" field")
	}
	return op, nil
}

// decodeFrame fully decodes an inbound frame into an untyped map, which
// the multiplexer then interprets according to its op.
func decodeFrame(data []byte) (map[string]Value, error) {
	var m map[string]Value
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, errors.Wrap(err, "decode inbound frame")
	}
	return m, nil
}

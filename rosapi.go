package rosbridge

// This file is the rosapi façade (spec section 4.7): thin wrappers over
// the standard /rosapi/* services every rosbridge server advertises.
// Every blocking operation has an Async counterpart, the same "every op
// with a reply needs both variants" rule the session's service and
// parameter APIs already follow.

func stringList(v Value, key string) []string {
	m, ok := asMap(v)
	if !ok {
		return nil
	}
	raw, ok := m[key].([]Value)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// Topics lists every topic currently advertised on the server.
func (s *RosSession) Topics() ([]string, error) {
	v, err := s.Service("/rosapi/topics", "rosapi/Topics").Call(map[string]Value{})
	if err != nil {
		return nil, err
	}
	return stringList(v, "topics"), nil
}

// TopicsAsync is Topics without blocking.
func (s *RosSession) TopicsAsync(cb func([]string, error)) {
	s.Service("/rosapi/topics", "rosapi/Topics").CallAsync(map[string]Value{}, func(v Value, err error) {
		if err != nil {
			cb(nil, err)
			return
		}
		cb(stringList(v, "topics"), nil)
	})
}

// TopicType returns the message type advertised for name.
func (s *RosSession) TopicType(name string) (string, error) {
	v, err := s.Service("/rosapi/topic_type", "rosapi/TopicType").Call(map[string]Value{"topic": name})
	if err != nil {
		return "", err
	}
	if m, ok := asMap(v); ok {
		if t, ok := m["type"].(string); ok {
			return t, nil
		}
	}
	return "", nil
}

// TopicTypeAsync is TopicType without blocking.
func (s *RosSession) TopicTypeAsync(name string, cb func(string, error)) {
	s.Service("/rosapi/topic_type", "rosapi/TopicType").CallAsync(map[string]Value{"topic": name}, func(v Value, err error) {
		if err != nil {
			cb("", err)
			return
		}
		m, _ := asMap(v)
		t, _ := m["type"].(string)
		cb(t, nil)
	})
}

// Services lists every service currently advertised on the server.
func (s *RosSession) Services() ([]string, error) {
	v, err := s.Service("/rosapi/services", "rosapi/Services").Call(map[string]Value{})
	if err != nil {
		return nil, err
	}
	return stringList(v, "services"), nil
}

// ServicesAsync is Services without blocking.
func (s *RosSession) ServicesAsync(cb func([]string, error)) {
	s.Service("/rosapi/services", "rosapi/Services").CallAsync(map[string]Value{}, func(v Value, err error) {
		if err != nil {
			cb(nil, err)
			return
		}
		cb(stringList(v, "services"), nil)
	})
}

// ServiceType returns the service type advertised for name.
func (s *RosSession) ServiceType(name string) (string, error) {
	v, err := s.Service("/rosapi/service_type", "rosapi/ServiceType").Call(map[string]Value{"service": name})
	if err != nil {
		return "", err
	}
	m, _ := asMap(v)
	t, _ := m["type"].(string)
	return t, nil
}

// ServiceTypeAsync is ServiceType without blocking.
func (s *RosSession) ServiceTypeAsync(name string, cb func(string, error)) {
	s.Service("/rosapi/service_type", "rosapi/ServiceType").CallAsync(map[string]Value{"service": name}, func(v Value, err error) {
		if err != nil {
			cb("", err)
			return
		}
		m, _ := asMap(v)
		t, _ := m["type"].(string)
		cb(t, nil)
	})
}

// Nodes lists every node the server's ROS master currently knows about.
func (s *RosSession) Nodes() ([]string, error) {
	v, err := s.Service("/rosapi/nodes", "rosapi/Nodes").Call(map[string]Value{})
	if err != nil {
		return nil, err
	}
	return stringList(v, "nodes"), nil
}

// NodesAsync is Nodes without blocking.
func (s *RosSession) NodesAsync(cb func([]string, error)) {
	s.Service("/rosapi/nodes", "rosapi/Nodes").CallAsync(map[string]Value{}, func(v Value, err error) {
		if err != nil {
			cb(nil, err)
			return
		}
		cb(stringList(v, "nodes"), nil)
	})
}

// Params lists every parameter name currently on the parameter server.
func (s *RosSession) Params() ([]string, error) {
	v, err := s.Service("/rosapi/get_param_names", "rosapi/GetParamNames").Call(map[string]Value{})
	if err != nil {
		return nil, err
	}
	return stringList(v, "names"), nil
}

// ParamsAsync is Params without blocking.
func (s *RosSession) ParamsAsync(cb func([]string, error)) {
	s.Service("/rosapi/get_param_names", "rosapi/GetParamNames").CallAsync(map[string]Value{}, func(v Value, err error) {
		if err != nil {
			cb(nil, err)
			return
		}
		cb(stringList(v, "names"), nil)
	})
}

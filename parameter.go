package rosbridge

import "time"

// Parameter is a handle to one name in the ROS parameter server, proxied
// through rosbridge's /rosapi/get_param, /rosapi/set_param, and
// /rosapi/delete_param services (spec section 4.6).
type Parameter struct {
	session *RosSession
	name    string
}

// Param returns a handle to the named parameter.
func (s *RosSession) Param(name string) *Parameter {
	return &Parameter{session: s, name: name}
}

// Get blocks for the parameter's current value.
func (p *Parameter) Get() (Value, error) {
	return p.GetWithTimeout(defaultServiceTimeout)
}

// GetWithTimeout is Get with an explicit deadline.
func (p *Parameter) GetWithTimeout(d time.Duration) (Value, error) {
	svc := p.session.Service("/rosapi/get_param", "rosapi/GetParam")
	result, err := svc.CallWithTimeout(map[string]Value{"name": p.name}, d)
	if err != nil {
		return nil, err
	}
	if m, ok := asMap(result); ok {
		return m["value"], nil
	}
	return result, nil
}

// GetAsync fetches the parameter without blocking.
func (p *Parameter) GetAsync(cb func(Value, error)) {
	svc := p.session.Service("/rosapi/get_param", "rosapi/GetParam")
	svc.CallAsync(map[string]Value{"name": p.name}, func(v Value, err error) {
		if err != nil {
			cb(nil, err)
			return
		}
		if m, ok := asMap(v); ok {
			cb(m["value"], nil)
			return
		}
		cb(v, nil)
	})
}

// Set blocks until the parameter has been updated server-side.
func (p *Parameter) Set(value Value) error {
	svc := p.session.Service("/rosapi/set_param", "rosapi/SetParam")
	_, err := svc.Call(map[string]Value{"name": p.name, "value": value})
	return err
}

// SetAsync sets the parameter without blocking.
func (p *Parameter) SetAsync(value Value, cb func(error)) {
	svc := p.session.Service("/rosapi/set_param", "rosapi/SetParam")
	svc.CallAsync(map[string]Value{"name": p.name, "value": value}, func(_ Value, err error) { cb(err) })
}

// Delete removes the parameter from the server.
func (p *Parameter) Delete() error {
	svc := p.session.Service("/rosapi/delete_param", "rosapi/DeleteParam")
	_, err := svc.Call(map[string]Value{"name": p.name})
	return err
}

// DeleteAsync removes the parameter without blocking.
func (p *Parameter) DeleteAsync(cb func(error)) {
	svc := p.session.Service("/rosapi/delete_param", "rosapi/DeleteParam")
	svc.CallAsync(map[string]Value{"name": p.name}, func(_ Value, err error) { cb(err) })
}

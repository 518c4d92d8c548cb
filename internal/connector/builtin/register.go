package builtin

import "github.com/flowctl/flowctl/internal/connector"

// RegisterAll binds every builtin connector type to reg under its
// conventional type name. Callers that want to override or omit one can
// call the individual New* constructors and reg.Register directly instead.
func RegisterAll(reg *connector.Registry) {
	reg.Register("env", NewEnv)
	reg.Register("process", NewProcess)
	reg.Register("sleep", NewSleep)
	reg.Register("http", NewHTTP)
	reg.Register("transform", NewTransform)
	reg.Register("glob", NewGlob)
}

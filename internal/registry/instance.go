package registry

import (
	"net"
	"strconv"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

// ServiceInstance is one network endpoint of a named service.
type ServiceInstance struct {
	ServiceName string `json:"serviceName"`
	Host        string `json:"host"`
	Port        int    `json:"port"`
	Healthy     bool   `json:"healthy"`
}

// Addr returns host:port.
func (i ServiceInstance) Addr() string {
	return net.JoinHostPort(i.Host, strconv.Itoa(i.Port))
}

// BaseURL returns the http base URL of the instance, without trailing slash.
func (i ServiceInstance) BaseURL() string {
	return "http://" + i.Addr()
}

func (i ServiceInstance) sameEndpoint(host string, port int) bool {
	return i.Host == host && i.Port == port
}

func (i ServiceInstance) Validate() error {
	return validation.ValidateStruct(&i,
		validation.Field(&i.ServiceName, validation.Required),
		validation.Field(&i.Host, validation.Required, is.Host),
		validation.Field(&i.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

package errors

import (
	"errors"
	"fmt"
)

// 预定义错误
var (
	ErrInterfaceNotFound   = errors.New("interface not found")
	ErrNoUSBInterface      = errors.New("no usb wifi interface found")
	ErrNotWifiInterface    = errors.New("interface is not a wifi device")
	ErrAlreadyInProgress   = errors.New("connect already in progress")
	ErrBusy                = errors.New("interface is busy")
	ErrAssociationTimeout  = errors.New("association timed out")
	ErrAssociationRejected = errors.New("association rejected")
	ErrFacilityUnavailable = errors.New("network management facility unavailable")
	ErrGatewayUnreachable  = errors.New("gateway unreachable")
	ErrNoGateway           = errors.New("no gateway address on interface")
	ErrStreamClosed        = errors.New("stream relay is closed")
	ErrSessionClosed       = errors.New("control session is closed")
	ErrNoCredential        = errors.New("no password provided and no saved credential")
)

// InterfaceError 接口操作相关错误
type InterfaceError struct {
	Interface string
	Op        string
	Message   string
	Cause     error
}

func (e *InterfaceError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("interface error [%s/%s]: %s: %v", e.Interface, e.Op, e.Message, e.Cause)
	}
	return fmt.Sprintf("interface error [%s/%s]: %s", e.Interface, e.Op, e.Message)
}

func (e *InterfaceError) Unwrap() error {
	return e.Cause
}

// NewInterfaceError 创建接口错误
func NewInterfaceError(iface, op, message string, cause error) *InterfaceError {
	return &InterfaceError{
		Interface: iface,
		Op:        op,
		Message:   message,
		Cause:     cause,
	}
}

// GatewayError 网关访问相关错误
// Cause 统一挂到 ErrGatewayUnreachable 链上，便于上层 errors.Is 判定
type GatewayError struct {
	Target  string
	Message string
	Cause   error
}

func (e *GatewayError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("gateway error [%s]: %s: %v", e.Target, e.Message, e.Cause)
	}
	return fmt.Sprintf("gateway error [%s]: %s", e.Target, e.Message)
}

func (e *GatewayError) Unwrap() error {
	return e.Cause
}

// NewGatewayError 创建网关错误
func NewGatewayError(target, message string, cause error) *GatewayError {
	if cause == nil {
		cause = ErrGatewayUnreachable
	} else if !errors.Is(cause, ErrGatewayUnreachable) {
		cause = fmt.Errorf("%w: %v", ErrGatewayUnreachable, cause)
	}
	return &GatewayError{
		Target:  target,
		Message: message,
		Cause:   cause,
	}
}

// ConfigError 配置文件相关错误，启动期致命
type ConfigError struct {
	Path    string
	Message string
	Cause   error
}

func (e *ConfigError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("config error [%s]: %s: %v", e.Path, e.Message, e.Cause)
	}
	return fmt.Sprintf("config error [%s]: %s", e.Path, e.Message)
}

func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// NewConfigError 创建配置错误
func NewConfigError(path, message string, cause error) *ConfigError {
	return &ConfigError{
		Path:    path,
		Message: message,
		Cause:   cause,
	}
}

// ProxyError 代理转发相关错误
type ProxyError struct {
	Endpoint string
	Message  string
	Cause    error
}

func (e *ProxyError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("proxy error [%s]: %s: %v", e.Endpoint, e.Message, e.Cause)
	}
	return fmt.Sprintf("proxy error [%s]: %s", e.Endpoint, e.Message)
}

func (e *ProxyError) Unwrap() error {
	return e.Cause
}

// NewProxyError 创建代理错误
func NewProxyError(endpoint, message string, cause error) *ProxyError {
	return &ProxyError{
		Endpoint: endpoint,
		Message:  message,
		Cause:    cause,
	}
}

// Is 透传标准库 errors.Is
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As 透传标准库 errors.As
func As(err error, target any) bool {
	return errors.As(err, target)
}

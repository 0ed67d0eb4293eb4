package goCampus

import (
	"errors"

	"github.com/MrEthical07/goCampus/api"
	"github.com/MrEthical07/goCampus/storage"
)

// Request failures. Every error returned by [Client.API] calls is an *api.Error and
// matches exactly one of these with errors.Is.
var (
	// ErrBusiness is an exported constant or variable used by the request gateway.
	ErrBusiness = api.ErrBusiness
	// ErrUnauthorized is an exported constant or variable used by the request gateway.
	ErrUnauthorized = api.ErrUnauthorized
	// ErrHTTPStatus is an exported constant or variable used by the request gateway.
	ErrHTTPStatus = api.ErrHTTPStatus
	// ErrTransport is an exported constant or variable used by the request gateway.
	ErrTransport = api.ErrTransport
	// ErrDecode is an exported constant or variable used by the request gateway.
	ErrDecode = api.ErrDecode
)

// Storage failures.
var (
	// ErrStorageNotFound is returned by a storage backend for a missing key.
	ErrStorageNotFound = storage.ErrNotFound
	// ErrStorageUnavailable wraps storage backend failures.
	ErrStorageUnavailable = storage.ErrUnavailable
)

var (
	// ErrInvalidConfig wraps every configuration validation failure.
	ErrInvalidConfig = errors.New("invalid config")
	// ErrBuilderUsed is returned when Build is called twice on one [Builder].
	ErrBuilderUsed = errors.New("builder already used")
	// ErrNotLoggedIn is returned by operations that need a session when there is none.
	ErrNotLoggedIn = errors.New("not logged in")
	// ErrClientClosed is returned by operations on a closed [Client].
	ErrClientClosed = errors.New("client closed")
)

package diagram

import "errors"

var (
	// ErrUnknownType is returned when a node type is not in the catalog
	ErrUnknownType = errors.New("unsupported node type")
	// ErrUnknownNode is returned when a link references a missing label
	ErrUnknownNode = errors.New("one or both nodes for linking do not exist")
	// ErrEmptyLabel is returned for blank node labels
	ErrEmptyLabel = errors.New("node label cannot be empty")
	// ErrSessionClosed is returned for any call after finalize or release
	ErrSessionClosed = errors.New("diagram session is closed")
	// ErrRenderEngine wraps failures of the underlying render engine
	ErrRenderEngine = errors.New("render engine failure")
)

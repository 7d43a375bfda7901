package domain

import "errors"

var (
	ErrChannelClosed      = errors.New("channel closed")
	ErrDuplicateChannelID = errors.New("duplicate channel id")
	ErrKindMismatch       = errors.New("channel media kind mismatch")
	ErrEndpointNotFound   = errors.New("endpoint not found")
	ErrLinkNotFound       = errors.New("link not found")
	ErrNoPath             = errors.New("no path between endpoints")
)

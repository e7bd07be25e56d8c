package social

import "errors"

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrTicketNotFound    = errors.New("ticket not found")
	ErrCommentNotFound   = errors.New("comment not found")
	ErrInvalidTransition = errors.New("invalid status transition")
)

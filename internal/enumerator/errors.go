package enumerator

import "errors"

// ErrLoginWall is terminal for the current credential: the reply page shows
// a login prompt instead of the conversation.
var ErrLoginWall = errors.New("reply page requires login")

// ErrRootUnavailable is terminal: the root post is deleted or restricted.
var ErrRootUnavailable = errors.New("root post unavailable")

// IsLoginWall reports whether err is (or wraps) ErrLoginWall.
func IsLoginWall(err error) bool { return errors.Is(err, ErrLoginWall) }

// IsRootUnavailable reports whether err is (or wraps) ErrRootUnavailable.
func IsRootUnavailable(err error) bool { return errors.Is(err, ErrRootUnavailable) }

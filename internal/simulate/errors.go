package simulate

import "errors"

// ErrInjected is returned by the scripted detectors on configured frames.
var ErrInjected = errors.New("injected detector failure")
